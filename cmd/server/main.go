package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mindpattern/internal/api"
	"mindpattern/internal/config"
	"mindpattern/internal/model"
	"mindpattern/internal/notifier"
	"mindpattern/internal/redis"
	"mindpattern/internal/storage"
	"mindpattern/internal/worker"
)

func main() {
	path := flag.String("config", config.Path(), "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver, err := model.NewResolver(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build resolver: %v", err)
	}

	broker := api.NewSSEBroker()
	opts := []api.Option{api.WithBroker(broker)}

	var repo storage.AnalysisRepository
	if cfg.Storage.DSN != "" {
		db, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("failed to connect to storage: %v", err)
		}
		defer db.Close()

		repo = db
		opts = append(opts, api.WithRepository(db))
		go worker.NewJanitor(db, cfg.Storage).Start(ctx)
	}

	if cfg.Sessions.RedisAddr != "" {
		sessions, err := redis.New(cfg.Sessions)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer sessions.Close()

		opts = append(opts, api.WithSessions(sessions))
	}

	analyzer := worker.NewAnalyzer(resolver, repo, broker, notifier.New(cfg.Notifier), notifier.NewPolicy(cfg.Notifier))
	server := api.NewServer(cfg.Server, resolver, analyzer, opts...)

	go func() {
		log.Printf("server starting on %s", cfg.Server.Port)
		if err := server.Start(cfg.Server.Port); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
