package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mindpattern/internal/api"
	"mindpattern/internal/config"
	"mindpattern/internal/model"
	"mindpattern/internal/notifier"
	"mindpattern/internal/queue"
	"mindpattern/internal/redis"
	"mindpattern/internal/scraper"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("app error: %v", err)
	}
	log.Printf("shut down")
}

// run starts every configured component and blocks until ctx is done or one
// of them fails. Components whose config section is empty are skipped.
func run(ctx context.Context, cfg *config.Config) error {
	resolver, err := model.NewResolver(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	broker := api.NewSSEBroker()
	opts := []api.Option{api.WithBroker(broker)}

	var repo storage.AnalysisRepository
	if cfg.Storage.DSN != "" {
		db, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("connect to storage: %w", err)
		}
		defer db.Close()

		repo = db
		opts = append(opts, api.WithRepository(db))

		g.Go(func() error {
			worker.NewJanitor(db, cfg.Storage).Start(gctx)
			return nil
		})
	}

	if cfg.Sessions.RedisAddr != "" {
		sessions, err := redis.New(cfg.Sessions)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer sessions.Close()

		opts = append(opts, api.WithSessions(sessions))
	}

	analyzer := worker.NewAnalyzer(resolver, repo, broker, notifier.New(cfg.Notifier), notifier.NewPolicy(cfg.Notifier))
	server := api.NewServer(cfg.Server, resolver, analyzer, opts...)

	if len(cfg.Queue.Brokers) > 0 {
		consumer, err := queue.NewKafkaConsumer(cfg.Queue)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		defer consumer.Close()

		g.Go(func() error {
			return analyzer.Consume(gctx, consumer)
		})

		if len(cfg.Ingest.Feeds) > 0 {
			publisher, err := queue.NewKafka(cfg.Queue)
			if err != nil {
				return fmt.Errorf("create publisher: %w", err)
			}
			defer publisher.Close()

			g.Go(func() error {
				worker.NewIngest(scraper.NewFeed(), publisher, cfg.Ingest).Start(gctx)
				return nil
			})
		}
	}

	g.Go(func() error {
		log.Printf("server starting on %s", cfg.Server.Port)
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Printf("app started")

	return g.Wait()
}
