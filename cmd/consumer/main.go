package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mindpattern/internal/config"
	"mindpattern/internal/model"
	"mindpattern/internal/notifier"
	"mindpattern/internal/queue"
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

	var repo storage.AnalysisRepository
	if cfg.Storage.DSN != "" {
		db, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("failed to connect to storage: %v", err)
		}
		defer db.Close()
		repo = db
	} else {
		log.Printf("[WARN] no storage configured; redelivered submissions are analyzed again")
	}

	consumer, err := queue.NewKafkaConsumer(cfg.Queue)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	w := worker.NewAnalyzer(resolver, repo, nil, notifier.New(cfg.Notifier), notifier.NewPolicy(cfg.Notifier))

	go func() {
		if err := w.Consume(ctx, consumer); err != nil {
			log.Printf("consumer error: %v", err)
		}
	}()

	log.Printf("consumer started on topic %s", cfg.Queue.Topic)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	cancel()
}
