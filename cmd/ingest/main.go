package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mindpattern/internal/config"
	"mindpattern/internal/queue"
	"mindpattern/internal/scraper"
	"mindpattern/internal/worker"
)

func main() {
	path := flag.String("config", config.Path(), "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Ingest.Feeds) == 0 {
		log.Fatalf("no feeds configured")
	}

	publisher, err := queue.NewKafka(cfg.Queue)
	if err != nil {
		log.Fatalf("failed to create queue: %v", err)
	}
	defer publisher.Close()

	w := worker.NewIngest(scraper.NewFeed(), publisher, cfg.Ingest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx)

	log.Printf("ingest started for %d feeds every %s", len(cfg.Ingest.Feeds), cfg.Ingest.Interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	cancel()
}
