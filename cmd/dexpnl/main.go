package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dexpnl/internal/config"
	"dexpnl/internal/logger"
	"dexpnl/internal/pipeline"
)

func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	l, closer := logger.New(cfg.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, l)
	if err != nil {
		l.Error("Run failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
	l.Info("Run complete", "run", res.RunID, "ranked", len(res.Ranked), "files", res.Files)
}
