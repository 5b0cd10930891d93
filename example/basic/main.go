package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	pitwall "github.com/pingu-73/telemetry-pipeline"
)

func main() {
	cfg, err := pitwall.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := pitwall.New(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("pipeline exited: %v", err)
	}
}
