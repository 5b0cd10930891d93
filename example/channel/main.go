package main

import (
	"context"
	"fmt"
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

	publisher, snapshots, closeSnapshots := pitwall.NewChannelPublisher("fanout", 32)
	defer closeSnapshots()

	go alertWorker(snapshots)

	rt, err := pitwall.New(cfg, pitwall.WithPublisher(publisher))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("pipeline exited: %v", err)
	}
}

func alertWorker(snapshots <-chan pitwall.Snapshot) {
	var lastDecisions uint64
	for snap := range snapshots {
		if snap.Counters.Decisions > lastDecisions {
			for _, d := range snap.RecentDecisions {
				fmt.Printf("ALERT car %d: %s (%s)\n", d.CarID, d.Kind, d.Detail)
			}
			lastDecisions = snap.Counters.Decisions
		}
		if snap.DropRate > 0.05 {
			fmt.Printf("WARN drop rate %.1f%% at %s\n", snap.DropRate*100, snap.Timestamp.Format("15:04:05"))
		}
	}
}
