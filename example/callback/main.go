package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/pingu-73/telemetry-pipeline/pkg/pitwall"
)

func main() {
	cfg, err := pitwall.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	publisher := pitwall.NewCallbackPublisher("stdout", func(snap pitwall.Snapshot) error {
		fmt.Printf("%s | %.0f pps | p99 %.2fms | drop %.2f%% | ring %d\n",
			snap.Timestamp.Format("15:04:05.000"),
			snap.ThroughputPPS,
			snap.LatencyP99Ms,
			snap.DropRate*100,
			snap.RingOccupancy,
		)
		for _, d := range snap.RecentDecisions {
			fmt.Printf("  car %d: %s (%s)\n", d.CarID, d.Kind, d.Detail)
		}
		return nil
	})

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
