package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	pitwall "github.com/pingu-73/telemetry-pipeline"
)

func main() {
	// optional .env for local overrides; absence is fine
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "simulate":
		err = simulateCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("pitwall %s: %v", cmd, err)
	}
}

func loadConfig(path string) (*pitwall.Config, error) {
	cfg, err := pitwall.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments replace the settings
// that differ between machines without editing the config file.
func applyEnvOverrides(cfg *pitwall.Config) {
	if v := os.Getenv("PITWALL_UDP_ADDR"); v != "" {
		cfg.UDP.Addr = v
	}
	if v := os.Getenv("PITWALL_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("PITWALL_PUBLISH_ADDR"); v != "" {
		cfg.Publish.Addr = v
	}
	if v := os.Getenv("PITWALL_SINK_CONN_STRING"); v != "" {
		cfg.Sink.ConnString = v
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to pipeline configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if closer := cfg.Log.Setup(); closer != nil {
		defer closer.Close()
	}

	rt, err := pitwall.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := loadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9000/snapshot", "Snapshot endpoint of a running pipeline")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Polling %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		fmt.Println("no snapshot published yet")
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var snap pitwall.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return err
	}

	c := snap.Counters
	fmt.Printf("[%s] %.0f pps | p50 %.2fms p99 %.2fms | drop %.2f%% | ring %d | processed %d rejected %d evicted %d decisions %d\n",
		snap.Timestamp.Format(time.RFC3339),
		snap.ThroughputPPS,
		snap.LatencyP50Ms,
		snap.LatencyP99Ms,
		snap.DropRate*100,
		snap.RingOccupancy,
		c.Processed,
		c.Rejected,
		c.Evicted,
		c.Decisions,
	)
	for _, d := range snap.RecentDecisions {
		fmt.Printf("    decision: car %d %s (%s)\n", d.CarID, d.Kind, d.Detail)
	}
	return nil
}

func printUsage() {
	fmt.Printf(`pitwall - real-time car telemetry pipeline

Usage:
  pitwall <command> [flags]

Commands:
  run        Start the pipeline using the provided config
  validate   Load and validate a config file without starting the pipeline
  stats      Poll a running pipeline's snapshot endpoint and print live counters
  simulate   Stream synthetic or recorded telemetry at a running pipeline

Examples:
  pitwall run -config ./data/config.yaml
  pitwall validate -config ./data/config.yaml
  pitwall stats -url http://localhost:9000/snapshot -interval 1s
  pitwall simulate -target 127.0.0.1:20777 -hz 500 -laps 3
  pitwall simulate -target 127.0.0.1:20777 -session ./data/session
`)
}
