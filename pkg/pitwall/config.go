package pitwall

import (
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/publisher"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/recorder"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/udp"
	"github.com/pingu-73/telemetry-pipeline/internal/app/config"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
	"github.com/pingu-73/telemetry-pipeline/internal/strategy"
)

// Config re-exports the root configuration struct so downstream projects
// can construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls buffer sizing, latency budget, and idle shutdown.
	Policy = ports.Policy
	// UDPConfig holds the receive endpoint details.
	UDPConfig = udp.Config
	// PriorityConfig sets the critical-promotion thresholds.
	PriorityConfig = config.PriorityConfig
	// StrategyConfig tunes the decision triggers.
	StrategyConfig = strategy.Config
	// PublishConfig configures the live-view boundary.
	PublishConfig = publisher.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// SinkConfig configures outcome persistence.
	SinkConfig = config.SinkConfig
	// RecorderConfig configures the on-disk session recording.
	RecorderConfig = recorder.Config
	// LogConfig configures log rotation.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
