// Package config loads and validates the pipeline configuration file.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/pingu-73/telemetry-pipeline/internal/adapters/publisher"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/recorder"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/sink"
	"github.com/pingu-73/telemetry-pipeline/internal/adapters/udp"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
	"github.com/pingu-73/telemetry-pipeline/internal/strategy"
)

type Config struct {
	Pipeline ports.Policy     `yaml:"pipeline"`
	UDP      udp.Config       `yaml:"udp"`
	Priority PriorityConfig   `yaml:"priority"`
	Strategy strategy.Config  `yaml:"strategy"`
	Publish  publisher.Config `yaml:"publish"`
	Metrics  MetricsConfig    `yaml:"metrics"`
	Sink     SinkConfig       `yaml:"sink"`
	Recorder recorder.Config  `yaml:"recorder"`
	Log      LogConfig        `yaml:"log"`
}

// PriorityConfig sets the thresholds that promote a sample to the
// critical class regardless of the priority carried on the wire.
type PriorityConfig struct {
	BrakeCritical          float32 `yaml:"brake_critical"`
	WaterTempCriticalC     int16   `yaml:"water_temp_critical_c"`
	OilPressureCriticalBar float32 `yaml:"oil_pressure_critical_bar"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SinkConfig enables outcome persistence when conn_string is set.
type SinkConfig struct {
	ConnString string            `yaml:"conn_string"`
	Table      string            `yaml:"table"`
	Writer     sink.WriterConfig `yaml:"writer"`
}

func (s SinkConfig) Enabled() bool { return s.ConnString != "" }

// LogConfig routes the process log through a rotating file when file is
// set; stderr otherwise.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Setup installs the configured log destination and returns a closer for
// the rotating file, if any.
func (l LogConfig) Setup() io.Closer {
	if l.File == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   l.File,
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
	}
	log.SetOutput(lj)
	return lj
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Pipeline.RingCapacity == 0 {
		c.Pipeline.RingCapacity = 256
	}
	if c.Pipeline.LatencyBudget == 0 {
		c.Pipeline.LatencyBudget = 10 * time.Millisecond
	}
	if c.Pipeline.IdleTimeout == 0 {
		c.Pipeline.IdleTimeout = 5 * time.Second
	}
	if c.Pipeline.IdleSleep == 0 {
		c.Pipeline.IdleSleep = 500 * time.Microsecond
	}
	if c.Pipeline.MaxRecvRetries == 0 {
		c.Pipeline.MaxRecvRetries = 5
	}
	if c.Pipeline.RetryBackoff == 0 {
		c.Pipeline.RetryBackoff = 100 * time.Millisecond
	}

	if c.Priority.BrakeCritical == 0 {
		c.Priority.BrakeCritical = 0.95
	}
	if c.Priority.WaterTempCriticalC == 0 {
		c.Priority.WaterTempCriticalC = 130
	}
	if c.Priority.OilPressureCriticalBar == 0 {
		c.Priority.OilPressureCriticalBar = 2.0
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Sink.Table == "" {
		c.Sink.Table = "outcomes"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 64
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}

	c.UDP.ApplyDefaults()
	c.Strategy.ApplyDefaults()
	c.Publish.ApplyDefaults()
	c.Sink.Writer.ApplyDefaults()
	c.Recorder.ApplyDefaults()
}

func (c *Config) Validate() error {
	if c.Pipeline.RingCapacity <= 0 {
		return fmt.Errorf("pipeline.ring_capacity must be positive, got %d", c.Pipeline.RingCapacity)
	}
	if c.Pipeline.LatencyBudget <= 0 {
		return fmt.Errorf("pipeline.latency_budget must be positive, got %s", c.Pipeline.LatencyBudget)
	}
	if err := c.UDP.Validate(); err != nil {
		return fmt.Errorf("udp config: %w", err)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy config: %w", err)
	}
	if c.Priority.BrakeCritical <= 0 || c.Priority.BrakeCritical > 1 {
		return fmt.Errorf("priority.brake_critical must be in (0, 1], got %g", c.Priority.BrakeCritical)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}
