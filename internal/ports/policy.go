package ports

import "time"

// Policy carries the pipeline-wide knobs: buffer sizing, the per-sample
// latency budget, the idle-shutdown window, and transport retry bounds.
type Policy struct {
	RingCapacity  int           `yaml:"ring_capacity"`
	LatencyBudget time.Duration `yaml:"latency_budget"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	IdleSleep     time.Duration `yaml:"idle_sleep"`

	// TargetCar filters ingestion to one car number; 0 accepts all cars.
	TargetCar uint8 `yaml:"target_car"`

	MaxRecvRetries int           `yaml:"max_recv_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
}
