package domain

import "time"

// DecisionKind labels a strategy advisory.
type DecisionKind string

const (
	DecisionPitWindow      DecisionKind = "pit-window"
	DecisionCoolDown       DecisionKind = "cool-down"
	DecisionEngineCritical DecisionKind = "engine-critical"
)

// Decision is an append-only, timestamped strategy output. Past decisions
// are never revised; new conditions append new decisions.
type Decision struct {
	At     time.Time    `json:"at"`
	CarID  uint8        `json:"car_id"`
	Kind   DecisionKind `json:"kind"`
	Detail string       `json:"detail"`
}

// Counters is the point-in-time counter block included in each Snapshot.
type Counters struct {
	FramesReceived   uint64 `json:"frames_received"`
	BytesReceived    uint64 `json:"bytes_received"`
	Decoded          uint64 `json:"decoded"`
	Malformed        uint64 `json:"malformed"`
	VersionMismatch  uint64 `json:"version_mismatch"`
	ChecksumFailures uint64 `json:"checksum_failures"`
	StaleDropped     uint64 `json:"stale_dropped"`
	Admitted         uint64 `json:"admitted"`
	Rejected         uint64 `json:"rejected"`
	Evicted          uint64 `json:"evicted"`
	Processed        uint64 `json:"processed"`
	DeadlineMissed   uint64 `json:"deadline_missed"`
	ProcessingErrors uint64 `json:"processing_errors"`
	Decisions        uint64 `json:"decisions"`
}

// Snapshot is the structured state pushed to the live-view boundary on
// each publish cycle.
type Snapshot struct {
	Timestamp       time.Time  `json:"timestamp"`
	ThroughputPPS   float64    `json:"throughput"`
	ThroughputBPS   float64    `json:"throughput_bytes"`
	LatencyP50Ms    float64    `json:"latency_p50"`
	LatencyP99Ms    float64    `json:"latency_p99"`
	DropRate        float64    `json:"drop_rate"`
	RecentDecisions []Decision `json:"recent_decisions"`
	RecentOutcomes  []Outcome  `json:"recent_outcomes"`
	RingOccupancy   int        `json:"ring_occupancy"`
	Counters        Counters   `json:"counters"`
}
