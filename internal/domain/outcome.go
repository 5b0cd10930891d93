package domain

import "time"

// OutcomeStatus records what happened to an admitted (or rejected) sample.
type OutcomeStatus uint8

const (
	OutcomeProcessed     OutcomeStatus = iota // processed within the latency budget
	OutcomeProcessedLate                      // processed, budget exceeded
	OutcomeError                              // processed, per-sample computation fault
	OutcomeEvicted                            // evicted from the ring before processing
	OutcomeRejected                           // rejected at admission, buffer full
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeProcessed:
		return "processed"
	case OutcomeProcessedLate:
		return "processed_late"
	case OutcomeError:
		return "error"
	case OutcomeEvicted:
		return "evicted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the per-sample processing record. Exactly one Outcome exists
// for every sample that reached admission, whether it was processed,
// evicted, or rejected. Immutable once produced.
type Outcome struct {
	CarID       uint8         `json:"car_id"`
	Seq         uint32        `json:"seq"`
	Priority    PriorityClass `json:"priority"`
	Status      OutcomeStatus `json:"status"`
	Latency     time.Duration `json:"latency_us"`
	MetDeadline bool          `json:"met_deadline"`
	RecordedAt  time.Time     `json:"recorded_at"`
	Detail      string        `json:"detail,omitempty"`
}

// Dropped reports whether the sample never reached the processor.
func (o Outcome) Dropped() bool {
	return o.Status == OutcomeEvicted || o.Status == OutcomeRejected
}
