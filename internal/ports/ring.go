package ports

import (
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

// AdmitResult is the immediate, non-blocking decision returned by Admit.
type AdmitResult uint8

const (
	// Admitted means a free slot held the sample.
	Admitted AdmitResult = iota
	// AdmittedEvicted means the buffer was full and a strictly
	// lower-priority sample was evicted to make room.
	AdmittedEvicted
	// Rejected means the buffer was full and nothing buffered had lower
	// priority; the incoming sample was refused (backpressure).
	Rejected
)

// Ring is the bounded holding area between ingestion and processing. All
// operations are O(1) and never block on I/O; Admit always returns an
// immediate decision so ingestion never waits on a full buffer.
type Ring interface {
	// Admit stores the sample or applies the overload policy. When the
	// result is AdmittedEvicted the returned sample is the evicted victim.
	Admit(s domain.Sample, at time.Time) (AdmitResult, domain.Sample)

	// TakeNext returns the highest-priority, oldest-within-class sample
	// and its admission time, or ok=false when empty. Only one logical
	// dequeuer may drain the ring.
	TakeNext() (s domain.Sample, admittedAt time.Time, ok bool)

	Len() int
	Capacity() int
	Full() bool
}
