package pitwall

import (
	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

// Sample is one decoded telemetry reading. It mirrors the internal domain
// type but is exported so custom adapters can reference it.
type Sample = domain.Sample

// Outcome is the per-sample processing record.
type Outcome = domain.Outcome

// OutcomeStatus labels what happened to a sample.
type OutcomeStatus = domain.OutcomeStatus

// Decision is an append-only strategy advisory.
type Decision = domain.Decision

// DecisionKind labels a strategy advisory.
type DecisionKind = domain.DecisionKind

// Snapshot is the structured state pushed to viewers.
type Snapshot = domain.Snapshot

// Counters is the point-in-time counter block inside each Snapshot.
type Counters = domain.Counters

// PriorityClass orders samples for admission and dequeue.
type PriorityClass = domain.PriorityClass

const (
	ClassCritical = domain.ClassCritical
	ClassHigh     = domain.ClassHigh
	ClassMedium   = domain.ClassMedium
	ClassLow      = domain.ClassLow
)

const (
	OutcomeProcessed     = domain.OutcomeProcessed
	OutcomeProcessedLate = domain.OutcomeProcessedLate
	OutcomeError         = domain.OutcomeError
	OutcomeEvicted       = domain.OutcomeEvicted
	OutcomeRejected      = domain.OutcomeRejected
)

// Receiver delivers raw frames into the pipeline.
type Receiver = ports.Receiver

// FrameHandler consumes one raw datagram.
type FrameHandler = ports.FrameHandler

// Ring is the bounded holding area between ingestion and processing.
type Ring = ports.Ring

// SnapshotPublisher pushes pipeline state to the live-view boundary.
type SnapshotPublisher = ports.SnapshotPublisher

// OutcomeSink persists batches of outcome records.
type OutcomeSink = ports.OutcomeSink

// Recorder journals raw wire frames for post-session replay.
type Recorder = ports.Recorder

// RecorderStats exposes session-recorder state.
type RecorderStats = ports.RecorderStats

// Observability emits metrics and logs for the pipeline stages.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Re-exported receiver exit conditions.
var (
	ErrIdleShutdown         = ports.ErrIdleShutdown
	ErrTransportUnavailable = ports.ErrTransportUnavailable
)
