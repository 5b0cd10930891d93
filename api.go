package pitwall

import (
	base "github.com/pingu-73/telemetry-pipeline/pkg/pitwall"
)

// Re-exported errors for convenience.
var (
	ErrIdleShutdown           = base.ErrIdleShutdown
	ErrTransportUnavailable   = base.ErrTransportUnavailable
	ErrChannelPublisherClosed = base.ErrChannelPublisherClosed
)

// Type aliases so consumers can import the module root directly.
type (
	Config         = base.Config
	Policy         = base.Policy
	UDPConfig      = base.UDPConfig
	PriorityConfig = base.PriorityConfig
	StrategyConfig = base.StrategyConfig
	PublishConfig  = base.PublishConfig
	MetricsConfig  = base.MetricsConfig
	SinkConfig     = base.SinkConfig
	RecorderConfig = base.RecorderConfig
	LogConfig      = base.LogConfig

	Runtime = base.Runtime
	Option  = base.Option

	Sample        = base.Sample
	Outcome       = base.Outcome
	OutcomeStatus = base.OutcomeStatus
	Decision      = base.Decision
	DecisionKind  = base.DecisionKind
	Snapshot      = base.Snapshot
	Counters      = base.Counters
	PriorityClass = base.PriorityClass

	Receiver          = base.Receiver
	FrameHandler      = base.FrameHandler
	Ring              = base.Ring
	SnapshotPublisher = base.SnapshotPublisher
	SnapshotFunc      = base.SnapshotFunc
	OutcomeSink       = base.OutcomeSink
	Recorder          = base.Recorder
	RecorderStats     = base.RecorderStats
	Observability     = base.Observability
	Field             = base.Field
)

// Priority classes, highest first.
const (
	ClassCritical = base.ClassCritical
	ClassHigh     = base.ClassHigh
	ClassMedium   = base.ClassMedium
	ClassLow      = base.ClassLow
)

// Outcome statuses.
const (
	OutcomeProcessed     = base.OutcomeProcessed
	OutcomeProcessedLate = base.OutcomeProcessedLate
	OutcomeError         = base.OutcomeError
	OutcomeEvicted       = base.OutcomeEvicted
	OutcomeRejected      = base.OutcomeRejected
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Runtime and options.
func New(cfg *Config, opts ...Option) (*Runtime, error) {
	return base.New(cfg, opts...)
}

func WithReceiver(r Receiver) Option {
	return base.WithReceiver(r)
}

func WithRing(r Ring) Option {
	return base.WithRing(r)
}

func WithPublisher(p SnapshotPublisher) Option {
	return base.WithPublisher(p)
}

func WithOutcomeSink(s OutcomeSink) Option {
	return base.WithOutcomeSink(s)
}

func WithRecorder(r Recorder) Option {
	return base.WithRecorder(r)
}

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

// Publisher adapters.
func NewCallbackPublisher(name string, fn SnapshotFunc) SnapshotPublisher {
	return base.NewCallbackPublisher(name, fn)
}

func NewChannelPublisher(name string, buffer int) (SnapshotPublisher, <-chan Snapshot, func()) {
	return base.NewChannelPublisher(name, buffer)
}
