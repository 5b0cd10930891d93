package ports

import "github.com/pingu-73/telemetry-pipeline/internal/domain"

// OutcomeSink persists batches of outcome records. Sinks run off the hot
// path behind a bounded channel; WriteBatch may block on I/O.
type OutcomeSink interface {
	WriteBatch(outcomes []domain.Outcome) error
	Name() string
}
