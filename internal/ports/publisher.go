package ports

import (
	"context"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

// SnapshotPublisher pushes pipeline state to the live-view boundary.
// Publish must never block the caller on a slow or absent viewer; failures
// are non-fatal and are reported for counting only.
type SnapshotPublisher interface {
	Publish(snap domain.Snapshot) error
	Name() string
	Close(ctx context.Context) error
}
