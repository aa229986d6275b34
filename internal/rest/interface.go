package rest

import (
	"context"

	"github.com/godilite/cs-eval-dashboard/internal/refresh"
	"github.com/godilite/cs-eval-dashboard/internal/service"
)

// EvaluationReader serves the store-backed endpoints.
type EvaluationReader interface {
	FetchEvaluations(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error)
	GetStats(ctx context.Context) (service.Stats, error)
}

// SnapshotSource serves the snapshot-backed endpoints.
type SnapshotSource interface {
	Snapshot() (*refresh.Snapshot, error)
	Status() refresh.Status
}
