package grpc

import (
	"context"

	"github.com/godilite/cs-eval-dashboard/internal/refresh"
	"github.com/godilite/cs-eval-dashboard/internal/service"
)

type EvaluationReader interface {
	FetchEvaluations(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error)
	GetStats(ctx context.Context) (service.Stats, error)
}

type SnapshotSource interface {
	Snapshot() (*refresh.Snapshot, error)
	Status() refresh.Status
}
