package mocks

import (
	"context"
	"errors"

	"github.com/godilite/cs-eval-dashboard/internal/refresh"
	"github.com/godilite/cs-eval-dashboard/internal/service"
)

// MockEvaluationReader is a mock implementation of the EvaluationReader interface.
type MockEvaluationReader struct {
	FetchEvaluationsFunc func(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error)
	GetStatsFunc         func(ctx context.Context) (service.Stats, error)
}

func (m *MockEvaluationReader) FetchEvaluations(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error) {
	if m.FetchEvaluationsFunc != nil {
		return m.FetchEvaluationsFunc(ctx, agentFilter)
	}
	return nil, errors.New("FetchEvaluationsFunc not implemented")
}

func (m *MockEvaluationReader) GetStats(ctx context.Context) (service.Stats, error) {
	if m.GetStatsFunc != nil {
		return m.GetStatsFunc(ctx)
	}
	return service.Stats{}, errors.New("GetStatsFunc not implemented")
}

// MockSnapshotSource serves a fixed snapshot, or Err when Snap is nil.
type MockSnapshotSource struct {
	Snap *refresh.Snapshot
	Err  error
}

func (m *MockSnapshotSource) Snapshot() (*refresh.Snapshot, error) {
	if m.Snap != nil {
		return m.Snap, nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return nil, refresh.ErrNotReady
}

func (m *MockSnapshotSource) Status() refresh.Status {
	if m.Snap != nil {
		return refresh.Status{Phase: refresh.PhaseLive, Sequence: m.Snap.Sequence, Records: len(m.Snap.Records), FetchedAt: m.Snap.FetchedAt}
	}
	return refresh.Status{Phase: refresh.PhaseLoading}
}
