package mocks

import (
	"context"
	"errors"

	"github.com/godilite/cs-eval-dashboard/internal/service"
)

// MockFetcher is a mock implementation of the refresh Fetcher interface.
type MockFetcher struct {
	FetchEvaluationsFunc func(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error)
	CountEvaluationsFunc func(ctx context.Context, agentFilter string) (int64, error)
	Limit                int
}

func (m *MockFetcher) FetchEvaluations(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error) {
	if m.FetchEvaluationsFunc != nil {
		return m.FetchEvaluationsFunc(ctx, agentFilter)
	}
	return nil, errors.New("FetchEvaluationsFunc not implemented")
}

func (m *MockFetcher) CountEvaluations(ctx context.Context, agentFilter string) (int64, error) {
	if m.CountEvaluationsFunc != nil {
		return m.CountEvaluationsFunc(ctx, agentFilter)
	}
	return 0, errors.New("CountEvaluationsFunc not implemented")
}

func (m *MockFetcher) FetchLimit() int {
	return m.Limit
}
