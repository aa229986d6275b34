package mocks

import (
	"context"
	"errors"

	"github.com/godilite/cs-eval-dashboard/internal/repository/models"
)

// MockEvaluationRepository is a mock implementation of the EvaluationRepository
// interface for testing the service layer.
type MockEvaluationRepository struct {
	QueryEvaluationsFunc    func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error)
	CountEvaluationsFunc    func(ctx context.Context, agentName string) (int64, error)
	LookupCustomerNamesFunc func(ctx context.Context, roomIDs []string) (map[string]string, error)
}

// QueryEvaluations implements the EvaluationRepository interface
func (m *MockEvaluationRepository) QueryEvaluations(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
	if m.QueryEvaluationsFunc != nil {
		return m.QueryEvaluationsFunc(ctx, q)
	}
	return nil, errors.New("QueryEvaluationsFunc not implemented")
}

// CountEvaluations implements the EvaluationRepository interface
func (m *MockEvaluationRepository) CountEvaluations(ctx context.Context, agentName string) (int64, error) {
	if m.CountEvaluationsFunc != nil {
		return m.CountEvaluationsFunc(ctx, agentName)
	}
	return 0, errors.New("CountEvaluationsFunc not implemented")
}

// LookupCustomerNames implements the EvaluationRepository interface
func (m *MockEvaluationRepository) LookupCustomerNames(ctx context.Context, roomIDs []string) (map[string]string, error) {
	if m.LookupCustomerNamesFunc != nil {
		return m.LookupCustomerNamesFunc(ctx, roomIDs)
	}
	return map[string]string{}, nil
}
