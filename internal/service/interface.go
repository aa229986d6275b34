package service

import (
	"context"

	"github.com/godilite/cs-eval-dashboard/internal/repository/models"
)

// EvaluationRepository defines the store operations the service reads through.
type EvaluationRepository interface {
	QueryEvaluations(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error)
	CountEvaluations(ctx context.Context, agentName string) (int64, error)
	LookupCustomerNames(ctx context.Context, roomIDs []string) (map[string]string, error)
}
