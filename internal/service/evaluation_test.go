package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/cs-eval-dashboard/internal/repository/models"
	"github.com/godilite/cs-eval-dashboard/internal/service/mocks"
)

func row(id string, ticket string, agent string, score float64, createdAt time.Time) models.EvaluationRow {
	r := models.EvaluationRow{
		ID:           id,
		OverallScore: sql.NullFloat64{Float64: score, Valid: true},
		CreatedAt:    createdAt,
	}
	if ticket != "" {
		r.TicketID = sql.NullString{String: ticket, Valid: true}
	}
	if agent != "" {
		r.AgentName = sql.NullString{String: agent, Valid: true}
	}
	return r
}

// TestNewEvaluationService tests the constructor
func TestNewEvaluationService(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{}
		logger := zap.NewNop()

		service := NewEvaluationService(mockRepo, logger)

		assert.NotNil(t, service)
		assert.Equal(t, mockRepo, service.storage)
		assert.Equal(t, logger, service.logger)
		assert.Equal(t, DefaultFetchLimit, service.FetchLimit())
	})

	t.Run("nil storage panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewEvaluationService(nil, zap.NewNop())
		})
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		service := NewEvaluationService(&mocks.MockEvaluationRepository{}, nil)

		assert.NotNil(t, service.logger)
	})

	t.Run("options override defaults", func(t *testing.T) {
		service := NewEvaluationService(&mocks.MockEvaluationRepository{}, zap.NewNop(),
			WithFetchLimit(250),
			WithClock(func() time.Time { return testNow }))

		assert.Equal(t, 250, service.FetchLimit())
		assert.Equal(t, testNow, service.now())
	})

	t.Run("non-positive limit keeps default", func(t *testing.T) {
		service := NewEvaluationService(&mocks.MockEvaluationRepository{}, zap.NewNop(), WithFetchLimit(0))

		assert.Equal(t, DefaultFetchLimit, service.FetchLimit())
	})
}

func TestFetchEvaluations(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	base := time.Date(2025, 10, 18, 10, 0, 0, 0, time.UTC)

	t.Run("joins customer names by room", func(t *testing.T) {
		var lookedUp []string
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				assert.Equal(t, "", q.AgentName)
				assert.Equal(t, DefaultFetchLimit, q.Limit)
				return []models.EvaluationRow{
					row("e1", "T1", "Sarah", 80, base.Add(2*time.Hour)),
					row("e2", "T2", "Michael", 60, base.Add(time.Hour)),
					row("e3", "T1", "Sarah", 70, base),
					row("e4", "", "", 50, base.Add(-time.Hour)),
				}, nil
			},
			LookupCustomerNamesFunc: func(ctx context.Context, roomIDs []string) (map[string]string, error) {
				lookedUp = roomIDs
				return map[string]string{"T1": "Budi"}, nil
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		records, err := service.FetchEvaluations(ctx, "all")

		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, []string{"T1", "T2"}, lookedUp)

		require.NotNil(t, records[0].CustomerName)
		assert.Equal(t, "Budi", *records[0].CustomerName)
		assert.Nil(t, records[1].CustomerName)
		require.NotNil(t, records[2].CustomerName)
		assert.Equal(t, "Budi", *records[2].CustomerName)
		assert.Nil(t, records[3].CustomerName)
		assert.Nil(t, records[3].TicketID)
		assert.Nil(t, records[3].AgentName)
	})

	t.Run("agent filter is passed to the store", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				assert.Equal(t, "Sarah", q.AgentName)
				return []models.EvaluationRow{row("e1", "T1", "Sarah", 80, base)}, nil
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		records, err := service.FetchEvaluations(ctx, " Sarah ")

		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("sentinel all is case-insensitive", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				assert.Equal(t, "", q.AgentName)
				return nil, nil
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		_, err := service.FetchEvaluations(ctx, "ALL")

		require.NoError(t, err)
	})

	t.Run("no tickets skips the lookup", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				return []models.EvaluationRow{row("e1", "", "Sarah", 80, base)}, nil
			},
			LookupCustomerNamesFunc: func(ctx context.Context, roomIDs []string) (map[string]string, error) {
				t.Fatal("lookup must not run without room ids")
				return nil, nil
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		records, err := service.FetchEvaluations(ctx, "")

		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("lookup failure degrades to no names", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				return []models.EvaluationRow{row("e1", "T1", "Sarah", 80, base)}, nil
			},
			LookupCustomerNamesFunc: func(ctx context.Context, roomIDs []string) (map[string]string, error) {
				return nil, errors.New("messages table unavailable")
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		records, err := service.FetchEvaluations(ctx, "")

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Nil(t, records[0].CustomerName)
	})

	t.Run("store failure", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				return nil, errors.New("database connection failed")
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		records, err := service.FetchEvaluations(ctx, "")

		assert.ErrorIs(t, err, ErrFetchFailure)
		assert.Contains(t, err.Error(), "database connection failed")
		assert.Nil(t, records)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				return []models.EvaluationRow{}, nil
			},
		}

		service := NewEvaluationService(mockRepo, logger)
		records, err := service.FetchEvaluations(ctx, "")

		assert.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestCountEvaluations(t *testing.T) {
	t.Run("normalizes the agent filter", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			CountEvaluationsFunc: func(ctx context.Context, agentName string) (int64, error) {
				assert.Equal(t, "", agentName)
				return 12000, nil
			},
		}

		service := NewEvaluationService(mockRepo, zap.NewNop())
		count, err := service.CountEvaluations(context.Background(), "all")

		require.NoError(t, err)
		assert.Equal(t, int64(12000), count)
	})

	t.Run("store failure", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			CountEvaluationsFunc: func(ctx context.Context, agentName string) (int64, error) {
				return 0, errors.New("timeout")
			},
		}

		service := NewEvaluationService(mockRepo, zap.NewNop())
		_, err := service.CountEvaluations(context.Background(), "")

		assert.ErrorIs(t, err, ErrFetchFailure)
	})
}

func TestGetStats(t *testing.T) {
	t.Run("aggregates against the service clock", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				assert.Equal(t, "", q.AgentName)
				return []models.EvaluationRow{
					row("e1", "T1", "Sarah", 90, testNow.Add(-time.Hour)),
					row("e2", "T2", "Michael", 70, testNow.AddDate(0, 0, -1)),
				}, nil
			},
		}

		service := NewEvaluationService(mockRepo, zap.NewNop(), WithClock(func() time.Time { return testNow }))
		stats, err := service.GetStats(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalEvaluations)
		assert.Equal(t, 80.0, stats.AverageScore)
		assert.Equal(t, "Sarah", stats.TopAgent)
		require.Len(t, stats.RecentTrend, 7)
		assert.Equal(t, "2025-10-18", stats.RecentTrend[6].Date)
		assert.Equal(t, 1, stats.RecentTrend[6].Count)
		assert.Equal(t, 1, stats.RecentTrend[5].Count)
	})

	t.Run("store failure", func(t *testing.T) {
		mockRepo := &mocks.MockEvaluationRepository{
			QueryEvaluationsFunc: func(ctx context.Context, q models.EvaluationQuery) ([]models.EvaluationRow, error) {
				return nil, errors.New("query timeout")
			},
		}

		service := NewEvaluationService(mockRepo, zap.NewNop())
		stats, err := service.GetStats(context.Background())

		assert.ErrorIs(t, err, ErrFetchFailure)
		assert.Equal(t, Stats{}, stats)
	})
}
