package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/godilite/cs-eval-dashboard/internal/repository/models"
)

const (
	dbTimeout = 10 * time.Second

	// DefaultFetchLimit bounds a single fetch so memory stays predictable.
	DefaultFetchLimit = 10000

	// AllAgents is the agent filter sentinel meaning "no restriction".
	AllAgents = "all"
)

var (
	ErrFetchFailure   = errors.New("fetch evaluations failed")
	ErrLookupDegraded = errors.New("customer name lookup degraded")
)

// EvaluationService reads evaluation records from the store and derives
// dashboard statistics from them.
type EvaluationService struct {
	storage EvaluationRepository
	logger  *zap.Logger
	limit   int
	now     func() time.Time
}

type Option func(*EvaluationService)

func WithFetchLimit(limit int) Option {
	return func(s *EvaluationService) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *EvaluationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEvaluationService creates a new EvaluationService instance.
func NewEvaluationService(storage EvaluationRepository, logger *zap.Logger, opts ...Option) *EvaluationService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	s := &EvaluationService{
		storage: storage,
		logger:  logger,
		limit:   DefaultFetchLimit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchLimit reports the row cap applied to every fetch.
func (s *EvaluationService) FetchLimit() int {
	return s.limit
}

func normalizeAgentFilter(agent string) string {
	agent = strings.TrimSpace(agent)
	if strings.EqualFold(agent, AllAgents) {
		return ""
	}
	return agent
}

// FetchEvaluations returns up to FetchLimit records newest first, restricted to
// one agent unless agentFilter is empty or "all". Customer names are joined
// from the message store; a failed join degrades to records without names.
func (s *EvaluationService) FetchEvaluations(ctx context.Context, agentFilter string) ([]EvaluationRecord, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	agent := normalizeAgentFilter(agentFilter)
	rows, err := s.storage.QueryEvaluations(dbCtx, models.EvaluationQuery{
		AgentName: agent,
		Limit:     s.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}

	roomIDs := distinctRoomIDs(rows)
	var names map[string]string
	if len(roomIDs) > 0 {
		names, err = s.storage.LookupCustomerNames(dbCtx, roomIDs)
		if err != nil {
			s.logger.Warn("continuing without customer names",
				zap.Int("rooms", len(roomIDs)),
				zap.Error(fmt.Errorf("%w: %v", ErrLookupDegraded, err)))
			names = nil
		}
	}

	records := make([]EvaluationRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
		if row.TicketID.Valid {
			if name, ok := names[row.TicketID.String]; ok {
				records[i].CustomerName = &name
			}
		}
	}

	s.logger.Debug("fetched evaluations",
		zap.String("agent", agent),
		zap.Int("count", len(records)),
		zap.Int("customer_names", len(names)))

	return records, nil
}

// CountEvaluations reports how many rows the store holds for the agent filter,
// independent of the fetch cap.
func (s *EvaluationService) CountEvaluations(ctx context.Context, agentFilter string) (int64, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	count, err := s.storage.CountEvaluations(dbCtx, normalizeAgentFilter(agentFilter))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	return count, nil
}

// GetStats fetches every record and aggregates it against the service clock.
func (s *EvaluationService) GetStats(ctx context.Context) (Stats, error) {
	records, err := s.FetchEvaluations(ctx, AllAgents)
	if err != nil {
		return Stats{}, err
	}

	stats := Aggregate(records, s.now())
	if len(stats.AgentStats) > 0 {
		s.logger.Info("computed stats",
			zap.Int("total", stats.TotalEvaluations),
			zap.Float64("average", stats.AverageScore),
			zap.String("top_agent", stats.TopAgent))
	}
	return stats, nil
}

// distinctRoomIDs collects non-empty ticket ids in first-seen order. Ticket ids
// double as chat room ids in the message store.
func distinctRoomIDs(rows []models.EvaluationRow) []string {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0)
	for _, r := range rows {
		if !r.TicketID.Valid || r.TicketID.String == "" {
			continue
		}
		if _, ok := seen[r.TicketID.String]; ok {
			continue
		}
		seen[r.TicketID.String] = struct{}{}
		ids = append(ids, r.TicketID.String)
	}
	return ids
}

func toRecord(row models.EvaluationRow) EvaluationRecord {
	return EvaluationRecord{
		ID:              row.ID,
		TicketID:        nullString(row.TicketID),
		AgentName:       nullString(row.AgentName),
		ChannelAccount:  nullString(row.ChannelAccount),
		CustomerMessage: nullString(row.CustomerMessage),
		CSReply:         nullString(row.CSReply),
		SuggestedReply:  nullString(row.SuggestedReply),
		Accuracy:        nullFloat(row.Accuracy),
		Tone:            nullFloat(row.Tone),
		Clarity:         nullFloat(row.Clarity),
		Completeness:    nullFloat(row.Completeness),
		Relevance:       nullFloat(row.Relevance),
		OverallScore:    nullFloat(row.OverallScore),
		Feedback:        nullString(row.Feedback),
		Tags:            nullString(row.Tags),
		CreatedAt:       row.CreatedAt,
	}
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
