package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/cs-eval-dashboard/internal/refresh"
	"github.com/godilite/cs-eval-dashboard/internal/service"
	"github.com/godilite/cs-eval-dashboard/pkg/cache"
)

const (
	defaultCacheDuration = 10 * time.Second
	defaultGRPCTimeout   = 15 * time.Second
)

const (
	cacheKeyStats             = "grpc:stats"
	cacheKeyEvaluationsPrefix = "grpc:evaluations:"
)

type GRPCHandlers struct {
	reader    EvaluationReader
	snapshots SnapshotSource
	cache     cache.Cacher
	logger    *zap.Logger
	sfGroup   singleflight.Group
	cacheTTL  time.Duration
}

// NewGRPCHandlers initializes the gRPC handlers.
func NewGRPCHandlers(reader EvaluationReader, snapshots SnapshotSource, c cache.Cacher, logger *zap.Logger, ttl time.Duration) *GRPCHandlers {
	if reader == nil {
		panic("nil EvaluationReader provided to NewGRPCHandlers")
	}
	if snapshots == nil {
		panic("nil SnapshotSource provided to NewGRPCHandlers")
	}
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	return &GRPCHandlers{
		reader:    reader,
		snapshots: snapshots,
		cache:     c,
		logger:    logger.Named("grpc-handler"),
		cacheTTL:  ttl,
	}
}

// ticketRequest mirrors the query parameters of GET /api/tickets.
type ticketRequest struct {
	Ticket   string `json:"ticket"`
	Agent    string `json:"agent"`
	Channel  string `json:"channel"`
	Tag      string `json:"tag"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type evaluationsRequest struct {
	Agent string `json:"agent"`
}

// decodeRequest copies a Struct request into a typed value through its JSON form.
func decodeRequest(req *structpb.Struct, dest any) error {
	if req == nil || len(req.GetFields()) == 0 {
		return nil
	}
	raw, err := protojson.Marshal(req)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

// toStruct encodes v with its JSON tags into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func evaluationsKey(agent string) string {
	agent = strings.TrimSpace(agent)
	if agent == "" || strings.EqualFold(agent, service.AllAgents) {
		agent = service.AllAgents
	}
	return cacheKeyEvaluationsPrefix + url.QueryEscape(agent)
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, refresh.ErrNotReady):
		s.logger.Info("snapshot not ready", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Unavailable, "dashboard data unavailable")
	case errors.Is(err, service.ErrInvalidPageSize):
		return status.Errorf(codes.InvalidArgument, "pageSize must be one of %v", service.PageSizes)
	case errors.Is(err, service.ErrFetchFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) GetStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	stats, err := cache.FindAndCache(ctx, s.cache, &s.sfGroup, cacheKeyStats, s.snapshots.Status().Sequence, s.cacheTTL, s.logger, func(fetchCtx context.Context) (service.Stats, error) {
		return s.reader.GetStats(fetchCtx)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetStats", err)
	}

	out, err := toStruct(stats)
	if err != nil {
		return nil, s.handleError(ctx, "GetStats", fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

func (s *GRPCHandlers) ListEvaluations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in evaluationsRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	records, err := cache.FindAndCache(ctx, s.cache, &s.sfGroup, evaluationsKey(in.Agent), s.snapshots.Status().Sequence, s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]service.EvaluationRecord, error) {
		return s.reader.FetchEvaluations(fetchCtx, in.Agent)
	})
	if err != nil {
		return nil, s.handleError(ctx, "ListEvaluations", err)
	}
	if records == nil {
		records = []service.EvaluationRecord{}
	}

	out, err := toStruct(map[string]any{"evaluations": records})
	if err != nil {
		return nil, s.handleError(ctx, "ListEvaluations", fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

func (s *GRPCHandlers) ListTickets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ticketRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	state := service.NewViewState().WithFilters(service.Filters{
		Ticket:  in.Ticket,
		Agent:   in.Agent,
		Channel: in.Channel,
		Tag:     in.Tag,
	})
	if in.PageSize != 0 {
		var err error
		if state, err = state.WithPageSize(in.PageSize); err != nil {
			return nil, s.handleError(ctx, "ListTickets", err)
		}
	}
	if in.Page != 0 {
		state = state.WithPage(in.Page)
	}

	snap, err := s.snapshots.Snapshot()
	if err != nil {
		return nil, s.handleError(ctx, "ListTickets", err)
	}

	out, err := toStruct(service.BuildTicketView(snap.Records, state))
	if err != nil {
		return nil, s.handleError(ctx, "ListTickets", fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}
