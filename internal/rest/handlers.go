package rest

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/godilite/cs-eval-dashboard/internal/refresh"
	"github.com/godilite/cs-eval-dashboard/internal/service"
	"github.com/godilite/cs-eval-dashboard/pkg/cache"
)

const (
	defaultCacheTTL    = 10 * time.Second
	defaultHTTPTimeout = 15 * time.Second

	cacheKeyStats             = "http:stats"
	cacheKeyEvaluationsPrefix = "http:evaluations:"
)

type Handlers struct {
	reader    EvaluationReader
	snapshots SnapshotSource
	cache     cache.Cacher
	logger    *zap.Logger
	sfGroup   singleflight.Group
	cacheTTL  time.Duration
}

// NewHandlers wires the HTTP handlers. A nil cache disables response caching.
func NewHandlers(reader EvaluationReader, snapshots SnapshotSource, c cache.Cacher, logger *zap.Logger, ttl time.Duration) *Handlers {
	if reader == nil {
		panic("nil EvaluationReader provided to NewHandlers")
	}
	if snapshots == nil {
		panic("nil SnapshotSource provided to NewHandlers")
	}
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Handlers{
		reader:    reader,
		snapshots: snapshots,
		cache:     c,
		logger:    logger.Named("http-handler"),
		cacheTTL:  ttl,
	}
}

func evaluationsKey(agent string) string {
	agent = strings.TrimSpace(agent)
	if agent == "" || strings.EqualFold(agent, service.AllAgents) {
		agent = service.AllAgents
	}
	return cacheKeyEvaluationsPrefix + url.QueryEscape(agent)
}

// generation scopes cached store reads to the applied snapshot, so a new
// snapshot also retires cached responses.
func (h *Handlers) generation() uint64 {
	return h.snapshots.Status().Sequence
}

// ListEvaluations serves GET /api/evaluations.
func (h *Handlers) ListEvaluations(c *fiber.Ctx) error {
	// singleflight can hand the closure to other requests
	agent := utils.CopyString(c.Query("agent"))

	ctx, cancel := context.WithTimeout(c.UserContext(), defaultHTTPTimeout)
	defer cancel()

	records, err := cache.FindAndCache(ctx, h.cache, &h.sfGroup, evaluationsKey(agent), h.generation(), h.cacheTTL, h.logger,
		func(fetchCtx context.Context) ([]service.EvaluationRecord, error) {
			return h.reader.FetchEvaluations(fetchCtx, agent)
		})
	if err != nil {
		return h.handleError(c, "ListEvaluations", "failed to fetch evaluations", err)
	}
	if records == nil {
		records = []service.EvaluationRecord{}
	}
	return c.JSON(records)
}

// GetStats serves GET /api/stats.
func (h *Handlers) GetStats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), defaultHTTPTimeout)
	defer cancel()

	stats, err := cache.FindAndCache(ctx, h.cache, &h.sfGroup, cacheKeyStats, h.generation(), h.cacheTTL, h.logger,
		func(fetchCtx context.Context) (service.Stats, error) {
			return h.reader.GetStats(fetchCtx)
		})
	if err != nil {
		return h.handleError(c, "GetStats", "failed to fetch statistics", err)
	}
	return c.JSON(stats)
}

// ListTickets serves one page of the grouped ticket view from the latest snapshot.
func (h *Handlers) ListTickets(c *fiber.Ctx) error {
	var q TicketQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid query: " + err.Error()})
	}
	if err := validateQuery(q); err != nil {
		return h.handleError(c, "ListTickets", "invalid query", err)
	}

	state, err := q.ViewState()
	if err != nil {
		return h.handleError(c, "ListTickets", "invalid query", err)
	}

	snap, err := h.snapshots.Snapshot()
	if err != nil {
		return h.handleError(c, "ListTickets", "dashboard data unavailable", err)
	}

	return c.JSON(service.BuildTicketView(snap.Records, state))
}

// GetTicket serves every evaluation of one ticket, newest first.
func (h *Handlers) GetTicket(c *fiber.Ctx) error {
	ticketID := c.Params("ticketId")

	snap, err := h.snapshots.Snapshot()
	if err != nil {
		return h.handleError(c, "GetTicket", "dashboard data unavailable", err)
	}

	group, ok := service.FindTicketGroup(snap.Records, ticketID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "ticket not found"})
	}
	return c.JSON(group)
}

// GetFilters lists the agents and channels present in the latest snapshot.
func (h *Handlers) GetFilters(c *fiber.Ctx) error {
	snap, err := h.snapshots.Snapshot()
	if err != nil {
		return h.handleError(c, "GetFilters", "dashboard data unavailable", err)
	}
	return c.JSON(service.CollectFilterOptions(snap.Records))
}

func (h *Handlers) GetSnapshotStatus(c *fiber.Ctx) error {
	return c.JSON(h.snapshots.Status())
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) handleError(c *fiber.Ctx, op, msg string, err error) error {
	var vErr *validationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("request timeout", zap.String("op", op))
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		h.logger.Warn("request canceled", zap.String("op", op))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "request canceled"})
	case errors.As(err, &vErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Error()})
	case errors.Is(err, service.ErrInvalidPageSize):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, refresh.ErrNotReady):
		h.logger.Info("snapshot not ready", zap.String("op", op), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msg})
	case errors.Is(err, service.ErrFetchFailure):
		h.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
	default:
		h.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
	}
}
