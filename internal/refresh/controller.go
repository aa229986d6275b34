package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/godilite/cs-eval-dashboard/internal/service"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 15 * time.Second
)

var (
	// ErrNotReady is returned until the first snapshot has been applied.
	ErrNotReady = errors.New("dashboard snapshot not ready")
	// ErrSuperseded marks a refresh whose result arrived after a newer one.
	ErrSuperseded = errors.New("refresh result superseded")
)

type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseLive       Phase = "live"
	PhaseRefreshing Phase = "refreshing"
	PhaseFailed     Phase = "failed"
)

// Outcome labels passed to Recorder.ObserveRefresh.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuperseded = "superseded"
)

// Snapshot is one consistent record set with the statistics derived from it.
// Snapshots are never mutated after they are published.
type Snapshot struct {
	Sequence   uint64
	Records    []service.EvaluationRecord
	Stats      service.Stats
	FetchedAt  time.Time
	StoreTotal int64
	Truncated  bool
}

// Status describes the controller for the live indicator.
type Status struct {
	Phase     Phase     `json:"phase"`
	Sequence  uint64    `json:"sequence"`
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetchedAt"`
	Failures  int       `json:"failures"`
	LastError string    `json:"lastError,omitempty"`
}

// Controller keeps the latest dashboard snapshot current by polling the
// fetcher on a fixed interval.
type Controller struct {
	fetcher  Fetcher
	logger   *zap.Logger
	recorder Recorder
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	issued   atomic.Uint64
	inflight atomic.Int32
	snapshot atomic.Pointer[Snapshot]

	mu          sync.Mutex
	settled     uint64
	errSeq      uint64
	initErr     error
	lastErr     error
	failures    int
	subscribers []func(*Snapshot)
}

type Option func(*Controller)

func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

func NewController(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Controller {
	if fetcher == nil {
		panic("fetcher must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	c := &Controller{
		fetcher:  fetcher,
		logger:   logger.Named("refresh"),
		recorder: nopRecorder{},
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSnapshot registers fn to be called with every applied snapshot. Register
// subscribers before Run.
func (c *Controller) OnSnapshot(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Run loads the first snapshot and then refreshes on every tick until ctx is
// cancelled. A tick does not wait for the previous refresh to finish.
func (c *Controller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	if err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("initial dashboard load failed", zap.Error(err))
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("refresh loop stopped")
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
					c.logger.Warn("background refresh failed, keeping last snapshot", zap.Error(err))
				}
			}()
		}
	}
}

// Refresh fetches a new record set and applies it unless a newer snapshot is
// already in place.
func (c *Controller) Refresh(ctx context.Context) error {
	seq := c.issued.Add(1)
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	start := time.Now()
	snap, err := c.load(ctx, seq)
	applied := c.settle(seq, snap, err)

	switch {
	case !applied:
		c.recorder.ObserveRefresh(OutcomeSuperseded, time.Since(start))
		c.logger.Debug("discarding stale refresh result", zap.Uint64("sequence", seq))
		return ErrSuperseded
	case err != nil:
		c.recorder.ObserveRefresh(OutcomeFailure, time.Since(start))
		return err
	}

	c.recorder.ObserveRefresh(OutcomeSuccess, time.Since(start))
	c.recorder.ObserveSnapshot(len(snap.Records), snap.FetchedAt)
	c.logger.Debug("applied snapshot",
		zap.Uint64("sequence", seq),
		zap.Int("records", len(snap.Records)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *Controller) load(ctx context.Context, seq uint64) (*Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.fetcher.FetchEvaluations(fetchCtx, service.AllAgents)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Sequence:   seq,
		Records:    records,
		FetchedAt:  c.now(),
		StoreTotal: int64(len(records)),
	}
	snap.Stats = service.Aggregate(records, snap.FetchedAt)

	if limit := c.fetcher.FetchLimit(); limit > 0 && len(records) >= limit {
		total, err := c.fetcher.CountEvaluations(fetchCtx, service.AllAgents)
		if err != nil {
			c.logger.Warn("could not count evaluations", zap.Error(err))
		} else if total > int64(len(records)) {
			snap.StoreTotal = total
			snap.Truncated = true
			c.logger.Warn("fetch cap reached, dashboard shows a partial record set",
				zap.Int("limit", limit),
				zap.Int64("store_total", total))
		}
	}
	return snap, nil
}

// settle records the outcome of refresh seq and reports whether it was
// applied. A record set is applied when it is newer than the current
// snapshot; a failure only counts when no newer refresh has settled.
func (c *Controller) settle(seq uint64, snap *Snapshot, err error) bool {
	c.mu.Lock()

	if err != nil {
		if seq < c.settled {
			c.mu.Unlock()
			return false
		}
		c.settled = seq
		if c.snapshot.Load() == nil {
			c.initErr = err
		} else {
			c.failures++
		}
		c.lastErr = err
		c.errSeq = seq
		c.mu.Unlock()
		return true
	}

	if cur := c.snapshot.Load(); cur != nil && seq < cur.Sequence {
		c.mu.Unlock()
		return false
	}
	c.settled = max(c.settled, seq)
	c.initErr = nil
	if seq > c.errSeq {
		c.lastErr = nil
	}
	c.snapshot.Store(snap)
	subscribers := append([]func(*Snapshot){}, c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
	return true
}

// Snapshot returns the latest applied snapshot, or ErrNotReady wrapping the
// initial load error when there is none.
func (c *Controller) Snapshot() (*Snapshot, error) {
	if snap := c.snapshot.Load(); snap != nil {
		return snap, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, c.initErr)
	}
	return nil, ErrNotReady
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Failures: c.failures}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}

	snap := c.snapshot.Load()
	switch {
	case snap == nil && c.initErr != nil:
		st.Phase = PhaseFailed
	case snap == nil:
		st.Phase = PhaseLoading
	case c.inflight.Load() > 0:
		st.Phase = PhaseRefreshing
	default:
		st.Phase = PhaseLive
	}

	if snap != nil {
		st.Sequence = snap.Sequence
		st.Records = len(snap.Records)
		st.FetchedAt = snap.FetchedAt
	}
	return st
}
