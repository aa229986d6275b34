package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/godilite/cs-eval-dashboard/internal/refresh/mocks"
	"github.com/godilite/cs-eval-dashboard/internal/service"
)

var fixedNow = time.Date(2025, 10, 18, 15, 0, 0, 0, time.UTC)

func record(id, agent string, score float64) service.EvaluationRecord {
	return service.EvaluationRecord{
		ID:           id,
		AgentName:    &agent,
		OverallScore: &score,
		CreatedAt:    fixedNow.Add(-time.Hour),
	}
}

type recorderSpy struct {
	mu        sync.Mutex
	outcomes  []string
	snapshots []int
}

func (r *recorderSpy) ObserveRefresh(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorderSpy) ObserveSnapshot(records int, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, records)
}

func newController(t *testing.T, f *mocks.MockFetcher, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewController(f, zaptest.NewLogger(t), opts...)
}

func TestNewController(t *testing.T) {
	t.Run("panics without fetcher", func(t *testing.T) {
		assert.Panics(t, func() { NewController(nil, zap.NewNop()) })
	})

	t.Run("defaults", func(t *testing.T) {
		c := NewController(&mocks.MockFetcher{}, nil)
		assert.Equal(t, DefaultInterval, c.interval)
		assert.Equal(t, DefaultTimeout, c.timeout)
	})

	t.Run("ignores non-positive durations", func(t *testing.T) {
		c := NewController(&mocks.MockFetcher{}, zap.NewNop(), WithInterval(0), WithTimeout(-time.Second))
		assert.Equal(t, DefaultInterval, c.interval)
		assert.Equal(t, DefaultTimeout, c.timeout)
	})
}

func TestController_InitialState(t *testing.T) {
	c := newController(t, &mocks.MockFetcher{})

	snap, err := c.Snapshot()
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, PhaseLoading, c.Status().Phase)
}

func TestController_RefreshAppliesSnapshot(t *testing.T) {
	spy := &recorderSpy{}
	f := &mocks.MockFetcher{
		Limit: 100,
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			assert.Equal(t, service.AllAgents, agent)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return []service.EvaluationRecord{record("e1", "Sarah", 90), record("e2", "Budi", 70)}, nil
		},
	}
	c := newController(t, f, WithRecorder(spy))

	var published []*Snapshot
	c.OnSnapshot(func(s *Snapshot) { published = append(published, s) })

	require.NoError(t, c.Refresh(context.Background()))

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Len(t, snap.Records, 2)
	assert.Equal(t, fixedNow, snap.FetchedAt)
	assert.Equal(t, int64(2), snap.StoreTotal)
	assert.False(t, snap.Truncated)
	assert.Equal(t, 2, snap.Stats.TotalEvaluations)
	assert.Equal(t, 80.0, snap.Stats.AverageScore)
	assert.Equal(t, "Sarah", snap.Stats.TopAgent)

	require.Len(t, published, 1)
	assert.Same(t, snap, published[0])

	st := c.Status()
	assert.Equal(t, PhaseLive, st.Phase)
	assert.Equal(t, uint64(1), st.Sequence)
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, []string{OutcomeSuccess}, spy.outcomes)
	assert.Equal(t, []int{2}, spy.snapshots)
}

func TestController_InitialFailureBlocks(t *testing.T) {
	storeErr := errors.New("connection refused")
	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			return nil, storeErr
		},
	}
	c := newController(t, f)

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, storeErr)

	snap, err := c.Snapshot()
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "connection refused")

	st := c.Status()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, 0, st.Failures)
	assert.Equal(t, "connection refused", st.LastError)
}

func TestController_RecoversAfterInitialFailure(t *testing.T) {
	var calls atomic.Int32
	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("timeout")
			}
			return []service.EvaluationRecord{record("e1", "Sarah", 90)}, nil
		},
	}
	c := newController(t, f)

	require.Error(t, c.Refresh(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Sequence)

	st := c.Status()
	assert.Equal(t, PhaseLive, st.Phase)
	assert.Empty(t, st.LastError)
}

func TestController_BackgroundFailureKeepsLastSnapshot(t *testing.T) {
	var calls atomic.Int32
	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			if calls.Add(1) == 1 {
				return []service.EvaluationRecord{record("e1", "Sarah", 90)}, nil
			}
			return nil, errors.New("store unavailable")
		},
	}
	spy := &recorderSpy{}
	c := newController(t, f, WithRecorder(spy))

	require.NoError(t, c.Refresh(context.Background()))
	first, _ := c.Snapshot()

	require.Error(t, c.Refresh(context.Background()))
	require.Error(t, c.Refresh(context.Background()))

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, snap)

	st := c.Status()
	assert.Equal(t, PhaseLive, st.Phase)
	assert.Equal(t, 2, st.Failures)
	assert.Equal(t, "store unavailable", st.LastError)
	assert.Equal(t, []string{OutcomeSuccess, OutcomeFailure, OutcomeFailure}, spy.outcomes)
}

func TestController_StaleResultDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return []service.EvaluationRecord{record("old", "Sarah", 10)}, nil
			}
			return []service.EvaluationRecord{record("new", "Budi", 95)}, nil
		},
	}
	c := newController(t, f)

	slow := make(chan error, 1)
	go func() { slow <- c.Refresh(context.Background()) }()
	<-started

	assert.Equal(t, PhaseLoading, c.Status().Phase)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, PhaseRefreshing, c.Status().Phase)

	close(release)
	assert.ErrorIs(t, <-slow, ErrSuperseded)

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Sequence)
	assert.Equal(t, "new", snap.Records[0].ID)
	assert.Equal(t, PhaseLive, c.Status().Phase)
}

func TestController_StaleFailureIgnored(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return nil, errors.New("late failure")
			}
			return []service.EvaluationRecord{record("e1", "Budi", 95)}, nil
		},
	}
	c := newController(t, f)

	slow := make(chan error, 1)
	go func() { slow <- c.Refresh(context.Background()) }()
	<-started
	require.NoError(t, c.Refresh(context.Background()))

	close(release)
	assert.ErrorIs(t, <-slow, ErrSuperseded)

	st := c.Status()
	assert.Equal(t, 0, st.Failures)
	assert.Empty(t, st.LastError)
}

func TestController_OlderSuccessAppliedAfterNewerFailure(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			switch calls.Add(1) {
			case 1:
				return []service.EvaluationRecord{record("e1", "Sarah", 80)}, nil
			case 2:
				close(started)
				<-release
				return []service.EvaluationRecord{record("e2", "Budi", 90), record("e1", "Sarah", 80)}, nil
			default:
				return nil, errors.New("transient")
			}
		},
	}
	c := newController(t, f)
	require.NoError(t, c.Refresh(context.Background()))

	slow := make(chan error, 1)
	go func() { slow <- c.Refresh(context.Background()) }()
	<-started

	require.EqualError(t, c.Refresh(context.Background()), "transient")
	close(release)
	require.NoError(t, <-slow)

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Sequence)
	assert.Len(t, snap.Records, 2)

	st := c.Status()
	assert.Equal(t, PhaseLive, st.Phase)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "transient", st.LastError)
}

func TestController_TruncatedFetch(t *testing.T) {
	t.Run("store holds more than the cap", func(t *testing.T) {
		f := &mocks.MockFetcher{
			Limit: 2,
			FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
				return []service.EvaluationRecord{record("e1", "A", 50), record("e2", "B", 60)}, nil
			},
			CountEvaluationsFunc: func(ctx context.Context, agent string) (int64, error) {
				assert.Equal(t, service.AllAgents, agent)
				return 7, nil
			},
		}
		c := newController(t, f)
		require.NoError(t, c.Refresh(context.Background()))

		snap, _ := c.Snapshot()
		assert.True(t, snap.Truncated)
		assert.Equal(t, int64(7), snap.StoreTotal)
		assert.Equal(t, 2, snap.Stats.TotalEvaluations)
	})

	t.Run("count failure keeps the snapshot", func(t *testing.T) {
		f := &mocks.MockFetcher{
			Limit: 1,
			FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
				return []service.EvaluationRecord{record("e1", "A", 50)}, nil
			},
		}
		c := newController(t, f)
		require.NoError(t, c.Refresh(context.Background()))

		snap, _ := c.Snapshot()
		assert.False(t, snap.Truncated)
		assert.Equal(t, int64(1), snap.StoreTotal)
	})
}

func TestController_Run(t *testing.T) {
	var calls atomic.Int32
	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			calls.Add(1)
			return []service.EvaluationRecord{record("e1", "Sarah", 90)}, nil
		},
	}
	c := newController(t, f, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snap.Sequence, uint64(3))
}

func TestController_RunSurvivesInitialFailure(t *testing.T) {
	var calls atomic.Int32
	f := &mocks.MockFetcher{
		FetchEvaluationsFunc: func(ctx context.Context, agent string) ([]service.EvaluationRecord, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("boot failure")
			}
			return []service.EvaluationRecord{record("e1", "Sarah", 90)}, nil
		},
	}
	c := newController(t, f, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := c.Snapshot()
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, c.Status().Failures)
}
