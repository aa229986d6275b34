package refresh

import (
	"context"
	"time"

	"github.com/godilite/cs-eval-dashboard/internal/service"
)

// Fetcher is the read side the controller polls.
type Fetcher interface {
	FetchEvaluations(ctx context.Context, agentFilter string) ([]service.EvaluationRecord, error)
	CountEvaluations(ctx context.Context, agentFilter string) (int64, error)
	FetchLimit() int
}

// Recorder receives refresh telemetry.
type Recorder interface {
	ObserveRefresh(outcome string, elapsed time.Duration)
	ObserveSnapshot(records int, fetchedAt time.Time)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRefresh(string, time.Duration) {}
func (nopRecorder) ObserveSnapshot(int, time.Time)       {}
