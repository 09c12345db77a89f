package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/research/screen"
)

// screenRunner is the slice of the screen service this job needs.
type screenRunner interface {
	RunScreen(ctx context.Context, req screen.Request) (*domain.ScreenResult, error)
}

// screenRefreshTimeout bounds one refresh run; the screen walks the whole
// configured universe against rate-limited upstreams.
const screenRefreshTimeout = 15 * time.Minute

// ScreenRefreshJob re-runs the configured default screen so the latest
// result stays fresh without anyone hitting the API.
type ScreenRefreshJob struct {
	screens screenRunner
	log     zerolog.Logger
}

// NewScreenRefreshJob creates a new screen refresh job.
func NewScreenRefreshJob(screens screenRunner, log zerolog.Logger) *ScreenRefreshJob {
	return &ScreenRefreshJob{
		screens: screens,
		log:     log.With().Str("job", "screen_refresh").Logger(),
	}
}

// Run executes the screen with the configured defaults.
func (j *ScreenRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), screenRefreshTimeout)
	defer cancel()

	result, err := j.screens.RunScreen(ctx, screen.Request{})
	if err != nil {
		return err
	}

	j.log.Info().
		Str("id", result.ID).
		Int("universe", len(result.Universe)).
		Int("passed", len(result.Rows)).
		Int("rejected", len(result.Rejections)).
		Msg("Screen refreshed")

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *ScreenRefreshJob) Name() string {
	return "screen_refresh"
}
