package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// BarBackfillJob fills bar gaps left by failed daily runs
type BarBackfillJob struct {
	runner PipelineRunner
	days   int
	logger *logger.Logger
	now    func() time.Time
}

// NewBarBackfillJob creates a weekly gap-filling job looking back days
func NewBarBackfillJob(runner PipelineRunner, days int, log *logger.Logger) *BarBackfillJob {
	return &BarBackfillJob{
		runner: runner,
		days:   days,
		logger: log.WithField("job", "bar_backfill"),
		now:    time.Now,
	}
}

// Name returns the job name
func (j *BarBackfillJob) Name() string {
	return "bar_backfill"
}

// Schedule returns the cron schedule (Saturday 9 AM)
func (j *BarBackfillJob) Schedule() string {
	return "0 0 9 * * SAT"
}

// Run backfills bars; it fails only when nothing could be processed
func (j *BarBackfillJob) Run(ctx context.Context) error {
	report := j.runner.BackfillBars(ctx, j.now(), j.days)

	ok := report.Count(contracts.OutcomeOK) + report.Count(contracts.OutcomeSkipped)
	failed := report.Count(contracts.OutcomeFailed)
	if failed > 0 && ok == 0 {
		return fmt.Errorf("bar backfill: all %d instruments failed", failed)
	}

	j.logger.WithFields(map[string]interface{}{
		"ok":     report.Count(contracts.OutcomeOK),
		"failed": failed,
	}).Info("Bar backfill job finished")
	return nil
}
