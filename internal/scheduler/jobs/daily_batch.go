package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/batch"
	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// ErrMarketCheck is returned when the run could not tell whether the market was open
var ErrMarketCheck = errors.New("market-open check failed")

// PipelineRunner is the part of batch.Runner the jobs drive
type PipelineRunner interface {
	Run(ctx context.Context, date time.Time) *contracts.RunSummary
	BackfillBars(ctx context.Context, to time.Time, days int) contracts.StageReport
}

// DailyBatchJob runs the full daily pipeline after market close
// ⭐ SSOT: 일일 배치 스케줄은 이 Job에서만
type DailyBatchJob struct {
	runner   PipelineRunner
	schedule string
	logger   *logger.Logger
	now      func() time.Time
}

// NewDailyBatchJob creates the daily batch job; an empty schedule uses weekdays 18:30
func NewDailyBatchJob(runner PipelineRunner, schedule string, log *logger.Logger) *DailyBatchJob {
	if schedule == "" {
		schedule = "0 30 18 * * MON-FRI"
	}
	return &DailyBatchJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.WithField("job", "daily_batch"),
		now:      time.Now,
	}
}

// Name returns the job name
func (j *DailyBatchJob) Name() string {
	return "daily_batch"
}

// Schedule returns the cron schedule
func (j *DailyBatchJob) Schedule() string {
	return j.schedule
}

// Run executes the pipeline for today.
// Unit failures are reported in the summary and do not fail the job; only a failed
// market-open check does, so the scheduler retries the whole run.
func (j *DailyBatchJob) Run(ctx context.Context) error {
	summary := j.runner.Run(ctx, j.now())

	if report, ok := summary.Report(contracts.StageMarket); ok && report.Halted == batch.HaltMarketCheck {
		return ErrMarketCheck
	}

	j.logger.WithFields(map[string]interface{}{
		"trade_date": summary.Date.Format("2006-01-02"),
		"failed":     summary.TotalFailed(),
	}).Info("Daily batch job finished")
	return nil
}
