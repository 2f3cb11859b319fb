package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
	"github.com/wonny/sectorpulse/backend/internal/s1_universe"
	"github.com/wonny/sectorpulse/backend/internal/s2_flow"
	"github.com/wonny/sectorpulse/backend/internal/s3_indicator"
	"github.com/wonny/sectorpulse/backend/internal/s4_scoring"
	"github.com/wonny/sectorpulse/backend/pkg/config"
	"github.com/wonny/sectorpulse/backend/pkg/httputil"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
	"github.com/wonny/sectorpulse/backend/pkg/metrics"
)

// 로그에 남길 실패 unit 최대 개수
const maxLoggedFailures = 10

// Config holds the batch policy
type Config struct {
	BarChunk         int           // 일봉 upsert 청크
	BarSubChunk      int           // 청크 실패 시 재시도 크기
	TickerChunk      int           // 지표 레코드 flush 단위
	SectorChunk      int           // 섹터/종목 속성 upsert 청크
	CallDelay        time.Duration // 투자자 수급 호출 간격
	IndexCallDelay   time.Duration // 그 외 종목/지수 단위 호출 간격
	HistoryDays      int           // 지표 계산에 읽는 과거 일수
	RetentionDays    int           // 일봉/수급 보존 일수
	MinBars          int           // 지표 계산 최소 일봉 수
	ReferenceCode    string        // 개장 여부 확인 종목
	AvgValueDays     int           // 평균 거래대금 기간 (거래일)
	FlowLookbackDays int           // 섹터 수급 집계에 읽는 달력 일수
	Workers          int           // 백필 동시 작업 수
}

// DefaultConfig returns the standard batch policy
func DefaultConfig() Config {
	return Config{
		BarChunk:         1000,
		BarSubChunk:      100,
		TickerChunk:      50,
		SectorChunk:      100,
		CallDelay:        500 * time.Millisecond,
		IndexCallDelay:   100 * time.Millisecond,
		HistoryDays:      365,
		RetentionDays:    366,
		MinBars:          20,
		ReferenceCode:    "005930",
		AvgValueDays:     20,
		FlowLookbackDays: 45,
		Workers:          4,
	}
}

// ConfigFrom builds the batch policy from application config
func ConfigFrom(b config.BatchConfig) Config {
	cfg := DefaultConfig()
	cfg.BarChunk = b.BarChunk
	cfg.BarSubChunk = b.BarSubChunk
	cfg.TickerChunk = b.TickerChunk
	cfg.SectorChunk = b.SectorChunk
	cfg.CallDelay = b.CallDelay
	cfg.IndexCallDelay = b.IndexCallDelay
	cfg.HistoryDays = b.HistoryDays
	cfg.RetentionDays = b.RetentionDays
	cfg.MinBars = b.MinBars
	cfg.ReferenceCode = b.ReferenceCode
	return cfg
}

// Deps are the collaborators of the runner
type Deps struct {
	Store   Store
	Market  MarketProvider
	History HistoryProvider
	Cache   ChangeCache // nil이면 지수 등락률을 매번 조회
	Rules   *s1_sector.Rules
	Tiers   s1_universe.Config
	Weights s4_scoring.Weights
	Metrics *metrics.Recorder
}

// Runner executes the daily pipeline stage by stage
// ⭐ SSOT: 일일 배치 stage 순서와 실패 격리는 여기서만
type Runner struct {
	store      Store
	market     MarketProvider
	history    HistoryProvider
	cache      ChangeCache
	rules      *s1_sector.Rules
	engine     *s3_indicator.Engine
	aggregator *s2_flow.Aggregator
	classifier *s1_universe.Classifier
	model      *s4_scoring.Model
	metrics    *metrics.Recorder
	config     Config
	logger     *logger.Logger

	investorPacer *httputil.Pacer
	pacer         *httputil.Pacer
	now           func() time.Time
}

// NewRunner creates a pipeline runner
func NewRunner(deps Deps, cfg Config, log *logger.Logger) *Runner {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.New()
	}
	return &Runner{
		store:         deps.Store,
		market:        deps.Market,
		history:       deps.History,
		cache:         deps.Cache,
		rules:         deps.Rules,
		engine:        s3_indicator.NewEngine(s3_indicator.DefaultConfig(), log),
		aggregator:    s2_flow.NewAggregator(deps.Rules.ChildrenOf(), log),
		classifier:    s1_universe.NewClassifier(deps.Tiers, log),
		model:         s4_scoring.NewModel(deps.Weights, log),
		metrics:       rec,
		config:        cfg,
		logger:        log.WithField("module", "batch"),
		investorPacer: httputil.NewPacer(cfg.CallDelay),
		pacer:         httputil.NewPacer(cfg.IndexCallDelay),
		now:           time.Now,
	}
}

// marketStages need today's bars; they are skipped when the market was closed
var marketStages = map[contracts.Stage]bool{
	contracts.StageMarket:     true,
	contracts.StageFlows:      true,
	contracts.StageIndicators: true,
	contracts.StageScores:     true,
}

// Run executes every stage in pipeline order for date.
// One unit's failure never stops the run; a closed market skips the market stages.
func (r *Runner) Run(ctx context.Context, date time.Time) *contracts.RunSummary {
	date = dateOnly(date)
	summary := &contracts.RunSummary{Date: date}

	r.logger.WithField("trade_date", date.Format("2006-01-02")).Info("Starting daily batch")

	halted := ""
	for _, stage := range contracts.AllStages() {
		reason := halted
		if reason == "" && ctx.Err() != nil {
			reason = fmt.Sprintf("canceled: %v", ctx.Err())
		}
		if reason != "" && (marketStages[stage] || ctx.Err() != nil) {
			report := contracts.StageReport{Stage: stage, Date: date, Started: r.now(), Halted: reason}
			report.Add(contracts.Skipped(stage.String(), reason))
			r.finish(&report)
			summary.Reports = append(summary.Reports, report)
			continue
		}

		report := r.RunStage(ctx, stage, date)
		if report.Halted != "" {
			halted = report.Halted
		}
		summary.Reports = append(summary.Reports, report)
	}

	r.logger.WithFields(map[string]interface{}{
		"trade_date": date.Format("2006-01-02"),
		"stages":     len(summary.Reports),
		"failed":     summary.TotalFailed(),
	}).Info("Daily batch completed")

	return summary
}

// RunStage executes a single stage for date
func (r *Runner) RunStage(ctx context.Context, stage contracts.Stage, date time.Time) contracts.StageReport {
	date = dateOnly(date)
	report := contracts.StageReport{Stage: stage, Date: date, Started: r.now()}

	switch stage {
	case contracts.StageSectors:
		r.runSectors(ctx, date, &report)
	case contracts.StageMarket:
		r.runMarket(ctx, date, &report)
	case contracts.StageFlows:
		r.runFlows(ctx, date, &report)
	case contracts.StageIndicators:
		r.runIndicators(ctx, date, &report)
	case contracts.StageScores:
		r.runScores(ctx, date, &report)
	case contracts.StageCleanup:
		r.runCleanup(ctx, date, &report)
	default:
		report.Add(contracts.Failed(stage.String(), fmt.Errorf("unknown stage: %s", stage)))
	}

	r.finish(&report)
	return report
}

// finish stamps the duration, records metrics and logs one summary line
func (r *Runner) finish(report *contracts.StageReport) {
	report.Duration = r.now().Sub(report.Started)

	counts := map[string]int{
		string(contracts.OutcomeOK):      report.Count(contracts.OutcomeOK),
		string(contracts.OutcomeSkipped): report.Count(contracts.OutcomeSkipped),
		string(contracts.OutcomeFailed):  report.Count(contracts.OutcomeFailed),
	}
	r.metrics.RecordStage(report.Stage.String(), counts, report.Duration)

	failures := report.Failures()
	units := make([]string, 0, min(len(failures), maxLoggedFailures))
	for _, f := range failures[:min(len(failures), maxLoggedFailures)] {
		units = append(units, f.Unit)
	}

	fields := map[string]interface{}{
		"stage":       report.Stage.String(),
		"description": report.Stage.Description(),
		"trade_date":  report.Date.Format("2006-01-02"),
		"ok":          counts[string(contracts.OutcomeOK)],
		"skipped":     counts[string(contracts.OutcomeSkipped)],
		"failed":      counts[string(contracts.OutcomeFailed)],
		"duration_ms": report.Duration.Milliseconds(),
	}
	if len(units) > 0 {
		fields["failed_units"] = units
	}
	if report.Halted != "" {
		fields["halted"] = report.Halted
	}
	r.logger.WithFields(fields).Info("Stage finished")
}

// fail records a failed unit and logs it
func (r *Runner) fail(report *contracts.StageReport, unit string, err error) {
	r.logger.WithError(err).WithFields(map[string]interface{}{
		"stage": report.Stage.String(),
		"unit":  unit,
	}).Warn("Unit failed")
	report.Add(contracts.Failed(unit, err))
}

// call paces and instruments one provider call.
// Transient HTTP failures are retried inside the provider's httputil client.
func call[T any](ctx context.Context, r *Runner, pacer *httputil.Pacer, provider, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := pacer.Wait(ctx); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	r.metrics.RecordProviderCall(provider, op, err)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", provider, op, err)
	}
	return v, nil
}

// dateOnly returns the calendar date of t as UTC midnight, the form providers parse dates into
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
