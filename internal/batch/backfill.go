package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// BackfillBars fetches per-instrument history up to `to`.
// Each instrument resumes from the day after its last stored bar (high-watermark),
// or starts `days` before `to` when nothing is stored yet.
func (r *Runner) BackfillBars(ctx context.Context, to time.Time, days int) contracts.StageReport {
	to = dateOnly(to)
	start := to.AddDate(0, 0, -days)
	writer := r.barWriter()

	return r.backfill(ctx, contracts.StageBackfillBars, to, nil, func(ctx context.Context, stock contracts.Stock) contracts.Outcome {
		from := start
		latest, ok, err := r.store.LatestBarDate(ctx, stock.Code)
		if err != nil {
			return contracts.Failed(stock.Code, err)
		}
		if ok && !latest.Before(from) {
			from = dateOnly(latest).AddDate(0, 0, 1)
		}
		if from.After(to) {
			return contracts.Skipped(stock.Code, "up to date")
		}

		bars, err := call(ctx, r, r.pacer, "naver", "bars", func(ctx context.Context) ([]contracts.Bar, error) {
			return r.history.Bars(ctx, stock.Code, from, to)
		})
		if err != nil {
			return contracts.Failed(stock.Code, err)
		}
		if len(bars) == 0 {
			return contracts.Skipped(stock.Code, "no data")
		}
		return summarize(stock.Code, writer.Write(ctx, bars))
	})
}

// BackfillIndicators recomputes indicator records for every trade date in [from, to],
// truncating history at each date so no record sees later bars
func (r *Runner) BackfillIndicators(ctx context.Context, from, to time.Time) contracts.StageReport {
	from, to = dateOnly(from), dateOnly(to)
	writer := r.indicatorWriter()

	return r.backfill(ctx, contracts.StageBackfillIndicators, to, nil, func(ctx context.Context, stock contracts.Stock) contracts.Outcome {
		bars, err := r.store.Bars(ctx, stock.Code, from.AddDate(0, 0, -r.config.HistoryDays), to)
		if err != nil {
			return contracts.Failed(stock.Code, err)
		}
		if len(bars) < r.config.MinBars {
			return contracts.Skipped(stock.Code, fmt.Sprintf("only %d bars", len(bars)))
		}

		records, err := r.engine.ComputeRange(stock.Code, bars, from, to)
		if err != nil {
			return contracts.Failed(stock.Code, err)
		}
		if len(records) == 0 {
			return contracts.Skipped(stock.Code, "no bars in range")
		}
		return summarize(stock.Code, writer.Write(ctx, records))
	})
}

// BackfillFlows fills investor history of core and extended instruments from the
// per-instrument provider. Dates already stored are kept as they are.
func (r *Runner) BackfillFlows(ctx context.Context, to time.Time, days int) contracts.StageReport {
	to = dateOnly(to)
	from := to.AddDate(0, 0, -days)
	writer := r.flowWriter()

	existing, err := r.store.NetPurchasesBetween(ctx, from, to)
	if err != nil {
		report := contracts.StageReport{Stage: contracts.StageBackfillFlows, Date: to, Started: r.now()}
		r.fail(&report, "flows", err)
		r.finish(&report)
		return report
	}
	stored := make(map[string]bool, len(existing))
	for _, n := range existing {
		stored[n.Code+"@"+dateOnly(n.Date).Format("20060102")] = true
	}

	tiered := func(s contracts.Stock) bool {
		return s.Tier == contracts.TierCore || s.Tier == contracts.TierExtended
	}

	return r.backfill(ctx, contracts.StageBackfillFlows, to, tiered, func(ctx context.Context, stock contracts.Stock) contracts.Outcome {
		rows, err := call(ctx, r, r.investorPacer, "naver", "net_purchases", func(ctx context.Context) ([]contracts.NetPurchase, error) {
			return r.history.NetPurchases(ctx, stock.Code, from, to)
		})
		if err != nil {
			return contracts.Failed(stock.Code, err)
		}

		missing := make([]contracts.NetPurchase, 0, len(rows))
		for _, n := range rows {
			if !stored[n.Code+"@"+dateOnly(n.Date).Format("20060102")] {
				missing = append(missing, n)
			}
		}
		if len(missing) == 0 {
			return contracts.Skipped(stock.Code, "no new rows")
		}
		return summarize(stock.Code, writer.Write(ctx, missing))
	})
}

// backfill runs fn for every (filtered) instrument on a worker pool and reports one outcome each
func (r *Runner) backfill(
	ctx context.Context,
	stage contracts.Stage,
	date time.Time,
	filter func(contracts.Stock) bool,
	fn func(ctx context.Context, stock contracts.Stock) contracts.Outcome,
) contracts.StageReport {
	report := contracts.StageReport{Stage: stage, Date: date, Started: r.now()}

	stocks, err := r.store.Stocks(ctx)
	if err != nil {
		r.fail(&report, "stocks", err)
		r.finish(&report)
		return report
	}
	if filter != nil {
		kept := stocks[:0]
		for _, s := range stocks {
			if filter(s) {
				kept = append(kept, s)
			}
		}
		stocks = kept
	}
	if len(stocks) == 0 {
		report.Add(contracts.Skipped(stage.String(), "no instruments"))
		r.finish(&report)
		return report
	}

	workers := max(1, min(r.config.Workers, len(stocks)))
	r.logger.WithFields(map[string]interface{}{
		"stage":   stage.String(),
		"stocks":  len(stocks),
		"workers": workers,
	}).Info("Starting backfill")

	stockCh := make(chan contracts.Stock, len(stocks))
	resultCh := make(chan contracts.Outcome, len(stocks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range stockCh {
				if err := ctx.Err(); err != nil {
					resultCh <- contracts.Failed(stock.Code, err)
					continue
				}
				resultCh <- fn(ctx, stock)
			}
		}()
	}

	for _, stock := range stocks {
		stockCh <- stock
	}
	close(stockCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for outcome := range resultCh {
		if outcome.Status == contracts.OutcomeFailed {
			r.logger.WithFields(map[string]interface{}{
				"stage":  stage.String(),
				"unit":   outcome.Unit,
				"reason": outcome.Reason,
			}).Warn("Unit failed")
		}
		report.Add(outcome)
	}

	r.finish(&report)
	return report
}

// summarize folds per-record write outcomes into one outcome for the instrument
func summarize(unit string, outcomes []contracts.Outcome) contracts.Outcome {
	failed := 0
	reason := ""
	for _, o := range outcomes {
		if o.Status == contracts.OutcomeFailed {
			failed++
			if reason == "" {
				reason = o.Reason
			}
		}
	}
	if failed == 0 {
		return contracts.OK(unit)
	}
	return contracts.Outcome{
		Unit:   unit,
		Status: contracts.OutcomeFailed,
		Reason: fmt.Sprintf("%d of %d records not written: %s", failed, len(outcomes), reason),
	}
}
