package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// runIndicators computes the indicator snapshot of every instrument with a bar on date
func (r *Runner) runIndicators(ctx context.Context, date time.Time, report *contracts.StageReport) {
	codes, err := r.store.CodesWithBarOn(ctx, date)
	if err != nil {
		r.fail(report, "codes", err)
		return
	}
	if len(codes) == 0 {
		report.Add(contracts.Skipped("indicators", "no bars on date"))
		return
	}

	writer := r.indicatorWriter()
	from := date.AddDate(0, 0, -r.config.HistoryDays)
	pending := make([]contracts.IndicatorRecord, 0, r.config.TickerChunk)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		report.Add(writer.Write(ctx, pending)...)
		pending = pending[:0]
	}

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			r.fail(report, code, err)
			continue
		}

		bars, err := r.store.Bars(ctx, code, from, date)
		if err != nil {
			r.fail(report, code, err)
			continue
		}
		if len(bars) < r.config.MinBars {
			report.Add(contracts.Skipped(code, fmt.Sprintf("only %d bars", len(bars))))
			continue
		}

		record, err := r.engine.Compute(code, bars)
		if err != nil {
			r.fail(report, code, err)
			continue
		}
		pending = append(pending, record)
		if len(pending) >= r.config.TickerChunk {
			flush()
		}
	}
	flush()
}

func (r *Runner) indicatorWriter() *ChunkedWriter[contracts.IndicatorRecord] {
	return NewChunkedWriter("daily_indicators", []int{r.config.TickerChunk}, r.store.UpsertIndicators,
		func(rec contracts.IndicatorRecord) string { return rec.Code + "@" + rec.TradeDate.Format("20060102") }, r.metrics, r.logger)
}
