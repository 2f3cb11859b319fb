package batch

import (
	"context"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s4_scoring"
)

// runScores scores every instrument that traded on date.
// Sector change rates come from the latest sector metrics; missing values are left to the model.
func (r *Runner) runScores(ctx context.Context, date time.Time, report *contracts.StageReport) {
	codes, err := r.store.CodesWithBarOn(ctx, date)
	if err != nil {
		r.fail(report, "codes", err)
		return
	}
	if len(codes) == 0 {
		report.Add(contracts.Skipped("scores", "no bars on date"))
		return
	}

	stocks, err := r.store.Stocks(ctx)
	if err != nil {
		r.fail(report, "stocks", err)
		return
	}
	sectors, err := r.store.SectorMetrics(ctx)
	if err != nil {
		r.fail(report, "sector_metrics", err)
		return
	}

	rates := make(map[string]float64, len(sectors))
	for _, m := range sectors {
		rates[m.SectorID] = m.ChangeRate
	}
	byCode := make(map[string]contracts.Stock, len(stocks))
	for _, s := range stocks {
		byCode[s.Code] = s
	}

	inputs := make([]s4_scoring.Input, 0, len(codes))
	for _, code := range codes {
		in := s4_scoring.Input{Code: code}
		if s, ok := byCode[code]; ok {
			in.MarketCap = s.MarketCap
			if rate, ok := rates[s.SectorID]; ok {
				in.SectorChangeRate = &rate
			}
		}
		inputs = append(inputs, in)
	}

	scores := r.model.Score(inputs, date)
	writer := NewChunkedWriter("scores", []int{r.config.BarChunk, r.config.BarSubChunk}, r.store.UpsertScores,
		func(s contracts.Score) string { return s.EntityID }, r.metrics, r.logger)
	report.Add(writer.Write(ctx, scores)...)
}
