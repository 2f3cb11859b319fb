package batch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
	"github.com/wonny/sectorpulse/backend/internal/s1_universe"
)

// HaltMarketCheck is the halt reason when the market-open check itself failed
const HaltMarketCheck = "market-open check failed"

// runMarket ingests the day's bars, market caps, tiers and sector index bars
func (r *Runner) runMarket(ctx context.Context, date time.Time, report *contracts.StageReport) {
	open, err := r.marketOpen(ctx, date)
	if err != nil {
		r.fail(report, "market_open:"+r.config.ReferenceCode, err)
		report.Halted = HaltMarketCheck
		return
	}
	if !open {
		reason := fmt.Sprintf("market closed on %s", date.Format("2006-01-02"))
		r.logger.WithField("reference", r.config.ReferenceCode).Info("No reference bar, market closed")
		report.Add(contracts.Skipped(date.Format("2006-01-02"), "market closed"))
		report.Halted = reason
		return
	}

	barWriter := r.barWriter()
	var caps []contracts.MarketCap
	for _, market := range []string{contracts.MarketKOSPI, contracts.MarketKOSDAQ} {
		snap, err := call(ctx, r, r.pacer, "krx", "daily_snapshot", func(ctx context.Context) (*contracts.MarketSnapshot, error) {
			return r.market.DailySnapshot(ctx, date, market)
		})
		if err != nil {
			r.fail(report, market, err)
			continue
		}
		if len(snap.Bars) == 0 {
			report.Add(contracts.Skipped(market, "no bars"))
		} else {
			report.Add(barWriter.Write(ctx, snap.Bars)...)
		}
		caps = append(caps, snap.Caps...)
	}

	r.updateTiers(ctx, date, caps, report)
	r.collectSectorIndexBars(ctx, date, report)
}

// marketOpen reports whether the reference instrument traded on date
func (r *Runner) marketOpen(ctx context.Context, date time.Time) (bool, error) {
	bars, err := call(ctx, r, r.pacer, "naver", "bars", func(ctx context.Context) ([]contracts.Bar, error) {
		return r.history.Bars(ctx, r.config.ReferenceCode, date, date)
	})
	if err != nil {
		return false, err
	}
	for _, b := range bars {
		if dateOnly(b.Date).Equal(date) && b.Volume > 0 {
			return true, nil
		}
	}
	return false, nil
}

// updateTiers stores market caps and recomputes tiers from cap and average traded value
func (r *Runner) updateTiers(ctx context.Context, date time.Time, caps []contracts.MarketCap, report *contracts.StageReport) {
	if len(caps) == 0 {
		report.Add(contracts.Skipped("tiers", "no market caps"))
		return
	}

	avg, err := r.store.AvgTradedValue(ctx, date, r.config.AvgValueDays)
	if err != nil {
		r.fail(report, "tiers", err)
		return
	}

	cands := make([]s1_universe.Candidate, len(caps))
	for i, c := range caps {
		marketCap := c.MarketCap
		cands[i] = s1_universe.Candidate{
			Code:           c.Code,
			Name:           c.Name,
			MarketCap:      &marketCap,
			AvgTradedValue: avg[c.Code],
		}
	}
	tiers := r.classifier.ClassifyAll(cands)

	stocks := make([]contracts.Stock, len(caps))
	for i, c := range caps {
		stocks[i] = contracts.Stock{
			Code:      c.Code,
			Name:      c.Name,
			Market:    c.Market,
			MarketCap: cands[i].MarketCap,
			Tier:      tiers[c.Code],
		}
	}
	sortStocks(stocks)

	writer := NewChunkedWriter("stocks", []int{r.config.BarChunk, r.config.BarSubChunk}, r.store.UpsertStocks,
		func(s contracts.Stock) string { return "stock:" + s.Code }, r.metrics, r.logger)
	report.Add(writer.Write(ctx, stocks)...)
}

// collectSectorIndexBars stores the day's index bar of every sector with an index code.
// Sectors sharing a code reuse one fetch.
func (r *Runner) collectSectorIndexBars(ctx context.Context, date time.Time, report *contracts.StageReport) {
	defs, err := r.store.Sectors(ctx)
	if err != nil {
		r.fail(report, "sector_index", err)
		return
	}

	type fetched struct {
		bar *contracts.IndexBar
		err error
	}
	byCode := make(map[string]fetched)
	rows := make([]contracts.SectorIndexBar, 0)

	for _, def := range s1_sector.Indexed(defs) {
		f, ok := byCode[def.IndexCode]
		if !ok {
			bars, err := call(ctx, r, r.pacer, "krx", "index_bars", func(ctx context.Context) ([]contracts.IndexBar, error) {
				return r.market.IndexBars(ctx, def.IndexCode, date, date)
			})
			f = fetched{err: err}
			for i := range bars {
				if dateOnly(bars[i].Date).Equal(date) {
					f.bar = &bars[i]
				}
			}
			byCode[def.IndexCode] = f
		}

		unit := "index:" + def.ID
		switch {
		case f.err != nil:
			r.fail(report, unit, f.err)
		case f.bar == nil:
			report.Add(contracts.Skipped(unit, "no index bar for date"))
		default:
			rows = append(rows, contracts.SectorIndexBar{
				SectorID:   def.ID,
				Date:       date,
				Close:      f.bar.Close.InexactFloat64(),
				Value:      f.bar.Value.InexactFloat64(),
				ChangeRate: f.bar.ChangeRate,
			})
		}
	}

	writer := NewChunkedWriter("sector_daily", []int{r.config.SectorChunk}, r.store.UpsertSectorIndexBars,
		func(b contracts.SectorIndexBar) string { return "index:" + b.SectorID }, r.metrics, r.logger)
	report.Add(writer.Write(ctx, rows)...)
}

func (r *Runner) barWriter() *ChunkedWriter[contracts.Bar] {
	return NewChunkedWriter("stock_daily", []int{r.config.BarChunk, r.config.BarSubChunk}, r.store.UpsertBars,
		func(b contracts.Bar) string { return b.Code + "@" + b.Date.Format("20060102") }, r.metrics, r.logger)
}

func sortStocks(stocks []contracts.Stock) {
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Code < stocks[j].Code })
}
