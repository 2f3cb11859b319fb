package batch

import (
	"context"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
	"github.com/wonny/sectorpulse/backend/internal/s1_universe"
	"github.com/wonny/sectorpulse/backend/internal/s2_flow"
	"github.com/wonny/sectorpulse/backend/internal/s4_scoring"
)

// runFlows ingests the day's investor net purchases and refreshes sector metrics
func (r *Runner) runFlows(ctx context.Context, date time.Time, report *contracts.StageReport) {
	r.ingestNetPurchases(ctx, date, report)
	r.scoreSectors(ctx, date, report)
}

func (r *Runner) ingestNetPurchases(ctx context.Context, date time.Time, report *contracts.StageReport) {
	amounts := make(map[contracts.InvestorClass]map[string]int64, 2)
	for _, class := range []contracts.InvestorClass{contracts.InvestorForeign, contracts.InvestorInstitution} {
		rows, err := call(ctx, r, r.investorPacer, "krx", "net_purchases", func(ctx context.Context) (map[string]int64, error) {
			return r.market.NetPurchases(ctx, date, contracts.MarketAll, class)
		})
		if err != nil {
			r.fail(report, "net_purchases:"+string(class), err)
			return
		}
		amounts[class] = rows
	}

	rows := s2_flow.JoinNetPurchases(date, amounts[contracts.InvestorForeign], amounts[contracts.InvestorInstitution])
	if len(rows) == 0 {
		report.Add(contracts.Skipped("net_purchases", "no investor data"))
		return
	}
	report.Add(r.flowWriter().Write(ctx, rows)...)
}

// scoreSectors combines reconciled change rates, aggregated flows and core counts
// into one SectorMetrics per sector
func (r *Runner) scoreSectors(ctx context.Context, date time.Time, report *contracts.StageReport) {
	defs, err := r.store.Sectors(ctx)
	if err != nil {
		r.fail(report, "sectors", err)
		return
	}
	if len(defs) == 0 {
		report.Add(contracts.Skipped("sector_metrics", "no sectors"))
		return
	}
	stocks, err := r.store.Stocks(ctx)
	if err != nil {
		r.fail(report, "stocks", err)
		return
	}
	flowRows, err := r.store.NetPurchasesBetween(ctx, date.AddDate(0, 0, -r.config.FlowLookbackDays), date)
	if err != nil {
		r.fail(report, "flows", err)
		return
	}

	changes, changeDate, err := s1_sector.CollectChanges(ctx, r.changeSource(), r.indexBarSource(), defs, date)
	if err != nil {
		// 등락률 없이도 수급/core 점수는 기록
		r.fail(report, "index_changes", err)
	} else if !changeDate.Equal(date) {
		r.logger.WithField("change_date", changeDate.Format("2006-01-02")).Warn("Using previous day's index changes")
	}
	reconciler := s1_sector.NewReconciler(changes, s1_sector.DefaultReconcilerConfig())

	sectorOf := make(map[string]string, len(stocks))
	members := make(map[string][]string)
	tiers := make(map[string]contracts.Tier, len(stocks))
	for _, s := range stocks {
		tiers[s.Code] = s.Tier
		if s.SectorID == "" {
			continue
		}
		sectorOf[s.Code] = s.SectorID
		members[s.SectorID] = append(members[s.SectorID], s.Code)
	}

	flows := make(map[string]s2_flow.SectorFlow)
	for _, f := range r.aggregator.Aggregate(flowRows, sectorOf, date) {
		flows[f.SectorID] = f
	}

	unmatched := 0
	metrics := make([]contracts.SectorMetrics, 0, len(defs))
	for _, def := range defs {
		match := reconciler.Resolve(def.Name)
		if match.Method == s1_sector.MatchNone {
			unmatched++
		}
		codes := members[def.ID]
		core := s1_universe.CoreCount(codes, tiers)
		score := s4_scoring.SectorScore(match.ChangeRate, core)
		f := flows[def.ID]

		metrics = append(metrics, contracts.SectorMetrics{
			SectorID:       def.ID,
			AsOf:           date,
			ChangeRate:     match.ChangeRate,
			FlowForeign5D:  f.Foreign5D,
			FlowInst5D:     f.Inst5D,
			FlowForeign20D: f.Foreign20D,
			FlowInst20D:    f.Inst20D,
			StockCount:     len(codes),
			CoreCount:      core,
			Score:          score,
			ScoreInt:       s4_scoring.RoundHalfUp(score),
		})
	}

	r.logger.WithFields(map[string]interface{}{
		"sectors":   len(metrics),
		"changes":   reconciler.Len(),
		"unmatched": unmatched,
	}).Info("Computed sector metrics")

	writer := NewChunkedWriter("sectors", []int{r.config.SectorChunk}, r.store.UpsertSectorMetrics,
		func(m contracts.SectorMetrics) string { return "metrics:" + m.SectorID }, r.metrics, r.logger)
	report.Add(writer.Write(ctx, metrics)...)
}

func (r *Runner) flowWriter() *ChunkedWriter[contracts.NetPurchase] {
	return NewChunkedWriter("investor_daily", []int{r.config.BarChunk, r.config.BarSubChunk}, r.store.UpsertNetPurchases,
		func(n contracts.NetPurchase) string { return n.Code + "@" + n.Date.Format("20060102") }, r.metrics, r.logger)
}
