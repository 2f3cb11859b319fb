package batch

import (
	"context"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
)

// runSectors syncs the industry classification and writes back inferred index codes
func (r *Runner) runSectors(ctx context.Context, date time.Time, report *contracts.StageReport) {
	// 1. 업종 분류 → sectors / stocks.sector_id
	var members []contracts.SectorMember
	for _, market := range []string{contracts.MarketKOSPI, contracts.MarketKOSDAQ} {
		rows, err := call(ctx, r, r.pacer, "krx", "sector_members", func(ctx context.Context) ([]contracts.SectorMember, error) {
			return r.market.SectorMembers(ctx, date, market)
		})
		if err != nil {
			r.fail(report, "members:"+market, err)
			continue
		}
		members = append(members, rows...)
	}
	r.syncMembership(ctx, members, report)

	// 2. 지수코드 추론 및 write-back (이미 코드가 있으면 건드리지 않음)
	defs, err := r.store.Sectors(ctx)
	if err != nil {
		r.fail(report, "sectors", err)
		return
	}

	plan, unresolved := s1_sector.PlanBackfill(defs, r.rules.IndexRules)
	for _, p := range plan {
		written, err := r.store.SetSectorIndexCode(ctx, p.SectorID, p.Code)
		switch {
		case err != nil:
			r.fail(report, p.SectorID, err)
		case !written:
			report.Add(contracts.Skipped(p.SectorID, "index code already set"))
		default:
			r.logger.WithFields(map[string]interface{}{
				"sector_id":  p.SectorID,
				"index_code": p.Code,
			}).Info("Inferred sector index code")
			report.Add(contracts.OK(p.SectorID))
		}
	}
	for _, id := range unresolved {
		report.Add(contracts.Skipped(id, "no index code rule"))
	}
}

// syncMembership upserts every reported sector (plus the propagation table's sectors)
// and assigns instruments to their sector
func (r *Runner) syncMembership(ctx context.Context, members []contracts.SectorMember, report *contracts.StageReport) {
	if len(members) == 0 {
		report.Add(contracts.Skipped("members", "no classification reported"))
		return
	}

	parents := r.rules.ParentsOf()
	seen := make(map[string]bool)
	defs := make([]contracts.SectorDefinition, 0)
	addSector := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		defs = append(defs, contracts.SectorDefinition{
			ID:        id,
			Name:      s1_sector.SectorName(id),
			ParentIDs: parents[id],
		})
	}

	for _, p := range r.rules.Propagation {
		addSector(p.Parent)
		for _, child := range p.Children {
			addSector(child)
		}
	}

	assigned := make(map[string]contracts.Stock, len(members))
	for _, m := range members {
		id := s1_sector.SectorID(m.SectorName)
		addSector(id)
		// 한 종목이 여러 번 보고되면 마지막 분류 우선
		assigned[m.Code] = contracts.Stock{Code: m.Code, Name: m.Name, Market: m.Market, SectorID: id}
	}

	sectorWriter := NewChunkedWriter("sectors", []int{r.config.SectorChunk}, r.store.UpsertSectors,
		func(d contracts.SectorDefinition) string { return "sector:" + d.ID }, r.metrics, r.logger)
	report.Add(sectorWriter.Write(ctx, defs)...)

	stocks := make([]contracts.Stock, 0, len(assigned))
	for _, s := range assigned {
		stocks = append(stocks, s)
	}
	sortStocks(stocks)

	stockWriter := NewChunkedWriter("stocks", []int{r.config.SectorChunk}, r.store.UpsertStocks,
		func(s contracts.Stock) string { return "stock:" + s.Code }, r.metrics, r.logger)
	report.Add(stockWriter.Write(ctx, stocks)...)

	r.logger.WithFields(map[string]interface{}{
		"sectors": len(defs),
		"stocks":  len(stocks),
	}).Info("Synced sector membership")
}
