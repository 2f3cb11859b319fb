package s2_flow

import (
	"sort"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// Window sizes in distinct trade dates
const (
	ShortWindow = 5
	LongWindow  = 20
)

// SectorFlow is an additive flow update for one sector
type SectorFlow struct {
	SectorID   string `json:"sector_id"`
	Foreign5D  int64  `json:"foreign_5d"`
	Inst5D     int64  `json:"inst_5d"`
	Foreign20D int64  `json:"foreign_20d"`
	Inst20D    int64  `json:"inst_20d"`
}

// Add returns the field-wise sum of two updates for the same sector
func (f SectorFlow) Add(o SectorFlow) SectorFlow {
	return SectorFlow{
		SectorID:   f.SectorID,
		Foreign5D:  f.Foreign5D + o.Foreign5D,
		Inst5D:     f.Inst5D + o.Inst5D,
		Foreign20D: f.Foreign20D + o.Foreign20D,
		Inst20D:    f.Inst20D + o.Inst20D,
	}
}

// Merge collapses updates targeting the same sector by addition.
// Output is ordered by sector id.
func Merge(batches ...[]SectorFlow) []SectorFlow {
	acc := make(map[string]SectorFlow)
	for _, batch := range batches {
		for _, u := range batch {
			if prev, ok := acc[u.SectorID]; ok {
				acc[u.SectorID] = prev.Add(u)
				continue
			}
			acc[u.SectorID] = u
		}
	}
	return sorted(acc)
}

// Propagate returns the extra updates produced by adding each parent's
// sums into every declared child. Only sectors present in direct propagate.
func Propagate(direct []SectorFlow, children map[string][]string) []SectorFlow {
	extra := make([]SectorFlow, 0)
	for _, parent := range direct {
		for _, child := range children[parent.SectorID] {
			u := parent
			u.SectorID = child
			extra = append(extra, u)
		}
	}
	return extra
}

// WindowDates returns the last n distinct dates on or before asOf, newest first
func WindowDates(rows []contracts.NetPurchase, asOf time.Time, n int) []time.Time {
	seen := make(map[time.Time]bool)
	dates := make([]time.Time, 0)
	for _, r := range rows {
		d := dateOnly(r.Date)
		if d.After(asOf) || seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if len(dates) > n {
		dates = dates[:n]
	}
	return dates
}

// JoinNetPurchases combines per-class amounts of one date into rows, dropping rows where both are zero
func JoinNetPurchases(date time.Time, foreign, institution map[string]int64) []contracts.NetPurchase {
	codes := make(map[string]struct{}, len(foreign)+len(institution))
	for code := range foreign {
		codes[code] = struct{}{}
	}
	for code := range institution {
		codes[code] = struct{}{}
	}

	rows := make([]contracts.NetPurchase, 0, len(codes))
	for code := range codes {
		f, i := foreign[code], institution[code]
		if f == 0 && i == 0 {
			continue
		}
		rows = append(rows, contracts.NetPurchase{Code: code, Date: date, Foreign: f, Institution: i})
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].Code < rows[b].Code })
	return rows
}

// SumBySector sums per-instrument net purchases into sector totals over the
// short and long windows. Instruments without a sector are ignored.
func SumBySector(rows []contracts.NetPurchase, sectorOf map[string]string, asOf time.Time) []SectorFlow {
	asOf = dateOnly(asOf)
	short := toSet(WindowDates(rows, asOf, ShortWindow))
	long := toSet(WindowDates(rows, asOf, LongWindow))

	acc := make(map[string]SectorFlow)
	for _, r := range rows {
		sid := sectorOf[r.Code]
		if sid == "" {
			continue
		}
		d := dateOnly(r.Date)
		if !long[d] {
			continue
		}
		u := acc[sid]
		u.SectorID = sid
		u.Foreign20D += r.Foreign
		u.Inst20D += r.Institution
		if short[d] {
			u.Foreign5D += r.Foreign
			u.Inst5D += r.Institution
		}
		acc[sid] = u
	}
	return sorted(acc)
}

// Aggregator computes sector flows with parent→child propagation
// ⭐ SSOT: 섹터 수급 집계는 여기서만
type Aggregator struct {
	children map[string][]string
	logger   *logger.Logger
}

// NewAggregator creates an aggregator for a validated propagation table
func NewAggregator(children map[string][]string, log *logger.Logger) *Aggregator {
	return &Aggregator{
		children: children,
		logger:   log.WithField("module", "s2_flow"),
	}
}

// Aggregate returns one merged update per sector
func (a *Aggregator) Aggregate(rows []contracts.NetPurchase, sectorOf map[string]string, asOf time.Time) []SectorFlow {
	direct := SumBySector(rows, sectorOf, asOf)
	extra := Propagate(direct, a.children)
	merged := Merge(direct, extra)

	a.logger.WithFields(map[string]interface{}{
		"rows":       len(rows),
		"direct":     len(direct),
		"propagated": len(extra),
		"sectors":    len(merged),
	}).Info("Aggregated sector flows")

	return merged
}

func sorted(acc map[string]SectorFlow) []SectorFlow {
	out := make([]SectorFlow, 0, len(acc))
	for _, u := range acc {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectorID < out[j].SectorID })
	return out
}

func toSet(dates []time.Time) map[time.Time]bool {
	set := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		set[d] = true
	}
	return set
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
