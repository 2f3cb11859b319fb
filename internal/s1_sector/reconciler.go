package s1_sector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// MatchMethod tells how a sector name was reconciled
type MatchMethod string

const (
	MatchExact     MatchMethod = "exact"
	MatchSubstring MatchMethod = "substring"
	MatchFuzzy     MatchMethod = "fuzzy"
	MatchMarket    MatchMethod = "market"
	MatchNone      MatchMethod = "none"
)

// Match is the reconciled change rate of one sector name
type Match struct {
	Name       string // matched external name (market name for MatchMarket)
	Method     MatchMethod
	ChangeRate float64
}

// ReconcilerConfig holds name reconciliation settings
type ReconcilerConfig struct {
	Cutoff          float64 `yaml:"cutoff"`
	PrimaryMarket   string  `yaml:"primary_market"`   // 시장 전체 등락률 지수명
	SecondaryMarket string  `yaml:"secondary_market"` // 섹터명에 포함되면 해당 시장으로 폴백
}

// DefaultReconcilerConfig returns the standard settings
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Cutoff:          0.6,
		PrimaryMarket:   "코스피",
		SecondaryMarket: "코스닥",
	}
}

// Reconciler resolves canonical sector names against externally reported index names
// ⭐ SSOT: 섹터명 매칭 순서(exact → substring → fuzzy → market)는 여기서만
type Reconciler struct {
	cfg   ReconcilerConfig
	names []string           // 최초 수집 순서
	rates map[string]float64 // 정규화된 이름 → 등락률
}

// NewReconciler indexes the reported changes.
// Names are normalized; a repeated name keeps its first position and its last rate.
func NewReconciler(changes []contracts.IndexChange, cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		cfg:   cfg,
		names: make([]string, 0, len(changes)),
		rates: make(map[string]float64, len(changes)),
	}
	for _, c := range changes {
		name := Normalize(c.Name)
		if name == "" {
			continue
		}
		if _, seen := r.rates[name]; !seen {
			r.names = append(r.names, name)
		}
		r.rates[name] = c.ChangeRate
	}
	return r
}

// Len returns the number of distinct reported names
func (r *Reconciler) Len() int {
	return len(r.names)
}

// Resolve returns the change rate for a canonical sector name, stopping at the first success
func (r *Reconciler) Resolve(sectorName string) Match {
	name := Normalize(sectorName)
	if name != "" {
		if rate, ok := r.rates[name]; ok {
			return Match{Name: name, Method: MatchExact, ChangeRate: rate}
		}
		for _, c := range r.names {
			if strings.Contains(c, name) || strings.Contains(name, c) {
				return Match{Name: c, Method: MatchSubstring, ChangeRate: r.rates[c]}
			}
		}
		if c, ok := r.closest(name); ok {
			return Match{Name: c, Method: MatchFuzzy, ChangeRate: r.rates[c]}
		}
	}
	return r.marketFallback(name)
}

// closest returns the best candidate with ratio >= cutoff; ties keep the earlier name
func (r *Reconciler) closest(name string) (string, bool) {
	target := splitRunes(name)
	best, bestRatio := "", 0.0
	for _, c := range r.names {
		ratio := difflib.NewMatcher(splitRunes(c), target).Ratio()
		if ratio >= r.cfg.Cutoff && ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	return best, best != ""
}

func (r *Reconciler) marketFallback(name string) Match {
	market := r.cfg.PrimaryMarket
	if r.cfg.SecondaryMarket != "" && strings.Contains(name, r.cfg.SecondaryMarket) {
		market = r.cfg.SecondaryMarket
	}
	if rate, ok := r.rates[Normalize(market)]; ok {
		return Match{Name: market, Method: MatchMarket, ChangeRate: rate}
	}
	return Match{Method: MatchNone}
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, ch := range s {
		out = append(out, string(ch))
	}
	return out
}

// MinReportedChanges is the distinct name count below which a day's change list is partial
const MinReportedChanges = 10

// ChangeSource supplies reported index change rates for a market and date
type ChangeSource interface {
	IndexChanges(ctx context.Context, date time.Time, market string) ([]contracts.IndexChange, error)
}

// IndexBarSource supplies the daily bars of one index code
type IndexBarSource interface {
	IndexBars(ctx context.Context, code string, from, to time.Time) ([]contracts.IndexBar, error)
}

// CollectChanges gathers KOSPI and KOSDAQ index changes for date.
// A list with fewer than MinReportedChanges names is topped up from the day's bar of
// every indexed sector in defs (bars may be nil). When nothing is found for date the
// previous calendar day is tried once. It returns the date the changes belong to.
func CollectChanges(ctx context.Context, src ChangeSource, bars IndexBarSource, defs []contracts.SectorDefinition, date time.Time) ([]contracts.IndexChange, time.Time, error) {
	var lastErr error
	for _, d := range []time.Time{date, date.AddDate(0, 0, -1)} {
		changes := make([]contracts.IndexChange, 0)
		for _, market := range []string{contracts.MarketKOSPI, contracts.MarketKOSDAQ} {
			rows, err := src.IndexChanges(ctx, d, market)
			if err != nil {
				lastErr = fmt.Errorf("index changes %s %s: %w", market, d.Format("2006-01-02"), err)
				continue
			}
			changes = append(changes, rows...)
		}
		if distinctNames(changes) >= MinReportedChanges {
			return changes, d, nil
		}
		if bars != nil {
			fromBars, err := changesFromBars(ctx, bars, defs, d)
			if err != nil {
				lastErr = err
			}
			// 지수별 등락률이 부분 목록보다 우선
			changes = append(changes, fromBars...)
		}
		if len(changes) > 0 {
			return changes, d, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, date, err
		}
	}
	return nil, date, lastErr
}

// changesFromBars reads the change rate of each indexed sector from its own bar on d.
// Sectors sharing a code reuse one fetch; a failed fetch only drops that code.
func changesFromBars(ctx context.Context, src IndexBarSource, defs []contracts.SectorDefinition, d time.Time) ([]contracts.IndexChange, error) {
	var lastErr error
	rates := make(map[string]*float64)
	out := make([]contracts.IndexChange, 0)
	day := d.Format("20060102")

	for _, def := range Indexed(defs) {
		rate, fetched := rates[def.IndexCode]
		if !fetched {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			bars, err := src.IndexBars(ctx, def.IndexCode, d, d)
			if err != nil {
				lastErr = fmt.Errorf("index bars %s %s: %w", def.IndexCode, d.Format("2006-01-02"), err)
			}
			for i := range bars {
				if bars[i].Date.Format("20060102") == day {
					r := bars[i].ChangeRate
					rate = &r
				}
			}
			rates[def.IndexCode] = rate
		}
		if rate != nil {
			out = append(out, contracts.IndexChange{Name: def.Name, ChangeRate: *rate})
		}
	}
	return out, lastErr
}

func distinctNames(changes []contracts.IndexChange) int {
	seen := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		if name := Normalize(c.Name); name != "" {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}
