package batch

import (
	"context"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// SectorStore persists sector definitions, index bars and metrics
type SectorStore interface {
	Sectors(ctx context.Context) ([]contracts.SectorDefinition, error)
	UpsertSectors(ctx context.Context, defs []contracts.SectorDefinition) error
	SetSectorIndexCode(ctx context.Context, sectorID, code string) (bool, error)
	UpsertSectorIndexBars(ctx context.Context, bars []contracts.SectorIndexBar) error
	UpsertSectorMetrics(ctx context.Context, metrics []contracts.SectorMetrics) error
	SectorMetrics(ctx context.Context) ([]contracts.SectorMetrics, error)
}

// StockStore persists instrument attributes
type StockStore interface {
	Stocks(ctx context.Context) ([]contracts.Stock, error)
	UpsertStocks(ctx context.Context, stocks []contracts.Stock) error
}

// BarStore persists daily bars
type BarStore interface {
	UpsertBars(ctx context.Context, bars []contracts.Bar) error
	Bars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error)
	CodesWithBarOn(ctx context.Context, date time.Time) ([]string, error)
	LatestBarDate(ctx context.Context, code string) (time.Time, bool, error)
	AvgTradedValue(ctx context.Context, asOf time.Time, n int) (map[string]int64, error)
}

// FlowStore persists investor net purchases
type FlowStore interface {
	UpsertNetPurchases(ctx context.Context, flows []contracts.NetPurchase) error
	NetPurchasesBetween(ctx context.Context, from, to time.Time) ([]contracts.NetPurchase, error)
}

// IndicatorStore persists indicator records
type IndicatorStore interface {
	UpsertIndicators(ctx context.Context, records []contracts.IndicatorRecord) error
}

// ScoreStore persists instrument scores
type ScoreStore interface {
	UpsertScores(ctx context.Context, scores []contracts.Score) error
}

// RetentionStore prunes rows older than the retention window
type RetentionStore interface {
	DeleteBefore(ctx context.Context, table string, cutoff time.Time) (int64, error)
}

// Store is everything the pipeline reads and writes.
// s0_data.Repository satisfies it.
type Store interface {
	SectorStore
	StockStore
	BarStore
	FlowStore
	IndicatorStore
	ScoreStore
	RetentionStore
}

// MarketProvider serves market-wide daily data (krx.Client)
type MarketProvider interface {
	SectorMembers(ctx context.Context, date time.Time, market string) ([]contracts.SectorMember, error)
	DailySnapshot(ctx context.Context, date time.Time, market string) (*contracts.MarketSnapshot, error)
	IndexChanges(ctx context.Context, date time.Time, market string) ([]contracts.IndexChange, error)
	IndexBars(ctx context.Context, code string, from, to time.Time) ([]contracts.IndexBar, error)
	NetPurchases(ctx context.Context, date time.Time, market string, class contracts.InvestorClass) (map[string]int64, error)
}

// HistoryProvider serves per-instrument history (naver.Client)
type HistoryProvider interface {
	Bars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error)
	NetPurchases(ctx context.Context, code string, from, to time.Time) ([]contracts.NetPurchase, error)
}

// ChangeCache stores reported index change lists (pkg/redis.Cache)
type ChangeCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
