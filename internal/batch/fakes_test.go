package batch

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
	"github.com/wonny/sectorpulse/backend/internal/s1_universe"
	"github.com/wonny/sectorpulse/backend/internal/s4_scoring"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
	"github.com/wonny/sectorpulse/backend/pkg/metrics"
)

var (
	tradeDate   = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	errBadWrite = errors.New("bad record")
)

func day(offset int) time.Time {
	return tradeDate.AddDate(0, 0, offset)
}

func key(code string, d time.Time) string {
	return code + "@" + d.Format("20060102")
}

// makeBars returns n daily bars of code ending on end, rising by 1 per day
func makeBars(code string, end time.Time, n int) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(int64(1000 + i))
		bars[i] = contracts.Bar{
			Code:   code,
			Date:   end.AddDate(0, 0, i-n+1),
			Open:   price,
			High:   price.Add(decimal.NewFromInt(5)),
			Low:    price.Sub(decimal.NewFromInt(5)),
			Close:  price,
			Volume: 1000,
			Value:  price.Mul(decimal.NewFromInt(1000)),
		}
	}
	return bars
}

// fakeStore is an in-memory Store; writes touching a bad code fail as a whole
type fakeStore struct {
	mu         sync.Mutex
	sectors    map[string]contracts.SectorDefinition
	stocks     map[string]contracts.Stock
	bars       map[string]map[time.Time]contracts.Bar
	flows      map[string]contracts.NetPurchase
	indicators map[string]contracts.IndicatorRecord
	scores     map[string]contracts.Score
	metrics    map[string]contracts.SectorMetrics
	indexBars  []contracts.SectorIndexBar
	avg        map[string]int64
	cutoffs    map[string]time.Time
	badCodes   map[string]bool
	barsErr    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sectors:    make(map[string]contracts.SectorDefinition),
		stocks:     make(map[string]contracts.Stock),
		bars:       make(map[string]map[time.Time]contracts.Bar),
		flows:      make(map[string]contracts.NetPurchase),
		indicators: make(map[string]contracts.IndicatorRecord),
		scores:     make(map[string]contracts.Score),
		metrics:    make(map[string]contracts.SectorMetrics),
		avg:        make(map[string]int64),
		cutoffs:    make(map[string]time.Time),
		badCodes:   make(map[string]bool),
		barsErr:    make(map[string]error),
	}
}

func (s *fakeStore) addBars(bars ...contracts.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		if s.bars[b.Code] == nil {
			s.bars[b.Code] = make(map[time.Time]contracts.Bar)
		}
		s.bars[b.Code][b.Date] = b
	}
}

func (s *fakeStore) Sectors(ctx context.Context) ([]contracts.SectorDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.SectorDefinition, 0, len(s.sectors))
	for _, d := range s.sectors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) UpsertSectors(ctx context.Context, defs []contracts.SectorDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range defs {
		if old, ok := s.sectors[d.ID]; ok && d.IndexCode == "" {
			d.IndexCode = old.IndexCode
		}
		s.sectors[d.ID] = d
	}
	return nil
}

func (s *fakeStore) SetSectorIndexCode(ctx context.Context, sectorID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.sectors[sectorID]
	if !ok || d.IndexCode != "" {
		return false, nil
	}
	d.IndexCode = code
	s.sectors[sectorID] = d
	return true, nil
}

func (s *fakeStore) UpsertSectorIndexBars(ctx context.Context, bars []contracts.SectorIndexBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexBars = append(s.indexBars, bars...)
	return nil
}

func (s *fakeStore) UpsertSectorMetrics(ctx context.Context, metrics []contracts.SectorMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		s.metrics[m.SectorID] = m
	}
	return nil
}

func (s *fakeStore) SectorMetrics(ctx context.Context) ([]contracts.SectorMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.SectorMetrics, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) Stocks(ctx context.Context) ([]contracts.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *fakeStore) UpsertStocks(ctx context.Context, stocks []contracts.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stocks {
		if s.badCodes[st.Code] {
			return errBadWrite
		}
	}
	for _, st := range stocks {
		if old, ok := s.stocks[st.Code]; ok {
			if st.SectorID == "" {
				st.SectorID = old.SectorID
			}
			if st.MarketCap == nil {
				st.MarketCap = old.MarketCap
			}
			if st.Tier == "" {
				st.Tier = old.Tier
			}
		}
		if st.Tier == "" {
			st.Tier = contracts.TierOther
		}
		s.stocks[st.Code] = st
	}
	return nil
}

func (s *fakeStore) UpsertBars(ctx context.Context, bars []contracts.Bar) error {
	s.mu.Lock()
	for _, b := range bars {
		if s.badCodes[b.Code] {
			s.mu.Unlock()
			return errBadWrite
		}
	}
	s.mu.Unlock()
	s.addBars(bars...)
	return nil
}

func (s *fakeStore) Bars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barsErr[code]; err != nil {
		return nil, err
	}
	out := make([]contracts.Bar, 0)
	for d, b := range s.bars[code] {
		if !d.Before(from) && !d.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *fakeStore) CodesWithBarOn(ctx context.Context, date time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0)
	for code, bars := range s.bars {
		if _, ok := bars[date]; ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *fakeStore) LatestBarDate(ctx context.Context, code string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for d := range s.bars[code] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest, !latest.IsZero(), nil
}

func (s *fakeStore) AvgTradedValue(ctx context.Context, asOf time.Time, n int) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.avg))
	for k, v := range s.avg {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) UpsertNetPurchases(ctx context.Context, flows []contracts.NetPurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range flows {
		if s.badCodes[f.Code] {
			return errBadWrite
		}
	}
	for _, f := range flows {
		s.flows[key(f.Code, f.Date)] = f
	}
	return nil
}

func (s *fakeStore) NetPurchasesBetween(ctx context.Context, from, to time.Time) ([]contracts.NetPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.NetPurchase, 0)
	for _, f := range s.flows {
		if !f.Date.Before(from) && !f.Date.After(to) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i].Code, out[i].Date) < key(out[j].Code, out[j].Date) })
	return out, nil
}

func (s *fakeStore) UpsertIndicators(ctx context.Context, records []contracts.IndicatorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if s.badCodes[r.Code] {
			return errBadWrite
		}
	}
	for _, r := range records {
		s.indicators[key(r.Code, r.TradeDate)] = r
	}
	return nil
}

func (s *fakeStore) UpsertScores(ctx context.Context, scores []contracts.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scores {
		s.scores[sc.EntityID] = sc
	}
	return nil
}

func (s *fakeStore) DeleteBefore(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs[table] = cutoff
	return 0, nil
}

// fakeMarket serves canned KRX responses and counts calls per operation
type fakeMarket struct {
	mu          sync.Mutex
	members     map[string][]contracts.SectorMember
	snapshots   map[string]*contracts.MarketSnapshot
	snapshotErr map[string]error
	changes     map[string][]contracts.IndexChange
	indexBars   map[string][]contracts.IndexBar
	net         map[contracts.InvestorClass]map[string]int64
	calls       map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		members:     make(map[string][]contracts.SectorMember),
		snapshots:   make(map[string]*contracts.MarketSnapshot),
		snapshotErr: make(map[string]error),
		changes:     make(map[string][]contracts.IndexChange),
		indexBars:   make(map[string][]contracts.IndexBar),
		net:         make(map[contracts.InvestorClass]map[string]int64),
		calls:       make(map[string]int),
	}
}

func (m *fakeMarket) count(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
}

func (m *fakeMarket) called(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *fakeMarket) SectorMembers(ctx context.Context, date time.Time, market string) ([]contracts.SectorMember, error) {
	m.count("sector_members")
	return m.members[market], nil
}

func (m *fakeMarket) DailySnapshot(ctx context.Context, date time.Time, market string) (*contracts.MarketSnapshot, error) {
	m.count("daily_snapshot")
	if err := m.snapshotErr[market]; err != nil {
		return nil, err
	}
	if snap, ok := m.snapshots[market]; ok {
		return snap, nil
	}
	return &contracts.MarketSnapshot{Date: date}, nil
}

func (m *fakeMarket) IndexChanges(ctx context.Context, date time.Time, market string) ([]contracts.IndexChange, error) {
	m.count("index_changes")
	if !date.Equal(tradeDate) {
		return nil, nil
	}
	return m.changes[market], nil
}

func (m *fakeMarket) IndexBars(ctx context.Context, code string, from, to time.Time) ([]contracts.IndexBar, error) {
	m.count("index_bars")
	return m.indexBars[code], nil
}

func (m *fakeMarket) NetPurchases(ctx context.Context, date time.Time, market string, class contracts.InvestorClass) (map[string]int64, error) {
	m.count("net_purchases")
	return m.net[class], nil
}

// fakeHistory serves per-instrument history filtered to the requested range
type fakeHistory struct {
	mu    sync.Mutex
	bars  map[string][]contracts.Bar
	net   map[string][]contracts.NetPurchase
	froms map[string]time.Time
	calls map[string]int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		bars:  make(map[string][]contracts.Bar),
		net:   make(map[string][]contracts.NetPurchase),
		froms: make(map[string]time.Time),
		calls: make(map[string]int),
	}
}

func (h *fakeHistory) Bars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["bars:"+code]++
	h.froms["bars:"+code] = from
	out := make([]contracts.Bar, 0)
	for _, b := range h.bars[code] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (h *fakeHistory) NetPurchases(ctx context.Context, code string, from, to time.Time) ([]contracts.NetPurchase, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["net:"+code]++
	out := make([]contracts.NetPurchase, 0)
	for _, n := range h.net[code] {
		if !n.Date.Before(from) && !n.Date.After(to) {
			out = append(out, n)
		}
	}
	return out, nil
}

// fakeCache keeps JSON values like pkg/redis.Cache
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	c.ttls[key] = ttl
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CallDelay = 0
	cfg.IndexCallDelay = 0
	cfg.Workers = 2
	return cfg
}

func newTestRunner(t *testing.T, store *fakeStore, market *fakeMarket, history *fakeHistory, cache ChangeCache) *Runner {
	t.Helper()
	rules, err := s1_sector.DefaultRules()
	require.NoError(t, err)

	return NewRunner(Deps{
		Store:   store,
		Market:  market,
		History: history,
		Cache:   cache,
		Rules:   rules,
		Tiers:   s1_universe.DefaultConfig(),
		Weights: s4_scoring.DefaultWeights(),
		Metrics: metrics.New(),
	}, testConfig(), logger.NewNop())
}

func outcomeOf(report contracts.StageReport, unit string) (contracts.Outcome, bool) {
	for _, o := range report.Outcomes {
		if o.Unit == unit {
			return o, true
		}
	}
	return contracts.Outcome{}, false
}

func int64p(v int64) *int64 { return &v }
