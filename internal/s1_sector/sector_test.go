package s1_sector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

func TestNormalize(t *testing.T) {
	decomposed := "\u1100\u1161\u11a8" // NFD
	tests := []struct {
		in   string
		want string
	}{
		{"  반도체  ", "반도체"},
		{"전기   전자", "전기 전자"},
		{"\t기계\n장비 ", "기계 장비"},
		{decomposed, "\uac01"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}

	assert.Equal(t, "KRX:전기 전자", SectorID(" 전기  전자"))
	assert.Equal(t, "반도체", SectorName("KRX:반도체"))
	assert.Equal(t, "반도체", SectorName("반도체 "))
}

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	keywords := make([]string, 0, len(rules.IndexRules))
	for _, r := range rules.IndexRules {
		keywords = append(keywords, r.Keyword)
	}
	assert.Equal(t, []string{"반도체", "전자장비", "전기전자", "화학", "철강", "기계", "조선", "운수장비", "은행", "보험", "금융"}, keywords)

	children := rules.ChildrenOf()
	assert.Equal(t, []string{"KRX:손해보험", "KRX:생명보험"}, children["KRX:보험"])
	assert.Equal(t, []string{"KRX:은행", "KRX:기타금융"}, children["KRX:금융"])
	assert.Equal(t, []string{"KRX:기계"}, children["KRX:기계·장비"])

	parents := rules.ParentsOf()
	assert.Equal(t, []string{"KRX:보험"}, parents["KRX:생명보험"])
	assert.Equal(t, []string{"KRX:금융"}, parents["KRX:은행"])
	assert.NotContains(t, parents, "KRX:금융")
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "self child",
			yaml: `
index_rules: [{keyword: 은행, code: "1027"}]
propagation: [{parent: "KRX:금융", children: ["KRX:금융"]}]`,
			wantErr: ErrCyclicPropagation,
		},
		{
			name: "child is also parent",
			yaml: `
index_rules: [{keyword: 은행, code: "1027"}]
propagation:
  - {parent: "KRX:금융", children: ["KRX:은행"]}
  - {parent: "KRX:은행", children: ["KRX:지방은행"]}`,
			wantErr: ErrCyclicPropagation,
		},
		{
			name: "non numeric code",
			yaml: `index_rules: [{keyword: 은행, code: "abc"}]`,
		},
		{
			name: "missing namespace",
			yaml: `
index_rules: [{keyword: 은행, code: "1027"}]
propagation: [{parent: "금융", children: ["KRX:은행"]}]`,
		},
		{
			name: "no rules",
			yaml: `propagation: []`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestInferIndexCode_FirstMatchWins(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"반도체 전자장비", "1014", true},
		{"전자장비", "1013", true},
		{"기계·장비", "1012", true},
		{"손해보험", "1027", true},
		{"기타금융", "1027", true},
		{"제약", "", false},
	}
	for _, tt := range tests {
		code, ok := InferIndexCode(tt.name, rules.IndexRules)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		assert.Equal(t, tt.want, code, tt.name)
	}
}

func TestPlanBackfill_Idempotent(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	defs := []contracts.SectorDefinition{
		{ID: "KRX:반도체", Name: "반도체"},
		{ID: "KRX:화학", Name: "화학", IndexCode: "9999"},
		{ID: "KRX:제약", Name: "제약"},
	}

	plan, unresolved := PlanBackfill(defs, rules.IndexRules)
	assert.Equal(t, []CodeBackfill{{SectorID: "KRX:반도체", Name: "반도체", Code: "1014"}}, plan)
	assert.Equal(t, []string{"KRX:제약"}, unresolved)

	applied := Apply(defs, plan)
	assert.Equal(t, "1014", applied[0].IndexCode)
	assert.Equal(t, "9999", applied[1].IndexCode, "explicit code must not be replaced")

	again, _ := PlanBackfill(applied, rules.IndexRules)
	assert.Empty(t, again)

	assert.Len(t, Indexed(applied), 2)
}

func changes(pairs ...interface{}) []contracts.IndexChange {
	out := make([]contracts.IndexChange, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, contracts.IndexChange{Name: pairs[i].(string), ChangeRate: pairs[i+1].(float64)})
	}
	return out
}

func TestReconciler_Precedence(t *testing.T) {
	cfg := DefaultReconcilerConfig()

	all := NewReconciler(changes("전기 전자", 1.0, "전기전자업", 2.0, "전기전자", 3.0), cfg)
	m := all.Resolve("전기전자")
	assert.Equal(t, MatchExact, m.Method)
	assert.Equal(t, 3.0, m.ChangeRate)

	noExact := NewReconciler(changes("전기 전자", 1.0, "전기전자업", 2.0), cfg)
	m = noExact.Resolve("전기전자")
	assert.Equal(t, MatchSubstring, m.Method)
	assert.Equal(t, "전기전자업", m.Name)
	assert.Equal(t, 2.0, m.ChangeRate)

	fuzzyOnly := NewReconciler(changes("전기 전자", 1.0), cfg)
	m = fuzzyOnly.Resolve("전기전자")
	assert.Equal(t, MatchFuzzy, m.Method)
	assert.Equal(t, 1.0, m.ChangeRate)
}

func TestReconciler_NormalizesBothSides(t *testing.T) {
	r := NewReconciler(changes("  운수   장비 ", 0.7), DefaultReconcilerConfig())
	m := r.Resolve("운수 장비")
	assert.Equal(t, MatchExact, m.Method)
	assert.Equal(t, 0.7, m.ChangeRate)
	assert.Equal(t, 1, r.Len())
}

func TestReconciler_SubstringEitherDirection(t *testing.T) {
	r := NewReconciler(changes("금융", 0.3), DefaultReconcilerConfig())
	m := r.Resolve("기타금융")
	assert.Equal(t, MatchSubstring, m.Method)
	assert.Equal(t, "금융", m.Name)
}

func TestReconciler_MarketFallback(t *testing.T) {
	cfg := DefaultReconcilerConfig()

	r := NewReconciler(changes("코스피", 1.2, "코스닥", -0.5, "반도체", 2.0), cfg)
	m := r.Resolve("우주항공")
	assert.Equal(t, MatchMarket, m.Method)
	assert.Equal(t, "코스피", m.Name)
	assert.Equal(t, 1.2, m.ChangeRate)

	// secondary marker present but that market was not reported: no primary substitution
	r = NewReconciler(changes("코스피", 1.2), cfg)
	m = r.Resolve("코스닥 기타")
	assert.Equal(t, MatchNone, m.Method)
	assert.Zero(t, m.ChangeRate)

	empty := NewReconciler(nil, cfg)
	m = empty.Resolve("반도체")
	assert.Equal(t, MatchNone, m.Method)
	assert.Zero(t, m.ChangeRate)
}

func TestReconciler_FuzzyTieKeepsEarlierName(t *testing.T) {
	// "전기가스"와 "전기장비"는 "전기전자"에 대해 같은 비율(0.5)을 가짐
	cfg := DefaultReconcilerConfig()
	cfg.Cutoff = 0.5

	r := NewReconciler(changes("전기장비", 1.0, "전기가스", 2.0), cfg)
	m := r.Resolve("전기전자")
	assert.Equal(t, MatchFuzzy, m.Method)
	assert.Equal(t, "전기장비", m.Name)
	assert.Equal(t, 1.0, m.ChangeRate)

	r = NewReconciler(changes("전기가스", 2.0, "전기장비", 1.0), cfg)
	m = r.Resolve("전기전자")
	assert.Equal(t, "전기가스", m.Name, "report order decides ties")
	assert.Equal(t, 2.0, m.ChangeRate)
}

type fakeChangeSource struct {
	byDate map[string][]contracts.IndexChange
	err    error
	calls  []string
}

func (f *fakeChangeSource) IndexChanges(_ context.Context, date time.Time, market string) ([]contracts.IndexChange, error) {
	key := date.Format("2006-01-02")
	f.calls = append(f.calls, key+"/"+market)
	if f.err != nil {
		return nil, f.err
	}
	if market != contracts.MarketKOSPI {
		return nil, nil
	}
	return f.byDate[key], nil
}

func TestCollectChanges(t *testing.T) {
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	t.Run("today available", func(t *testing.T) {
		src := &fakeChangeSource{byDate: map[string][]contracts.IndexChange{
			"2024-06-03": changes("코스피", 1.0),
		}}
		got, used, err := CollectChanges(context.Background(), src, nil, nil, today)
		require.NoError(t, err)
		assert.Equal(t, today, used)
		assert.Len(t, got, 1)
		assert.Len(t, src.calls, 2)
	})

	t.Run("falls back to previous day", func(t *testing.T) {
		src := &fakeChangeSource{byDate: map[string][]contracts.IndexChange{
			"2024-06-02": changes("코스피", 0.4, "화학", 1.1),
		}}
		got, used, err := CollectChanges(context.Background(), src, nil, nil, today)
		require.NoError(t, err)
		assert.Equal(t, today.AddDate(0, 0, -1), used)
		assert.Len(t, got, 2)
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		src := &fakeChangeSource{err: errors.New("boom")}
		got, _, err := CollectChanges(context.Background(), src, nil, nil, today)
		assert.Error(t, err)
		assert.Empty(t, got)
		assert.Len(t, src.calls, 4)
	})
}

type fakeIndexBars struct {
	bars  map[string][]contracts.IndexBar
	err   map[string]error
	calls []string
}

func (f *fakeIndexBars) IndexBars(_ context.Context, code string, from, to time.Time) ([]contracts.IndexBar, error) {
	f.calls = append(f.calls, code+"@"+from.Format("2006-01-02"))
	if err := f.err[code]; err != nil {
		return nil, err
	}
	out := make([]contracts.IndexBar, 0)
	for _, b := range f.bars[code] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func indexBar(code string, date time.Time, rate float64) contracts.IndexBar {
	return contracts.IndexBar{Bar: contracts.Bar{Code: code, Date: date}, ChangeRate: rate}
}

func TestCollectChanges_PartialListUsesIndexBars(t *testing.T) {
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	defs := []contracts.SectorDefinition{
		{ID: "KRX:반도체", Name: "반도체", IndexCode: "1014"},
		{ID: "KRX:전기전자", Name: "전기전자", IndexCode: "1013"},
		{ID: "KRX:전자장비", Name: "전자장비", IndexCode: "1013"},
		{ID: "KRX:철강", Name: "철강", IndexCode: "1011"},
		{ID: "KRX:화학", Name: "화학", IndexCode: "1010"},
		{ID: "KRX:기타", Name: "기타"},
	}
	bars := &fakeIndexBars{
		bars: map[string][]contracts.IndexBar{
			"1014": {indexBar("1014", today, 2.5)},
			"1013": {indexBar("1013", today.AddDate(0, 0, -1), 9.9), indexBar("1013", today, -1.5)},
			"1011": {indexBar("1011", today.AddDate(0, 0, -1), 0.7)},
		},
		err: map[string]error{"1010": errors.New("timeout")},
	}
	src := &fakeChangeSource{byDate: map[string][]contracts.IndexChange{
		"2024-06-03": changes("코스피", 0.4, "반도체", 9.0, "금융", -0.2),
	}}

	got, used, err := CollectChanges(context.Background(), src, bars, defs, today)
	require.NoError(t, err)
	assert.Equal(t, today, used)
	assert.Equal(t, []string{"1014@2024-06-03", "1013@2024-06-03", "1011@2024-06-03", "1010@2024-06-03"}, bars.calls,
		"one fetch per index code")

	r := NewReconciler(got, DefaultReconcilerConfig())
	assert.Equal(t, 2.5, r.Resolve("반도체").ChangeRate, "index bar overrides the partial list")
	assert.Equal(t, -1.5, r.Resolve("전기전자").ChangeRate)
	assert.Equal(t, -1.5, r.Resolve("전자장비").ChangeRate)
	assert.Equal(t, -0.2, r.Resolve("금융").ChangeRate)
	assert.Equal(t, MatchExact, r.Resolve("전자장비").Method)
	assert.Equal(t, 0.4, r.Resolve("철강").ChangeRate, "no bar on the date leaves the market fallback")
}

func TestCollectChanges_FullListSkipsIndexBars(t *testing.T) {
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	full := changes(
		"코스피", 0.1, "음식료품", 0.2, "섬유의복", 0.3, "종이목재", 0.4, "화학", 0.5,
		"의약품", 0.6, "비금속광물", 0.7, "철강금속", 0.8, "기계", 0.9, "전기전자", 1.0,
	)
	require.Len(t, full, MinReportedChanges)

	src := &fakeChangeSource{byDate: map[string][]contracts.IndexChange{"2024-06-03": full}}
	bars := &fakeIndexBars{}
	defs := []contracts.SectorDefinition{{ID: "KRX:반도체", Name: "반도체", IndexCode: "1014"}}

	got, used, err := CollectChanges(context.Background(), src, bars, defs, today)
	require.NoError(t, err)
	assert.Equal(t, today, used)
	assert.Len(t, got, MinReportedChanges)
	assert.Empty(t, bars.calls)
}

func TestCollectChanges_IndexBarsOnPreviousDay(t *testing.T) {
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	src := &fakeChangeSource{byDate: map[string][]contracts.IndexChange{}}
	bars := &fakeIndexBars{bars: map[string][]contracts.IndexBar{
		"1014": {indexBar("1014", yesterday, 3.0)},
	}}
	defs := []contracts.SectorDefinition{{ID: "KRX:반도체", Name: "반도체", IndexCode: "1014"}}

	got, used, err := CollectChanges(context.Background(), src, bars, defs, today)
	require.NoError(t, err)
	assert.Equal(t, yesterday, used)
	assert.Equal(t, []contracts.IndexChange{{Name: "반도체", ChangeRate: 3.0}}, got)
	assert.Len(t, bars.calls, 2)
}
