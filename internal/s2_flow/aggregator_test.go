package s2_flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

var asOf = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func TestPropagate_AddsIntoChild(t *testing.T) {
	direct := []SectorFlow{
		{SectorID: "KRX:금융", Foreign5D: 100, Inst5D: 50},
		{SectorID: "KRX:은행", Foreign5D: 10, Inst5D: 5},
	}
	children := map[string][]string{"KRX:금융": {"KRX:은행", "KRX:기타금융"}}

	got := Merge(direct, Propagate(direct, children))

	require.Len(t, got, 3)
	byID := make(map[string]SectorFlow)
	for _, u := range got {
		byID[u.SectorID] = u
	}
	assert.Equal(t, int64(110), byID["KRX:은행"].Foreign5D)
	assert.Equal(t, int64(55), byID["KRX:은행"].Inst5D)
	assert.Equal(t, int64(100), byID["KRX:기타금융"].Foreign5D)
	assert.Equal(t, int64(50), byID["KRX:기타금융"].Inst5D)
	assert.Equal(t, int64(100), byID["KRX:금융"].Foreign5D, "parent keeps its own sums")
}

func TestPropagate_OnlyComputedParents(t *testing.T) {
	direct := []SectorFlow{{SectorID: "KRX:화학", Foreign20D: 7}}
	children := map[string][]string{"KRX:보험": {"KRX:손해보험"}}

	assert.Empty(t, Propagate(direct, children))
}

func TestMerge_CommutativeAndAssociative(t *testing.T) {
	a := []SectorFlow{
		{SectorID: "KRX:반도체", Foreign5D: 1, Inst5D: 2, Foreign20D: 3, Inst20D: 4},
		{SectorID: "KRX:화학", Foreign5D: -5},
	}
	b := []SectorFlow{
		{SectorID: "KRX:반도체", Foreign5D: 10, Inst5D: 20, Foreign20D: 30, Inst20D: 40},
		{SectorID: "KRX:철강", Inst20D: 9},
	}
	c := []SectorFlow{{SectorID: "KRX:화학", Foreign5D: 5, Inst5D: 1}}

	ab := Merge(a, b)
	assert.Equal(t, ab, Merge(b, a))

	union := append(append([]SectorFlow{}, a...), b...)
	assert.Equal(t, ab, Merge(union))

	assert.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))

	assert.Equal(t, SectorFlow{SectorID: "KRX:반도체", Foreign5D: 11, Inst5D: 22, Foreign20D: 33, Inst20D: 44}, ab[0])
}

func purchases(code string, days int, foreign, inst int64) []contracts.NetPurchase {
	rows := make([]contracts.NetPurchase, 0, days)
	for i := 0; i < days; i++ {
		rows = append(rows, contracts.NetPurchase{
			Code:        code,
			Date:        asOf.AddDate(0, 0, -i),
			Foreign:     foreign,
			Institution: inst,
		})
	}
	return rows
}

func TestWindowDates(t *testing.T) {
	rows := purchases("A", 30, 1, 1)
	rows = append(rows, contracts.NetPurchase{Code: "A", Date: asOf.AddDate(0, 0, 3)})

	dates := WindowDates(rows, asOf, ShortWindow)
	require.Len(t, dates, 5)
	assert.Equal(t, asOf, dates[0], "future rows excluded")
	assert.Equal(t, asOf.AddDate(0, 0, -4), dates[4])
}

func TestSumBySector(t *testing.T) {
	rows := append(purchases("005930", 25, 10, -2), purchases("000660", 25, 1, 1)...)
	rows = append(rows, purchases("999999", 25, 1000, 1000)...)

	sectorOf := map[string]string{
		"005930": "KRX:반도체",
		"000660": "KRX:반도체",
	}

	got := SumBySector(rows, sectorOf, asOf)
	require.Len(t, got, 1)
	assert.Equal(t, SectorFlow{
		SectorID:   "KRX:반도체",
		Foreign5D:  5 * 11,
		Inst5D:     5 * -1,
		Foreign20D: 20 * 11,
		Inst20D:    20 * -1,
	}, got[0])
}

func TestAggregator_Aggregate(t *testing.T) {
	rows := append(purchases("A", 5, 100, 50), purchases("B", 5, 10, 5)...)
	sectorOf := map[string]string{"A": "KRX:보험", "B": "KRX:손해보험"}
	children := map[string][]string{"KRX:보험": {"KRX:손해보험", "KRX:생명보험"}}

	got := NewAggregator(children, logger.NewNop()).Aggregate(rows, sectorOf, asOf)

	require.Len(t, got, 3)
	assert.Equal(t, "KRX:보험", got[0].SectorID)
	assert.Equal(t, "KRX:생명보험", got[1].SectorID)
	assert.Equal(t, "KRX:손해보험", got[2].SectorID)
	assert.Equal(t, int64(5*110), got[2].Foreign5D)
	assert.Equal(t, int64(5*55), got[2].Inst20D)
	assert.Equal(t, int64(5*100), got[1].Foreign20D)
}

func TestJoinNetPurchases(t *testing.T) {
	rows := JoinNetPurchases(asOf,
		map[string]int64{"B": 10, "A": 0, "C": 0},
		map[string]int64{"A": -5, "C": 0, "D": 7},
	)
	assert.Equal(t, []contracts.NetPurchase{
		{Code: "A", Date: asOf, Foreign: 0, Institution: -5},
		{Code: "B", Date: asOf, Foreign: 10, Institution: 0},
		{Code: "D", Date: asOf, Foreign: 0, Institution: 7},
	}, rows)
}
