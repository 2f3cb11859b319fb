package krx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/httputil"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

var tradeDate = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

// newTestClient serves a fixed body per bld value
func newTestClient(t *testing.T, bodies map[string]string, check func(r *http.Request)) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, jsonPath, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Referer"))
		if check != nil {
			check(r)
		}
		body, ok := bodies[r.PostForm.Get("bld")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return NewClient(httputil.New(logger.NewNop()).DisableRetry(), server.URL, logger.NewNop())
}

func TestParseKRXNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"with comma", "1,459,781", 1459781},
		{"negative", "-1,240,182", -1240182},
		{"spaces", " 1,234 ", 1234},
		{"dash", "-", 0},
		{"empty", "", 0},
		{"invalid", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKRXNumber(tt.input))
		})
	}
}

func TestParseKRXRate(t *testing.T) {
	rate, ok := parseKRXRate("-1.25")
	assert.True(t, ok)
	assert.InDelta(t, -1.25, rate, 1e-12)

	_, ok = parseKRXRate("-")
	assert.False(t, ok)
}

func TestParseKRXDate(t *testing.T) {
	for _, in := range []string{"2024/06/28", "2024-06-28", "20240628"} {
		got, err := parseKRXDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, tradeDate, got)
	}
}

func TestDailySnapshot(t *testing.T) {
	body := `{"OutBlock_1":[
		{"ISU_SRT_CD":"005930","ISU_ABBRV":"삼성전자","MKT_NM":"KOSPI","TDD_CLSPRC":"81,500","TDD_OPNPRC":"80,000","TDD_HGPRC":"82,000","TDD_LWPRC":"79,900","ACC_TRDVOL":"12,345,678","ACC_TRDVAL":"1,000,000,000,000","MKTCAP":"486,000,000,000,000","LIST_SHRS":"5,969,782,550"},
		{"ISU_SRT_CD":"000001","ISU_ABBRV":"거래정지","MKT_NM":"KOSPI","TDD_CLSPRC":"1,000","TDD_OPNPRC":"0","TDD_HGPRC":"0","TDD_LWPRC":"0","ACC_TRDVOL":"0","ACC_TRDVAL":"0","MKTCAP":"10,000,000,000","LIST_SHRS":"10,000,000"},
		{"ISU_SRT_CD":"","ISU_ABBRV":"빈행"}
	]}`
	client := newTestClient(t, map[string]string{bldAllTickerQuotes: body}, func(r *http.Request) {
		assert.Equal(t, "STK", r.PostForm.Get("mktId"))
		assert.Equal(t, "20240628", r.PostForm.Get("trdDd"))
	})

	snap, err := client.DailySnapshot(context.Background(), tradeDate, contracts.MarketKOSPI)
	require.NoError(t, err)

	require.Len(t, snap.Bars, 1, "zero-volume rows dropped")
	bar := snap.Bars[0]
	assert.Equal(t, "005930", bar.Code)
	assert.True(t, decimal.NewFromInt(81500).Equal(bar.Close))
	assert.True(t, decimal.NewFromInt(79900).Equal(bar.Low))
	assert.Equal(t, int64(12345678), bar.Volume)

	require.Len(t, snap.Caps, 2, "halted instruments keep their market cap")
	assert.Equal(t, int64(486_000_000_000_000), snap.Caps[0].MarketCap)
	assert.Equal(t, contracts.MarketKOSPI, snap.Caps[0].Market)
	assert.Equal(t, "삼성전자", snap.Caps[0].Name)
}

func TestDailySnapshot_UnsupportedMarket(t *testing.T) {
	client := newTestClient(t, nil, nil)
	_, err := client.DailySnapshot(context.Background(), tradeDate, "NYSE")
	assert.Error(t, err)
}

func TestIndexChanges(t *testing.T) {
	body := `{"output":[
		{"IDX_NM":"코스피","CLSPRC_IDX":"2,797.82","FLUC_RT":"-0.12"},
		{"IDX_NM":"코스피 200","CLSPRC_IDX":"377.15","FLUC_RT":"0.30"},
		{"IDX_NM":"전기전자","CLSPRC_IDX":"30,000.10","FLUC_RT":"1.05"},
		{"IDX_NM":"미산출","CLSPRC_IDX":"-","FLUC_RT":"-"}
	]}`
	client := newTestClient(t, map[string]string{bldIndexQuotes: body}, func(r *http.Request) {
		assert.Equal(t, "03", r.PostForm.Get("idxIndMidclssCd"))
	})

	changes, err := client.IndexChanges(context.Background(), tradeDate, MarketNameKOSDAQ)
	require.NoError(t, err)
	assert.Equal(t, []contracts.IndexChange{
		{Name: "코스피", ChangeRate: -0.12},
		{Name: "코스피 200", ChangeRate: 0.30},
		{Name: "전기전자", ChangeRate: 1.05},
	}, changes)
}

func TestIndexChanges_Empty(t *testing.T) {
	client := newTestClient(t, map[string]string{bldIndexQuotes: `{"output":[]}`}, nil)
	changes, err := client.IndexChanges(context.Background(), tradeDate, MarketNameKOSPI)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestIndexBars(t *testing.T) {
	body := `{"output":[
		{"TRD_DD":"2024/06/28","CLSPRC_IDX":"3,100.50","UPDN_RATE":"1.20","OPNPRC_IDX":"3,050.00","HGPRC_IDX":"3,120.00","LWPRC_IDX":"3,040.00","ACC_TRDVOL":"1,000","ACC_TRDVAL":"5,000,000"},
		{"TRD_DD":"2024/06/27","CLSPRC_IDX":"3,063.74","UPDN_RATE":"-0.40","OPNPRC_IDX":"3,070.00","HGPRC_IDX":"3,080.00","LWPRC_IDX":"3,050.00","ACC_TRDVOL":"900","ACC_TRDVAL":"4,000,000"}
	]}`
	client := newTestClient(t, map[string]string{bldIndexOHLCV: body}, func(r *http.Request) {
		assert.Equal(t, "1", r.PostForm.Get("indIdx"))
		assert.Equal(t, "014", r.PostForm.Get("indIdx2"))
	})

	bars, err := client.IndexBars(context.Background(), "1014", tradeDate.AddDate(0, 0, -1), tradeDate)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.Before(bars[1].Date), "ascending")
	assert.InDelta(t, 1.20, bars[1].ChangeRate, 1e-12)
	assert.True(t, decimal.RequireFromString("3100.50").Equal(bars[1].Close))
	assert.Equal(t, "1014", bars[1].Code)
}

func TestNetPurchases(t *testing.T) {
	body := `{"output":[
		{"ISU_SRT_CD":"005930","ISU_NM":"삼성전자","NETBID_TRDVAL":"12,000,000"},
		{"ISU_SRT_CD":"000660","ISU_NM":"SK하이닉스","NETBID_TRDVAL":"-3,000,000"}
	]}`
	client := newTestClient(t, map[string]string{bldNetPurchases: body}, func(r *http.Request) {
		assert.Equal(t, "9000", r.PostForm.Get("invstTpCd"))
		assert.Equal(t, "ALL", r.PostForm.Get("mktId"))
	})

	amounts, err := client.NetPurchases(context.Background(), tradeDate, contracts.MarketAll, contracts.InvestorForeign)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"005930": 12_000_000, "000660": -3_000_000}, amounts)
}

func TestNetPurchases_ServerError(t *testing.T) {
	client := newTestClient(t, map[string]string{}, nil)
	_, err := client.NetPurchases(context.Background(), tradeDate, contracts.MarketAll, contracts.InvestorInstitution)
	assert.Error(t, err)
}

func TestSectorMembers(t *testing.T) {
	body := `{"block1":[],"OutBlock_1":[
		{"ISU_SRT_CD":"005930","ISU_ABBRV":"삼성전자","IDX_IND_NM":"전기전자"},
		{"ISU_SRT_CD":"000270","ISU_ABBRV":"기아","IDX_IND_NM":" 운수장비 "},
		{"ISU_SRT_CD":"999999","ISU_ABBRV":"미분류","IDX_IND_NM":""}
	]}`
	client := newTestClient(t, map[string]string{bldSectorMembers: body}, func(r *http.Request) {
		assert.Equal(t, "STK", r.PostForm.Get("mktId"))
	})

	members, err := client.SectorMembers(context.Background(), tradeDate, contracts.MarketKOSPI)
	require.NoError(t, err)
	assert.Equal(t, []contracts.SectorMember{
		{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI, SectorName: "전기전자"},
		{Code: "000270", Name: "기아", Market: contracts.MarketKOSPI, SectorName: "운수장비"},
	}, members)
}
