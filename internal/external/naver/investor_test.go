package naver

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

func investorPage(rows string, hasMore bool) string {
	next := ""
	if hasMore {
		next = `<td class="pgRR"><a href="#">맨뒤</a></td>`
	}
	return fmt.Sprintf(`<html><body>
<table class="type2"><tr><th>요약</th></tr></table>
<table class="type2">
<tr><th>날짜</th><th>종가</th></tr>
%s
</table>
<table><tr>%s</tr></table>
</body></html>`, rows, next)
}

func flowRow(date, close, inst, foreign string) string {
	return fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>+500</td><td>+0.69%%</td><td>1,000,000</td><td>%s</td><td>%s</td></tr>`,
		date, close, inst, foreign)
}

func TestParseInvestorPage(t *testing.T) {
	html := investorPage(
		flowRow("2024.01.16", "73,000", "+60", "-40")+
			flowRow("2024.01.15", "72,500", "+50", "+30")+
			flowRow("2024.01.12", "72,000", "0", "0")+
			flowRow("2023.12.29", "70,000", "+1", "+1")+
			`<tr><td>invalid date</td><td>73,000</td></tr>`,
		true,
	)

	rows, lastDate, hasMore, err := parseInvestorPage([]byte(html), "005930", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, day(2023, 12, 29), lastDate)

	require.Len(t, rows, 2, "zero rows and out-of-range rows dropped")
	assert.Equal(t, contracts.NetPurchase{Code: "005930", Date: day(2024, 1, 16), Foreign: -40 * 73000, Institution: 60 * 73000}, rows[0])
	assert.Equal(t, int64(30*72500), rows[1].Foreign)
}

func TestParseInvestorPage_NoTable(t *testing.T) {
	rows, lastDate, hasMore, err := parseInvestorPage([]byte(`<html><body>점검중</body></html>`), "005930", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.True(t, lastDate.IsZero())
	assert.False(t, hasMore)
}

func TestParseSigned(t *testing.T) {
	tests := map[string]int64{
		"+1,234":   1234,
		"-1,234":   -1234,
		" 5 ":      5,
		"-":        0,
		"":         0,
		"abc":      0,
		"+50,000":  50000,
		"-250,000": -250000,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseSigned(in), "input %q", in)
	}
}

func TestNetPurchases_Paginates(t *testing.T) {
	pages := map[string]string{
		"1": investorPage(flowRow("2024.01.16", "100", "+1", "+2"), true),
		"2": investorPage(flowRow("2024.01.15", "100", "+3", "+4")+flowRow("2023.12.28", "100", "+9", "+9"), true),
		"3": investorPage(flowRow("2023.12.27", "100", "+9", "+9"), false),
	}
	requested := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/frgn.naver", r.URL.Path)
		assert.Equal(t, "005930", r.URL.Query().Get("code"))
		requested++
		w.Write([]byte(pages[r.URL.Query().Get("page")]))
	})

	rows, err := client.NetPurchases(context.Background(), "005930", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, requested, "stops once a page reaches before from")
	require.Len(t, rows, 2)
	assert.Equal(t, day(2024, 1, 15), rows[0].Date)
	assert.Equal(t, int64(400), rows[0].Foreign)
	assert.Equal(t, int64(100), rows[1].Institution)
}
