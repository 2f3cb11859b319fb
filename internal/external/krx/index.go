package krx

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

const (
	bldIndexQuotes = "dbms/MDC/STAT/standard/MDCSTAT00101" // 전체지수 시세
	bldIndexOHLCV  = "dbms/MDC/STAT/standard/MDCSTAT00301" // 개별지수 시세 추이
)

// Market aggregate names as reported in the index list
const (
	MarketNameKOSPI  = "코스피"
	MarketNameKOSDAQ = "코스닥"
)

type indexQuoteRow struct {
	Name       string `json:"IDX_NM"`
	Close      string `json:"CLSPRC_IDX"`
	ChangeRate string `json:"FLUC_RT"`
}

type indexBarRow struct {
	Date       string `json:"TRD_DD"`
	Close      string `json:"CLSPRC_IDX"`
	ChangeRate string `json:"UPDN_RATE"`
	Open       string `json:"OPNPRC_IDX"`
	High       string `json:"HGPRC_IDX"`
	Low        string `json:"LWPRC_IDX"`
	Volume     string `json:"ACC_TRDVOL"`
	Value      string `json:"ACC_TRDVAL"`
}

// indexGroup maps 코스피/코스닥 onto idxIndMidclssCd
func indexGroup(market string) (string, error) {
	switch strings.TrimSpace(market) {
	case MarketNameKOSPI, contracts.MarketKOSPI:
		return "02", nil
	case MarketNameKOSDAQ, contracts.MarketKOSDAQ:
		return "03", nil
	default:
		return "", fmt.Errorf("unsupported index market: %s", market)
	}
}

// IndexChanges returns every index name of a market group with its change rate on date.
// An empty slice means KRX reported nothing for that date.
func (c *Client) IndexChanges(ctx context.Context, date time.Time, market string) ([]contracts.IndexChange, error) {
	group, err := indexGroup(market)
	if err != nil {
		return nil, err
	}

	rows, err := fetchRows[indexQuoteRow](ctx, c, bldIndexQuotes, url.Values{
		"idxIndMidclssCd": {group},
		"trdDd":           {formatDate(date)},
		"share":           {"2"},
		"money":           {"3"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s index changes: %w", market, err)
	}

	changes := parseIndexChanges(rows)
	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": formatDate(date),
		"count":      len(changes),
	}).Debug("Fetched index changes")
	return changes, nil
}

func parseIndexChanges(rows []indexQuoteRow) []contracts.IndexChange {
	changes := make([]contracts.IndexChange, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		rate, ok := parseKRXRate(row.ChangeRate)
		if name == "" || !ok {
			continue
		}
		changes = append(changes, contracts.IndexChange{Name: name, ChangeRate: rate})
	}
	return changes
}

// IndexBars returns the daily bars of index code (e.g. "1014") between from and to, ascending
func (c *Client) IndexBars(ctx context.Context, code string, from, to time.Time) ([]contracts.IndexBar, error) {
	if len(code) < 2 {
		return nil, fmt.Errorf("invalid index code: %q", code)
	}

	rows, err := fetchRows[indexBarRow](ctx, c, bldIndexOHLCV, url.Values{
		"indIdx":  {code[:1]},
		"indIdx2": {code[1:]},
		"strtDd":  {formatDate(from)},
		"endDd":   {formatDate(to)},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch index %s bars: %w", code, err)
	}

	return parseIndexBars(code, rows), nil
}

func parseIndexBars(code string, rows []indexBarRow) []contracts.IndexBar {
	bars := make([]contracts.IndexBar, 0, len(rows))
	for _, row := range rows {
		date, err := parseKRXDate(row.Date)
		if err != nil {
			continue
		}
		rate, _ := parseKRXRate(row.ChangeRate)
		bars = append(bars, contracts.IndexBar{
			Bar: contracts.Bar{
				Code:   code,
				Date:   date,
				Open:   parseKRXDecimal(row.Open),
				High:   parseKRXDecimal(row.High),
				Low:    parseKRXDecimal(row.Low),
				Close:  parseKRXDecimal(row.Close),
				Volume: parseKRXNumber(row.Volume),
				Value:  parseKRXDecimal(row.Value),
			},
			ChangeRate: rate,
		})
	}
	// KRX returns newest first
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}
