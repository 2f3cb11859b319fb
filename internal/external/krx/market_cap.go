package krx

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// 전종목 시세 (MDCSTAT01501)
const bldAllTickerQuotes = "dbms/MDC/STAT/standard/MDCSTAT01501"

// quoteRow represents a row of the all-ticker quote screen
type quoteRow struct {
	Code      string `json:"ISU_SRT_CD"` // 종목코드 (단축)
	Name      string `json:"ISU_ABBRV"`  // 종목명
	Market    string `json:"MKT_NM"`     // 시장구분
	Close     string `json:"TDD_CLSPRC"` // 종가
	Open      string `json:"TDD_OPNPRC"` // 시가
	High      string `json:"TDD_HGPRC"`  // 고가
	Low       string `json:"TDD_LWPRC"`  // 저가
	Volume    string `json:"ACC_TRDVOL"` // 거래량
	Value     string `json:"ACC_TRDVAL"` // 거래대금
	MarketCap string `json:"MKTCAP"`     // 시가총액
	Shares    string `json:"LIST_SHRS"`  // 상장주식수
}

// DailySnapshot fetches OHLCV and market caps of every ticker in a market for a date.
// Rows with zero volume are dropped from Bars (halted or not traded).
// ⭐ SSOT: KRX 전종목 시세/시가총액 조회는 이 함수에서만
func (c *Client) DailySnapshot(ctx context.Context, date time.Time, market string) (*contracts.MarketSnapshot, error) {
	mktID, err := marketID(market)
	if err != nil {
		return nil, err
	}

	rows, err := fetchRows[quoteRow](ctx, c, bldAllTickerQuotes, url.Values{
		"mktId": {mktID},
		"trdDd": {formatDate(date)},
		"share": {"1"},
		"money": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s quotes: %w", market, err)
	}

	snap := parseSnapshot(rows, date, market)

	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": formatDate(date),
		"rows":       len(rows),
		"bars":       len(snap.Bars),
		"caps":       len(snap.Caps),
	}).Info("Fetched daily snapshot from KRX")

	return snap, nil
}

func parseSnapshot(rows []quoteRow, date time.Time, market string) *contracts.MarketSnapshot {
	snap := &contracts.MarketSnapshot{
		Date: date,
		Bars: make([]contracts.Bar, 0, len(rows)),
		Caps: make([]contracts.MarketCap, 0, len(rows)),
	}

	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" {
			continue
		}
		mkt := normalizeMarket(row.Market, market)
		if shares := parseKRXNumber(row.Shares); shares > 0 {
			snap.Caps = append(snap.Caps, contracts.MarketCap{
				Code:              code,
				Name:              row.Name,
				Market:            mkt,
				Date:              date,
				MarketCap:         parseKRXNumber(row.MarketCap),
				SharesOutstanding: shares,
			})
		}

		volume := parseKRXNumber(row.Volume)
		if volume == 0 {
			continue
		}
		snap.Bars = append(snap.Bars, contracts.Bar{
			Code:   code,
			Date:   date,
			Open:   parseKRXDecimal(row.Open),
			High:   parseKRXDecimal(row.High),
			Low:    parseKRXDecimal(row.Low),
			Close:  parseKRXDecimal(row.Close),
			Volume: volume,
			Value:  parseKRXDecimal(row.Value),
		})
	}
	return snap
}

// normalizeMarket maps the row's MKT_NM onto KOSPI/KOSDAQ, defaulting to the requested market
func normalizeMarket(rowMarket, requested string) string {
	switch strings.ToUpper(strings.TrimSpace(rowMarket)) {
	case "KOSPI", "유가증권":
		return contracts.MarketKOSPI
	case "KOSDAQ", "KOSDAQ GLOBAL", "코스닥":
		return contracts.MarketKOSDAQ
	}
	switch strings.ToUpper(requested) {
	case "KOSPI", "STK":
		return contracts.MarketKOSPI
	case "KOSDAQ", "KSQ":
		return contracts.MarketKOSDAQ
	}
	return strings.ToUpper(strings.TrimSpace(rowMarket))
}
