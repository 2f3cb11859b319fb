package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

var candleRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*(\d+)`)

// Bars fetches daily bars of one instrument between from and to (inclusive), ascending.
// siseJson has no traded value, so Value is estimated as close*volume.
// ⭐ SSOT: Naver 일봉 조회는 이 함수에서만
func (c *Client) Bars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error) {
	body, err := c.fetch(ctx, c.chartURL, "/siseJson.naver", url.Values{
		"symbol":      {code},
		"requestType": {"1"},
		"startTime":   {from.Format("20060102")},
		"endTime":     {to.Format("20060102")},
		"timeframe":   {"day"},
	})
	if err != nil {
		return nil, err
	}

	bars, err := parseCandles(string(body), code)
	if err != nil {
		return nil, fmt.Errorf("parse %s candles: %w", code, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": code,
		"count":      len(bars),
	}).Debug("Fetched bars")
	return bars, nil
}

// parseCandles parses the siseJson body (single-quoted JSON array with a header row)
func parseCandles(body, code string) ([]contracts.Bar, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	body = strings.ReplaceAll(body, "'", "\"")

	var bars []contracts.Bar
	var raw [][]interface{}
	if err := json.Unmarshal([]byte(body), &raw); err == nil {
		bars = candlesFromJSON(raw, code)
	} else {
		bars = candlesFromRegex(body, code)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return dedupe(bars), nil
}

func candlesFromJSON(raw [][]interface{}, code string) []contracts.Bar {
	bars := make([]contracts.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := time.Parse("20060102", strings.TrimSpace(dateStr))
		if err != nil {
			continue // header
		}
		bars = append(bars, newBar(code, date, toDecimal(row[1]), toDecimal(row[2]), toDecimal(row[3]), toDecimal(row[4]), toDecimal(row[5]).IntPart()))
	}
	return bars
}

func candlesFromRegex(body, code string) []contracts.Bar {
	matches := candleRe.FindAllStringSubmatch(body, -1)
	bars := make([]contracts.Bar, 0, len(matches))
	for _, m := range matches {
		date, err := time.Parse("20060102", m[1])
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(m[6], 10, 64)
		bars = append(bars, newBar(code, date, toDecimal(m[2]), toDecimal(m[3]), toDecimal(m[4]), toDecimal(m[5]), volume))
	}
	return bars
}

func newBar(code string, date time.Time, open, high, low, close decimal.Decimal, volume int64) contracts.Bar {
	return contracts.Bar{
		Code:   code,
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
		Value:  close.Mul(decimal.NewFromInt(volume)),
	}
}

// dedupe keeps the last bar of each date; bars must be sorted
func dedupe(bars []contracts.Bar) []contracts.Bar {
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// toDecimal converts JSON numbers and numeric strings
func toDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(val), ",", ""))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
