package naver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

var flowDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// NetPurchases scrapes the per-instrument investor page (frgn.naver) between from and to.
// The page reports net shares; amounts are estimated as shares * close of the same row.
// ⭐ SSOT: Naver 종목별 투자자 수급 조회는 이 함수에서만
func (c *Client) NetPurchases(ctx context.Context, code string, from, to time.Time) ([]contracts.NetPurchase, error) {
	var rows []contracts.NetPurchase
	noDataPages := 0

	for page := 1; page <= c.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		body, err := c.fetch(ctx, c.baseURL, "/item/frgn.naver", url.Values{
			"code": {code},
			"page": {strconv.Itoa(page)},
		})
		if err != nil {
			return rows, err
		}

		parsed, lastDate, hasMore, err := parseInvestorPage(body, code, from, to)
		if err != nil {
			return rows, fmt.Errorf("parse %s page %d: %w", code, page, err)
		}
		rows = append(rows, parsed...)

		// 기준일보다 이전 데이터면 종료
		if !lastDate.IsZero() && lastDate.Before(from) {
			break
		}
		if !hasMore {
			break
		}
		if lastDate.IsZero() {
			noDataPages++
			if noDataPages >= 3 {
				break
			}
		} else {
			noDataPages = 0
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	c.logger.WithFields(map[string]interface{}{
		"stock_code": code,
		"count":      len(rows),
	}).Debug("Fetched investor flow")
	return rows, nil
}

// parseInvestorPage parses the second table.type2 of frgn.naver.
// 컬럼: 날짜 | 종가 | 전일비 | 등락률 | 거래량 | 기관 순매매 | 외국인 순매매 | ...
func parseInvestorPage(html []byte, code string, from, to time.Time) ([]contracts.NetPurchase, time.Time, bool, error) {
	var rows []contracts.NetPurchase
	var lastDate time.Time

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, lastDate, false, err
	}

	tables := doc.Find("table.type2")
	if tables.Length() < 2 {
		return nil, lastDate, false, nil
	}

	tables.Eq(1).Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !flowDateRe.MatchString(dateText) {
			return
		}
		date, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}
		lastDate = date

		if date.Before(from) || date.After(to) {
			return
		}

		close := parseSigned(cells.Eq(1).Text())
		inst := parseSigned(cells.Eq(5).Text())
		foreign := parseSigned(cells.Eq(6).Text())
		if inst == 0 && foreign == 0 {
			return
		}

		rows = append(rows, contracts.NetPurchase{
			Code:        code,
			Date:        date,
			Foreign:     foreign * close,
			Institution: inst * close,
		})
	})

	hasMore := doc.Find(".pgRR").Length() > 0
	return rows, lastDate, hasMore, nil
}

// parseSigned parses "+1,234", "-1,234" and "1,234"
func parseSigned(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "-" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
