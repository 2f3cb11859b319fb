package krx

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// 투자자별 순매수 상위종목 (MDCSTAT02401)
const bldNetPurchases = "dbms/MDC/STAT/standard/MDCSTAT02401"

type netPurchaseRow struct {
	Code   string `json:"ISU_SRT_CD"`
	Name   string `json:"ISU_NM"`
	NetBid string `json:"NETBID_TRDVAL"` // 순매수 거래대금
}

// investorType maps an investor class onto invstTpCd
func investorType(class contracts.InvestorClass) (string, error) {
	switch class {
	case contracts.InvestorForeign:
		return "9000", nil
	case contracts.InvestorInstitution:
		return "7050", nil
	default:
		return "", fmt.Errorf("unsupported investor class: %s", class)
	}
}

// NetPurchases returns net purchase amounts (KRW) per instrument for one investor class on date
func (c *Client) NetPurchases(ctx context.Context, date time.Time, market string, class contracts.InvestorClass) (map[string]int64, error) {
	mktID, err := marketID(market)
	if err != nil {
		return nil, err
	}
	invst, err := investorType(class)
	if err != nil {
		return nil, err
	}

	day := formatDate(date)
	rows, err := fetchRows[netPurchaseRow](ctx, c, bldNetPurchases, url.Values{
		"mktId":     {mktID},
		"invstTpCd": {invst},
		"strtDd":    {day},
		"endDd":     {day},
		"share":     {"1"},
		"money":     {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s net purchases: %w", class, err)
	}

	amounts := make(map[string]int64, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" {
			continue
		}
		amounts[code] = parseKRXNumber(row.NetBid)
	}

	c.logger.WithFields(map[string]interface{}{
		"investor":   string(class),
		"market":     market,
		"trade_date": day,
		"count":      len(amounts),
	}).Debug("Fetched net purchases")
	return amounts, nil
}
