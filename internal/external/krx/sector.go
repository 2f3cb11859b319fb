package krx

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// 업종분류 현황 (MDCSTAT03901)
const bldSectorMembers = "dbms/MDC/STAT/standard/MDCSTAT03901"

type sectorMemberRow struct {
	Code   string `json:"ISU_SRT_CD"`
	Name   string `json:"ISU_ABBRV"`
	Sector string `json:"IDX_IND_NM"` // 업종명
}

// SectorMembers returns the KRX industry classification of every ticker in a market on date
func (c *Client) SectorMembers(ctx context.Context, date time.Time, market string) ([]contracts.SectorMember, error) {
	mktID, err := marketID(market)
	if err != nil {
		return nil, err
	}

	rows, err := fetchRows[sectorMemberRow](ctx, c, bldSectorMembers, url.Values{
		"mktId": {mktID},
		"trdDd": {formatDate(date)},
		"money": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s sector members: %w", market, err)
	}

	members := make([]contracts.SectorMember, 0, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		sector := strings.TrimSpace(row.Sector)
		if code == "" || sector == "" {
			continue
		}
		members = append(members, contracts.SectorMember{
			Code:       code,
			Name:       strings.TrimSpace(row.Name),
			Market:     normalizeMarket("", market),
			SectorName: sector,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": formatDate(date),
		"count":      len(members),
	}).Debug("Fetched sector members")
	return members, nil
}
