package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

const upsertIndicatorSQL = `
	INSERT INTO daily_indicators (
		code, trade_date, close, volume, value_traded,
		sma20, sma50, sma200, slope200, rsi14, roc14, roc21,
		avwap_52w_low, avwap_swing_low
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (code, trade_date) DO UPDATE SET
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		value_traded = EXCLUDED.value_traded,
		sma20 = EXCLUDED.sma20,
		sma50 = EXCLUDED.sma50,
		sma200 = EXCLUDED.sma200,
		slope200 = EXCLUDED.slope200,
		rsi14 = EXCLUDED.rsi14,
		roc14 = EXCLUDED.roc14,
		roc21 = EXCLUDED.roc21,
		avwap_52w_low = EXCLUDED.avwap_52w_low,
		avwap_swing_low = EXCLUDED.avwap_swing_low
`

const selectIndicatorSQL = `
	SELECT code, trade_date, close, volume, value_traded,
		sma20, sma50, sma200, slope200, rsi14, roc14, roc21,
		avwap_52w_low, avwap_swing_low
	FROM daily_indicators
`

// UpsertIndicators replaces indicator records wholesale per (code, trade_date)
func (r *Repository) UpsertIndicators(ctx context.Context, records []contracts.IndicatorRecord) error {
	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{
			rec.Code, rec.TradeDate, rec.Close, rec.Volume, rec.ValueTraded,
			rec.SMA20, rec.SMA50, rec.SMA200, rec.Slope200, rec.RSI14, rec.ROC14, rec.ROC21,
			rec.AVWAP52wLow, rec.AVWAPSwingLow,
		}
	}
	if err := r.execBatch(ctx, upsertIndicatorSQL, rows); err != nil {
		return fmt.Errorf("upsert daily_indicators: %w", err)
	}
	return nil
}

// Indicators returns a code's indicator records between from and to, ascending
func (r *Repository) Indicators(ctx context.Context, code string, from, to time.Time) ([]contracts.IndicatorRecord, error) {
	return r.queryIndicators(ctx, selectIndicatorSQL+`WHERE code = $1 AND trade_date BETWEEN $2 AND $3 ORDER BY trade_date`, code, from, to)
}

// IndicatorsOn returns every indicator record of one trade date, ordered by code
func (r *Repository) IndicatorsOn(ctx context.Context, date time.Time) ([]contracts.IndicatorRecord, error) {
	return r.queryIndicators(ctx, selectIndicatorSQL+`WHERE trade_date = $1 ORDER BY code`, date)
}

func (r *Repository) queryIndicators(ctx context.Context, query string, args ...any) ([]contracts.IndicatorRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily_indicators: %w", err)
	}
	defer rows.Close()

	var out []contracts.IndicatorRecord
	for rows.Next() {
		var rec contracts.IndicatorRecord
		if err := rows.Scan(
			&rec.Code, &rec.TradeDate, &rec.Close, &rec.Volume, &rec.ValueTraded,
			&rec.SMA20, &rec.SMA50, &rec.SMA200, &rec.Slope200, &rec.RSI14, &rec.ROC14, &rec.ROC21,
			&rec.AVWAP52wLow, &rec.AVWAPSwingLow,
		); err != nil {
			return nil, fmt.Errorf("scan daily_indicators: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
