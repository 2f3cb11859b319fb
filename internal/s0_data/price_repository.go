package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

const upsertBarSQL = `
	INSERT INTO stock_daily (code, trade_date, open, high, low, close, volume, value)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (code, trade_date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		value = EXCLUDED.value
`

// UpsertBars saves daily bars keyed by (code, trade_date)
func (r *Repository) UpsertBars(ctx context.Context, bars []contracts.Bar) error {
	rows := make([][]any, len(bars))
	for i, b := range bars {
		rows[i] = []any{b.Code, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.Value}
	}
	if err := r.execBatch(ctx, upsertBarSQL, rows); err != nil {
		return fmt.Errorf("upsert stock_daily: %w", err)
	}
	return nil
}

// Bars returns a code's bars between from and to, ascending by date
func (r *Repository) Bars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT code, trade_date, open, high, low, close, volume, value
		FROM stock_daily
		WHERE code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.db.Query(ctx, query, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", code, err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Code, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Value); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// CodesWithBarOn returns the codes that have a bar on date
func (r *Repository) CodesWithBarOn(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM stock_daily WHERE trade_date = $1 ORDER BY code`, date)
	if err != nil {
		return nil, fmt.Errorf("query codes on %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// LatestBarDate returns the last stored trade date of a code (high-watermark)
func (r *Repository) LatestBarDate(ctx context.Context, code string) (time.Time, bool, error) {
	var latest *time.Time
	if err := r.db.QueryRow(ctx, `SELECT MAX(trade_date) FROM stock_daily WHERE code = $1`, code).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("query latest bar %s: %w", code, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// AvgTradedValue returns each code's mean traded value (KRW) over its last n bars up to asOf
func (r *Repository) AvgTradedValue(ctx context.Context, asOf time.Time, n int) (map[string]int64, error) {
	query := `
		SELECT code, AVG(value)::BIGINT
		FROM (
			SELECT code, value,
				ROW_NUMBER() OVER (PARTITION BY code ORDER BY trade_date DESC) AS rn
			FROM stock_daily
			WHERE trade_date <= $1 AND trade_date > $1::date - INTERVAL '90 days'
		) recent
		WHERE rn <= $2
		GROUP BY code
	`

	rows, err := r.db.Query(ctx, query, asOf, n)
	if err != nil {
		return nil, fmt.Errorf("query avg traded value: %w", err)
	}
	defer rows.Close()

	avg := make(map[string]int64)
	for rows.Next() {
		var code string
		var v int64
		if err := rows.Scan(&code, &v); err != nil {
			return nil, err
		}
		avg[code] = v
	}
	return avg, rows.Err()
}
