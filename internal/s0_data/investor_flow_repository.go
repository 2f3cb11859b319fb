package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

const upsertNetPurchaseSQL = `
	INSERT INTO investor_daily (code, trade_date, foreign_net, inst_net)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (code, trade_date) DO UPDATE SET
		foreign_net = EXCLUDED.foreign_net,
		inst_net = EXCLUDED.inst_net
`

// UpsertNetPurchases saves investor net purchase amounts keyed by (code, trade_date)
func (r *Repository) UpsertNetPurchases(ctx context.Context, flows []contracts.NetPurchase) error {
	rows := make([][]any, len(flows))
	for i, f := range flows {
		rows[i] = []any{f.Code, f.Date, f.Foreign, f.Institution}
	}
	if err := r.execBatch(ctx, upsertNetPurchaseSQL, rows); err != nil {
		return fmt.Errorf("upsert investor_daily: %w", err)
	}
	return nil
}

// NetPurchasesBetween returns every stored net purchase row with from <= date <= to
func (r *Repository) NetPurchasesBetween(ctx context.Context, from, to time.Time) ([]contracts.NetPurchase, error) {
	query := `
		SELECT code, trade_date, foreign_net, inst_net
		FROM investor_daily
		WHERE trade_date BETWEEN $1 AND $2
		ORDER BY trade_date, code
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query investor_daily: %w", err)
	}
	defer rows.Close()

	var flows []contracts.NetPurchase
	for rows.Next() {
		var f contracts.NetPurchase
		if err := rows.Scan(&f.Code, &f.Date, &f.Foreign, &f.Institution); err != nil {
			return nil, fmt.Errorf("scan investor_daily: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
