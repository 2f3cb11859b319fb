package s0_data

import (
	"context"
	"fmt"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// Stocks returns every instrument ordered by code
func (r *Repository) Stocks(ctx context.Context) ([]contracts.Stock, error) {
	query := `
		SELECT code, name, market, COALESCE(sector_id, ''), market_cap, tier
		FROM stocks
		ORDER BY code
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []contracts.Stock
	for rows.Next() {
		var s contracts.Stock
		var tier string
		if err := rows.Scan(&s.Code, &s.Name, &s.Market, &s.SectorID, &s.MarketCap, &tier); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		s.Tier = contracts.Tier(tier)
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// UpsertStocks saves instrument attributes.
// An empty SectorID keeps the stored sector assignment, a nil MarketCap keeps the stored cap
// and an empty Tier keeps the stored tier (new rows start as other).
func (r *Repository) UpsertStocks(ctx context.Context, stocks []contracts.Stock) error {
	query := `
		INSERT INTO stocks (code, name, market, sector_id, market_cap, tier, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, COALESCE(NULLIF($6, ''), 'other'), NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			market = EXCLUDED.market,
			sector_id = COALESCE(EXCLUDED.sector_id, stocks.sector_id),
			market_cap = COALESCE(EXCLUDED.market_cap, stocks.market_cap),
			tier = CASE WHEN $6 = '' THEN stocks.tier ELSE EXCLUDED.tier END,
			updated_at = NOW()
	`

	rows := make([][]any, len(stocks))
	for i, s := range stocks {
		rows[i] = []any{s.Code, s.Name, s.Market, s.SectorID, s.MarketCap, string(s.Tier)}
	}
	if err := r.execBatch(ctx, query, rows); err != nil {
		return fmt.Errorf("upsert stocks: %w", err)
	}
	return nil
}
