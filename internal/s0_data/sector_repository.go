package s0_data

import (
	"context"
	"fmt"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// Sectors returns every sector definition ordered by id
func (r *Repository) Sectors(ctx context.Context) ([]contracts.SectorDefinition, error) {
	query := `
		SELECT id, name, COALESCE(index_code, ''), parent_ids
		FROM sectors
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	defer rows.Close()

	var defs []contracts.SectorDefinition
	for rows.Next() {
		var d contracts.SectorDefinition
		if err := rows.Scan(&d.ID, &d.Name, &d.IndexCode, &d.ParentIDs); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// UpsertSectors saves sector definitions; an existing index_code is never cleared
func (r *Repository) UpsertSectors(ctx context.Context, defs []contracts.SectorDefinition) error {
	query := `
		INSERT INTO sectors (id, name, index_code, parent_ids, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			index_code = COALESCE(EXCLUDED.index_code, sectors.index_code),
			parent_ids = EXCLUDED.parent_ids,
			updated_at = NOW()
	`

	rows := make([][]any, len(defs))
	for i, d := range defs {
		parents := d.ParentIDs
		if parents == nil {
			parents = []string{}
		}
		rows[i] = []any{d.ID, d.Name, d.IndexCode, parents}
	}
	if err := r.execBatch(ctx, query, rows); err != nil {
		return fmt.Errorf("upsert sectors: %w", err)
	}
	return nil
}

// SetSectorIndexCode writes an inferred index code only if the sector has none yet.
// Returns false when the sector already carried a code (or does not exist).
func (r *Repository) SetSectorIndexCode(ctx context.Context, sectorID, code string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sectors SET index_code = $2, updated_at = NOW() WHERE id = $1 AND index_code IS NULL`,
		sectorID, code,
	)
	if err != nil {
		return false, fmt.Errorf("set index code %s: %w", sectorID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const upsertSectorMetricsSQL = `
	UPDATE sectors SET
		as_of = $2,
		change_rate = $3,
		flow_foreign_5d = $4,
		flow_inst_5d = $5,
		flow_foreign_20d = $6,
		flow_inst_20d = $7,
		stock_count = $8,
		core_count = $9,
		score = $10,
		score_int = $11,
		updated_at = NOW()
	WHERE id = $1
`

// UpsertSectorMetrics replaces the latest metrics of each sector
func (r *Repository) UpsertSectorMetrics(ctx context.Context, metrics []contracts.SectorMetrics) error {
	rows := make([][]any, len(metrics))
	for i, m := range metrics {
		rows[i] = []any{
			m.SectorID, m.AsOf, m.ChangeRate,
			m.FlowForeign5D, m.FlowInst5D, m.FlowForeign20D, m.FlowInst20D,
			m.StockCount, m.CoreCount, m.Score, m.ScoreInt,
		}
	}
	if err := r.execBatch(ctx, upsertSectorMetricsSQL, rows); err != nil {
		return fmt.Errorf("update sector metrics: %w", err)
	}
	return nil
}

// SectorMetrics returns the latest metrics of every scored sector, best score first
func (r *Repository) SectorMetrics(ctx context.Context) ([]contracts.SectorMetrics, error) {
	query := `
		SELECT id, as_of, COALESCE(change_rate, 0),
			flow_foreign_5d, flow_inst_5d, flow_foreign_20d, flow_inst_20d,
			stock_count, core_count, COALESCE(score, 0), COALESCE(score_int, 0)
		FROM sectors
		WHERE as_of IS NOT NULL
		ORDER BY score DESC NULLS LAST, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sector metrics: %w", err)
	}
	defer rows.Close()

	var out []contracts.SectorMetrics
	for rows.Next() {
		var m contracts.SectorMetrics
		if err := rows.Scan(
			&m.SectorID, &m.AsOf, &m.ChangeRate,
			&m.FlowForeign5D, &m.FlowInst5D, &m.FlowForeign20D, &m.FlowInst20D,
			&m.StockCount, &m.CoreCount, &m.Score, &m.ScoreInt,
		); err != nil {
			return nil, fmt.Errorf("scan sector metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertSectorIndexBars saves sector index bars keyed by (sector_id, trade_date)
func (r *Repository) UpsertSectorIndexBars(ctx context.Context, bars []contracts.SectorIndexBar) error {
	query := `
		INSERT INTO sector_daily (sector_id, trade_date, close, value, change_rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sector_id, trade_date) DO UPDATE SET
			close = EXCLUDED.close,
			value = EXCLUDED.value,
			change_rate = EXCLUDED.change_rate
	`

	rows := make([][]any, len(bars))
	for i, b := range bars {
		rows[i] = []any{b.SectorID, b.Date, b.Close, b.Value, b.ChangeRate}
	}
	if err := r.execBatch(ctx, query, rows); err != nil {
		return fmt.Errorf("upsert sector_daily: %w", err)
	}
	return nil
}
