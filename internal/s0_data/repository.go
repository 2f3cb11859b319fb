package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles persistence for every batch stage
// ⭐ SSOT: DB 읽기/쓰기는 이 패키지에서만
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// execBatch queues one upsert per row and commits them atomically.
// Either every row is written or none is.
func (r *Repository) execBatch(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(query, args...)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Retention tables pruned by the cleanup stage
const (
	TableStockDaily    = "stock_daily"
	TableInvestorDaily = "investor_daily"
)

// DeleteBefore removes rows of a retention table older than cutoff
func (r *Repository) DeleteBefore(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	var query string
	switch table {
	case TableStockDaily:
		query = `DELETE FROM stock_daily WHERE trade_date < $1`
	case TableInvestorDaily:
		query = `DELETE FROM investor_daily WHERE trade_date < $1`
	default:
		return 0, fmt.Errorf("table %q has no retention policy", table)
	}

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete %s before %s: %w", table, cutoff.Format("2006-01-02"), err)
	}
	return tag.RowsAffected(), nil
}
