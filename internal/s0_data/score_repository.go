package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

const upsertScoreSQL = `
	INSERT INTO scores (
		code, as_of, value_score, momentum_score, liquidity_score, total_score,
		value_score_int, momentum_score_int, liquidity_score_int, total_score_int
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (code, as_of) DO UPDATE SET
		value_score = EXCLUDED.value_score,
		momentum_score = EXCLUDED.momentum_score,
		liquidity_score = EXCLUDED.liquidity_score,
		total_score = EXCLUDED.total_score,
		value_score_int = EXCLUDED.value_score_int,
		momentum_score_int = EXCLUDED.momentum_score_int,
		liquidity_score_int = EXCLUDED.liquidity_score_int,
		total_score_int = EXCLUDED.total_score_int
`

// UpsertScores saves instrument scores keyed by (code, as_of)
func (r *Repository) UpsertScores(ctx context.Context, scores []contracts.Score) error {
	rows := make([][]any, len(scores))
	for i, s := range scores {
		rows[i] = []any{
			s.EntityID, s.AsOf, s.ValueScore, s.MomentumScore, s.LiquidityScore, s.TotalScore,
			s.ValueScoreInt, s.MomentumScoreInt, s.LiquidityScoreInt, s.TotalScoreInt,
		}
	}
	if err := r.execBatch(ctx, upsertScoreSQL, rows); err != nil {
		return fmt.Errorf("upsert scores: %w", err)
	}
	return nil
}

// LatestScoreDate returns the most recent as_of with scores
func (r *Repository) LatestScoreDate(ctx context.Context) (time.Time, bool, error) {
	var latest *time.Time
	if err := r.db.QueryRow(ctx, `SELECT MAX(as_of) FROM scores`).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("query latest score date: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// TopScores returns the best total scores of a date
func (r *Repository) TopScores(ctx context.Context, asOf time.Time, limit int) ([]contracts.Score, error) {
	query := `
		SELECT code, as_of, value_score, momentum_score, liquidity_score, total_score,
			value_score_int, momentum_score_int, liquidity_score_int, total_score_int
		FROM scores
		WHERE as_of = $1
		ORDER BY total_score DESC, code
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []contracts.Score
	for rows.Next() {
		var s contracts.Score
		if err := rows.Scan(
			&s.EntityID, &s.AsOf, &s.ValueScore, &s.MomentumScore, &s.LiquidityScore, &s.TotalScore,
			&s.ValueScoreInt, &s.MomentumScoreInt, &s.LiquidityScoreInt, &s.TotalScoreInt,
		); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
