package batch

import (
	"context"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s0_data"
)

// runCleanup deletes bars and investor rows older than the retention window
func (r *Runner) runCleanup(ctx context.Context, date time.Time, report *contracts.StageReport) {
	cutoff := date.AddDate(0, 0, -r.config.RetentionDays)
	for _, table := range []string{s0_data.TableStockDaily, s0_data.TableInvestorDaily} {
		deleted, err := r.store.DeleteBefore(ctx, table, cutoff)
		if err != nil {
			r.fail(report, table, err)
			continue
		}
		r.logger.WithFields(map[string]interface{}{
			"table":   table,
			"cutoff":  cutoff.Format("2006-01-02"),
			"deleted": deleted,
		}).Info("Pruned old rows")
		report.Add(contracts.OK(table))
	}
}
