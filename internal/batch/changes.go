package batch

import (
	"context"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
	"github.com/wonny/sectorpulse/backend/pkg/redis"
)

// cachedChanges serves index change lists from the cache before asking the provider
type cachedChanges struct {
	r *Runner
}

func (r *Runner) changeSource() s1_sector.ChangeSource {
	return cachedChanges{r: r}
}

// pacedIndexBars reads single index bars for the partial change list fallback
type pacedIndexBars struct {
	r *Runner
}

func (r *Runner) indexBarSource() s1_sector.IndexBarSource {
	return pacedIndexBars{r: r}
}

// IndexBars implements s1_sector.IndexBarSource
func (p pacedIndexBars) IndexBars(ctx context.Context, code string, from, to time.Time) ([]contracts.IndexBar, error) {
	return call(ctx, p.r, p.r.pacer, "krx", "index_bars", func(ctx context.Context) ([]contracts.IndexBar, error) {
		return p.r.market.IndexBars(ctx, code, from, to)
	})
}

// IndexChanges implements s1_sector.ChangeSource.
// Cache errors are logged and never fail the lookup; empty lists are not cached.
func (c cachedChanges) IndexChanges(ctx context.Context, date time.Time, market string) ([]contracts.IndexChange, error) {
	r := c.r
	key := redis.IndexChangesKey(market, date)

	if r.cache != nil {
		var cached []contracts.IndexChange
		hit, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("Index change cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	changes, err := call(ctx, r, r.pacer, "krx", "index_changes", func(ctx context.Context) ([]contracts.IndexChange, error) {
		return r.market.IndexChanges(ctx, date, market)
	})
	if err != nil {
		return nil, err
	}

	if r.cache != nil && len(changes) > 0 {
		if err := r.cache.Set(ctx, key, changes, redis.IndexChangesTTL(date, r.now())); err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("Index change cache write failed")
		}
	}
	return changes, nil
}
