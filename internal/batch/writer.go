package batch

import (
	"context"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
	"github.com/wonny/sectorpulse/backend/pkg/metrics"
)

// ChunkedWriter writes records in bounded chunks.
// A failed chunk is written again at the next finer chunk size, and finally one record
// at a time, so one bad record never blocks the rest of its chunk.
// ⭐ SSOT: 청크 쓰기/단건 fallback 정책은 여기서만
type ChunkedWriter[T any] struct {
	table   string
	sizes   []int
	write   func(ctx context.Context, items []T) error
	unit    func(item T) string
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewChunkedWriter creates a writer; sizes are tried from coarse to fine (e.g. 1000, 100)
func NewChunkedWriter[T any](
	table string,
	sizes []int,
	write func(ctx context.Context, items []T) error,
	unit func(item T) string,
	rec *metrics.Recorder,
	log *logger.Logger,
) *ChunkedWriter[T] {
	valid := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s > 1 {
			valid = append(valid, s)
		}
	}
	return &ChunkedWriter[T]{
		table:   table,
		sizes:   valid,
		write:   write,
		unit:    unit,
		metrics: rec,
		logger:  log.WithField("table", table),
	}
}

// Write stores items and returns one outcome per item
func (w *ChunkedWriter[T]) Write(ctx context.Context, items []T) []contracts.Outcome {
	_, failed := w.writeLevel(ctx, items, 0)
	lost := make(map[string]bool, len(failed))
	for _, f := range failed {
		lost[f.Unit] = true
	}

	outcomes := make([]contracts.Outcome, 0, len(items))
	for _, item := range items {
		if unit := w.unit(item); !lost[unit] {
			outcomes = append(outcomes, contracts.OK(unit))
		}
	}
	return append(outcomes, failed...)
}

func (w *ChunkedWriter[T]) writeLevel(ctx context.Context, items []T, level int) (int, []contracts.Outcome) {
	if level >= len(w.sizes) {
		return w.writeSingles(ctx, items)
	}

	size := w.sizes[level]
	written := 0
	var failed []contracts.Outcome
	for start := 0; start < len(items); start += size {
		chunk := items[start:min(start+size, len(items))]
		err := w.write(ctx, chunk)
		w.metrics.RecordStoreWrite(w.table, "batch", len(chunk), err)
		if err == nil {
			written += len(chunk)
			continue
		}

		next := level + 1
		for next < len(w.sizes) && w.sizes[next] >= len(chunk) {
			next++
		}
		w.logger.WithError(err).WithFields(map[string]interface{}{
			"chunk_size": len(chunk),
			"offset":     start,
		}).Warn("Chunk write failed, retrying at finer granularity")

		n, f := w.writeLevel(ctx, chunk, next)
		written += n
		failed = append(failed, f...)
	}
	return written, failed
}

func (w *ChunkedWriter[T]) writeSingles(ctx context.Context, items []T) (int, []contracts.Outcome) {
	written := 0
	var failed []contracts.Outcome
	for _, item := range items {
		err := w.write(ctx, []T{item})
		w.metrics.RecordStoreWrite(w.table, "single", 1, err)
		if err != nil {
			unit := w.unit(item)
			w.logger.WithError(err).WithField("unit", unit).Warn("Record write failed")
			failed = append(failed, contracts.Failed(unit, err))
			continue
		}
		written++
	}
	return written, failed
}
