package s3_indicator

import "math"

// Series helpers operate on ascending float slices and use NaN for "undefined".
// NaN never leaves this package: Engine converts it to nil at emission.

var undefined = math.NaN()

// SMA returns the trailing simple moving average of n values for every index.
// Values before index n-1 are undefined.
func SMA(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = undefined
		if n <= 0 || i < n-1 {
			continue
		}
		sum := 0.0
		for j := i - n + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Diff returns values[t] - values[t-lag]; undefined unless both terms exist.
func Diff(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = undefined
		if lag <= 0 || i < lag {
			continue
		}
		if math.IsNaN(values[i]) || math.IsNaN(values[i-lag]) {
			continue
		}
		out[i] = values[i] - values[i-lag]
	}
	return out
}

// ROC returns (values[t]/values[t-n] - 1) * 100.
// Undefined when values[t-n] does not exist or is zero.
func ROC(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = undefined
		if n <= 0 || i < n {
			continue
		}
		base := values[i-n]
		if base == 0 {
			continue
		}
		out[i] = (values[i]/base - 1) * 100
	}
	return out
}

// RSI computes Wilder's RSI using an exponential average with alpha = 1/period.
//
// The averages are seeded with the first observation (its delta counts as zero)
// and follow avg[t] = (1-alpha)*avg[t-1] + alpha*x[t]. Nothing is emitted until
// period observations have accumulated. When avg_loss is zero the ratio is
// undefined: a flat window stays undefined, a window with gains only reports 100.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = undefined
	}
	if period <= 0 || len(closes) == 0 {
		return out
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64

	for i := range closes {
		gain, loss := 0.0, 0.0
		if i > 0 {
			delta := closes[i] - closes[i-1]
			if delta > 0 {
				gain = delta
			} else if delta < 0 {
				loss = -delta
			}
		}

		if i == 0 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = (1-alpha)*avgGain + alpha*gain
			avgLoss = (1-alpha)*avgLoss + alpha*loss
		}

		if i < period-1 {
			continue
		}
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return undefined
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// AVWAP returns the cumulative volume-weighted close from anchor through end (inclusive).
// Undefined when the anchor is out of range or the cumulative volume is zero.
func AVWAP(closes []float64, volumes []float64, anchor, end int) float64 {
	if anchor < 0 || end >= len(closes) || end >= len(volumes) || anchor > end {
		return undefined
	}
	var pv, v float64
	for i := anchor; i <= end; i++ {
		pv += closes[i] * volumes[i]
		v += volumes[i]
	}
	if v == 0 {
		return undefined
	}
	return pv / v
}

// LowestIndex returns the index of the minimum value among the trailing
// min(window, end+1) values ending at end. Ties resolve to the earliest index.
func LowestIndex(values []float64, window, end int) int {
	if end < 0 || end >= len(values) || window <= 0 {
		return -1
	}
	start := end - window + 1
	if start < 0 {
		start = 0
	}
	idx := start
	for i := start + 1; i <= end; i++ {
		if values[i] < values[idx] {
			idx = i
		}
	}
	return idx
}

// finite converts NaN and ±Inf to nil
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
