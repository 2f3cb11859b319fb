package s4_scoring

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// Weights are the linear weights of the instrument total score
type Weights struct {
	Value     float64 `yaml:"value"`
	Momentum  float64 `yaml:"momentum"`
	Liquidity float64 `yaml:"liquidity"`
}

// DefaultWeights returns 0.4 / 0.4 / 0.2
func DefaultWeights() Weights {
	return Weights{Value: 0.4, Momentum: 0.4, Liquidity: 0.2}
}

// Sector score coefficients
const (
	SectorChangeWeight = 10.0
	SectorCoreWeight   = 3.0
)

// Normalize min-max scales values into [0,1].
// A constant series maps every element to 0.5.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for i, v := range values {
		if hi == lo {
			out[i] = 0.5
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// RoundHalfUp rounds to the nearest integer, halves toward +Inf
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// ScoreDecimals is the precision continuous scores are stored at
const ScoreDecimals = 4

// RoundScore rounds a continuous score to ScoreDecimals places.
// Float noise such as 62.49999999999999 becomes 62.5 before any integer rounding.
func RoundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(ScoreDecimals).InexactFloat64()
}

// SectorScore returns max(0, changeRate*10 + coreCount*3) at ScoreDecimals precision
func SectorScore(changeRate float64, coreCount int) float64 {
	return RoundScore(math.Max(0, changeRate*SectorChangeWeight+float64(coreCount)*SectorCoreWeight))
}

// Input is one instrument's raw scoring inputs
type Input struct {
	Code             string
	MarketCap        *int64
	SectorChangeRate *float64
}

// Model computes instrument scores
// ⭐ SSOT: 종목 점수 계산은 여기서만
type Model struct {
	weights Weights
	logger  *logger.Logger
}

// NewModel creates a scoring model
func NewModel(weights Weights, log *logger.Logger) *Model {
	return &Model{
		weights: weights,
		logger:  log.WithField("module", "s4_scoring"),
	}
}

// Score scores all inputs together (normalization is cross-sectional).
// Missing market caps take the median of known caps; missing sector change rates are 0.
func (m *Model) Score(inputs []Input, asOf time.Time) []contracts.Score {
	if len(inputs) == 0 {
		return nil
	}

	caps := make([]float64, len(inputs))
	rates := make([]float64, len(inputs))
	median := medianCap(inputs)
	missingCaps := 0
	for i, in := range inputs {
		if in.MarketCap != nil {
			caps[i] = float64(*in.MarketCap)
		} else {
			caps[i] = median
			missingCaps++
		}
		if in.SectorChangeRate != nil {
			rates[i] = *in.SectorChangeRate
		}
	}

	capNorm := Normalize(caps)
	rateNorm := Normalize(rates)

	scores := make([]contracts.Score, len(inputs))
	for i, in := range inputs {
		value := RoundScore((1 - capNorm[i]) * 100)
		momentum := RoundScore(rateNorm[i] * 100)
		liquidity := RoundScore(capNorm[i] * 100)
		total := RoundScore(m.weights.Value*value + m.weights.Momentum*momentum + m.weights.Liquidity*liquidity)

		scores[i] = contracts.Score{
			EntityID:          in.Code,
			AsOf:              asOf,
			ValueScore:        value,
			MomentumScore:     momentum,
			LiquidityScore:    liquidity,
			TotalScore:        total,
			ValueScoreInt:     RoundHalfUp(value),
			MomentumScoreInt:  RoundHalfUp(momentum),
			LiquidityScoreInt: RoundHalfUp(liquidity),
			TotalScoreInt:     RoundHalfUp(total),
		}
	}

	m.logger.WithFields(map[string]interface{}{
		"instruments":  len(inputs),
		"missing_caps": missingCaps,
		"median_cap":   median,
	}).Info("Scored instruments")

	return scores
}

func medianCap(inputs []Input) float64 {
	known := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		if in.MarketCap != nil {
			known = append(known, float64(*in.MarketCap))
		}
	}
	if len(known) == 0 {
		return 0
	}
	sort.Float64s(known)
	mid := len(known) / 2
	if len(known)%2 == 1 {
		return known[mid]
	}
	return (known[mid-1] + known[mid]) / 2
}
