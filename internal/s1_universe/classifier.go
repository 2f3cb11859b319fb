package s1_universe

import (
	"regexp"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// SPAC 판별을 위한 정규식 패턴
var spacPattern = regexp.MustCompile(`(?i)(스팩|SPAC|제\d+호)`)

// Config holds tier thresholds
type Config struct {
	CoreMarketCap     int64 `yaml:"core_market_cap"`     // core 최소 시가총액 (억원)
	CoreTradedValue   int64 `yaml:"core_traded_value"`   // core 최소 20일 평균 거래대금 (백만원)
	ExtendedMarketCap int64 `yaml:"extended_market_cap"` // extended 최소 시가총액 (억원)
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		CoreMarketCap:     10_000, // 1조
		CoreTradedValue:   10_000, // 100억
		ExtendedMarketCap: 2_000,  // 2천억
	}
}

// Candidate is an instrument with the inputs needed for tiering
type Candidate struct {
	Code           string
	Name           string
	MarketCap      *int64 // 원
	AvgTradedValue int64  // 20일 평균 거래대금 (원)
}

// Classifier assigns instruments to liquidity/size tiers
// ⭐ SSOT: core/extended/other 분류는 여기서만
type Classifier struct {
	config Config
	logger *logger.Logger
}

// NewClassifier creates a tier classifier
func NewClassifier(config Config, log *logger.Logger) *Classifier {
	return &Classifier{
		config: config,
		logger: log.WithField("module", "s1_universe"),
	}
}

// Classify returns the tier of a single instrument
func (c *Classifier) Classify(cand Candidate) contracts.Tier {
	// 우선순위 순서로 체크

	// 1. SPAC, 시가총액 없음
	if isSPAC(cand.Name) || cand.MarketCap == nil {
		return contracts.TierOther
	}
	marketCap := *cand.MarketCap

	// 2. 시가총액 + 거래대금 모두 충족
	if marketCap >= c.config.CoreMarketCap*100_000_000 &&
		cand.AvgTradedValue >= c.config.CoreTradedValue*1_000_000 {
		return contracts.TierCore
	}

	// 3. 시가총액만 충족
	if marketCap >= c.config.ExtendedMarketCap*100_000_000 {
		return contracts.TierExtended
	}

	return contracts.TierOther
}

// ClassifyAll returns code → tier for all candidates
func (c *Classifier) ClassifyAll(cands []Candidate) map[string]contracts.Tier {
	tiers := make(map[string]contracts.Tier, len(cands))
	counts := make(map[contracts.Tier]int)
	for _, cand := range cands {
		tier := c.Classify(cand)
		tiers[cand.Code] = tier
		counts[tier]++
	}

	c.logger.WithFields(map[string]interface{}{
		"core":     counts[contracts.TierCore],
		"extended": counts[contracts.TierExtended],
		"other":    counts[contracts.TierOther],
	}).Info("Classified universe tiers")

	return tiers
}

// CoreCount counts core-tier members among codes
func CoreCount(codes []string, tiers map[string]contracts.Tier) int {
	n := 0
	for _, code := range codes {
		if tiers[code] == contracts.TierCore {
			n++
		}
	}
	return n
}

// isSPAC checks if a stock is a SPAC based on name pattern
func isSPAC(name string) bool {
	return spacPattern.MatchString(name)
}
