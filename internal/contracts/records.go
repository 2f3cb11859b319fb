package contracts

import "time"

// IndicatorRecord is the indicator snapshot of one instrument for one trade date.
// Indicator fields are nil until enough history exists.
// ⭐ SSOT: 기술적 지표 레코드 구조는 여기서만
type IndicatorRecord struct {
	Code          string    `json:"code"`
	TradeDate     time.Time `json:"trade_date"`
	Close         float64   `json:"close"`
	Volume        int64     `json:"volume"`
	ValueTraded   float64   `json:"value_traded"`
	SMA20         *float64  `json:"sma20"`
	SMA50         *float64  `json:"sma50"`
	SMA200        *float64  `json:"sma200"`
	Slope200      *float64  `json:"slope200"`
	RSI14         *float64  `json:"rsi14"`
	ROC14         *float64  `json:"roc14"`
	ROC21         *float64  `json:"roc21"`
	AVWAP52wLow   *float64  `json:"avwap_52w_low"`
	AVWAPSwingLow *float64  `json:"avwap_swing_low"`
}

// SectorDefinition describes a sector and its external index code
type SectorDefinition struct {
	ID        string   `json:"id"` // "KRX:<name>"
	Name      string   `json:"name"`
	IndexCode string   `json:"index_code,omitempty"`
	ParentIDs []string `json:"parent_ids,omitempty"`
}

// HasIndexCode reports whether the sector already carries an explicit or cached code
func (s SectorDefinition) HasIndexCode() bool {
	return s.IndexCode != ""
}

// SectorMetrics is the per-sector snapshot produced by the flows stage
type SectorMetrics struct {
	SectorID       string    `json:"sector_id"`
	AsOf           time.Time `json:"as_of"`
	ChangeRate     float64   `json:"change_rate"`
	FlowForeign5D  int64     `json:"flow_foreign_5d"`
	FlowInst5D     int64     `json:"flow_inst_5d"`
	FlowForeign20D int64     `json:"flow_foreign_20d"`
	FlowInst20D    int64     `json:"flow_inst_20d"`
	StockCount     int       `json:"stock_count"`
	CoreCount      int       `json:"core_count"`
	Score          float64   `json:"score"`
	ScoreInt       int       `json:"score_int"`
}

// Score is the composite score of an instrument (or sector) as of a date
type Score struct {
	EntityID          string    `json:"entity_id"`
	AsOf              time.Time `json:"as_of"`
	ValueScore        float64   `json:"value_score"`
	MomentumScore     float64   `json:"momentum_score"`
	LiquidityScore    float64   `json:"liquidity_score"`
	TotalScore        float64   `json:"total_score"`
	ValueScoreInt     int       `json:"value_score_int"`
	MomentumScoreInt  int       `json:"momentum_score_int"`
	LiquidityScoreInt int       `json:"liquidity_score_int"`
	TotalScoreInt     int       `json:"total_score_int"`
}

// SectorIndexBar is a sector's index bar for a date (sector_daily)
type SectorIndexBar struct {
	SectorID   string
	Date       time.Time
	Close      float64
	Value      float64
	ChangeRate float64
}
