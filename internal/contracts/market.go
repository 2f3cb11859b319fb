package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifiers used by the data providers
const (
	MarketKOSPI  = "KOSPI"
	MarketKOSDAQ = "KOSDAQ"
	MarketAll    = "ALL"
)

// Bar is one day's OHLCV for an instrument or an index
// ⭐ SSOT: 일봉 데이터 구조는 여기서만
type Bar struct {
	Code   string          `json:"code"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
	Value  decimal.Decimal `json:"value"` // 거래대금
}

// ChangeRate returns (close-open)/open*100, or false when open is zero
func (b Bar) ChangeRate() (float64, bool) {
	if b.Open.IsZero() {
		return 0, false
	}
	return b.Close.Sub(b.Open).Div(b.Open).InexactFloat64() * 100, true
}

// Tier is the size/liquidity classification of an instrument
type Tier string

const (
	TierCore     Tier = "core"
	TierExtended Tier = "extended"
	TierOther    Tier = "other"
)

// Stock represents a listed instrument and its static attributes
type Stock struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Market    string `json:"market"`
	SectorID  string `json:"sector_id,omitempty"`
	MarketCap *int64 `json:"market_cap,omitempty"`
	Tier      Tier   `json:"tier"`
}

// SectorMember is an instrument's industry classification as reported by the provider
type SectorMember struct {
	Code       string
	Name       string
	Market     string
	SectorName string
}

// MarketCap is a market capitalization observation
type MarketCap struct {
	Code              string
	Name              string
	Market            string
	Date              time.Time
	MarketCap         int64
	SharesOutstanding int64
}

// InvestorClass identifies an investor group for net purchase queries
type InvestorClass string

const (
	InvestorForeign     InvestorClass = "외국인"
	InvestorInstitution InvestorClass = "기관합계"
)

// NetPurchase is one instrument's net purchase amounts (KRW) for a date
type NetPurchase struct {
	Code        string    `json:"code"`
	Date        time.Time `json:"date"`
	Foreign     int64     `json:"foreign"`
	Institution int64     `json:"institution"`
}

// IndexChange is an externally reported index/sector name and its change rate
type IndexChange struct {
	Name       string  `json:"name"`
	ChangeRate float64 `json:"change_rate"`
}

// IndexBar is a sector index bar with the provider-reported change rate
type IndexBar struct {
	Bar
	ChangeRate float64 `json:"change_rate"`
}

// MarketSnapshot is one trading day of all-ticker quotes for a market
type MarketSnapshot struct {
	Date time.Time
	Bars []Bar       // 거래량 0 종목 제외
	Caps []MarketCap // 상장주식수가 있는 전 종목
}
