package s3_indicator

import (
	"errors"
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

var (
	// ErrNoBars is returned when no bar is supplied
	ErrNoBars = errors.New("no bars")
	// ErrUnordered is returned when bars are not strictly ascending by date
	ErrUnordered = errors.New("bars not strictly ascending by date")
)

// Config holds indicator periods
type Config struct {
	RSIPeriod   int `yaml:"rsi_period"`
	ROCShort    int `yaml:"roc_short"`
	ROCLong     int `yaml:"roc_long"`
	SlopeLag    int `yaml:"slope_lag"`
	LowWindow   int `yaml:"low_window"`   // 52주 저점 탐색 구간
	SwingWindow int `yaml:"swing_window"` // 스윙 저점 탐색 구간
}

// DefaultConfig returns the standard indicator periods
func DefaultConfig() Config {
	return Config{
		RSIPeriod:   14,
		ROCShort:    14,
		ROCLong:     21,
		SlopeLag:    5,
		LowWindow:   250,
		SwingWindow: 20,
	}
}

// Engine turns an ascending bar series into indicator records
// ⭐ SSOT: 기술적 지표 계산은 여기서만
type Engine struct {
	cfg    Config
	logger *logger.Logger
}

// NewEngine creates a new indicator engine
func NewEngine(cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.WithField("module", "s3_indicator"),
	}
}

// Compute returns the record for the last bar of the series
func (e *Engine) Compute(code string, bars []contracts.Bar) (contracts.IndicatorRecord, error) {
	s, err := e.prepare(bars)
	if err != nil {
		return contracts.IndicatorRecord{}, fmt.Errorf("compute %s: %w", code, err)
	}
	return s.recordAt(code, len(bars)-1), nil
}

// ComputeAt returns the record for the given date using only bars up to that date.
// ok is false when no bar exists on that date.
func (e *Engine) ComputeAt(code string, bars []contracts.Bar, date time.Time) (contracts.IndicatorRecord, bool, error) {
	records, err := e.ComputeRange(code, bars, date, date)
	if err != nil || len(records) == 0 {
		return contracts.IndicatorRecord{}, false, err
	}
	return records[0], true, nil
}

// ComputeRange returns one record per bar dated within [from, to].
// Each record equals Compute over the series truncated at that bar.
func (e *Engine) ComputeRange(code string, bars []contracts.Bar, from, to time.Time) ([]contracts.IndicatorRecord, error) {
	s, err := e.prepare(bars)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", code, err)
	}

	from, to = dateOnly(from), dateOnly(to)
	records := make([]contracts.IndicatorRecord, 0)
	for i, bar := range bars {
		d := dateOnly(bar.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		records = append(records, s.recordAt(code, i))
	}

	e.logger.WithFields(map[string]interface{}{
		"code":    code,
		"bars":    len(bars),
		"records": len(records),
	}).Debug("Computed indicator range")

	return records, nil
}

// series holds the full-length indicator columns of one instrument
type series struct {
	cfg      Config
	bars     []contracts.Bar
	closes   []float64
	lows     []float64
	volumes  []float64
	values   []float64
	sma20    []float64
	sma50    []float64
	sma200   []float64
	slope200 []float64
	rsi      []float64
	rocShort []float64
	rocLong  []float64
}

func (e *Engine) prepare(bars []contracts.Bar) (*series, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	for i := 1; i < len(bars); i++ {
		if !dateOnly(bars[i].Date).After(dateOnly(bars[i-1].Date)) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnordered,
				bars[i].Date.Format("2006-01-02"), bars[i-1].Date.Format("2006-01-02"))
		}
	}

	s := &series{
		cfg:     e.cfg,
		bars:    bars,
		closes:  make([]float64, len(bars)),
		lows:    make([]float64, len(bars)),
		volumes: make([]float64, len(bars)),
		values:  make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.closes[i] = b.Close.InexactFloat64()
		s.lows[i] = b.Low.InexactFloat64()
		s.volumes[i] = float64(b.Volume)
		s.values[i] = b.Value.InexactFloat64()
	}

	s.sma20 = SMA(s.closes, 20)
	s.sma50 = SMA(s.closes, 50)
	s.sma200 = SMA(s.closes, 200)
	s.slope200 = Diff(s.sma200, e.cfg.SlopeLag)
	s.rsi = RSI(s.closes, e.cfg.RSIPeriod)
	s.rocShort = ROC(s.closes, e.cfg.ROCShort)
	s.rocLong = ROC(s.closes, e.cfg.ROCLong)

	return s, nil
}

func (s *series) recordAt(code string, i int) contracts.IndicatorRecord {
	lowAnchor := LowestIndex(s.lows, s.cfg.LowWindow, i)
	swingAnchor := LowestIndex(s.lows, s.cfg.SwingWindow, i)

	return contracts.IndicatorRecord{
		Code:          code,
		TradeDate:     dateOnly(s.bars[i].Date),
		Close:         s.closes[i],
		Volume:        s.bars[i].Volume,
		ValueTraded:   s.values[i],
		SMA20:         finite(s.sma20[i]),
		SMA50:         finite(s.sma50[i]),
		SMA200:        finite(s.sma200[i]),
		Slope200:      finite(s.slope200[i]),
		RSI14:         finite(s.rsi[i]),
		ROC14:         finite(s.rocShort[i]),
		ROC21:         finite(s.rocLong[i]),
		AVWAP52wLow:   finite(AVWAP(s.closes, s.volumes, lowAnchor, i)),
		AVWAPSwingLow: finite(AVWAP(s.closes, s.volumes, swingAnchor, i)),
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
