package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// IndicatorSource reads the indicator records of one trade date
type IndicatorSource interface {
	IndicatorsOn(ctx context.Context, date time.Time) ([]contracts.IndicatorRecord, error)
}

// IndicatorRow is the parquet layout of an indicator record.
// Indicator columns are optional; null means not enough history.
type IndicatorRow struct {
	Code          string   `parquet:"code"`
	TradeDate     string   `parquet:"trade_date"`
	Close         float64  `parquet:"close"`
	Volume        int64    `parquet:"volume"`
	ValueTraded   float64  `parquet:"value_traded"`
	SMA20         *float64 `parquet:"sma20,optional"`
	SMA50         *float64 `parquet:"sma50,optional"`
	SMA200        *float64 `parquet:"sma200,optional"`
	Slope200      *float64 `parquet:"slope200,optional"`
	RSI14         *float64 `parquet:"rsi14,optional"`
	ROC14         *float64 `parquet:"roc14,optional"`
	ROC21         *float64 `parquet:"roc21,optional"`
	AVWAP52wLow   *float64 `parquet:"avwap_52w_low,optional"`
	AVWAPSwingLow *float64 `parquet:"avwap_swing_low,optional"`
}

// Exporter writes indicator snapshots to parquet files
// ⭐ SSOT: 지표 파케이 내보내기는 여기서만
type Exporter struct {
	source IndicatorSource
	logger *logger.Logger
}

// NewExporter creates a new exporter
func NewExporter(source IndicatorSource, log *logger.Logger) *Exporter {
	return &Exporter{
		source: source,
		logger: log.WithField("module", "export"),
	}
}

// ExportIndicators writes every indicator record of date to path and returns the row count.
// A date without records is an error so an empty file is never produced.
func (e *Exporter) ExportIndicators(ctx context.Context, date time.Time, path string) (int, error) {
	records, err := e.source.IndicatorsOn(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("read indicators: %w", err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("no indicator records on %s", date.Format("2006-01-02"))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}

	rows := ToRows(records)
	if err := parquet.WriteFile(path, rows); err != nil {
		return 0, fmt.Errorf("write parquet %s: %w", path, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"trade_date": date.Format("2006-01-02"),
		"rows":       len(rows),
		"path":       path,
	}).Info("Exported indicators")
	return len(rows), nil
}

// ToRows converts indicator records into parquet rows
func ToRows(records []contracts.IndicatorRecord) []IndicatorRow {
	rows := make([]IndicatorRow, len(records))
	for i, rec := range records {
		rows[i] = IndicatorRow{
			Code:          rec.Code,
			TradeDate:     rec.TradeDate.Format("2006-01-02"),
			Close:         rec.Close,
			Volume:        rec.Volume,
			ValueTraded:   rec.ValueTraded,
			SMA20:         rec.SMA20,
			SMA50:         rec.SMA50,
			SMA200:        rec.SMA200,
			Slope200:      rec.Slope200,
			RSI14:         rec.RSI14,
			ROC14:         rec.ROC14,
			ROC21:         rec.ROC21,
			AVWAP52wLow:   rec.AVWAP52wLow,
			AVWAPSwingLow: rec.AVWAPSwingLow,
		}
	}
	return rows
}
