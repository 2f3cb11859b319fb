package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/backend/internal/export"
)

// exportCmd represents the export command group
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "데이터 내보내기",
}

var (
	exportDate string
	exportOut  string
)

var exportIndicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "거래일 기술적 지표를 parquet 파일로 내보내기",
	Long: `거래일의 전 종목 기술적 지표를 parquet 파일로 저장합니다.

Example:
  go run ./cmd/quant export indicators --date 2024-06-28
  go run ./cmd/quant export indicators --date 2024-06-28 --out data/indicators.parquet`,
	RunE: runExportIndicators,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportIndicatorsCmd)

	exportIndicatorsCmd.Flags().StringVar(&exportDate, "date", "", "거래일 (YYYY-MM-DD, 기본: 오늘)")
	exportIndicatorsCmd.Flags().StringVar(&exportOut, "out", "", "출력 파일 (기본: indicators_YYYYMMDD.parquet)")
}

func runExportIndicators(cmd *cobra.Command, args []string) error {
	date, err := parseDate(exportDate)
	if err != nil {
		return err
	}
	out := exportOut
	if out == "" {
		out = filepath.Join(".", fmt.Sprintf("indicators_%s.parquet", date.Format("20060102")))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	n, err := export.NewExporter(a.repo, a.log).ExportIndicators(ctx, date, out)
	if err != nil {
		return fmt.Errorf("export indicators: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%d rows written to %s", n, out))
	return nil
}
