package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// batchCmd represents the batch command group
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "일일 배치 실행",
	Long: `일일 배치 파이프라인을 실행합니다.

Stages (실행 순서):
  sectors     - 섹터 구성/지수코드 동기화
  market      - 장 운영 확인, 전종목 일봉/시가총액, 섹터 지수
  flows       - 투자자 순매수 수집, 섹터 지표/점수
  indicators  - 기술적 지표 계산
  scores      - 종목 점수 계산
  cleanup     - 보존 기간이 지난 데이터 삭제

Example:
  go run ./cmd/quant batch run
  go run ./cmd/quant batch run --date 2024-06-28
  go run ./cmd/quant batch stage indicators
  go run ./cmd/quant batch backfill bars --days 400`,
}

var (
	batchDate        string
	backfillBarDays  int
	backfillFlowDays int
	backfillFrom     string
	backfillTo       string
)

var (
	batchRunCmd = &cobra.Command{
		Use:   "run",
		Short: "전체 파이프라인 실행",
		RunE:  runBatch,
	}

	batchStageCmd = &cobra.Command{
		Use:       "stage <sectors|market|flows|indicators|scores|cleanup>",
		Short:     "단일 stage 실행",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageNames(),
		RunE:      runBatchStage,
	}

	batchBackfillCmd = &cobra.Command{
		Use:   "backfill",
		Short: "과거 데이터 백필",
	}

	backfillBarsCmd = &cobra.Command{
		Use:   "bars",
		Short: "종목별 일봉 백필 (마지막 저장일 이후)",
		RunE:  runBackfillBars,
	}

	backfillIndicatorsCmd = &cobra.Command{
		Use:   "indicators",
		Short: "기간 내 기술적 지표 재계산",
		RunE:  runBackfillIndicators,
	}

	backfillFlowsCmd = &cobra.Command{
		Use:   "flows",
		Short: "core/extended 종목 수급 백필 (Naver)",
		RunE:  runBackfillFlows,
	}
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchRunCmd)
	batchCmd.AddCommand(batchStageCmd)
	batchCmd.AddCommand(batchBackfillCmd)
	batchBackfillCmd.AddCommand(backfillBarsCmd)
	batchBackfillCmd.AddCommand(backfillIndicatorsCmd)
	batchBackfillCmd.AddCommand(backfillFlowsCmd)

	// Flags
	batchCmd.PersistentFlags().StringVar(&batchDate, "date", "", "거래일 (YYYY-MM-DD, 기본: 오늘)")
	backfillBarsCmd.Flags().IntVar(&backfillBarDays, "days", 365, "저장된 데이터가 없을 때 조회할 일수")
	backfillFlowsCmd.Flags().IntVar(&backfillFlowDays, "days", 30, "조회할 일수")
	backfillIndicatorsCmd.Flags().StringVar(&backfillFrom, "from", "", "시작일 (YYYY-MM-DD)")
	backfillIndicatorsCmd.Flags().StringVar(&backfillTo, "to", "", "종료일 (YYYY-MM-DD, 기본: 오늘)")
	backfillIndicatorsCmd.MarkFlagRequired("from")
}

func stageNames() []string {
	names := make([]string, 0, len(contracts.AllStages()))
	for _, s := range contracts.AllStages() {
		names = append(names, string(s))
	}
	return names
}

// signalContext is canceled on Ctrl+C so a running stage stops between units
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runBatch(cmd *cobra.Command, args []string) error {
	date, err := parseDate(batchDate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Daily Batch", [2]string{"Date", date.Format(dateLayout)})
	summary := runner.Run(ctx, date)
	PrintRunSummary(summary)
	return nil
}

func runBatchStage(cmd *cobra.Command, args []string) error {
	stage, err := contracts.ParseStage(args[0])
	if err != nil {
		return err
	}
	date, err := parseDate(batchDate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Batch Stage",
		[2]string{"Stage", string(stage)},
		[2]string{"Date", date.Format(dateLayout)},
	)
	PrintStageReport(runner.RunStage(ctx, stage, date))
	return nil
}

func runBackfillBars(cmd *cobra.Command, args []string) error {
	to, err := parseDate(batchDate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Bar Backfill",
		[2]string{"To", to.Format(dateLayout)},
		[2]string{"Days", strconv.Itoa(backfillBarDays)},
	)
	PrintStageReport(runner.BackfillBars(ctx, to, backfillBarDays))
	return nil
}

func runBackfillIndicators(cmd *cobra.Command, args []string) error {
	from, err := parseDate(backfillFrom)
	if err != nil {
		return err
	}
	to, err := parseDate(backfillTo)
	if err != nil {
		return err
	}
	if from.After(to) {
		return fmt.Errorf("--from %s is after --to %s", backfillFrom, to.Format(dateLayout))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Indicator Backfill",
		[2]string{"From", from.Format(dateLayout)},
		[2]string{"To", to.Format(dateLayout)},
	)
	PrintStageReport(runner.BackfillIndicators(ctx, from, to))
	return nil
}

func runBackfillFlows(cmd *cobra.Command, args []string) error {
	to, err := parseDate(batchDate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	PrintHeader("Flow Backfill",
		[2]string{"To", to.Format(dateLayout)},
		[2]string{"Days", strconv.Itoa(backfillFlowDays)},
	)
	PrintStageReport(runner.BackfillFlows(ctx, to, backfillFlowDays))
	return nil
}
