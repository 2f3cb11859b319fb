package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/backend/internal/api"
	"github.com/wonny/sectorpulse/backend/pkg/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `읽기 전용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                          - Health check
  GET  /api/sectors                     - 섹터 지표/점수
  GET  /api/scores?date=&limit=         - 종목 점수 순위
  GET  /api/stocks/{code}/indicators    - 종목 기술적 지표 (from, to)
  GET  /metrics                         - Prometheus metrics

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	var rec *metrics.Recorder
	if a.cfg.MetricsEnabled {
		rec = a.metrics
	}

	router := api.NewRouter(a.repo, rec, a.log)
	server := api.New(a.cfg, a.log, router)

	PrintHeader("SectorPulse API Server",
		[2]string{"Addr", "http://localhost:" + a.cfg.Port},
		[2]string{"Env", a.cfg.Env},
	)
	fmt.Println("Press Ctrl+C to stop")

	ctx, cancel := signalContext()
	defer cancel()

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	PrintSuccess("Server stopped")
	return nil
}
