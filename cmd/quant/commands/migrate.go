package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 적용",
	Long: `내장된 schema.sql을 적용합니다. 모든 DDL은 IF NOT EXISTS로 작성되어
여러 번 실행해도 안전합니다.

Example:
  go run ./cmd/quant migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	PrintKeyValue("Ping", health.ResponseTime.String(), 10)
	PrintKeyValue("Conns", fmt.Sprintf("%d/%d", health.Stats.TotalConns, health.Stats.MaxConns), 10)
	PrintSuccess("Schema applied")
	return nil
}
