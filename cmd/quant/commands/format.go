package commands

import (
	"fmt"
	"strconv"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const maxPrintedFailures = 20

// PrintHeader prints a formatted command header
func PrintHeader(title string, pairs ...[2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, kv := range pairs {
		PrintKeyValue(kv[0], kv[1], 10)
	}
	PrintSeparator()
}

// PrintStageReport prints outcome counts and the first failures of a stage
func PrintStageReport(report contracts.StageReport) {
	icon := "✅"
	if report.Count(contracts.OutcomeFailed) > 0 {
		icon = "⚠️ "
	}
	if report.Halted != "" {
		icon = "⏸️ "
	}

	fmt.Printf("%s %-20s ok=%-6d skipped=%-6d failed=%-6d %.2fs\n",
		icon,
		report.Stage.Description(),
		report.Count(contracts.OutcomeOK),
		report.Count(contracts.OutcomeSkipped),
		report.Count(contracts.OutcomeFailed),
		report.Duration.Seconds(),
	)
	if report.Halted != "" {
		fmt.Printf("   halted: %s\n", report.Halted)
	}

	failures := report.Failures()
	for i, f := range failures {
		if i == maxPrintedFailures {
			fmt.Printf("   ... %d more\n", len(failures)-maxPrintedFailures)
			break
		}
		fmt.Printf("   • %s: %s\n", f.Unit, f.Reason)
	}
}

// PrintRunSummary prints every stage report followed by a total line
func PrintRunSummary(summary *contracts.RunSummary) {
	for _, report := range summary.Reports {
		PrintStageReport(report)
	}
	PrintSeparator()
	if failed := summary.TotalFailed(); failed > 0 {
		PrintWarning(strconv.Itoa(failed) + " units failed")
		return
	}
	PrintSuccess("Batch completed for " + summary.Date.Format(dateLayout))
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}
