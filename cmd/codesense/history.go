package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/raaihank/codesense/internal/audit"
	"github.com/spf13/cobra"
)

const (
	maxHistoryRows = 1000
	maxExportRows  = 100000
)

var (
	historyCount  int
	historyOutput string

	exportOut    string
	exportFormat string
	exportCount  int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show the most recent audit log rows",
		RunE:  runHistory,
	}

	historyExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export audit log rows as CSV, JSON lines or Parquet",
		RunE:  runHistoryExport,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyCount, "limit", "n", 0, "Number of rows to show (defaults to audit.tail_size)")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "text", "Output format: text or json")

	historyExportCmd.Flags().StringVar(&exportOut, "out", "", "Destination file")
	historyExportCmd.Flags().StringVar(&exportFormat, "format", "", "csv, json or parquet (defaults to the file extension)")
	historyExportCmd.Flags().IntVarP(&exportCount, "limit", "n", maxExportRows, "Export at most this many of the latest rows")
	_ = historyExportCmd.MarkFlagRequired("out")

	historyCmd.AddCommand(historyExportCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	rows, err := readHistory(cmd, historyLimit(historyCount, cfg.Audit.TailSize))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch historyOutput {
	case "json":
		return json.NewEncoder(w).Encode(rows)
	case "", "text":
		return writeHistoryTable(w, rows)
	default:
		return fmt.Errorf("unknown output format: %s", historyOutput)
	}
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format := audit.DetectFormat(exportOut)
	if exportFormat != "" {
		parsed, err := audit.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		format = parsed
	}

	n := exportCount
	if n <= 0 || n > maxExportRows {
		n = maxExportRows
	}
	rows, err := readHistory(cmd, n)
	if err != nil {
		return err
	}

	file, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", exportOut, err)
	}
	if err := audit.Export(rows, format, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s (%s)\n", len(rows), exportOut, format)
	return nil
}

// historyLimit falls back to the configured tail size and caps the count the
// way the HTTP history endpoint does.
func historyLimit(requested, tailSize int) int {
	n := requested
	if n <= 0 {
		n = tailSize
	}
	return min(n, maxHistoryRows)
}

func readHistory(cmd *cobra.Command, n int) ([]audit.Row, error) {
	store, err := audit.New(cfg.Audit, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer store.Close()

	rows, err := store.Tail(cmd.Context(), n)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return rows, nil
}

func writeHistoryTable(w io.Writer, rows []audit.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No history yet.")
		return err
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(audit.Header...).
		Rows(historyRecords(rows)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}

// historyRecords formats rows for display, newest last.
func historyRecords(rows []audit.Row) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		pii := "No"
		if r.PIIDetected {
			pii = "Yes"
		}
		records = append(records, []string{
			r.Timestamp.Local().Format(time.DateTime),
			strconv.Itoa(r.InputLength),
			pii,
			string(r.Mode),
			r.ResponsePreview,
		})
	}
	return records
}
