package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// DetectFormat picks a format from the file extension, defaulting to CSV.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	case FormatJSON, "jsonl":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ParquetRow is the on-disk shape of a row in parquet exports.
type ParquetRow struct {
	Timestamp       string `parquet:"timestamp"`
	InputLength     int64  `parquet:"input_length"`
	PIIDetected     bool   `parquet:"pii_detected"`
	Mode            string `parquet:"mode"`
	ResponsePreview string `parquet:"response_preview"`
}

// Export writes rows to w. JSON is one object per line.
func Export(rows []Row, format Format, w io.Writer) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, row := range rows {
			if err := cw.Write(encodeRecord(row)); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()

	case FormatJSON:
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("failed to write JSON record: %w", err)
			}
		}
		return nil

	case FormatParquet:
		pw := parquet.NewGenericWriter[ParquetRow](w)
		records := make([]ParquetRow, len(rows))
		for i, row := range rows {
			records[i] = ParquetRow{
				Timestamp:       row.Timestamp.UTC().Format(time.RFC3339),
				InputLength:     int64(row.InputLength),
				PIIDetected:     row.PIIDetected,
				Mode:            string(row.Mode),
				ResponsePreview: row.ResponsePreview,
			}
		}
		if _, err := pw.Write(records); err != nil {
			return fmt.Errorf("failed to write Parquet records: %w", err)
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("failed to finalize Parquet file: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
