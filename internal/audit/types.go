package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode is the outcome recorded for an audit row.
type Mode string

const (
	ModePending        Mode = "Pending"
	ModeSuccess        Mode = "Success"
	ModePartialSuccess Mode = "Partial Success (Non-JSON)"
	ModeError          Mode = "Error"

	// ModePrivacy and ModePublic appear in logs written by older releases,
	// which recorded the privacy toggle in the mode column. They are accepted
	// on read and never written.
	ModePrivacy Mode = "Privacy"
	ModePublic  Mode = "Public"
)

var knownModes = []Mode{ModePending, ModeSuccess, ModePartialSuccess, ModeError, ModePrivacy, ModePublic}

// ParseMode accepts any known mode, ignoring case.
func ParseMode(s string) (Mode, error) {
	for _, m := range knownModes {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown audit mode: %q", s)
}

// PreviewLimit is the maximum number of characters kept in ResponsePreview.
const PreviewLimit = 100

// Header is the fixed column schema of the CSV log.
var Header = []string{"Timestamp", "Input Length", "PII Detected", "Mode", "Response Preview"}

// Row is one append-only record describing a request attempt.
type Row struct {
	Timestamp       time.Time `json:"timestamp" db:"created_at"`
	InputLength     int       `json:"input_length" db:"input_length"`
	PIIDetected     bool      `json:"pii_detected" db:"pii_detected"`
	Mode            Mode      `json:"mode" db:"mode"`
	ResponsePreview string    `json:"response_preview" db:"response_preview"`
}

// NewRow stamps a row with the current UTC time and truncates preview.
func NewRow(inputLength int, piiDetected bool, mode Mode, preview string) Row {
	return Row{
		Timestamp:       time.Now().UTC().Truncate(time.Second),
		InputLength:     inputLength,
		PIIDetected:     piiDetected,
		Mode:            mode,
		ResponsePreview: Preview(preview),
	}
}

// Preview returns the first PreviewLimit characters of text.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit])
}

// Store is an append-only audit log.
type Store interface {
	Append(ctx context.Context, row Row) error
	// Tail returns the last n rows in chronological order.
	Tail(ctx context.Context, n int) ([]Row, error)
	Close() error
}
