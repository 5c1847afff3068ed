package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/cache"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadErrorText(t *testing.T) {
	dir := t.TempDir()
	errFile := filepath.Join(dir, "trace.txt")
	require.NoError(t, os.WriteFile(errFile, []byte("Traceback from file"), 0o644))

	tests := []struct {
		name  string
		flags inputFlags
		args  []string
		stdin string
		want  string
	}{
		{name: "Flag", flags: inputFlags{errorText: "from flag", errorFile: errFile}, args: []string{"arg"}, want: "from flag"},
		{name: "File", flags: inputFlags{errorFile: errFile}, args: []string{"arg"}, want: "Traceback from file"},
		{name: "Args", args: []string{"KeyError:", "'name'"}, stdin: "ignored", want: "KeyError: 'name'"},
		{name: "Stdin", stdin: "piped trace\n", want: "piped trace\n"},
		{name: "Nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdin io.Reader
			if tt.stdin != "" {
				stdin = strings.NewReader(tt.stdin)
			}

			got, err := readErrorText(tt.flags, tt.args, stdin)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadTextMissingFile(t *testing.T) {
	_, err := readText("", filepath.Join(t.TempDir(), "missing.py"))
	assert.Error(t, err)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, isBlank())
	assert.True(t, isBlank("", "  \n\t"))
	assert.False(t, isBlank("", "x"))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Please enter an error message first.", userMessage(explain.ErrEmptyInput))
	assert.Equal(t, "Cancelled.", userMessage(ui.ErrAborted))

	failure := &completion.Failure{Kind: completion.KindAuth, StatusCode: 401, Err: errors.New("invalid key")}
	assert.Equal(t, "API Error: auth (status 401): invalid key", userMessage(fmt.Errorf("explain: %w", failure)))

	assert.True(t, strings.HasPrefix(userMessage(config.ErrMissingAPIKey), "Configuration error: "))
	assert.Equal(t, "Error: boom", userMessage(errors.New("boom")))
}

func TestDefaults(t *testing.T) {
	cfg = config.GetDefaults()
	t.Cleanup(func() { cfg = nil })

	cfg.Prompt.DefaultLevel = "advanced"
	assert.Equal(t, "Advanced", defaultLevel(""))
	assert.Equal(t, "intermediate", defaultLevel("intermediate"))

	assert.Equal(t, "fast", defaultModel(""))
	assert.Equal(t, "accurate", defaultModel("accurate"))

	assert.Equal(t, []string{"Beginner", "Intermediate", "Advanced"}, levelNames())
	assert.Equal(t, "openai/gpt-oss-20b", modelChoices(cfg.Completion)["accurate"])
}

func TestRunExplainChecksKeyFirst(t *testing.T) {
	const keyName = "CODESENSE_TEST_ABSENT_KEY"
	t.Setenv(keyName, "")

	cfg = config.GetDefaults()
	t.Cleanup(func() { cfg = nil })
	cfg.Completion.APIKeyName = keyName
	cfg.Completion.SecretsFile = ""

	// Blank input would otherwise fail with ErrEmptyInput or open the form.
	err := runExplain(explainCmd, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.NotErrorIs(t, err, explain.ErrEmptyInput)
}

func TestPreviewText(t *testing.T) {
	clean := previewText(explain.Redaction{ErrorText: "IndexError"})
	assert.Contains(t, clean, "IndexError")
	assert.Contains(t, clean, "No sensitive data detected.")
	assert.NotContains(t, clean, "Related code:")

	masked := previewText(explain.Redaction{
		ErrorText: "mail [EMAIL]",
		CodeText:  "key = [API_KEY]",
		Findings: []privacy.Finding{
			{EntityType: "email", Masked: "[EMAIL]", Count: 1},
			{EntityType: "api_key", Masked: "[API_KEY]", Count: 2},
		},
	})
	assert.Contains(t, masked, "Related code:")
	assert.Contains(t, masked, "Masked: email x1, api_key x2")
}

func TestHistoryRecords(t *testing.T) {
	rows := []audit.Row{
		{Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), InputLength: 42, PIIDetected: true, Mode: audit.ModeSuccess, ResponsePreview: "{\"meaning\""},
		{Timestamp: time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC), InputLength: 7, Mode: audit.ModeError, ResponsePreview: "auth"},
	}

	records := historyRecords(rows)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"42", "Yes", "Success"}, records[0][1:4])
	assert.Equal(t, []string{"7", "No", "Error", "auth"}, records[1][1:])
}

func TestHistoryLimit(t *testing.T) {
	assert.Equal(t, 10, historyLimit(0, 10))
	assert.Equal(t, 3, historyLimit(3, 10))
	assert.Equal(t, maxHistoryRows, historyLimit(1<<40, 10))
}

func TestWriteHistoryTable(t *testing.T) {
	var empty bytes.Buffer
	require.NoError(t, writeHistoryTable(&empty, nil))
	assert.Equal(t, "No history yet.\n", empty.String())

	var buf bytes.Buffer
	require.NoError(t, writeHistoryTable(&buf, []audit.Row{
		{Timestamp: time.Now(), InputLength: 3, Mode: audit.ModePartialSuccess, ResponsePreview: "raw answer"},
	}))
	out := buf.String()
	for _, col := range audit.Header {
		assert.Contains(t, out, col)
	}
	assert.Contains(t, out, "Partial Success (Non-JSON)")
	assert.Contains(t, out, "raw answer")
}

func TestCacheCommands(t *testing.T) {
	cfg = config.GetDefaults()
	t.Cleanup(func() { cfg = nil })
	cfg.Cache.Enabled = false

	_, err := connectCache()
	assert.ErrorIs(t, err, errCacheDisabled)
	assert.Nil(t, openCache())

	stats := &cache.CacheStats{Hits: 2, Misses: 1, TotalKeys: 9}

	var text bytes.Buffer
	require.NoError(t, writeCacheStats(&text, "text", stats))
	assert.Equal(t, "Keys in database: 9\n", text.String())

	var js bytes.Buffer
	require.NoError(t, writeCacheStats(&js, "json", stats))
	assert.Contains(t, js.String(), `"total_keys":9`)

	assert.Error(t, writeCacheStats(&bytes.Buffer{}, "yaml", stats))
}
