package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/raaihank/codesense/internal/logger"
	"go.uber.org/zap"
)

// CSVStore keeps the log in a flat CSV file. The file is opened and closed
// within every call; mu serialises callers in this process only.
type CSVStore struct {
	path   string
	logger *logger.Logger
	mu     sync.Mutex
}

// NewCSVStore does not touch the file until the first Append.
func NewCSVStore(path string, log *logger.Logger) *CSVStore {
	return &CSVStore{path: path, logger: log.WithComponent("audit")}
}

// Path returns the log file location.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Append(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit log: %w", err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}
	if err := w.Write(encodeRecord(row)); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}

	s.logger.Debug("Audit row appended", zap.String("mode", string(row.Mode)))
	return nil
}

func (s *CSVStore) Tail(ctx context.Context, n int) ([]Row, error) {
	if n <= 0 {
		return []Row{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	return s.tailRows(file, n)
}

// tailPrealloc caps the ring's initial capacity; the ring grows from there
// only as far as the log actually has rows.
const tailPrealloc = 1024

// tailRows keeps a ring of the last n rows so large logs are not held in
// memory. Malformed records are skipped; any other read error is returned.
func (s *CSVStore) tailRows(r io.Reader, n int) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	if _, err := reader.Read(); err == io.EOF {
		return []Row{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read audit header: %w", err)
	}

	ring := make([]Row, 0, min(n, tailPrealloc))
	next := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to read audit log: %w", err)
			}
			s.logger.Warn("Skipping unreadable audit record", zap.Error(err))
			continue
		}

		row, err := decodeRecord(record)
		if err != nil {
			s.logger.Warn("Skipping invalid audit record", zap.Error(err))
			continue
		}

		if len(ring) < n {
			ring = append(ring, row)
		} else {
			ring[next] = row
		}
		next = (next + 1) % n
	}

	if len(ring) < n {
		return ring, nil
	}
	return append(ring[next:], ring[:next]...), nil
}

func (s *CSVStore) Close() error {
	return nil
}

func encodeRecord(row Row) []string {
	return []string{
		row.Timestamp.UTC().Format(time.RFC3339),
		strconv.Itoa(row.InputLength),
		strconv.FormatBool(row.PIIDetected),
		string(row.Mode),
		row.ResponsePreview,
	}
}

func decodeRecord(record []string) (Row, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return Row{}, fmt.Errorf("invalid timestamp %q: %w", record[0], err)
	}
	length, err := strconv.Atoi(record[1])
	if err != nil {
		return Row{}, fmt.Errorf("invalid input length %q: %w", record[1], err)
	}
	pii, err := strconv.ParseBool(record[2])
	if err != nil {
		return Row{}, fmt.Errorf("invalid pii flag %q: %w", record[2], err)
	}
	mode, err := ParseMode(record[3])
	if err != nil {
		return Row{}, err
	}

	return Row{
		Timestamp:       ts,
		InputLength:     length,
		PIIDetected:     pii,
		Mode:            mode,
		ResponsePreview: record[4],
	}, nil
}
