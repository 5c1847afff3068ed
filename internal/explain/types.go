package explain

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/prompt"
	"github.com/raaihank/codesense/internal/render"
	"github.com/raaihank/codesense/internal/websocket"
)

// ErrEmptyInput is returned when both the error and the code are blank.
var ErrEmptyInput = errors.New("please enter an error message first")

// Request is one user submission.
type Request struct {
	ErrorText string `json:"error"`
	CodeText  string `json:"code,omitempty"`
	// Level is Beginner, Intermediate or Advanced; empty means the configured default.
	Level string `json:"level,omitempty"`
	// Model is "fast", "accurate" or a literal model id; empty means the configured default.
	Model string `json:"model,omitempty"`
	// Privacy enables redaction before anything leaves the process.
	Privacy   bool   `json:"privacy"`
	RequestID string `json:"-"`
}

// Redaction is what would be sent after privacy masking.
type Redaction struct {
	ErrorText string            `json:"error"`
	CodeText  string            `json:"code,omitempty"`
	Findings  []privacy.Finding `json:"findings"`
}

// Detected reports whether any rule matched.
func (r Redaction) Detected() bool {
	return len(r.Findings) > 0
}

// Outcome is the result of one Explain call.
type Outcome struct {
	Mode        audit.Mode     `json:"mode"`
	Level       prompt.Level   `json:"level"`
	Model       string         `json:"model"`
	PIIDetected bool           `json:"pii_detected"`
	Redaction   *Redaction     `json:"redaction,omitempty"`
	Result      *render.Result `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Cached      bool           `json:"cached"`
	Duration    time.Duration  `json:"duration_ns"`
}

// Redactor masks PII in free text.
type Redactor interface {
	ProcessText(text string) privacy.ProcessResult
}

// ResponseCache stores answers by model and prompt.
type ResponseCache interface {
	Get(ctx context.Context, model, prompt string) (string, bool)
	Set(ctx context.Context, model, prompt, answer string) error
}

// Broadcaster receives live events.
type Broadcaster interface {
	BroadcastEvent(event websocket.Event)
}

// Option customises a Service.
type Option func(*Service)

// WithCache enables the response cache.
func WithCache(cache ResponseCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithBroadcaster publishes explanation and detection events.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) {
		s.events = b
	}
}
