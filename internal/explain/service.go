// Package explain runs a submission through redaction, prompt building, the
// completion call, parsing and the audit log.
package explain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/raaihank/codesense/internal/metrics"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/prompt"
	"github.com/raaihank/codesense/internal/render"
	"github.com/raaihank/codesense/internal/websocket"
	"go.uber.org/zap"
)

// Service is safe for concurrent use when its collaborators are.
type Service struct {
	completionCfg config.CompletionConfig
	promptCfg     config.PromptConfig

	redactor  Redactor
	completer completion.Completer
	store     audit.Store
	cache     ResponseCache
	events    Broadcaster
	logger    *logger.Logger
}

// New wires a Service. cfg supplies model names, generation parameters and
// the prompt format.
func New(cfg *config.Config, redactor Redactor, completer completion.Completer, store audit.Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		completionCfg: cfg.Completion,
		promptCfg:     cfg.Prompt,
		redactor:      redactor,
		completer:     completer,
		store:         store,
		logger:        log.WithComponent("explain"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models returns the selectable model choices and their identifiers.
func (s *Service) Models() map[string]string {
	return map[string]string{
		"fast":     s.completionCfg.Models.Fast,
		"accurate": s.completionCfg.Models.Accurate,
	}
}

// DefaultLevel is the level used when a request leaves it empty.
func (s *Service) DefaultLevel() string {
	return s.promptCfg.DefaultLevel
}

// Preview returns the masked text without calling the model or writing a row.
func (s *Service) Preview(text string) privacy.ProcessResult {
	return s.redactor.ProcessText(text)
}

// PreviewRequest masks both fields of a submission the way Explain would.
func (s *Service) PreviewRequest(errorText, codeText string) Redaction {
	return *s.redact(errorText, codeText)
}

// Explain handles one submission. A remote failure is returned as a
// *completion.Failure together with an Outcome whose Mode is Error.
func (s *Service) Explain(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	log := s.logger
	if req.RequestID != "" {
		log = log.WithRequestID(req.RequestID)
	}

	if strings.TrimSpace(req.ErrorText) == "" && strings.TrimSpace(req.CodeText) == "" {
		return nil, ErrEmptyInput
	}

	levelName := req.Level
	if levelName == "" {
		levelName = s.promptCfg.DefaultLevel
	}
	level, err := prompt.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Level: level,
		Model: s.completionCfg.ModelID(req.Model),
	}

	errorText, codeText := req.ErrorText, req.CodeText
	if req.Privacy {
		redaction := s.redact(req.ErrorText, req.CodeText)
		outcome.Redaction = redaction
		outcome.PIIDetected = redaction.Detected()
		errorText, codeText = redaction.ErrorText, redaction.CodeText

		for _, f := range redaction.Findings {
			metrics.RedactionFindings.WithLabelValues(f.EntityType).Add(float64(f.Count))
		}
		if redaction.Detected() {
			s.publishDetection(req.RequestID, "explain", redaction.Findings)
		}
	}

	format := prompt.Format(s.promptCfg.Format)
	text, err := prompt.Build(errorText, level, codeText, format)
	if err != nil {
		return nil, err
	}

	inputLength := utf8.RuneCountInString(req.ErrorText) + utf8.RuneCountInString(req.CodeText)
	s.appendRow(ctx, log, audit.NewRow(inputLength, outcome.PIIDetected, audit.ModePending, ""))

	raw, cached, err := s.complete(ctx, log, outcome.Model, text)
	if err != nil {
		var failure *completion.Failure
		if !errors.As(err, &failure) {
			failure = &completion.Failure{Kind: completion.KindNetwork, Err: err}
		}

		outcome.Mode = audit.ModeError
		outcome.Error = failure.Error()
		outcome.Duration = time.Since(start)
		s.appendRow(ctx, log, audit.NewRow(inputLength, outcome.PIIDetected, audit.ModeError, failure.Error()))
		s.finish(req.RequestID, outcome, inputLength, "")
		return outcome, failure
	}

	result := render.Parse(raw)
	outcome.Result = &result
	outcome.Cached = cached
	switch {
	case result.IsStructured():
		outcome.Mode = audit.ModeSuccess
	case format == prompt.FormatSections:
		outcome.Mode = audit.ModeSuccess
	default:
		outcome.Mode = audit.ModePartialSuccess
	}
	outcome.Duration = time.Since(start)

	s.appendRow(ctx, log, audit.NewRow(inputLength, outcome.PIIDetected, outcome.Mode, raw))
	s.finish(req.RequestID, outcome, inputLength, raw)

	log.Info("Explanation completed",
		zap.String("mode", string(outcome.Mode)),
		zap.String("model", outcome.Model),
		zap.String("level", string(level)),
		zap.Bool("pii_detected", outcome.PIIDetected),
		zap.Bool("cached", cached),
		zap.Duration("duration", outcome.Duration))

	return outcome, nil
}

func (s *Service) redact(errorText, codeText string) *Redaction {
	errResult := s.redactor.ProcessText(errorText)
	codeResult := s.redactor.ProcessText(codeText)

	return &Redaction{
		ErrorText: errResult.MaskedText,
		CodeText:  codeResult.MaskedText,
		Findings:  mergeFindings(errResult.Findings, codeResult.Findings),
	}
}

// complete consults the cache before calling the model.
func (s *Service) complete(ctx context.Context, log *logger.Logger, model, text string) (string, bool, error) {
	if s.cache != nil {
		if answer, ok := s.cache.Get(ctx, model, text); ok {
			return answer, true, nil
		}
	}

	start := time.Now()
	raw, err := s.completer.Complete(ctx, completion.Request{
		Model:       model,
		Prompt:      text,
		Temperature: s.completionCfg.Temperature,
		MaxTokens:   s.completionCfg.MaxTokens,
	})
	metrics.CompletionLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())

	if err != nil {
		var failure *completion.Failure
		kind := completion.KindNetwork
		if errors.As(err, &failure) {
			kind = failure.Kind
		}
		metrics.CompletionFailures.WithLabelValues(string(kind)).Inc()
		return "", false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, model, text, raw); err != nil {
			log.Warn("Failed to cache response", zap.Error(err))
		}
	}
	return raw, false, nil
}

// appendRow logs write failures; the explanation is still returned.
func (s *Service) appendRow(ctx context.Context, log *logger.Logger, row audit.Row) {
	if s.store == nil {
		return
	}
	if err := s.store.Append(ctx, row); err != nil {
		log.Error("Failed to append audit row",
			zap.String("mode", string(row.Mode)),
			zap.Error(err))
	}
}

func (s *Service) finish(requestID string, outcome *Outcome, inputLength int, raw string) {
	metrics.ExplanationsTotal.WithLabelValues(string(outcome.Mode)).Inc()

	if s.events == nil {
		return
	}
	preview := raw
	if outcome.Mode == audit.ModeError {
		preview = outcome.Error
	}
	s.events.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeExplanation,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.ExplanationEvent{
			Level:       string(outcome.Level),
			Model:       outcome.Model,
			Mode:        string(outcome.Mode),
			PIIDetected: outcome.PIIDetected,
			InputLength: inputLength,
			Preview:     audit.Preview(preview),
			Cached:      outcome.Cached,
			DurationMS:  float64(outcome.Duration.Microseconds()) / 1000,
		},
	})
}

// PublishDetection announces findings from a standalone redaction preview.
func (s *Service) PublishDetection(requestID string, findings []privacy.Finding) {
	if len(findings) > 0 {
		s.publishDetection(requestID, "redact", findings)
	}
}

func (s *Service) publishDetection(requestID, source string, findings []privacy.Finding) {
	if s.events == nil {
		return
	}
	total := 0
	for _, f := range findings {
		total += f.Count
	}
	s.events.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePIIDetection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.PIIDetectionEvent{
			Source:        source,
			Findings:      findings,
			TotalFindings: total,
		},
	})
}

// mergeFindings sums counts per rule, keeping first-seen order.
func mergeFindings(a, b []privacy.Finding) []privacy.Finding {
	merged := make([]privacy.Finding, 0, len(a)+len(b))
	index := make(map[string]int)
	for _, f := range append(append([]privacy.Finding{}, a...), b...) {
		if i, ok := index[f.EntityType]; ok {
			merged[i].Count += f.Count
			continue
		}
		index[f.EntityType] = len(merged)
		merged = append(merged, f)
	}
	return merged
}
