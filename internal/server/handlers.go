package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/prompt"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type explainRequest struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Level string `json:"level"`
	Model string `json:"model"`
	// Privacy defaults to the configured toggle when omitted.
	Privacy *bool `json:"privacy"`
}

type redactRequest struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type errorResponse struct {
	Error   string           `json:"error"`
	Kind    string           `json:"kind,omitempty"`
	Outcome *explain.Outcome `json:"outcome,omitempty"`
}

// handleExplain runs one submission through the explain service
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var body explainRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	privacyOn := s.config.Privacy.Enabled
	if body.Privacy != nil {
		privacyOn = *body.Privacy
	}

	outcome, err := s.service.Explain(r.Context(), explain.Request{
		ErrorText: body.Error,
		CodeText:  body.Code,
		Level:     body.Level,
		Model:     body.Model,
		Privacy:   privacyOn,
		RequestID: requestID,
	})

	var failure *completion.Failure
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, outcome)
	case errors.Is(err, explain.ErrEmptyInput), errors.Is(err, prompt.ErrUnknownLevel):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &failure):
		log.Warn("Explanation failed upstream", zap.String("kind", string(failure.Kind)))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "API Error: " + failure.Error(),
			Kind:    string(failure.Kind),
			Outcome: outcome,
		})
	default:
		log.Error("Explanation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleRedact returns the privacy preview without calling the model
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var body redactRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	redaction := s.service.PreviewRequest(body.Error, body.Code)
	s.service.PublishDetection(getRequestID(r.Context()), redaction.Findings)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"error":    redaction.ErrorText,
		"code":     redaction.CodeText,
		"findings": redaction.Findings,
		"detected": redaction.Detected(),
	})
}

// handleHistory returns the last n audit rows, oldest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := s.config.Audit.TailSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = parsed
	}
	if n > 1000 {
		n = 1000
	}

	rows, err := s.store.Tail(r.Context(), n)
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to read audit log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows, "count": len(rows)})
}

// handleModels lists the model choices and detail levels
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default":       s.config.Completion.DefaultModel,
		"models":        s.service.Models(),
		"levels":        prompt.Levels(),
		"default_level": s.service.DefaultLevel(),
		"privacy":       s.config.Privacy.Enabled,
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":            "codesense",
		"version":         s.version,
		"uptime":          time.Since(s.startedAt).Round(time.Second).String(),
		"privacy_enabled": s.config.Privacy.Enabled,
		"detectors":       s.detector.GetEnabledRules(),
		"prompt_format":   s.config.Prompt.Format,
		"audit_backend":   s.config.Audit.Backend,
		"rate_limit":      s.config.Security.RateLimit.Enabled,
	}
	if s.wsHub != nil {
		info["websocket"] = s.wsHub.GetStats()
	}
	if s.cache != nil {
		// Hit counters are local and still useful when Redis is down.
		stats, err := s.cache.GetStats(r.Context())
		if err != nil {
			s.logger.Warn("Failed to read cache stats", zap.Error(err))
		}
		info["cache"] = stats
	}
	writeJSON(w, http.StatusOK, info)
}

// handleDetectors lists every redaction rule and which ones are enabled
func (s *Server) handleDetectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.detectorState())
}

// handleToggleDetector enables or disables one rule until the next reload
func (s *Server) handleToggleDetector(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var body toggleRequest
	if err := decodeJSON(w, r, &body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}

	var err error
	if *body.Enabled {
		err = s.detector.EnableRule(name)
	} else {
		err = s.detector.DisableRule(name)
	}
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.detectorState())
}

// handleClearCache drops every cached answer
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "response cache is disabled")
		return
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to clear cache", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) detectorState() map[string]interface{} {
	rules := privacy.GetDefaultRules()
	available := make([]string, len(rules))
	for i, rule := range rules {
		available[i] = rule.Name
	}

	enabled := s.detector.GetEnabledRules()
	if enabled == nil {
		enabled = []string{}
	}
	return map[string]interface{}{
		"available": available,
		"enabled":   enabled,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
