package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/codesense/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeExplanation is sent when an explanation attempt finishes
	EventTypeExplanation EventType = "explanation"
	// EventTypePIIDetection represents a PII detection event
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// ExplanationEvent summarises a finished explanation attempt. It carries the
// same fields as the audit row plus routing details, never the raw input.
type ExplanationEvent struct {
	Level       string  `json:"level"`
	Model       string  `json:"model"`
	Mode        string  `json:"mode"`
	PIIDetected bool    `json:"pii_detected"`
	InputLength int     `json:"input_length"`
	Preview     string  `json:"preview"`
	Cached      bool    `json:"cached"`
	DurationMS  float64 `json:"duration_ms"`
}

// PIIDetectionEvent represents a PII detection event
type PIIDetectionEvent struct {
	Source        string            `json:"source"` // "explain" or "redact"
	Findings      []privacy.Finding `json:"findings"`
	TotalFindings int               `json:"total_findings"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows the events a client receives
type EventFilter struct {
	// RuleTypes keeps only detections that include one of these rules.
	RuleTypes []string `json:"rule_types,omitempty"`
	// Modes keeps only explanations that ended in one of these modes.
	Modes []string `json:"modes,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
