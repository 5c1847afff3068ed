package completion

import (
	"context"
	"fmt"
)

// Kind classifies why a completion call failed.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindRemote    Kind = "remote"
	KindEmpty     Kind = "empty"
)

// Request is a single-turn completion request.
type Request struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Completer sends a prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Failure is returned by Complete for every unsuccessful call.
type Failure struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
