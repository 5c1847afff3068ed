// Package completion talks to an OpenAI-compatible chat completion endpoint.
package completion

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ Completer = (*Client)(nil)

// Client is a Completer backed by go-openai.
type Client struct {
	api     *openai.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewClient builds a client for cfg.BaseURL. apiKey must already be resolved.
func NewClient(cfg config.CompletionConfig, apiKey string, log *logger.Logger) *Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		api:     openai.NewClientWithConfig(clientConfig),
		timeout: cfg.Timeout,
		logger:  log.WithComponent("completion"),
	}
	if cfg.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	c.logger.Info("Completion client initialized",
		zap.String("base_url", clientConfig.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Duration("min_interval", cfg.MinInterval))

	return c
}

// Complete sends req as a single user message. Errors are always *Failure.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &Failure{Kind: KindTimeout, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		failure := classify(err)
		c.logger.Warn("Completion failed",
			zap.String("model", req.Model),
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.StatusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", failure
	}

	if len(resp.Choices) == 0 {
		return "", &Failure{Kind: KindEmpty, Err: errors.New("response contained no choices")}
	}

	c.logger.Debug("Completion received",
		zap.String("model", req.Model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

func classify(err error) *Failure {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Failure{Kind: kindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Failure{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: KindTimeout, Err: err}
	}

	return &Failure{Kind: KindNetwork, Err: err}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindRemote
	}
}
