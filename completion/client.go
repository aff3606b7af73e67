// Package completion wraps calls to a remote text-generation backend with a
// per-attempt timeout, bounded retry and a typed failure taxonomy.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"toolhub/contextwindow"
	"toolhub/internal/logger"
)

const (
	DefaultTimeout    = 25 * time.Second
	DefaultMaxRetries = 2
)

// Prompt is the tool's prompt configuration.
type Prompt struct {
	SystemPrompt string   `json:"system_prompt" bson:"system_prompt"`
	Model        string   `json:"model,omitempty" bson:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" bson:"temperature,omitempty"`
}

// Request is what a Service receives for a single attempt.
type Request struct {
	ToolID    string
	Prompt    Prompt
	History   []contextwindow.Turn
	Text      string
	MaxTokens int
}

type Reply struct {
	Content  string
	Model    string
	Attempts int
	Latency  time.Duration
}

// Service is a completion backend. Implementations may return a *Error when they
// know the failure kind; anything else is classified by the Client.
type Service interface {
	Chat(ctx context.Context, req Request) (Reply, error)
}

type Options struct {
	ToolID  string
	Prompt  Prompt
	History []contextwindow.Turn
	// MaxRetries is the total number of attempts. Zero uses the client default.
	MaxRetries int
	Timeout    time.Duration
}

type Config struct {
	MaxRetries    int
	Timeout       time.Duration
	MaxInputChars int
	MaxTokens     int
	Model         string
}

type Client struct {
	svc Service
	cfg Config
}

func NewClient(svc Service, cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{svc: svc, cfg: cfg}
}

// Complete runs text against the backend. Every returned error is a *Error.
func (c *Client) Complete(ctx context.Context, text string, opts Options) (Reply, error) {
	if c.cfg.MaxInputChars > 0 && utf8.RuneCountInString(text) > c.cfg.MaxInputChars {
		return Reply{}, newError(KindInputTooLong, fmt.Errorf("input has %d characters, limit is %d", utf8.RuneCountInString(text), c.cfg.MaxInputChars))
	}

	attempts := opts.MaxRetries
	if attempts <= 0 {
		attempts = c.cfg.MaxRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	prompt := opts.Prompt
	if prompt.Model == "" {
		prompt.Model = c.cfg.Model
	}
	req := Request{
		ToolID:    opts.ToolID,
		Prompt:    prompt,
		History:   opts.History,
		Text:      text,
		MaxTokens: c.cfg.MaxTokens,
	}

	start := time.Now()
	var lastErr *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		reply, err := c.attempt(ctx, req, timeout)
		if err == nil {
			reply.Attempts = attempt
			reply.Latency = time.Since(start)
			return reply, nil
		}
		if ctx.Err() != nil {
			// The caller went away; the deadline of the attempt is not ours to report.
			return Reply{}, newError(KindUnknown, ctx.Err())
		}

		lastErr = classify(err)
		fields := logger.Fields{
			"tool_id":  opts.ToolID,
			"attempt":  attempt,
			"attempts": attempts,
			"kind":     string(lastErr.Kind),
			"error":    err.Error(),
		}
		if !lastErr.Retryable() || attempt == attempts {
			logger.WarnWithFields("completion failed", fields)
			break
		}
		logger.InfoWithFields("completion attempt failed, retrying", fields)
	}
	return Reply{}, lastErr
}

func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (Reply, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := c.svc.Chat(actx, req)
	if err != nil {
		if actx.Err() != nil && ctx.Err() == nil && !isKnown(err) {
			return Reply{}, newError(KindTimeout, err)
		}
		return Reply{}, err
	}
	if strings.TrimSpace(reply.Content) == "" {
		return Reply{}, newError(KindUnknown, errors.New("empty completion"))
	}
	return reply, nil
}

func isKnown(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr)
}
