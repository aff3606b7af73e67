// Package suggestion produces short follow-up prompts after an assistant reply.
package suggestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"toolhub/completion"
	"toolhub/contextwindow"
	"toolhub/internal/logger"
)

const (
	DefaultCount   = 3
	MaxCount       = 4
	DefaultTimeout = 10 * time.Second
	maxRunes       = 80
)

var DefaultFallback = []string{
	"Tell me more",
	"Can you give an example?",
	"What else can you do?",
}

type Request struct {
	ToolID        string
	Prompt        completion.Prompt
	LastAssistant string
	Recent        []contextwindow.Turn
	Count         int
}

// Service generates raw suggestions. Errors are never shown to users.
type Service interface {
	Suggest(ctx context.Context, req Request) ([]string, error)
}

// Engine wraps a Service with a timeout and a static fallback.
type Engine struct {
	svc      Service
	timeout  time.Duration
	fallback []string
}

func NewEngine(svc Service, timeout time.Duration, fallback []string) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if len(fallback) == 0 {
		fallback = DefaultFallback
	}
	return &Engine{svc: svc, timeout: timeout, fallback: fallback}
}

// Generate always returns between one and Count suggestions.
func (e *Engine) Generate(ctx context.Context, req Request) []string {
	count := normalizeCount(req.Count)
	req.Count = count

	if e.svc == nil {
		return capped(e.fallback, count)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.svc.Suggest(ctx, req)
	if err != nil {
		logger.WarnWithFields("suggestions unavailable, using fallback", logger.Fields{
			"tool_id": req.ToolID,
			"error":   err.Error(),
		})
		return capped(e.fallback, count)
	}
	out := Clean(raw, count)
	if len(out) == 0 {
		return capped(e.fallback, count)
	}
	return out
}

// Clean trims, drops empty and duplicate entries and caps the result.
func Clean(raw []string, count int) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, count)
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		s = strings.Trim(s, `"'-* `)
		if s == "" {
			continue
		}
		if r := []rune(s); len(r) > maxRunes {
			s = string(r[:maxRunes])
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == count {
			break
		}
	}
	return out
}

func normalizeCount(n int) int {
	if n <= 0 {
		return DefaultCount
	}
	if n > MaxCount {
		return MaxCount
	}
	return n
}

func capped(list []string, n int) []string {
	if len(list) > n {
		list = list[:n]
	}
	return append([]string(nil), list...)
}

// Completer is the part of completion.Client used for suggestions.
type Completer interface {
	Complete(ctx context.Context, text string, opts completion.Options) (completion.Reply, error)
}

// CompletionService asks the completion backend for a JSON array of replies.
type CompletionService struct {
	client Completer
}

func NewCompletionService(client Completer) *CompletionService {
	return &CompletionService{client: client}
}

func (s *CompletionService) Suggest(ctx context.Context, req Request) ([]string, error) {
	prompt := req.Prompt
	prompt.SystemPrompt = strings.TrimSpace(prompt.SystemPrompt + "\n\n" + instructions(req.Count))

	reply, err := s.client.Complete(ctx, buildPrompt(req), completion.Options{
		ToolID:     req.ToolID,
		Prompt:     prompt,
		History:    req.Recent,
		MaxRetries: 1,
	})
	if err != nil {
		return nil, err
	}
	return ParseList(reply.Content)
}

func instructions(count int) string {
	return fmt.Sprintf("Suggest %d short follow-up messages the user might send next. "+
		"Answer with a JSON array of strings and nothing else.", count)
}

func buildPrompt(req Request) string {
	return "The assistant just replied:\n" + req.LastAssistant
}

// ParseList extracts a string list from a model reply. It accepts a bare JSON
// array, one wrapped in a code fence, or one suggestion per line.
func ParseList(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		var list []string
		if err := json.Unmarshal([]byte(content[start:end+1]), &list); err == nil {
			return list, nil
		}
	}

	var list []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimLeft(line, "0123456789.)-*• ")
		if line != "" {
			list = append(list, line)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no suggestions in reply")
	}
	return list, nil
}
