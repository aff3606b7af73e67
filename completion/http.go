package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"toolhub/contextwindow"
	"toolhub/internal/httpclient"
)

// HTTPService talks to a JSON completion endpoint:
// POST {base}/api/v1/chat {message, tool_id, system_prompt, model, history} -> {content}.
type HTTPService struct {
	base   *httpclient.BaseClient
	apiKey string
}

type httpChatRequest struct {
	Message      string               `json:"message"`
	ToolID       string               `json:"tool_id,omitempty"`
	SystemPrompt string               `json:"system_prompt,omitempty"`
	Model        string               `json:"model,omitempty"`
	Temperature  *float64             `json:"temperature,omitempty"`
	MaxTokens    int                  `json:"max_tokens,omitempty"`
	History      []contextwindow.Turn `json:"history"`
}

type httpChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// HTTPError is a non-200 answer from the completion endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("completion request failed: status=%d body=%s", e.StatusCode, e.Body)
}

func NewHTTPService(baseURL, apiKey string, client *http.Client) *HTTPService {
	return &HTTPService{
		base:   httpclient.NewBaseClientWithClient(client, baseURL),
		apiKey: apiKey,
	}
}

func (s *HTTPService) Chat(ctx context.Context, req Request) (Reply, error) {
	payload := httpChatRequest{
		Message:      req.Text,
		ToolID:       req.ToolID,
		SystemPrompt: req.Prompt.SystemPrompt,
		Model:        req.Prompt.Model,
		Temperature:  req.Prompt.Temperature,
		MaxTokens:    req.MaxTokens,
		History:      req.History,
	}
	if payload.History == nil {
		payload.History = []contextwindow.Turn{}
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}

	httpReq, err := s.base.NewRequest(ctx, http.MethodPost, "/api/v1/chat", nil, bytes.NewReader(buf))
	if err != nil {
		return Reply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.base.Do(httpReq)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	const maxBodySize = 5 * 1024 * 1024
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		return Reply{}, fmt.Errorf("completion response read failed: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		return Reply{}, newError(statusKind(resp.StatusCode), httpErr)
	}

	var out httpChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Reply{}, fmt.Errorf("decode completion response: %w", err)
	}
	return Reply{Content: out.Content, Model: out.Model}, nil
}
