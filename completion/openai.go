package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"toolhub/contextwindow"
)

// OpenAIService calls an OpenAI-compatible chat completions endpoint.
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIService{client: openai.NewClientWithConfig(cfg), model: model}
}

func (s *OpenAIService) Chat(ctx context.Context, req Request) (Reply, error) {
	model := req.Prompt.Model
	if model == "" {
		model = s.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  openAIMessages(req),
		MaxTokens: req.MaxTokens,
	}
	if req.Prompt.Temperature != nil {
		chatReq.Temperature = float32(*req.Prompt.Temperature)
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Reply{}, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("openai returned no choices")
	}
	return Reply{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.Prompt.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Prompt.SystemPrompt})
	}
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		switch t.Role {
		case contextwindow.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case contextwindow.RoleSummary:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Text})
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
			return newError(KindInputTooLong, err)
		}
		return newError(statusKind(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(statusKind(reqErr.HTTPStatusCode), err)
	}
	return err
}
