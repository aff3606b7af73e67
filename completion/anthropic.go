package completion

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"toolhub/contextwindow"
)

// AnthropicService calls the Anthropic Messages API.
type AnthropicService struct {
	client anthropic.Client
	model  string
}

func NewAnthropicService(apiKey, model string, httpClient *http.Client) *AnthropicService {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicService{client: anthropic.NewClient(opts...), model: model}
}

func (s *AnthropicService) Chat(ctx context.Context, req Request) (Reply, error) {
	model := req.Prompt.Model
	if model == "" {
		model = s.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	system, messages := anthropicMessages(req)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Prompt.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Prompt.Temperature)
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Reply{}, newError(anthropicErrorKind(apiErr.StatusCode, apiErr.RawJSON()), err)
		}
		return Reply{}, err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return Reply{Content: b.String(), Model: string(msg.Model)}, nil
}

// anthropicErrorKind classifies an API error from its status and raw body. An
// oversized prompt comes back as a 400 invalid_request_error.
func anthropicErrorKind(status int, body string) Kind {
	if status == http.StatusBadRequest && inputLimitMessage(body) {
		return KindInputTooLong
	}
	return statusKind(status)
}

// anthropicMessages folds the summary entry into the system prompt; the Messages
// API only accepts user and assistant turns.
func anthropicMessages(req Request) (string, []anthropic.MessageParam) {
	system := req.Prompt.SystemPrompt
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, t := range req.History {
		switch t.Role {
		case contextwindow.RoleSummary:
			if system != "" {
				system += "\n\n"
			}
			system += t.Text
		case contextwindow.RoleAssistant:
			// the conversation has to open with a user turn
			if len(messages) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text)))
	return system, messages
}
