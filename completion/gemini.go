package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"toolhub/contextwindow"
)

// GeminiService calls Gemini through google.golang.org/genai.
type GeminiService struct {
	client *genai.Client
	model  string
}

func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiService{client: client, model: model}, nil
}

func (s *GeminiService) Chat(ctx context.Context, req Request) (Reply, error) {
	model := req.Prompt.Model
	if model == "" {
		model = s.model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Prompt.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Prompt.SystemPrompt}}}
	}
	if req.Prompt.Temperature != nil {
		t := float32(*req.Prompt.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := s.client.Models.GenerateContent(ctx, model, geminiContents(req.History, req.Text), cfg)
	if err != nil {
		return Reply{}, classifyGemini(err)
	}
	if result == nil {
		return Reply{}, fmt.Errorf("gemini returned no result")
	}
	return Reply{Content: result.Text(), Model: result.ModelVersion}, nil
}

func geminiContents(history []contextwindow.Turn, text string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.RoleUser
		if t.Role == contextwindow.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}
	return append(contents, genai.NewContentFromText(text, genai.RoleUser))
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiAPIError(apiErr.Code, apiErr.Status, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return geminiAPIError(apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message, err)
	}
	return err
}

func geminiAPIError(code int, status, message string, err error) error {
	if (status == "INVALID_ARGUMENT" || code == http.StatusBadRequest) && inputLimitMessage(message) {
		return newError(KindInputTooLong, err)
	}
	switch status {
	case "RESOURCE_EXHAUSTED":
		return newError(KindRateLimitExceeded, err)
	case "DEADLINE_EXCEEDED":
		return newError(KindTimeout, err)
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return newError(KindMissingCredentials, err)
	}
	return newError(statusKind(code), err)
}
