package completion

import (
	"context"
	"fmt"

	"toolhub/config"
	"toolhub/internal/httpclient"
	"toolhub/internal/logger"
)

// missingCredentials fails every call without touching the network.
type missingCredentials struct {
	envKey string
}

func (m missingCredentials) Chat(context.Context, Request) (Reply, error) {
	return Reply{}, newError(KindMissingCredentials, fmt.Errorf("%s environment variable is not set", m.envKey))
}

// NewServiceFromConfig builds the backend for cfg.Provider. A missing API key is
// logged for the operator and yields a service that fails with
// KindMissingCredentials, so the chat surface stays up and reports a generic error.
func NewServiceFromConfig(ctx context.Context, cfg config.LLMConfig) (Service, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" && cfg.Provider != config.ProviderHTTP {
		envKey := config.APIKeyEnv(cfg.Provider)
		logger.ErrorWithFields("completion credentials missing", logger.Fields{
			"provider": cfg.Provider,
			"env":      envKey,
		})
		return missingCredentials{envKey: envKey}, nil
	}

	httpClient := httpclient.New(httpclient.Config{})
	switch cfg.Provider {
	case config.ProviderGoogle:
		svc, err := NewGeminiService(ctx, apiKey, cfg.ModelName)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return svc, nil
	case config.ProviderOpenAI:
		return NewOpenAIService(apiKey, cfg.BaseURL, cfg.ModelName, httpClient), nil
	case config.ProviderAnthropic:
		return NewAnthropicService(apiKey, cfg.ModelName, httpClient), nil
	case config.ProviderHTTP:
		return NewHTTPService(cfg.BaseURL, apiKey, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// NewClientFromConfig wires the configured backend into a Client.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig) (*Client, Service, error) {
	svc, err := NewServiceFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(svc, Config{
		MaxRetries:    cfg.MaxRetries,
		Timeout:       cfg.Timeout,
		MaxInputChars: cfg.MaxInputChars,
		MaxTokens:     cfg.MaxTokens,
		Model:         cfg.ModelName,
	}), svc, nil
}
