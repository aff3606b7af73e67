package config

import "os"

const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderHTTP      = "http"
)

// APIKeyEnv returns the environment variable holding the key for a provider.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderGoogle:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "COMPLETION_API_KEY"
	}
}

// APIKey reads the configured provider's key. An empty result is not an error here;
// the completion layer turns it into a MissingCredentials failure.
func (c LLMConfig) APIKey() string {
	return os.Getenv(APIKeyEnv(c.Provider))
}
