package factories

import (
	"fmt"

	"voicerelay/core"
	openaillm "voicerelay/services/openai/llm"
)

// LLMFactoryConfig selects one OpenAI-compatible chat provider. All of them
// are served by the same OpenAI client with a provider-specific base URL.
type LLMFactoryConfig struct {
	Provider string           `json:"provider" mapstructure:"provider"`
	Mistral  openaillm.Config `json:"mistral" mapstructure:"mistral"`
	OpenAI   openaillm.Config `json:"openai" mapstructure:"openai"`
	Groq     openaillm.Config `json:"groq" mapstructure:"groq"`
}

type llmProvider struct {
	baseURL string
	model   string
}

var llmProviders = map[string]llmProvider{
	openaillm.ProviderName: {baseURL: openaillm.MistralBaseURL, model: openaillm.MistralModel},
	"openai":               {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	"groq":                 {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
}

// BuildLLMService constructs the chat service for config.Provider.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (*openaillm.OpenAILLMService, error) {
	provider := config.Provider
	if provider == "" {
		provider = openaillm.ProviderName
	}
	defaults, ok := llmProviders[provider]
	if !ok {
		return nil, fmt.Errorf("LLMFactoryConfig: unsupported provider %q", provider)
	}

	var cfg openaillm.Config
	switch provider {
	case "openai":
		cfg = config.OpenAI
	case "groq":
		cfg = config.Groq
	default:
		cfg = config.Mistral
	}
	cfg.Provider = provider
	return buildOpenAICompatible(cfg, defaults.baseURL, defaults.model, logger), nil
}

// buildOpenAICompatible creates an OpenAI-compatible LLM service, applying default
// base URL and model if not explicitly set in the config.
func buildOpenAICompatible(cfg openaillm.Config, defaultBaseURL, defaultModel string, logger *core.Logger) *openaillm.OpenAILLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewOpenAILLMService(cfg, logger)
}
