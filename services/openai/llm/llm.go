package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"voicerelay/core"

	"github.com/sashabaranov/go-openai"
)

const (
	MistralBaseURL = "https://api.mistral.ai/v1"
	MistralModel   = "mistral-small-latest"
	ProviderName   = "mistral"

	DefaultMaxTokens   = 200
	DefaultTemperature = float32(0.7)
	DefaultTimeout     = 30 * time.Second
)

// Config holds the configuration for an OpenAI-compatible chat endpoint.
type Config struct {
	Provider    string  `json:"provider" mapstructure:"provider"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	Model       string  `json:"model" mapstructure:"model"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `json:"temperature" mapstructure:"temperature"`

	// Timeout bounds each completion request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig targets Mistral's OpenAI-compatible API.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderName,
		BaseURL:     MistralBaseURL,
		Model:       MistralModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

// OpenAILLMService runs non-streaming chat completions.
type OpenAILLMService struct {
	config Config
	client *openai.Client
	logger *core.Logger
}

// NewOpenAILLMService creates the service. Without an API key every call
// fails with core.ErrNotConfigured.
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if logger == nil {
		logger = core.GetLogger()
	}
	defaults := DefaultConfig()
	if config.Provider == "" {
		config.Provider = defaults.Provider
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	s := &OpenAILLMService{
		config: config,
		logger: logger.With(map[string]any{"provider": config.Provider, "model": config.Model}),
	}
	if config.APIKey != "" {
		clientConfig := openai.DefaultConfig(config.APIKey)
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
		s.client = openai.NewClientWithConfig(clientConfig)
	}
	return s
}

func (s *OpenAILLMService) Name() string {
	return s.config.Provider
}

func (s *OpenAILLMService) Model() string {
	return s.config.Model
}

func (s *OpenAILLMService) Configured() bool {
	return s.client != nil
}

// Complete sends messages in order and returns the first choice's content.
// maxTokens <= 0 uses the configured limit.
func (s *OpenAILLMService) Complete(ctx context.Context, messages []core.Turn, maxTokens int) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("%s: %w", s.config.Provider, core.ErrNotConfigured)
	}
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    s.convertMessages(messages),
		MaxTokens:   maxTokens,
		Temperature: s.config.Temperature,
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", s.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: completion returned no choices", s.config.Provider)
	}

	content := resp.Choices[0].Message.Content
	s.logger.With(map[string]any{
		"messages":          len(messages),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"elapsed_ms":        time.Since(start).Milliseconds(),
	}).Debug("completion finished")
	return content, nil
}

// convertMessages converts history turns to OpenAI messages
func (s *OpenAILLMService) convertMessages(messages []core.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    s.convertRole(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// convertRole converts core role to OpenAI role
func (s *OpenAILLMService) convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleUser:
		return openai.ChatMessageRoleUser
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// mapError keeps the HTTP status of API failures so callers can classify them.
func (s *OpenAILLMService) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &core.StatusError{Provider: s.config.Provider, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &core.StatusError{Provider: s.config.Provider, StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("%s: create completion: %w", s.config.Provider, err)
}
