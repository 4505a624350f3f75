package elevenlabs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicerelay/core"

	"github.com/bytedance/sonic"
)

const (
	ProviderName = "elevenlabs"

	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"
	DefaultModelID = "eleven_multilingual_v2"
	MimeType       = "audio/mpeg"
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	VoiceID string `json:"voice_id" mapstructure:"voice_id"`
	ModelID string `json:"model_id" mapstructure:"model_id"`

	// Voice settings
	Stability       float64 `json:"stability" mapstructure:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" mapstructure:"similarity_boost"`

	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the voice settings the relay ships with.
func DefaultConfig() ElevenLabsTTSConfig {
	return ElevenLabsTTSConfig{
		BaseURL:         DefaultBaseURL,
		VoiceID:         DefaultVoiceID,
		ModelID:         DefaultModelID,
		Stability:       0.5,
		SimilarityBoost: 0.5,
		Timeout:         30 * time.Second,
	}
}

type elVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elRequest struct {
	Text          string          `json:"text"`
	ModelID       string          `json:"model_id"`
	VoiceSettings elVoiceSettings `json:"voice_settings"`
}

type elErrorBody struct {
	Detail any `json:"detail"`
}

// ElevenLabsTTS calls the ElevenLabs text-to-speech REST endpoint and returns mp3.
type ElevenLabsTTS struct {
	config     ElevenLabsTTSConfig
	httpClient *http.Client
	logger     *core.Logger
}

func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if logger == nil {
		logger = core.GetLogger()
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaults.VoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaults.ModelID
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &ElevenLabsTTS{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With(map[string]any{"provider": ProviderName}),
	}
}

func (s *ElevenLabsTTS) Name() string {
	return ProviderName
}

func (s *ElevenLabsTTS) VoiceID() string {
	return s.config.VoiceID
}

func (s *ElevenLabsTTS) Configured() bool {
	return s.config.APIKey != ""
}

// Synthesize returns the mp3 bytes for text.
func (s *ElevenLabsTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("elevenlabs: %w", core.ErrNotConfigured)
	}

	body, err := sonic.Marshal(elRequest{
		Text:    text,
		ModelID: s.config.ModelID,
		VoiceSettings: elVoiceSettings{
			Stability:       s.config.Stability,
			SimilarityBoost: s.config.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(s.config.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", MimeType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &core.StatusError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio response")
	}

	s.logger.With(map[string]any{"bytes": len(data), "voice_id": s.config.VoiceID}).Debug("speech generated")
	return data, nil
}

func errorMessage(body []byte) string {
	var e elErrorBody
	if err := sonic.Unmarshal(body, &e); err == nil && e.Detail != nil {
		switch d := e.Detail.(type) {
		case string:
			return d
		case map[string]any:
			if msg, ok := d["message"].(string); ok {
				return msg
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
