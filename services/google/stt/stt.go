package stt

import (
	"bytes"
	"context"
	"encoding/base64"
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
	ProviderName = "google-speech"

	DefaultBaseURL = "https://speech.googleapis.com/v1"
)

// GoogleSTTConfig holds configuration for the Google Cloud Speech REST client.
type GoogleSTTConfig struct {
	APIKey  string        `json:"api_key" mapstructure:"api_key"`
	BaseURL string        `json:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

func DefaultConfig() GoogleSTTConfig {
	return GoogleSTTConfig{
		BaseURL: DefaultBaseURL,
		Timeout: 60 * time.Second,
	}
}

// RecognizeRequest describes one synchronous recognition call.
type RecognizeRequest struct {
	Audio           []byte
	Encoding        core.AudioEncoding
	SampleRateHertz int
	LanguageCode    string
}

type recognitionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeBody struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GoogleSTT calls speech:recognize with an API key.
type GoogleSTT struct {
	config     GoogleSTTConfig
	httpClient *http.Client
	logger     *core.Logger
}

func NewGoogleSTT(config GoogleSTTConfig, logger *core.Logger) *GoogleSTT {
	if logger == nil {
		logger = core.GetLogger()
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &GoogleSTT{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With(map[string]any{"provider": ProviderName}),
	}
}

func (s *GoogleSTT) Name() string {
	return ProviderName
}

func (s *GoogleSTT) Configured() bool {
	return s.config.APIKey != ""
}

// Recognize returns the top alternative of every result segment, in order.
// Automatic punctuation is always requested.
func (s *GoogleSTT) Recognize(ctx context.Context, req RecognizeRequest) ([]string, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("google speech: %w", core.ErrNotConfigured)
	}

	body, err := sonic.Marshal(recognizeBody{
		Config: recognitionConfig{
			Encoding:                   string(req.Encoding),
			SampleRateHertz:            req.SampleRateHertz,
			LanguageCode:               req.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(req.Audio)},
	})
	if err != nil {
		return nil, fmt.Errorf("google speech: marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/speech:recognize?key=" + url.QueryEscape(s.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("google speech: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google speech: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google speech: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &core.StatusError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	var parsed recognizeResponse
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("google speech: decode response: %w", err)
	}

	segments := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		segments = append(segments, r.Alternatives[0].Transcript)
	}

	s.logger.With(map[string]any{
		"segments":    len(segments),
		"audio_bytes": len(req.Audio),
		"encoding":    string(req.Encoding),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}).Debug("recognition complete")
	return segments, nil
}

func errorMessage(body []byte) string {
	var e apiErrorBody
	if err := sonic.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
