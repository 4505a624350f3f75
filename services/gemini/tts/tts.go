package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voicerelay/core"
	"voicerelay/utils/audio"

	"google.golang.org/genai"
)

const (
	ProviderName = "gemini-2.5-flash-preview-tts"

	DefaultModel      = "gemini-2.5-flash-preview-tts"
	DefaultVoice      = "Vindemiatrix"
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultTimeout    = 30 * time.Second
	MimeType          = "audio/wav"

	promptPrefix = "Say the following text naturally: "
)

// GeminiTTSConfig holds configuration for the Gemini speech generation service.
type GeminiTTSConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Model   string `json:"model" mapstructure:"model"`
	Voice   string `json:"voice" mapstructure:"voice"`
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout bounds each GenerateContent call, including reading the audio.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

func DefaultConfig() GeminiTTSConfig {
	return GeminiTTSConfig{
		Model:   DefaultModel,
		Voice:   DefaultVoice,
		Timeout: DefaultTimeout,
	}
}

// GeminiTTS renders speech with a Gemini TTS model and returns it as WAV.
type GeminiTTS struct {
	config GeminiTTSConfig
	client *genai.Client
	logger *core.Logger
}

// NewGeminiTTS builds the client. Without an API key the service is created
// unconfigured and every call fails with core.ErrNotConfigured.
func NewGeminiTTS(ctx context.Context, config GeminiTTSConfig, logger *core.Logger) (*GeminiTTS, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Voice == "" {
		config.Voice = DefaultVoice
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	s := &GeminiTTS{
		config: config,
		logger: logger.With(map[string]any{"provider": ProviderName}),
	}
	if config.APIKey == "" {
		return s, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *GeminiTTS) Name() string {
	return ProviderName
}

func (s *GeminiTTS) Voice() string {
	return s.config.Voice
}

func (s *GeminiTTS) Configured() bool {
	return s.client != nil
}

// Synthesize returns a WAV file (PCM wrapped in a 44-byte header).
func (s *GeminiTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("gemini: %w", core.ErrNotConfigured)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, genai.Text(promptPrefix+text), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.config.Voice},
			},
		},
	})
	if err != nil {
		return nil, mapError(err)
	}

	blob := firstAudioBlob(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, errors.New("gemini: response contained no audio")
	}

	sampleRate := sampleRateFromMIME(blob.MIMEType, DefaultSampleRate)
	wav, err := audio.PCMBytesToWavBytes(blob.Data, DefaultChannels, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("gemini: wrap pcm: %w", err)
	}

	if seconds, err := audio.GetPCMDurationSeconds(blob.Data, DefaultChannels, sampleRate); err == nil {
		s.logger.With(map[string]any{"bytes": len(wav), "seconds": seconds, "voice": s.config.Voice}).Debug("speech generated")
	}
	return wav, nil
}

func firstAudioBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData
			}
		}
	}
	return nil
}

// sampleRateFromMIME reads the rate parameter of e.g. "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMIME(mime string, fallback int) int {
	for _, part := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}

// mapError turns a genai.APIError into a core.StatusError so the caller can
// tell transient server faults from the rest.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == 0 {
			code = statusFromName(apiErr.Status)
		}
		return &core.StatusError{
			Provider:   ProviderName,
			StatusCode: code,
			Message:    apiErr.Message,
		}
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}

func statusFromName(status string) int {
	switch strings.ToUpper(status) {
	case "INTERNAL", "UNKNOWN", "DATA_LOSS":
		return http.StatusInternalServerError
	case "UNAVAILABLE":
		return http.StatusServiceUnavailable
	case "DEADLINE_EXCEEDED":
		return http.StatusGatewayTimeout
	case "RESOURCE_EXHAUSTED":
		return http.StatusTooManyRequests
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		return http.StatusBadRequest
	case "UNAUTHENTICATED":
		return http.StatusUnauthorized
	case "PERMISSION_DENIED":
		return http.StatusForbidden
	case "NOT_FOUND":
		return http.StatusNotFound
	default:
		return 0
	}
}
