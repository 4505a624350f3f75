package factories

import (
	"context"
	"fmt"
	"time"

	"voicerelay/core"
	ttshandler "voicerelay/handlers/tts"
	"voicerelay/metrics"
	elevenlabs "voicerelay/services/elevenlabs/tts"
	gemini "voicerelay/services/gemini/tts"
)

// DefaultVoiceLanguage labels both synthesis voices.
const DefaultVoiceLanguage = "en-US"

// TTSFactoryConfig holds the primary and fallback synthesis provider configs.
type TTSFactoryConfig struct {
	Gemini       gemini.GeminiTTSConfig         `json:"gemini" mapstructure:"gemini"`
	ElevenLabs   elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs" mapstructure:"elevenlabs"`
	RetryBackoff time.Duration                  `json:"retry_backoff" mapstructure:"retry_backoff"`
}

// TTSProviders are the two synthesis clients behind the synthesizer.
type TTSProviders struct {
	Gemini     *gemini.GeminiTTS
	ElevenLabs *elevenlabs.ElevenLabsTTS
}

// BuildTTSProviders constructs the Gemini and ElevenLabs clients.
func BuildTTSProviders(ctx context.Context, config TTSFactoryConfig, logger *core.Logger) (TTSProviders, error) {
	g, err := gemini.NewGeminiTTS(ctx, config.Gemini, logger)
	if err != nil {
		return TTSProviders{}, fmt.Errorf("TTSFactoryConfig: %w", err)
	}
	return TTSProviders{
		Gemini:     g,
		ElevenLabs: elevenlabs.NewElevenLabsTTS(config.ElevenLabs, logger),
	}, nil
}

// BuildSynthesizer wires Gemini as the primary target and ElevenLabs as the fallback.
func BuildSynthesizer(config TTSFactoryConfig, providers TTSProviders, collector *metrics.Collector, logger *core.Logger) *ttshandler.Synthesizer {
	primary := ttshandler.Target{
		Provider: providers.Gemini,
		MimeType: gemini.MimeType,
		Voice:    core.Voice{Name: providers.Gemini.Voice(), LanguageCode: DefaultVoiceLanguage},
	}
	fallback := ttshandler.Target{
		Provider: providers.ElevenLabs,
		MimeType: elevenlabs.MimeType,
		Voice:    core.Voice{Name: providers.ElevenLabs.VoiceID(), LanguageCode: DefaultVoiceLanguage},
	}

	s := ttshandler.NewSynthesizer(primary, fallback, collector, logger)
	if config.RetryBackoff > 0 {
		s.RetryBackoff = config.RetryBackoff
	}
	return s
}
