package factories

import (
	"voicerelay/core"
	googlestt "voicerelay/services/google/stt"
)

// STTFactoryConfig holds the speech recognition provider config.
type STTFactoryConfig struct {
	Google googlestt.GoogleSTTConfig `json:"google" mapstructure:"google"`
}

// BuildRecognizer constructs the Google Speech-to-Text client.
func BuildRecognizer(config STTFactoryConfig, logger *core.Logger) *googlestt.GoogleSTT {
	return googlestt.NewGoogleSTT(config.Google, logger)
}
