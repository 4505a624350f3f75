package factories

// APIKeys holds provider credentials gathered from the environment.
type APIKeys struct {
	GoogleSpeech string `mapstructure:"google_speech"`
	Mistral      string `mapstructure:"mistral"`
	OpenAI       string `mapstructure:"openai"`
	Groq         string `mapstructure:"groq"`
	Gemini       string `mapstructure:"gemini"`
	ElevenLabs   string `mapstructure:"elevenlabs"`
}

var apiKeyNames = []string{"google_speech", "mistral", "openai", "groq", "gemini", "elevenlabs"}

// InjectAPIKeys fills empty api_key fields in provider configs from keys.
// Keys set directly on a provider block take precedence.
func (s *Settings) InjectAPIKeys(keys APIKeys) {
	inject(&s.STT.Google.APIKey, keys.GoogleSpeech)
	inject(&s.LLM.Mistral.APIKey, keys.Mistral)
	inject(&s.LLM.OpenAI.APIKey, keys.OpenAI)
	inject(&s.LLM.Groq.APIKey, keys.Groq)
	inject(&s.TTS.Gemini.APIKey, keys.Gemini)
	inject(&s.TTS.ElevenLabs.APIKey, keys.ElevenLabs)
}

func inject(dst *string, key string) {
	if *dst == "" && key != "" {
		*dst = key
	}
}
