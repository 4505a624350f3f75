package factories

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"voicerelay/core"
	ttshandler "voicerelay/handlers/tts"
	elevenlabs "voicerelay/services/elevenlabs/tts"
	gemini "voicerelay/services/gemini/tts"
	googlestt "voicerelay/services/google/stt"
	openaillm "voicerelay/services/openai/llm"
	"voicerelay/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "VOICERELAY"

// History backends.
const (
	HistoryBackendFile   = "file"
	HistoryBackendRedis  = "redis"
	HistoryBackendSQLite = "sqlite"
	HistoryBackendMemory = "memory"
)

// Settings is the full runtime configuration.
type Settings struct {
	Port      int    `json:"port" mapstructure:"port"`
	StaticDir string `json:"static_dir" mapstructure:"static_dir"`

	Log     LogSettings      `json:"log" mapstructure:"log"`
	History HistorySettings  `json:"history" mapstructure:"history"`
	STT     STTFactoryConfig `json:"stt" mapstructure:"stt"`
	LLM     LLMFactoryConfig `json:"llm" mapstructure:"llm"`
	TTS     TTSFactoryConfig `json:"tts" mapstructure:"tts"`

	// Keys are injected into provider configs that carry no key of their own.
	Keys APIKeys `json:"-" mapstructure:"keys"`
}

type LogSettings struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"` // "json" or "console"
}

type HistorySettings struct {
	Backend  string              `json:"backend" mapstructure:"backend"`
	FilePath string              `json:"file_path" mapstructure:"file_path"`
	Redis    storage.RedisConfig `json:"redis" mapstructure:"redis"`
	SQLite   SQLiteSettings      `json:"sqlite" mapstructure:"sqlite"`
}

type SQLiteSettings struct {
	Path string `json:"path" mapstructure:"path"`
}

// legacyEnv maps setting keys to the unprefixed variable names the service has always read.
var legacyEnv = map[string]string{
	"port":                    "PORT",
	"static_dir":              "STATIC_DIR",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"history.backend":         "HISTORY_BACKEND",
	"history.redis.addr":      "REDIS_ADDR",
	"history.redis.password":  "REDIS_PASSWORD",
	"keys.google_speech":      "GOOGLE_SPEECH_API_KEY",
	"keys.mistral":            "MISTRAL_API_KEY",
	"keys.openai":             "OPENAI_API_KEY",
	"keys.groq":               "GROQ_API_KEY",
	"keys.gemini":             "GEMINI_API_KEY",
	"keys.elevenlabs":         "ELEVENLABS_API_KEY",
	"tts.gemini.voice":        "GEMINI_TTS_VOICE",
	"tts.elevenlabs.voice_id": "ELEVENLABS_VOICE_ID",
}

// LoadDotEnv loads each existing file into the process environment.
// Variables already set are not overridden, so earlier files win.
func LoadDotEnv(files ...string) []string {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			core.GetLogger().With(map[string]any{"file": f, "error": err}).Warn("failed to load env file")
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded
}

// SetDefaults registers every setting key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("static_dir", "./public")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("history.backend", HistoryBackendFile)
	v.SetDefault("history.file_path", storage.DefaultHistoryFile)
	v.SetDefault("history.redis.addr", "localhost:6379")
	v.SetDefault("history.redis.password", "")
	v.SetDefault("history.redis.db", 0)
	v.SetDefault("history.redis.key_prefix", storage.DefaultRedisKeyPrefix)
	v.SetDefault("history.sqlite.path", "data/history.db")

	v.SetDefault("stt.google.api_key", "")
	v.SetDefault("stt.google.base_url", googlestt.DefaultBaseURL)
	v.SetDefault("stt.google.timeout", googlestt.DefaultConfig().Timeout)

	v.SetDefault("llm.provider", openaillm.ProviderName)
	for name, p := range llmProviders {
		v.SetDefault("llm."+name+".api_key", "")
		v.SetDefault("llm."+name+".base_url", p.baseURL)
		v.SetDefault("llm."+name+".model", p.model)
		v.SetDefault("llm."+name+".max_tokens", openaillm.DefaultMaxTokens)
		v.SetDefault("llm."+name+".temperature", openaillm.DefaultTemperature)
		v.SetDefault("llm."+name+".timeout", openaillm.DefaultTimeout)
	}

	v.SetDefault("tts.retry_backoff", ttshandler.DefaultRetryBackoff)
	v.SetDefault("tts.gemini.api_key", "")
	v.SetDefault("tts.gemini.model", gemini.DefaultModel)
	v.SetDefault("tts.gemini.voice", gemini.DefaultVoice)
	v.SetDefault("tts.gemini.base_url", "")
	v.SetDefault("tts.gemini.timeout", gemini.DefaultTimeout)
	el := elevenlabs.DefaultConfig()
	v.SetDefault("tts.elevenlabs.api_key", "")
	v.SetDefault("tts.elevenlabs.base_url", el.BaseURL)
	v.SetDefault("tts.elevenlabs.voice_id", el.VoiceID)
	v.SetDefault("tts.elevenlabs.model_id", el.ModelID)
	v.SetDefault("tts.elevenlabs.stability", el.Stability)
	v.SetDefault("tts.elevenlabs.similarity_boost", el.SimilarityBoost)
	v.SetDefault("tts.elevenlabs.timeout", el.Timeout)

	for _, k := range apiKeyNames {
		v.SetDefault("keys."+k, "")
	}
}

// SetupEnv enables VOICERELAY_-prefixed overrides for every key, plus the
// unprefixed legacy names. A prefixed variable wins over its legacy name.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// LoadSettings reads defaults, the optional config file, an inline
// base64 JSON config and the environment, in increasing precedence.
func LoadSettings(v *viper.Viper, path string) (Settings, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, core.WrapError(err, core.CodeConfigInvalid, fmt.Sprintf("reading config %s", path))
		}
	}

	if b64 := firstEnv(envPrefix+"_SETTINGS_JSON_B64", "SETTINGS_JSON_B64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return Settings{}, core.WrapError(err, core.CodeConfigInvalid, "decoding SETTINGS_JSON_B64")
		}
		v.SetConfigType("json")
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return Settings{}, core.WrapError(err, core.CodeConfigInvalid, "parsing SETTINGS_JSON_B64")
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, core.WrapError(err, core.CodeConfigInvalid, "unmarshalling config")
	}
	if errs := s.Validate(); len(errs) > 0 {
		return Settings{}, core.WrapError(errors.Join(errs...), core.CodeConfigInvalid, "validating config")
	}

	s.InjectAPIKeys(s.Keys)
	return s, nil
}

// Validate checks the settings for logical errors, collecting all of them.
func (s *Settings) Validate() []error {
	var errs []error

	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: port must be between 0 and 65535, got %d", s.Port))
	}

	switch s.History.Backend {
	case HistoryBackendFile, HistoryBackendRedis, HistoryBackendSQLite, HistoryBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("config: history.backend must be one of [file, redis, sqlite, memory], got %q", s.History.Backend))
	}
	if s.History.Backend == HistoryBackendFile && s.History.FilePath == "" {
		errs = append(errs, errors.New("config: history.file_path must not be empty"))
	}

	if _, ok := llmProviders[s.LLM.Provider]; !ok {
		errs = append(errs, fmt.Errorf("config: llm.provider %q is not supported", s.LLM.Provider))
	}

	if s.TTS.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("config: tts.retry_backoff must not be negative, got %s", s.TTS.RetryBackoff))
	}

	switch s.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be json or console, got %q", s.Log.Format))
	}

	return errs
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
