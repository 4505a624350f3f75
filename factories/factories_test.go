package factories

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicerelay/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLLMService(t *testing.T) {
	svc, err := BuildLLMService(LLMFactoryConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mistral", svc.Name())
	assert.Equal(t, "mistral-small-latest", svc.Model())
	assert.False(t, svc.Configured())

	svc, err = BuildLLMService(LLMFactoryConfig{Provider: "groq"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "groq", svc.Name())
	assert.Equal(t, "llama-3.3-70b-versatile", svc.Model())

	_, err = BuildLLMService(LLMFactoryConfig{Provider: "nope"}, nil)
	assert.Error(t, err)
}

func TestBuildHistoryPersister(t *testing.T) {
	p, closeFn, err := BuildHistoryPersister(HistorySettings{Backend: HistoryBackendMemory}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, closeFn())

	p, _, err = BuildHistoryPersister(HistorySettings{Backend: HistoryBackendFile, FilePath: t.TempDir() + "/h.json"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.FilePersister{}, p)

	p, closeFn, err = BuildHistoryPersister(HistorySettings{Backend: HistoryBackendSQLite, SQLite: SQLiteSettings{Path: ":memory:"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLitePersister{}, p)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	p, closeFn, err = BuildHistoryPersister(HistorySettings{Backend: HistoryBackendRedis, Redis: storage.RedisConfig{Addr: mr.Addr()}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.RedisPersister{}, p)
	assert.NoError(t, closeFn())

	_, _, err = BuildHistoryPersister(HistorySettings{Backend: "postgres"}, nil)
	assert.Error(t, err)
}

func TestBuildSynthesizer(t *testing.T) {
	cfg := TTSFactoryConfig{RetryBackoff: 10 * time.Millisecond}
	cfg.ElevenLabs.VoiceID = "voice-1"

	providers, err := BuildTTSProviders(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.False(t, providers.Gemini.Configured())
	assert.False(t, providers.ElevenLabs.Configured())

	s := BuildSynthesizer(cfg, providers, nil, nil)
	assert.Equal(t, 10*time.Millisecond, s.RetryBackoff)

	// Neither provider has a key, so the attempt fails without a retry.
	_, err = s.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to generate speech audio")
}

func TestBuildRuntime(t *testing.T) {
	settings := Settings{
		History: HistorySettings{Backend: HistoryBackendMemory},
		LLM:     LLMFactoryConfig{Provider: "mistral"},
	}

	rt, err := BuildRuntime(context.Background(), settings, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rt.Orchestrator)
	require.NotNil(t, rt.Store)
	require.NotNil(t, rt.Synthesizer)
	assert.NoError(t, rt.Close())
}

func TestStalledPrimaryFallsBack(t *testing.T) {
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(stalled.Close)
	mp3 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	}))
	t.Cleanup(mp3.Close)

	var cfg TTSFactoryConfig
	cfg.Gemini.APIKey = "gemini-key"
	cfg.Gemini.BaseURL = stalled.URL
	cfg.Gemini.Timeout = 100 * time.Millisecond
	cfg.ElevenLabs.APIKey = "el-key"
	cfg.ElevenLabs.BaseURL = mp3.URL
	cfg.RetryBackoff = time.Millisecond

	providers, err := BuildTTSProviders(context.Background(), cfg, nil)
	require.NoError(t, err)
	s := BuildSynthesizer(cfg, providers, nil, nil)

	result, err := s.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", result.Provider)
	assert.Equal(t, "audio/mpeg", result.MimeType)
	assert.Equal(t, []byte("ID3audio"), result.Audio)
}
