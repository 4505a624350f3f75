package elevenlabs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicerelay/core"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeSendsExpectedRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody elRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3mp3bytes"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "key"
	cfg.BaseURL = srv.URL
	s := NewElevenLabsTTS(cfg, nil)

	audio, err := s.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3bytes"), audio)

	assert.Equal(t, "/text-to-speech/"+DefaultVoiceID, gotPath)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t, "hello there", gotBody.Text)
	assert.Equal(t, DefaultModelID, gotBody.ModelID)
	assert.Equal(t, 0.5, gotBody.VoiceSettings.Stability)
	assert.Equal(t, 0.5, gotBody.VoiceSettings.SimilarityBoost)
}

func TestSynthesizeMapsStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	s := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "bad", BaseURL: srv.URL}, nil)
	_, err := s.Synthesize(context.Background(), "hi")
	require.Error(t, err)

	var statusErr *core.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "Invalid API key", statusErr.Message)
	assert.False(t, core.IsTransient(err))
}

func TestSynthesizeWithoutKey(t *testing.T) {
	s := NewElevenLabsTTS(ElevenLabsTTSConfig{}, nil)
	assert.False(t, s.Configured())
	_, err := s.Synthesize(context.Background(), "hi")
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}
