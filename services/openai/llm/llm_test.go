package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicerelay/core"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsHistoryInOrder(t *testing.T) {
	var got openai.ChatCompletionRequest
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"mistral-small-latest",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	s := NewOpenAILLMService(Config{APIKey: "key", BaseURL: srv.URL}, nil)
	reply, err := s.Complete(context.Background(), []core.Turn{
		core.SystemTurn("be brief"),
		core.UserTurn("earlier"),
		core.AssistantTurn("noted"),
		core.UserTurn("hello"),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, MistralModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[2].Role)
	assert.Equal(t, "hello", got.Messages[3].Content)
}

func TestCompleteMapsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	s := NewOpenAILLMService(Config{APIKey: "key", BaseURL: srv.URL}, nil)
	_, err := s.Complete(context.Background(), []core.Turn{core.UserTurn("hi")}, 50)
	require.Error(t, err)

	var statusErr *core.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.False(t, core.IsTransient(err))
}

func TestCompleteWithoutKey(t *testing.T) {
	s := NewOpenAILLMService(Config{}, nil)
	assert.False(t, s.Configured())
	_, err := s.Complete(context.Background(), []core.Turn{core.UserTurn("hi")}, 0)
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestConvertRoleDefaultsToUser(t *testing.T) {
	s := NewOpenAILLMService(Config{}, nil)
	assert.Equal(t, openai.ChatMessageRoleUser, s.convertRole(core.LLMMessageRole("tool")))
}

func TestCompleteTimesOutOnStalledServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := NewOpenAILLMService(Config{APIKey: "key", BaseURL: srv.URL, Timeout: 100 * time.Millisecond}, nil)

	start := time.Now()
	_, err := s.Complete(context.Background(), []core.Turn{core.UserTurn("hello")}, 0)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDefaultTimeoutApplied(t *testing.T) {
	s := NewOpenAILLMService(Config{}, nil)
	assert.Equal(t, DefaultTimeout, s.config.Timeout)
}
