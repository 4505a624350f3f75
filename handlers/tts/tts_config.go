package tts

import (
	"context"
	"time"

	"voicerelay/core"
)

// DefaultRetryBackoff is the fixed wait before the second primary attempt.
const DefaultRetryBackoff = time.Second

// Target is one synthesis provider together with how its output is labelled.
type Target struct {
	Provider Provider
	MimeType string
	Voice    core.Voice
}

// Provider renders text to encoded audio.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesisResult is the audio for one reply and the provider that made it.
type SynthesisResult struct {
	Audio    []byte     `json:"-"`
	MimeType string     `json:"mimeType"`
	Provider string     `json:"provider"`
	Voice    core.Voice `json:"voice"`
}
