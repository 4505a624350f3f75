package turn

import "voicerelay/core"

// Event is an inbound socket event handled by the Orchestrator.
type Event interface {
	Kind() string
}

const (
	KindAudioChunk   = "audio_chunk"
	KindAudioStop    = "audio_stop"
	KindTextMessage  = "text_message"
	KindClearHistory = "clear_history"
	KindDisconnect   = "disconnect"
)

type AudioChunk struct {
	Data []byte
}

func (AudioChunk) Kind() string { return KindAudioChunk }

// AudioStop ends a recording. Zero fields take the recognition and reply defaults.
type AudioStop struct {
	Encoding        core.AudioEncoding
	SampleRateHertz int
	LanguageCode    string
	SystemPrompt    string
	ContextData     string
}

func (AudioStop) Kind() string { return KindAudioStop }

type TextMessage struct {
	Message      string
	SystemPrompt string
	ContextData  string
	LanguageCode string
}

func (TextMessage) Kind() string { return KindTextMessage }

type ClearHistory struct{}

func (ClearHistory) Kind() string { return KindClearHistory }

type Disconnect struct{}

func (Disconnect) Kind() string { return KindDisconnect }

// Emitter delivers outbound events to one client.
type Emitter interface {
	Emit(event core.IEvent)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event core.IEvent)

func (f EmitterFunc) Emit(event core.IEvent) {
	f(event)
}
