package socket

import "voicerelay/core"

const (
	EventConnected      = "connected"
	EventTranscription  = "transcription"
	EventAIResponse     = "aiResponse"
	EventHistoryCleared = "historyCleared"
	EventError          = "error"
)

type ConnectedEvent struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (e *ConnectedEvent) GetId() string {
	return EventConnected
}

type TranscriptionEvent struct {
	Text string `json:"text"`
}

func (e *TranscriptionEvent) GetId() string {
	return EventTranscription
}

// AIResponseEvent carries the reply text and its audio, base64-encoded.
type AIResponseEvent struct {
	Transcription string     `json:"transcription"`
	Response      string     `json:"response"`
	Audio         string     `json:"audio"`
	Voice         core.Voice `json:"voice"`
	Provider      string     `json:"provider"`
	MimeType      string     `json:"mimeType"`
}

func (e *AIResponseEvent) GetId() string {
	return EventAIResponse
}

type HistoryClearedEvent struct {
	Message string `json:"message"`
}

func (e *HistoryClearedEvent) GetId() string {
	return EventHistoryCleared
}

type ErrorEvent struct {
	Message string `json:"message"`
}

func (e *ErrorEvent) GetId() string {
	return EventError
}
