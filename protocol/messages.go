package protocol

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
)

// MessageType enumerates the voice socket message types.
type MessageType string

const (
	// Client -> Server
	MsgAudioStream  MessageType = "audioStream"
	MsgStopAudio    MessageType = "stopAudio"
	MsgTextMessage  MessageType = "textMessage"
	MsgClearHistory MessageType = "clearHistory"

	// Server -> Client
	MsgConnected      MessageType = "connected"
	MsgTranscription  MessageType = "transcription"
	MsgAIResponse     MessageType = "aiResponse"
	MsgHistoryCleared MessageType = "historyCleared"
	MsgError          MessageType = "error"
)

// MaxMessageSize bounds a single inbound frame.
const MaxMessageSize = 10 << 20

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client -> Server payloads ---

// AudioStreamPayload carries one recorded chunk, base64-encoded on the wire.
type AudioStreamPayload struct {
	Data []byte `json:"data"`
}

// StopAudioPayload ends a recording and configures the turn.
type StopAudioPayload struct {
	Encoding        string          `json:"encoding,omitempty"`
	SampleRateHertz int             `json:"sampleRateHertz,omitempty"`
	LanguageCode    string          `json:"languageCode,omitempty"`
	SystemPrompt    string          `json:"systemPrompt,omitempty"`
	StudentContext  json.RawMessage `json:"studentContext,omitempty"`
}

// TextMessagePayload asks for a reply without audio input.
type TextMessagePayload struct {
	Message        string          `json:"message"`
	SystemPrompt   string          `json:"systemPrompt,omitempty"`
	LanguageCode   string          `json:"languageCode,omitempty"`
	StudentContext json.RawMessage `json:"studentContext,omitempty"`
}

// ContextText renders a studentContext value for the system instruction.
// Strings are used as-is; objects and arrays keep their JSON text; null is empty.
func ContextText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := sonic.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}
