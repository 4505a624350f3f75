package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"voicerelay/core"
	"voicerelay/events/socket"
	"voicerelay/handlers/turn"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	events   []turn.Event
	sessions []string
	reply    func(event turn.Event, emitter turn.Emitter)
	disconn  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{disconn: make(chan struct{})}
}

func (h *recordingHandler) Handle(_ context.Context, sessionID string, event turn.Event, emitter turn.Emitter) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.sessions = append(h.sessions, sessionID)
	reply := h.reply
	h.mu.Unlock()

	if _, ok := event.(turn.Disconnect); ok {
		close(h.disconn)
		return
	}
	if reply != nil {
		reply(event, emitter)
	}
}

func (h *recordingHandler) snapshot() []turn.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]turn.Event, len(h.events))
	copy(out, h.events)
	return out
}

type wireMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func startServer(t *testing.T, handler Handler) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewConnection(conn, handler, nil, nil).Serve(context.Background())
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return client, func() {
		client.Close()
		srv.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wireMessage
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func TestConnectedGreeting(t *testing.T) {
	client, cleanup := startServer(t, newRecordingHandler())
	defer cleanup()

	msg := readMessage(t, client)
	assert.Equal(t, "connected", msg.Type)
	assert.Equal(t, "Connected to voice chat server", msg.Payload["message"])
	assert.NotEmpty(t, msg.Payload["sessionId"])
}

func TestInboundFramesBecomeEventsInOrder(t *testing.T) {
	h := newRecordingHandler()
	client, cleanup := startServer(t, h)
	defer cleanup()
	readMessage(t, client)

	chunk := base64.StdEncoding.EncodeToString([]byte("b1"))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"audioStream","payload":{"data":"`+chunk+`"}}`)))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("b2")))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"stopAudio","payload":{"encoding":"LINEAR16","sampleRateHertz":16000,"languageCode":"hi-IN","studentContext":"likes maths"}}`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"textMessage","payload":{"message":"hi","languageCode":"fr-FR"}}`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"clearHistory"}`)))
	client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case <-h.disconn:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not delivered")
	}

	assert.Equal(t, []turn.Event{
		turn.AudioChunk{Data: []byte("b1")},
		turn.AudioChunk{Data: []byte("b2")},
		turn.AudioStop{
			Encoding:        core.EncodingLinear16,
			SampleRateHertz: 16000,
			LanguageCode:    "hi-IN",
			ContextData:     "likes maths",
		},
		turn.TextMessage{Message: "hi", LanguageCode: "fr-FR"},
		turn.ClearHistory{},
		turn.Disconnect{},
	}, h.snapshot())

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.sessions {
		assert.Equal(t, h.sessions[0], id)
	}
}

func TestHandlerEventsAreWrittenToClient(t *testing.T) {
	h := newRecordingHandler()
	h.reply = func(event turn.Event, emitter turn.Emitter) {
		if tm, ok := event.(turn.TextMessage); ok {
			emitter.Emit(&socket.AIResponseEvent{Transcription: tm.Message, Response: "hi there", MimeType: "audio/wav"})
		}
	}
	client, cleanup := startServer(t, h)
	defer cleanup()
	readMessage(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"textMessage","payload":{"message":"hello"}}`)))

	msg := readMessage(t, client)
	assert.Equal(t, "aiResponse", msg.Type)
	assert.Equal(t, "hello", msg.Payload["transcription"])
	assert.Equal(t, "hi there", msg.Payload["response"])
	assert.Equal(t, "audio/wav", msg.Payload["mimeType"])
}

func TestMalformedFrames(t *testing.T) {
	h := newRecordingHandler()
	client, cleanup := startServer(t, h)
	defer cleanup()
	readMessage(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	msg := readMessage(t, client)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "Invalid message", msg.Payload["message"])

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"audioStream","payload":{"data":42}}`)))
	msg = readMessage(t, client)
	assert.Equal(t, "Failed to process audio chunk", msg.Payload["message"])

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))
	msg = readMessage(t, client)
	assert.Equal(t, "Invalid message", msg.Payload["message"])

	assert.Empty(t, h.snapshot())
}
