package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"voicerelay/core"
	"voicerelay/events/socket"
	"voicerelay/handlers/turn"
	"voicerelay/metrics"
	"voicerelay/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBufferSize  = 64
	defaultEventBufferSize = 64
	writeTimeout           = 10 * time.Second
	pongWait               = 60 * time.Second
	pingPeriod             = (pongWait * 9) / 10

	connectedMessage = "Connected to voice chat server"
	msgBadAudioChunk = "Failed to process audio chunk"
	msgInvalid       = "Invalid message"
)

// Handler consumes a connection's inbound events in order.
type Handler interface {
	Handle(ctx context.Context, sessionID string, event turn.Event, emitter turn.Emitter)
}

// Upgrader accepts voice socket connections from any origin.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection is one client socket bound to one session. A read loop feeds a
// single consumer, so a session's events are handled one at a time.
type Connection struct {
	id      string
	conn    *websocket.Conn
	handler Handler
	metrics *metrics.Collector
	logger  *core.Logger

	sendCh chan []byte
	events chan turn.Event
	closed chan struct{}
	once   sync.Once
}

// NewConnection wraps an upgraded socket and mints its session id.
func NewConnection(conn *websocket.Conn, handler Handler, collector *metrics.Collector, logger *core.Logger) *Connection {
	if logger == nil {
		logger = core.GetLogger()
	}
	id := uuid.NewString()
	return &Connection{
		id:      id,
		conn:    conn,
		handler: handler,
		metrics: collector,
		logger:  logger.With(map[string]any{"component": "websocket", "session_id": id}),
		sendCh:  make(chan []byte, defaultSendBufferSize),
		events:  make(chan turn.Event, defaultEventBufferSize),
		closed:  make(chan struct{}),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Serve runs the connection until the client goes away and every queued event
// has been handled. Turns run on ctx, not on the socket's lifetime, so a turn
// in flight at disconnect still completes; its events are dropped.
func (c *Connection) Serve(ctx context.Context) {
	c.metrics.ConnectionOpened()
	defer c.metrics.ConnectionClosed()

	handlerCtx := core.ContextWithSessionLogger(ctx, c.logger)
	c.logger.Info("client connected")

	c.conn.SetReadLimit(protocol.MaxMessageSize)
	c.Emit(&socket.ConnectedEvent{SessionID: c.id, Message: connectedMessage})

	consumerDone := make(chan struct{})
	go c.consume(handlerCtx, consumerDone)
	go c.writeLoop()

	stop := context.AfterFunc(ctx, c.shutdown)
	defer stop()

	c.readLoop()
	c.shutdown()

	c.events <- turn.Disconnect{}
	close(c.events)
	<-consumerDone
	c.logger.Info("client disconnected")
}

// Emit queues an outbound event. Events emitted after the socket closed are dropped.
func (c *Connection) Emit(event core.IEvent) {
	data, err := protocol.Marshal(protocol.MessageType(event.GetId()), event)
	if err != nil {
		c.logger.With(map[string]any{"error": err, "type": event.GetId()}).Warn("failed to marshal message, dropping")
		return
	}
	select {
	case <-c.closed:
		c.logger.With(map[string]any{"type": event.GetId()}).Debug("connection closed, dropping event")
	case c.sendCh <- data:
	}
}

func (c *Connection) shutdown() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Connection) consume(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for event := range c.events {
		c.handler.Handle(ctx, c.id, event, c)
	}
}

func (c *Connection) readLoop() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]any{"error": err}).Warn("connection lost")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.events <- turn.AudioChunk{Data: data}
		case websocket.TextMessage:
			if event := c.decode(data); event != nil {
				c.events <- event
			}
		}
	}
}

// decode turns a text frame into an event, emitting an error for malformed frames.
func (c *Connection) decode(data []byte) turn.Event {
	msgType, payload, err := protocol.Unmarshal(data)
	if err != nil {
		c.logger.With(map[string]any{"error": err}).Warn("invalid message from client")
		c.Emit(&socket.ErrorEvent{Message: msgInvalid})
		return nil
	}

	switch msgType {
	case protocol.MsgAudioStream:
		p, err := protocol.UnmarshalPayload[protocol.AudioStreamPayload](payload)
		if err != nil {
			c.logger.With(map[string]any{"error": err}).Warn("invalid audio chunk")
			c.Emit(&socket.ErrorEvent{Message: msgBadAudioChunk})
			return nil
		}
		return turn.AudioChunk{Data: p.Data}

	case protocol.MsgStopAudio:
		p, err := protocol.UnmarshalPayload[protocol.StopAudioPayload](payload)
		if err != nil {
			c.logger.With(map[string]any{"error": err}).Warn("invalid stopAudio payload")
			c.Emit(&socket.ErrorEvent{Message: msgInvalid})
			return nil
		}
		return turn.AudioStop{
			Encoding:        core.AudioEncoding(p.Encoding),
			SampleRateHertz: p.SampleRateHertz,
			LanguageCode:    p.LanguageCode,
			SystemPrompt:    p.SystemPrompt,
			ContextData:     protocol.ContextText(p.StudentContext),
		}

	case protocol.MsgTextMessage:
		p, err := protocol.UnmarshalPayload[protocol.TextMessagePayload](payload)
		if err != nil {
			c.logger.With(map[string]any{"error": err}).Warn("invalid textMessage payload")
			c.Emit(&socket.ErrorEvent{Message: msgInvalid})
			return nil
		}
		return turn.TextMessage{
			Message:      p.Message,
			SystemPrompt: p.SystemPrompt,
			LanguageCode: p.LanguageCode,
			ContextData:  protocol.ContextText(p.StudentContext),
		}

	case protocol.MsgClearHistory:
		return turn.ClearHistory{}

	default:
		c.logger.With(map[string]any{"type": string(msgType)}).Warn("unknown message type from client")
		c.Emit(&socket.ErrorEvent{Message: msgInvalid})
		return nil
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.With(map[string]any{"error": err}).Warn("write to client failed")
				c.shutdown()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.closed:
			return
		}
	}
}
