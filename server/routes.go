package server

import (
	"net/http"
	"strings"

	"voicerelay/core"
	"voicerelay/transports/websocket"

	"github.com/labstack/echo/v4"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type ttsRequest struct {
	Text string `json:"text"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Health reports liveness.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Message:   "Voice chat server is running",
		Timestamp: timestamp(),
	})
}

// Chat returns a text reply without synthesis.
func (s *Server) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Message is required"))
	}
	if req.SessionID == "" {
		req.SessionID = defaultChatSession
	}

	reply, err := s.deps.Chat.Reply(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		s.logger.With(map[string]any{"error": err, "session_id": req.SessionID}).Error("chat request failed")
		return c.JSON(core.HTTPStatus(err), errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, chatResponse{Response: reply})
}

// TTS returns the fallback provider's audio for text.
func (s *Server) TTS(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Text is required"))
	}

	result, err := s.deps.Speech.SynthesizeFallback(c.Request().Context(), req.Text)
	if err != nil {
		s.logger.With(map[string]any{"error": err}).Error("tts request failed")
		return c.JSON(core.HTTPStatus(err), errorBody(err.Error()))
	}
	return c.Blob(http.StatusOK, result.MimeType, result.Audio)
}

// WebSocket upgrades the request and serves the voice socket until it closes.
func (s *Server) WebSocket(c echo.Context) error {
	conn, err := websocket.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.With(map[string]any{"error": err}).Warn("websocket upgrade failed")
		return nil
	}
	websocket.NewConnection(conn, s.deps.Sockets, s.deps.Metrics, s.logger).Serve(s.baseCtx)
	return nil
}
