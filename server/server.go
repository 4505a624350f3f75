// Package server exposes the relay over HTTP: the voice socket, the test
// endpoints, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"voicerelay/core"
	"voicerelay/handlers/tts"
	"voicerelay/metrics"
	"voicerelay/transports/websocket"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultChatSession = "test-session"
	isoMillis          = "2006-01-02T15:04:05.000Z07:00"
)

// Config holds the listener settings.
type Config struct {
	Port      int    `json:"port" mapstructure:"port"`
	StaticDir string `json:"static_dir" mapstructure:"static_dir"`
}

// Chatter answers a single text message for the chat test endpoint.
type Chatter interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
}

// Speaker renders text for the TTS test endpoint.
type Speaker interface {
	SynthesizeFallback(ctx context.Context, text string) (*tts.SynthesisResult, error)
}

// Deps are the components the routes are served by.
type Deps struct {
	Sockets  websocket.Handler
	Chat     Chatter
	Speech   Speaker
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Collector
}

// Server wraps the echo instance.
type Server struct {
	echo    *echo.Echo
	config  Config
	deps    Deps
	baseCtx context.Context
	logger  *core.Logger
}

// New builds the server. baseCtx is the lifetime of socket turns.
func New(baseCtx context.Context, config Config, deps Deps, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		config:  config,
		deps:    deps,
		baseCtx: baseCtx,
		logger:  logger.With(map[string]any{"component": "http"}),
	}

	e.Use(s.requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.Health)
	s.echo.POST("/api/chat", s.Chat)
	s.echo.POST("/api/tts", s.TTS)
	s.echo.GET("/ws", s.WebSocket)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	if s.config.StaticDir != "" {
		if info, err := os.Stat(s.config.StaticDir); err == nil && info.IsDir() {
			s.echo.Static("/", s.config.StaticDir)
		} else {
			s.logger.With(map[string]any{"dir": s.config.StaticDir}).Debug("static directory not found, not serving files")
		}
	}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.With(map[string]any{"addr": addr}).Info("voice chat server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			path := c.Path()
			if path == "" {
				path = v.URI
			}
			s.deps.Metrics.RecordHTTPRequest(v.Method, path, v.Status, v.Latency)

			fields := map[string]any{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				fields["error"] = v.Error
				s.logger.With(fields).Warn("request failed")
				return nil
			}
			s.logger.With(fields).Debug("request")
			return nil
		},
	})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func timestamp() string {
	return time.Now().UTC().Format(isoMillis)
}
