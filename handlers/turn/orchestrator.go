package turn

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"voicerelay/core"
	"voicerelay/events/socket"
	"voicerelay/handlers/llm"
	"voicerelay/handlers/stt"
	"voicerelay/handlers/tts"
	"voicerelay/metrics"
	"voicerelay/session"
)

const (
	MsgNoAudio        = "No audio data received"
	MsgNoSpeech       = "No speech detected in audio"
	MsgEmptyMessage   = "Empty message"
	MsgHistoryCleared = "Chat history cleared"
	MsgClearFailed    = "Failed to clear history"
	MsgTurnInProgress = "A turn is already in progress"
	msgProcessing     = "Processing failed: "

	// replyMaxTokens bounds socket replies.
	replyMaxTokens = 200
)

const (
	outcomeNoAudio  = "no_audio"
	outcomeNoSpeech = "no_speech"
	outcomeEmpty    = "empty"
	outcomeBusy     = "busy"
	outcomeFailed   = "failed"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, cfg stt.RecognitionConfig) (string, error)
}

type Conversation interface {
	GenerateReply(ctx context.Context, userText, sessionID string, opts llm.ReplyOptions) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.SynthesisResult, error)
}

// Orchestrator runs one session's events against the store and the adapters.
// Failures are reported as error events; Handle never returns an error.
type Orchestrator struct {
	store        session.Store
	transcriber  Transcriber
	conversation Conversation
	synthesizer  Synthesizer
	guard        *session.TurnGuard
	metrics      *metrics.Collector
	logger       *core.Logger
}

func NewOrchestrator(
	store session.Store,
	transcriber Transcriber,
	conversation Conversation,
	synthesizer Synthesizer,
	collector *metrics.Collector,
	logger *core.Logger,
) *Orchestrator {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Orchestrator{
		store:        store,
		transcriber:  transcriber,
		conversation: conversation,
		synthesizer:  synthesizer,
		guard:        session.NewTurnGuard(),
		metrics:      collector,
		logger:       logger.With(map[string]any{"component": "orchestrator"}),
	}
}

// Handle processes one event for sessionID and emits its results in order.
func (o *Orchestrator) Handle(ctx context.Context, sessionID string, event Event, emitter Emitter) {
	switch e := event.(type) {
	case AudioChunk:
		o.store.AppendAudioChunk(sessionID, e.Data)
	case AudioStop:
		o.runTurn(ctx, sessionID, KindAudioStop, emitter, func() string {
			return o.handleAudioStop(ctx, sessionID, e, emitter)
		})
	case TextMessage:
		o.runTurn(ctx, sessionID, KindTextMessage, emitter, func() string {
			return o.handleTextMessage(ctx, sessionID, e, emitter)
		})
	case ClearHistory:
		o.handleClearHistory(ctx, sessionID, emitter)
	case Disconnect:
		o.store.RemoveSession(sessionID)
		o.logger.With(map[string]any{"session_id": sessionID}).Info("session disconnected")
	default:
		o.logger.With(map[string]any{"session_id": sessionID, "kind": event.Kind()}).Warn("unhandled event")
	}
}

// Reply runs the conversation step for an HTTP caller, honouring the per-session guard.
func (o *Orchestrator) Reply(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", core.NewError(core.CodeValidationInvalid, "Message is required")
	}
	release, ok := o.guard.TryAcquire(sessionID)
	if !ok {
		return "", core.NewError(core.CodeTurnInProgress, MsgTurnInProgress, core.FieldSessionID(sessionID))
	}
	defer release()
	return o.conversation.GenerateReply(ctx, message, sessionID, llm.ReplyOptions{})
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID, kind string, emitter Emitter, fn func() string) {
	release, ok := o.guard.TryAcquire(sessionID)
	if !ok {
		core.LoggerFromContext(ctx, o.logger).With(map[string]any{"session_id": sessionID, "kind": kind}).
			Warn("rejecting turn while another is running")
		emitter.Emit(&socket.ErrorEvent{Message: MsgTurnInProgress})
		o.metrics.RecordTurn(kind, outcomeBusy, 0)
		return
	}
	defer release()

	start := time.Now()
	outcome := fn()
	o.metrics.RecordTurn(kind, outcome, time.Since(start))
}

func (o *Orchestrator) handleAudioStop(ctx context.Context, sessionID string, e AudioStop, emitter Emitter) string {
	logger := core.LoggerFromContext(ctx, o.logger).With(map[string]any{"session_id": sessionID})

	audio := o.store.DrainAudio(sessionID)
	if len(audio) == 0 {
		emitter.Emit(&socket.ErrorEvent{Message: MsgNoAudio})
		return outcomeNoAudio
	}
	logger.With(map[string]any{"bytes": len(audio)}).Info("processing recorded audio")

	text, err := o.transcriber.Transcribe(ctx, audio, stt.RecognitionConfig{
		Encoding:        e.Encoding,
		SampleRateHertz: e.SampleRateHertz,
		LanguageCode:    e.LanguageCode,
	})
	if err != nil {
		return o.fail(logger, emitter, err)
	}
	if stt.IsBlank(text) {
		return o.fail(logger, emitter, core.NewError(core.CodeNoSpeechDetected, MsgNoSpeech, core.FieldSessionID(sessionID)))
	}

	emitter.Emit(&socket.TranscriptionEvent{Text: text})

	return o.respond(ctx, logger, sessionID, text, llm.ReplyOptions{
		SystemPrompt: e.SystemPrompt,
		Language:     llm.LanguageName(e.LanguageCode),
		ContextData:  e.ContextData,
		MaxTokens:    replyMaxTokens,
	}, emitter)
}

func (o *Orchestrator) handleTextMessage(ctx context.Context, sessionID string, e TextMessage, emitter Emitter) string {
	if strings.TrimSpace(e.Message) == "" {
		emitter.Emit(&socket.ErrorEvent{Message: MsgEmptyMessage})
		return outcomeEmpty
	}
	logger := core.LoggerFromContext(ctx, o.logger).With(map[string]any{"session_id": sessionID})
	logger.With(map[string]any{"chars": len(e.Message)}).Info("processing text message")

	return o.respond(ctx, logger, sessionID, e.Message, llm.ReplyOptions{
		SystemPrompt: e.SystemPrompt,
		Language:     llm.LanguageName(e.LanguageCode),
		ContextData:  e.ContextData,
		MaxTokens:    replyMaxTokens,
	}, emitter)
}

// respond runs the conversation and synthesis steps and emits the aiResponse.
func (o *Orchestrator) respond(ctx context.Context, logger *core.Logger, sessionID, userText string, opts llm.ReplyOptions, emitter Emitter) string {
	reply, err := o.conversation.GenerateReply(ctx, userText, sessionID, opts)
	if err != nil {
		return o.fail(logger, emitter, err)
	}

	result, err := o.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return o.fail(logger, emitter, err)
	}

	emitter.Emit(&socket.AIResponseEvent{
		Transcription: userText,
		Response:      reply,
		Audio:         base64.StdEncoding.EncodeToString(result.Audio),
		Voice:         result.Voice,
		Provider:      result.Provider,
		MimeType:      result.MimeType,
	})
	logger.With(map[string]any{"provider": result.Provider}).Info("response sent")
	return metrics.OutcomeOK
}

func (o *Orchestrator) handleClearHistory(ctx context.Context, sessionID string, emitter Emitter) {
	logger := core.LoggerFromContext(ctx, o.logger).With(map[string]any{"session_id": sessionID})
	if err := o.store.Clear(ctx, sessionID); err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to clear history")
		emitter.Emit(&socket.ErrorEvent{Message: MsgClearFailed})
		return
	}
	logger.Info("history cleared")
	emitter.Emit(&socket.HistoryClearedEvent{Message: MsgHistoryCleared})
}

// fail reports err to the client. A missing-speech result is sent as is;
// everything else is prefixed as a processing failure.
func (o *Orchestrator) fail(logger *core.Logger, emitter Emitter, err error) string {
	attrs := map[string]any{"error": err, "code": string(core.CodeOf(err))}
	for k, v := range core.FieldsOf(err) {
		attrs[k] = v
	}
	logger = logger.With(attrs)

	if core.IsNoSpeech(err) {
		logger.Warn("no speech in recorded audio")
		emitter.Emit(&socket.ErrorEvent{Message: MsgNoSpeech})
		return outcomeNoSpeech
	}

	if core.IsFailure(err) {
		logger.Error("turn failed")
	} else {
		logger.Warn("turn failed")
	}
	emitter.Emit(&socket.ErrorEvent{Message: msgProcessing + err.Error()})
	return outcomeFailed
}
