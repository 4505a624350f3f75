package llm

import (
	"context"
	"time"

	"voicerelay/core"
	"voicerelay/metrics"
	"voicerelay/session"
)

// Completer is the chat model behind the Conversation.
type Completer interface {
	Name() string
	Complete(ctx context.Context, messages []core.Turn, maxTokens int) (string, error)
}

// Conversation produces replies grounded in a session's recent history.
type Conversation struct {
	completer Completer
	store     session.Store
	metrics   *metrics.Collector
	logger    *core.Logger
}

func NewConversation(completer Completer, store session.Store, logger *core.Logger) *Conversation {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Conversation{
		completer: completer,
		store:     store,
		logger:    logger.With(map[string]any{"component": "conversation"}),
	}
}

// WithMetrics records every completion call on collector.
func (c *Conversation) WithMetrics(collector *metrics.Collector) *Conversation {
	c.metrics = collector
	return c
}

// GenerateReply sends system instruction, history and userText to the model.
// On success both turns are appended to the history together. A failure to
// persist them is logged and the reply is still returned.
func (c *Conversation) GenerateReply(ctx context.Context, userText, sessionID string, opts ReplyOptions) (string, error) {
	opts = opts.withDefaults()
	logger := core.LoggerFromContext(ctx, c.logger).With(map[string]any{"session_id": sessionID})

	history := c.store.History(sessionID)
	messages := make([]core.Turn, 0, len(history)+2)
	messages = append(messages, core.SystemTurn(BuildSystemInstruction(opts)))
	messages = append(messages, history...)
	messages = append(messages, core.UserTurn(userText))

	start := time.Now()
	reply, err := c.completer.Complete(ctx, messages, opts.MaxTokens)
	c.metrics.RecordProviderCall("llm", c.completer.Name(), err, time.Since(start))
	if err != nil {
		logger.With(map[string]any{"error": err}).Error("chat completion failed")
		return "", core.WrapError(err, core.CodeConversationFailure, failureMessage(c.completer.Name()),
			core.FieldSessionID(sessionID), core.FieldProvider(c.completer.Name()))
	}

	if err := c.store.AppendTurns(ctx, sessionID, core.UserTurn(userText), core.AssistantTurn(reply)); err != nil {
		logger.With(map[string]any{"error": err}).Warn("failed to persist conversation history")
	}

	logger.With(map[string]any{
		"history_turns": len(history),
		"reply_chars":   len(reply),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	}).Info("reply generated")
	return reply, nil
}
