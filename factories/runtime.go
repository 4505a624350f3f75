package factories

import (
	"context"
	"errors"

	"voicerelay/core"
	llmhandler "voicerelay/handlers/llm"
	stthandler "voicerelay/handlers/stt"
	ttshandler "voicerelay/handlers/tts"
	"voicerelay/handlers/turn"
	"voicerelay/metrics"
	"voicerelay/session"
)

// Runtime is the fully wired turn pipeline.
type Runtime struct {
	Store        *session.MemoryStore
	Orchestrator *turn.Orchestrator
	Synthesizer  *ttshandler.Synthesizer

	closers []func() error
}

// BuildRuntime constructs providers, adapters, the session store and the
// orchestrator from settings, and loads persisted history.
func BuildRuntime(ctx context.Context, settings Settings, collector *metrics.Collector, logger *core.Logger) (*Runtime, error) {
	if logger == nil {
		logger = core.GetLogger()
	}

	persister, closePersister, err := BuildHistoryPersister(settings.History, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{closers: []func() error{closePersister}}

	store := session.NewMemoryStore(persister, logger)
	if err := store.Load(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	recognizer := BuildRecognizer(settings.STT, logger)
	chat, err := BuildLLMService(settings.LLM, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	providers, err := BuildTTSProviders(ctx, settings.TTS, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	LogProviderStatus(logger, []ProviderStatus{
		{Stage: "stt", Name: recognizer.Name(), Configured: recognizer.Configured()},
		{Stage: "llm", Name: chat.Name(), Configured: chat.Configured()},
		{Stage: "tts", Name: providers.Gemini.Name(), Configured: providers.Gemini.Configured()},
		{Stage: "tts", Name: providers.ElevenLabs.Name(), Configured: providers.ElevenLabs.Configured()},
	})

	transcriber := stthandler.NewTranscriber(recognizer, logger).WithMetrics(collector)
	conversation := llmhandler.NewConversation(chat, store, logger).WithMetrics(collector)
	rt.Synthesizer = BuildSynthesizer(settings.TTS, providers, collector, logger)
	rt.Store = store
	rt.Orchestrator = turn.NewOrchestrator(store, transcriber, conversation, rt.Synthesizer, collector, logger)
	return rt, nil
}

// Close releases storage resources.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProviderStatus is one line of the startup provider report.
type ProviderStatus struct {
	Stage      string
	Name       string
	Configured bool
}

// LogProviderStatus logs whether each provider has credentials. Missing
// credentials degrade that provider only.
func LogProviderStatus(logger *core.Logger, statuses []ProviderStatus) {
	for _, s := range statuses {
		l := logger.With(map[string]any{"stage": s.Stage, "provider": s.Name})
		if s.Configured {
			l.Info("provider configured")
			continue
		}
		l.Warn("provider not configured, calls will fail")
	}
}
