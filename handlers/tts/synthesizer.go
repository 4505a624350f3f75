package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicerelay/core"
	"voicerelay/metrics"
)

type State int

const (
	StateAttemptPrimary1 State = iota
	StateAttemptPrimary2
	StateFallback
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateAttemptPrimary1:
		return "attempt_primary_1"
	case StateAttemptPrimary2:
		return "attempt_primary_2"
	case StateFallback:
		return "fallback"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomePermanent
)

var transitions = map[State]map[Outcome]State{
	StateAttemptPrimary1: {
		OutcomeSuccess:   StateSuccess,
		OutcomeTransient: StateAttemptPrimary2,
		OutcomePermanent: StateFallback,
	},
	StateAttemptPrimary2: {
		OutcomeSuccess:   StateSuccess,
		OutcomeTransient: StateFallback,
		OutcomePermanent: StateFallback,
	},
	StateFallback: {
		OutcomeSuccess:   StateSuccess,
		OutcomeTransient: StateFailure,
		OutcomePermanent: StateFailure,
	},
}

// Next returns the state reached from state on outcome. Terminal states stay put.
func Next(state State, outcome Outcome) State {
	if row, ok := transitions[state]; ok {
		return row[outcome]
	}
	return state
}

// Classify maps a provider error to an outcome. Only 5xx responses are transient.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case core.IsTransient(err):
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}

// Synthesizer renders replies with the primary provider, retrying once on a
// transient failure, and falls back to the secondary provider.
type Synthesizer struct {
	primary  Target
	fallback Target

	// RetryBackoff is the wait before the second primary attempt.
	RetryBackoff time.Duration

	metrics *metrics.Collector
	logger  *core.Logger
}

func NewSynthesizer(primary, fallback Target, collector *metrics.Collector, logger *core.Logger) *Synthesizer {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Synthesizer{
		primary:      primary,
		fallback:     fallback,
		RetryBackoff: DefaultRetryBackoff,
		metrics:      collector,
		logger:       logger.With(map[string]any{"component": "synthesizer"}),
	}
}

// Synthesize walks the attempt state machine until success or failure. On
// failure it returns one error joining every attempt's cause and no audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*SynthesisResult, error) {
	logger := core.LoggerFromContext(ctx, s.logger)
	text = prepareText(text)
	if text == "" {
		return nil, core.NewError(core.CodeSynthesisFailure, "Failed to generate speech audio: no speakable text")
	}

	var causes []error
	state := StateAttemptPrimary1
	retried := false

	for {
		target := s.primary
		if state == StateFallback {
			target = s.fallback
		}

		audio, err := s.attempt(ctx, target, text)
		next := Next(state, Classify(err))

		if err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", target.Provider.Name(), err))
			logger.With(map[string]any{
				"provider": target.Provider.Name(),
				"state":    state.String(),
				"next":     next.String(),
				"error":    err,
			}).Warn("speech synthesis attempt failed")
		}

		switch next {
		case StateSuccess:
			s.metrics.RecordSynthesis(target.Provider.Name(), retried)
			logger.With(map[string]any{
				"provider": target.Provider.Name(),
				"bytes":    len(audio),
				"retried":  retried,
			}).Info("speech synthesized")
			return &SynthesisResult{
				Audio:    audio,
				MimeType: target.MimeType,
				Provider: target.Provider.Name(),
				Voice:    target.Voice,
			}, nil
		case StateFailure:
			s.metrics.RecordSynthesis("", retried)
			return nil, core.WrapError(errors.Join(causes...), core.CodeSynthesisFailure, "Failed to generate speech audio")
		case StateAttemptPrimary2:
			retried = true
			if err := sleepContext(ctx, s.RetryBackoff); err != nil {
				causes = append(causes, err)
				s.metrics.RecordSynthesis("", retried)
				return nil, core.WrapError(errors.Join(causes...), core.CodeSynthesisFailure, "Failed to generate speech audio")
			}
		}
		state = next
	}
}

// SynthesizeFallback renders text with the fallback provider only.
func (s *Synthesizer) SynthesizeFallback(ctx context.Context, text string) (*SynthesisResult, error) {
	text = prepareText(text)
	if text == "" {
		return nil, core.NewError(core.CodeSynthesisFailure, "Failed to generate speech audio: no speakable text")
	}
	audio, err := s.attempt(ctx, s.fallback, text)
	if err != nil {
		return nil, core.WrapError(err, core.CodeSynthesisFailure, "Failed to generate speech audio",
			core.FieldProvider(s.fallback.Provider.Name()))
	}
	return &SynthesisResult{
		Audio:    audio,
		MimeType: s.fallback.MimeType,
		Provider: s.fallback.Provider.Name(),
		Voice:    s.fallback.Voice,
	}, nil
}

func (s *Synthesizer) attempt(ctx context.Context, target Target, text string) ([]byte, error) {
	start := time.Now()
	audio, err := target.Provider.Synthesize(ctx, text)
	if err == nil && len(audio) == 0 {
		err = fmt.Errorf("empty audio")
	}
	s.metrics.RecordProviderCall("tts", target.Provider.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// prepareText normalizes text, keeping the raw text when normalization leaves nothing.
func prepareText(text string) string {
	if normalized := normalizeTextForTTS(text); normalized != "" {
		return normalized
	}
	return strings.TrimSpace(text)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
