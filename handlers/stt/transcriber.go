package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voicerelay/core"
	"voicerelay/metrics"
	googlestt "voicerelay/services/google/stt"
	"voicerelay/utils/audio"
)

// Recognizer is the speech provider behind the Transcriber.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, req googlestt.RecognizeRequest) ([]string, error)
}

// Transcriber turns a drained audio buffer into text.
type Transcriber struct {
	recognizer Recognizer
	metrics    *metrics.Collector
	logger     *core.Logger
}

func NewTranscriber(recognizer Recognizer, logger *core.Logger) *Transcriber {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Transcriber{
		recognizer: recognizer,
		logger:     logger.With(map[string]any{"component": "transcriber"}),
	}
}

// WithMetrics records every recognition call on collector.
func (t *Transcriber) WithMetrics(collector *metrics.Collector) *Transcriber {
	t.metrics = collector
	return t
}

// Transcribe recognizes audio and joins the segments with newlines. A blank
// result is returned as-is; see IsBlank.
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, cfg RecognitionConfig) (string, error) {
	cfg = cfg.withDefaults()
	logger := core.LoggerFromContext(ctx, t.logger)
	if !cfg.Encoding.Known() {
		logger.With(map[string]any{"encoding": string(cfg.Encoding)}).Warn("unknown audio encoding, passing it to the provider as is")
	}

	data, encoding, err := prepareAudio(data, cfg.Encoding)
	if err != nil {
		return "", core.WrapError(err, core.CodeTranscriptionFailure, "Speech-to-Text failed",
			core.FieldProvider(t.recognizer.Name()))
	}

	start := time.Now()
	segments, err := t.recognizer.Recognize(ctx, googlestt.RecognizeRequest{
		Audio:           data,
		Encoding:        encoding,
		SampleRateHertz: cfg.SampleRateHertz,
		LanguageCode:    cfg.LanguageCode,
	})
	t.metrics.RecordProviderCall("stt", t.recognizer.Name(), err, time.Since(start))
	if err != nil {
		logger.With(map[string]any{"error": err, "encoding": string(encoding)}).Error("speech recognition failed")
		return "", core.WrapError(err, core.CodeTranscriptionFailure, "Speech-to-Text failed",
			core.FieldProvider(t.recognizer.Name()))
	}

	text := strings.Join(segments, "\n")
	logger.With(map[string]any{"chars": len(text), "language": cfg.LanguageCode}).Info("transcription ready")
	return text, nil
}

// IsBlank reports whether a transcription carries no speech.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// prepareAudio converts encodings the provider does not accept. A-law,
// optionally wrapped in WAV, becomes LINEAR16.
func prepareAudio(data []byte, encoding core.AudioEncoding) ([]byte, core.AudioEncoding, error) {
	if encoding != core.EncodingALAW {
		return data, encoding, nil
	}
	raw, err := audio.StripWAVHeaderIfPresent(data)
	if err != nil {
		return nil, encoding, fmt.Errorf("decode a-law input: %w", err)
	}
	return audio.ALawBytesToPCM(raw), core.EncodingLinear16, nil
}
