package core

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier attached to adapter-level errors.
type Code string

const (
	CodeTranscriptionFailure Code = "stt.transcribe.failure"
	CodeNoSpeechDetected     Code = "stt.transcribe.no_speech"
	CodeConversationFailure  Code = "llm.reply.failure"
	CodeSynthesisFailure     Code = "tts.synthesize.failure"
	CodeValidationInvalid    Code = "request.validate.invalid"
	CodeTurnInProgress       Code = "turn.guard.conflict"
	CodeConfigInvalid        Code = "config.validate.invalid"
)

// ErrNotConfigured is returned by provider clients that were built without credentials.
var ErrNotConfigured = stderrors.New("provider not configured")

// Attr is a structured key/value attached to an error.
type Attr struct {
	Key   string
	Value any
}

func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func NewError(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func WrapError(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// CodeOf returns the deepest code in the chain, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func FieldsOf(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func IsValidation(err error) bool {
	return HasCode(err, CodeValidationInvalid)
}

func IsNoSpeech(err error) bool {
	return HasCode(err, CodeNoSpeechDetected)
}

// HTTPStatus maps an error to the status code used by the HTTP surface.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case HasCode(err, CodeTurnInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// StatusError carries the HTTP status class of a failed provider call.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient reports whether err is a provider-side 5xx failure.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 && statusErr.StatusCode <= 599
	}
	return false
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

// reason returns the last dotted segment of a code.
func reason(code Code) string {
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

// IsFailure reports whether err carries a "*.failure" code.
func IsFailure(err error) bool {
	return reason(CodeOf(err)) == "failure"
}
