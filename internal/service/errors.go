package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/MimeLyc/caption-studio/internal/selection"
	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/MimeLyc/caption-studio/pkg/log"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindPrecondition
	KindTransport
	KindBackend
	KindFormat
	KindEmptyResult
	KindCapabilityUnsupported
)

var (
	ErrNoFileSelected       = errors.New("no file selected")
	ErrNoCaptionToTranslate = errors.New("no caption to translate")
	ErrNoTargetLanguage     = errors.New("no target language")
	ErrBusy                 = errors.New("operation already in progress")
	ErrEmptyTranslation     = errors.New("empty translation received")

	ErrNotAnImage     = selection.ErrNotAnImage
	ErrNothingToSpeak = speech.ErrNothingToSpeak
	ErrUnsupported    = speech.ErrUnsupported
)

// Error is returned by every session operation. Cause keeps the
// underlying reason so errors.Is works against the sentinels above.
//
// Public, when set, is the text shown to the user. It never carries the
// cause, so backend replies stay in the logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Public  string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// WithPublic sets the user-facing text of the error.
func (e *Error) WithPublic(message string) *Error {
	e.Public = message
	return e
}

// PublicMessage returns the text of err that is safe to hand to a client:
// the user-facing text if set, else the bare message without context or
// cause. Foreign errors get a generic text.
func PublicMessage(err error) string {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		return "Internal error."
	}
	if svcErr.Public != "" {
		return svcErr.Public
	}
	return svcErr.Message
}

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindPrecondition:
		return "Precondition"
	case KindTransport:
		return "Transport"
	case KindBackend:
		return "Backend"
	case KindFormat:
		return "Format"
	case KindEmptyResult:
		return "EmptyResult"
	case KindCapabilityUnsupported:
		return "CapabilityUnsupported"
	default:
		return "Unknown"
	}
}

// Advice tells the user how to recover from an error of kind k.
func (k ErrorKind) Advice() string {
	switch k {
	case KindValidation:
		return "Correct the input and try again"
	case KindPrecondition:
		return "Complete the previous step, then try again"
	case KindTransport:
		return "Check the connection to the backend service and retry"
	case KindBackend:
		return "The backend service rejected the request; retry later"
	case KindFormat:
		return "The backend service sent an unexpected reply; retry later"
	case KindEmptyResult:
		return "The translation came back empty; retry or pick another language"
	case KindCapabilityUnsupported:
		return "Text-to-speech is unavailable on this host"
	default:
		return "Review the error details and retry"
	}
}

func IsKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind == kind
	}
	return false
}

// KindOf reports the kind of a session error; ok is false for foreign errors.
func KindOf(err error) (ErrorKind, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind, true
	}
	return 0, false
}

// classifyBackendError maps a backend client failure onto the taxonomy.
func classifyBackendError(op string, err error) *Error {
	var statusErr *backend.StatusError
	switch {
	case errors.As(err, &statusErr):
		return NewErrorWithCause(KindBackend, fmt.Sprintf("%s backend returned status %d", op, statusErr.StatusCode), err).
			WithContext("status", statusErr.StatusCode)
	case errors.Is(err, backend.ErrMalformedResponse):
		return NewErrorWithCause(KindFormat, fmt.Sprintf("%s backend sent an unexpected response", op), err)
	default:
		return NewErrorWithCause(KindTransport, fmt.Sprintf("%s backend unreachable", op), err)
	}
}

// captionFailureDetail is the part of the caption error shown to the user.
func captionFailureDetail(err error) string {
	var statusErr *backend.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Server error %d: %s", statusErr.StatusCode, statusErr.Detail())
	case errors.Is(err, backend.ErrMalformedResponse):
		return "Invalid response format from server."
	default:
		return "Network or server error."
	}
}

// StatusCode returns the backend HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Handle logs a session error with its recovery advice and reports
// whether it was one of ours.
func Handle(err error) bool {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		log.Error("Unknown error: %v", err)
		return false
	}
	log.Error("Error detail: %v | advice: %s", err, svcErr.Kind.Advice())
	return true
}
