package speech

import (
	"context"
	"errors"
)

var (
	ErrUnsupported    = errors.New("text-to-speech is not supported on this host")
	ErrNothingToSpeak = errors.New("no caption to speak")
)

// Voice is one synthesis voice offered by an engine.
// Locale is a BCP 47 style tag such as "en-GB" or "fr_CA".
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// Utterance is a single synthesis request. A nil Voice lets the engine
// pick its own default for Locale.
type Utterance struct {
	Text   string
	Locale string
	Rate   float64
	Voice  *Voice
}

// Playback is a started utterance.
type Playback interface {
	Cancel()
	Done() <-chan struct{}
}

// Engine is the host's text-to-speech capability.
type Engine interface {
	Available() bool
	Voices(ctx context.Context) ([]Voice, error)
	// Start begins speaking u and returns immediately. ctx bounds startup
	// only; the returned Playback runs until it finishes or is cancelled.
	Start(ctx context.Context, u Utterance) (Playback, error)
}

// VoiceSource supplies the voices known at resolution time. The list may
// be empty while the engine is still loading.
type VoiceSource interface {
	Voices() []Voice
}
