package speech

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/MimeLyc/caption-studio/pkg/log"
)

const (
	DefaultRate = 1.0
	MinRate     = 0.1
	MaxRate     = 10.0
)

// Speaker turns displayed text into a single active utterance. Every call
// preempts the previous utterance; nothing is queued.
type Speaker struct {
	engine Engine
	voices VoiceSource
	notice func(string)

	unsupportedOnce sync.Once

	mu     sync.Mutex
	active Playback
}

type SpeakerOption func(*Speaker)

// WithUnsupportedNotice registers a callback shown the first time speech
// is requested on a host without a speech engine.
func WithUnsupportedNotice(fn func(message string)) SpeakerOption {
	return func(s *Speaker) {
		s.notice = fn
	}
}

func NewSpeaker(engine Engine, voices VoiceSource, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		engine: engine,
		voices: voices,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak cancels any active utterance and starts a new one for text in the
// given language. An empty code is inferred from the text.
func (s *Speaker) Speak(ctx context.Context, text, code string, rate float64) error {
	if s.engine == nil || !s.engine.Available() {
		s.unsupportedOnce.Do(func() {
			if s.notice != nil {
				s.notice("Text-to-Speech is not supported on this host.")
			}
		})
		return ErrUnsupported
	}
	if strings.TrimSpace(text) == "" {
		return ErrNothingToSpeak
	}

	if strings.TrimSpace(code) == "" {
		code = DetectLanguage(text)
	}
	var available []Voice
	if s.voices != nil {
		available = s.voices.Voices()
	}

	u := Utterance{
		Text:   text,
		Locale: LocaleFor(code),
		Rate:   ClampRate(rate),
		Voice:  ResolveVoice(code, available),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	pb, err := s.engine.Start(ctx, u)
	if err != nil {
		return fmt.Errorf("failed to start utterance: %w", err)
	}
	s.active = pb

	voiceName := "engine default"
	if u.Voice != nil {
		voiceName = u.Voice.Name
	}
	log.Debug("Speaking %d chars as %s (voice: %s, rate: %.1f)", len(text), u.Locale, voiceName, u.Rate)
	return nil
}

// Stop cancels the active utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
}

// Wait blocks until the active utterance finishes or ctx is done.
func (s *Speaker) Wait(ctx context.Context) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil {
		return
	}
	select {
	case <-active.Done():
	case <-ctx.Done():
		active.Cancel()
	}
}

// ClampRate keeps a rate inside what synthesis engines accept.
// Non-positive rates mean the default.
func ClampRate(rate float64) float64 {
	switch {
	case math.IsNaN(rate) || rate <= 0:
		return DefaultRate
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	default:
		return rate
	}
}
