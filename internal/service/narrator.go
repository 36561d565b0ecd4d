package service

import (
	"context"
	"errors"

	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/MimeLyc/caption-studio/pkg/log"
)

// Narrator reads the displayed text aloud in the displayed language.
type Narrator struct {
	speaker *speech.Speaker
}

func NewNarrator(speaker *speech.Speaker) *Narrator {
	return &Narrator{speaker: speaker}
}

// Speak starts reading the session's display, preempting any utterance
// already playing.
func (n *Narrator) Speak(ctx context.Context, s *Session, rate float64) error {
	d := s.Display()
	lang := d.Language
	if lang == "" {
		lang = SourceLanguage
	}
	return n.SpeakText(ctx, s, d.Text, lang, rate)
}

// SpeakText reads arbitrary text; an empty lang is inferred from the text.
func (n *Narrator) SpeakText(ctx context.Context, s *Session, text, lang string, rate float64) error {
	err := n.speaker.Speak(ctx, text, lang, rate)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, speech.ErrUnsupported):
		return NewErrorWithCause(KindCapabilityUnsupported, "speech synthesis unavailable", err)
	case errors.Is(err, speech.ErrNothingToSpeak):
		msg := "No caption to speak."
		s.presenter.ShowError(msg)
		return NewErrorWithCause(KindPrecondition, "nothing to speak", err).WithPublic(msg)
	default:
		log.Error("Speech failed: %v", err)
		return NewErrorWithCause(KindCapabilityUnsupported, "speech engine failed", err)
	}
}

// Wait blocks until the current utterance ends or ctx is done.
func (n *Narrator) Wait(ctx context.Context) {
	n.speaker.Wait(ctx)
}

func (n *Narrator) Stop() {
	n.speaker.Stop()
}
