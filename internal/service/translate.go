package service

import (
	"context"
	"strings"

	"github.com/MimeLyc/caption-studio/pkg/log"
)

const translationFailedMessage = "Translation failed. Please try again later."

// TranslationBackend translates text into a target language.
type TranslationBackend interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Translator renders the session's caption in another language, using the
// session cache before calling the backend.
type Translator struct {
	backend TranslationBackend
}

func NewTranslator(b TranslationBackend) *Translator {
	return &Translator{backend: b}
}

// TranslateCurrent translates the session's current caption.
func (t *Translator) TranslateCurrent(ctx context.Context, s *Session, target string) (DisplayState, error) {
	return t.Translate(ctx, s, s.Caption().Text, target)
}

// Translate renders sourceText in target and updates the display.
// English and cached pairs resolve without a network call. If a new caption
// lands while the request is in flight, the result is cached but the
// display keeps showing the newer caption.
func (t *Translator) Translate(ctx context.Context, s *Session, sourceText, target string) (DisplayState, error) {
	if strings.TrimSpace(sourceText) == "" {
		msg := "No caption to translate. Generate a caption first."
		s.presenter.ShowError(msg)
		return DisplayState{}, NewErrorWithCause(KindPrecondition, "no caption to translate", ErrNoCaptionToTranslate).WithPublic(msg)
	}
	if strings.TrimSpace(target) == "" {
		msg := "Choose a language to translate into."
		s.presenter.ShowError(msg)
		return DisplayState{}, NewErrorWithCause(KindValidation, "target language is required", ErrNoTargetLanguage).WithPublic(msg)
	}

	generation := s.captionGeneration()

	if target == SourceLanguage {
		return t.apply(s, generation, DisplayState{Language: SourceLanguage, Text: sourceText}), nil
	}
	if cached, ok := s.cache.Lookup(sourceText, target); ok {
		log.Debug("Translation cache hit for %s", target)
		return t.apply(s, generation, DisplayState{Language: target, Text: cached}), nil
	}

	if !s.translationBusy.CompareAndSwap(false, true) {
		return DisplayState{}, NewErrorWithCause(KindPrecondition, "translation already in progress", ErrBusy)
	}
	s.presenter.ShowOverlay(OverlayGlobal, true, "Translating…")
	s.presenter.SetControl(ControlTranslate, false)
	defer func() {
		s.translationBusy.Store(false)
		s.presenter.SetControl(ControlTranslate, true)
		s.presenter.ShowOverlay(OverlayGlobal, false, "")
	}()

	raw, err := t.backend.Translate(ctx, sourceText, target)
	if err != nil {
		log.Error("Translation to %s failed: %v", target, err)
		s.presenter.ShowError(translationFailedMessage)
		return DisplayState{}, classifyBackendError("translate", err).WithContext("target", target).
			WithPublic(translationFailedMessage)
	}

	translated := strings.TrimSpace(raw)
	if translated == "" {
		log.Error("Translation to %s failed: %v", target, ErrEmptyTranslation)
		s.presenter.ShowError(translationFailedMessage)
		return DisplayState{}, NewErrorWithCause(KindEmptyResult, "translation backend returned no text", ErrEmptyTranslation).
			WithContext("target", target).WithPublic(translationFailedMessage)
	}

	s.cache.Store(sourceText, target, translated)
	return t.apply(s, generation, DisplayState{Language: target, Text: translated}), nil
}

func (t *Translator) apply(s *Session, generation uint64, d DisplayState) DisplayState {
	if !s.setDisplay(generation, d) {
		log.Info("Caption changed during translation to %s; keeping the newer caption on display", d.Language)
		return d
	}
	s.presenter.ShowCaption(d.Text)
	return d
}
