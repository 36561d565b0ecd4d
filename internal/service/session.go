package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MimeLyc/caption-studio/internal/preview"
	"github.com/MimeLyc/caption-studio/internal/selection"
	"github.com/MimeLyc/caption-studio/internal/translation"
	"github.com/MimeLyc/caption-studio/pkg/log"
)

// SourceLanguage is the language every generated caption is in.
const SourceLanguage = "en"

type CaptionState struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
}

type DisplayState struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

type BusyFlags struct {
	CaptionInProgress     bool `json:"caption_in_progress"`
	TranslationInProgress bool `json:"translation_in_progress"`
}

type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	Label    string `json:"label"`
}

// Snapshot is a consistent copy of the session for display.
type Snapshot struct {
	File               *FileInfo    `json:"file,omitempty"`
	Caption            CaptionState `json:"caption"`
	Display            DisplayState `json:"display"`
	Busy               BusyFlags    `json:"busy"`
	CachedTranslations int          `json:"cached_translations"`
}

// Session owns all mutable state of one user: the staged file, the current
// caption, what is displayed, the busy flags and the translation cache.
// Orchestrators receive it by reference; nothing lives in package globals.
type Session struct {
	presenter     Presenter
	previewMaxDim int
	cache         *translation.Cache

	mu         sync.RWMutex
	staged     *selection.StagedFile
	preview    *preview.Lazy
	caption    CaptionState
	display    DisplayState
	generation uint64

	captionBusy     atomic.Bool
	translationBusy atomic.Bool
}

type SessionOption func(*Session)

func WithPreviewMaxDim(maxDim int) SessionOption {
	return func(s *Session) {
		s.previewMaxDim = maxDim
	}
}

func WithCache(cache *translation.Cache) SessionOption {
	return func(s *Session) {
		s.cache = cache
	}
}

func NewSession(presenter Presenter, opts ...SessionOption) *Session {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	s := &Session{
		presenter:     presenter,
		previewMaxDim: preview.DefaultMaxDim,
		cache:         translation.NewCache(),
		caption:       CaptionState{SourceLanguage: SourceLanguage},
		display:       DisplayState{Language: SourceLanguage},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select validates a candidate and stages it. A nil candidate clears the
// selection. A rejected candidate leaves the current selection in place.
func (s *Session) Select(c *selection.Candidate) (selection.Result, error) {
	res, err := selection.Validate(c)
	if err != nil {
		msg := "Selected file is not an image. Please choose a JPG or PNG image."
		s.presenter.ShowError(msg)
		return res, NewErrorWithCause(KindValidation, "selected file is not an image", err).
			WithContext("mime_type", c.MIMEType).WithPublic(msg)
	}
	if res.Cleared {
		s.Clear()
		return res, nil
	}

	s.mu.Lock()
	s.staged = res.Staged
	s.preview = preview.NewLazy(res.Staged.Payload, s.previewMaxDim)
	s.mu.Unlock()

	s.presenter.ShowCaption(res.Warning)
	s.presenter.ShowFileLabel(res.Staged.Label())
	s.presenter.SetControl(ControlGenerate, true)
	if res.LargeFile {
		log.Warn("Large image staged: %s", res.Staged.Label())
	} else {
		log.Info("Image staged: %s", res.Staged.Label())
	}
	return res, nil
}

// Clear drops the staged file. The last caption stays available for
// translation and speech.
func (s *Session) Clear() {
	s.mu.Lock()
	s.staged = nil
	s.preview = nil
	s.mu.Unlock()

	s.presenter.ShowFileLabel("None")
	s.presenter.SetControl(ControlGenerate, false)
	s.presenter.ShowCaption("")
}

func (s *Session) Staged() *selection.StagedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staged
}

// Preview returns the thumbnail of the staged file, deriving it on first use.
func (s *Session) Preview(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	lazy := s.preview
	s.mu.RUnlock()
	if lazy == nil {
		return nil, NewErrorWithCause(KindPrecondition, "no file selected", ErrNoFileSelected)
	}
	return lazy.Get(ctx)
}

func (s *Session) Caption() CaptionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caption
}

func (s *Session) Display() DisplayState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

func (s *Session) Busy() BusyFlags {
	return BusyFlags{
		CaptionInProgress:     s.captionBusy.Load(),
		TranslationInProgress: s.translationBusy.Load(),
	}
}

func (s *Session) Cache() *translation.Cache {
	return s.cache
}

func (s *Session) Presenter() Presenter {
	return s.presenter
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Caption: s.caption,
		Display: s.display,
	}
	if s.staged != nil {
		snap.File = &FileInfo{
			Name:     s.staged.Name,
			Size:     s.staged.Size,
			MIMEType: s.staged.MIMEType,
			Label:    s.staged.Label(),
		}
	}
	s.mu.RUnlock()

	snap.Busy = s.Busy()
	snap.CachedTranslations = s.cache.Len()
	return snap
}

// setCaption installs a new caption and resets the display to it,
// invalidating any earlier translation.
func (s *Session) setCaption(text string) CaptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caption = CaptionState{Text: text, SourceLanguage: SourceLanguage}
	s.display = DisplayState{Language: SourceLanguage, Text: text}
	s.generation++
	return s.caption
}

func (s *Session) captionGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// setDisplay updates the display unless a newer caption arrived after
// generation was read. It reports whether the update was applied.
func (s *Session) setDisplay(generation uint64, d DisplayState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.display = d
	return true
}
