package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWithCaption(t *testing.T, p Presenter, caption string) *Session {
	t.Helper()
	s := NewSession(p)
	_, err := s.Select(jpegCandidate(10))
	require.NoError(t, err)
	_, err = NewCaptioner(&fakeCaptionBackend{caption: caption}).Generate(context.Background(), s)
	require.NoError(t, err)
	return s
}

func TestTranslate_CachesAndSkipsSecondCall(t *testing.T) {
	t.Parallel()

	p := &recordingPresenter{}
	s := sessionWithCaption(t, p, "a dog running")
	be := &fakeTranslationBackend{results: map[string]string{"a dog running|fr": " un chien qui court "}}
	tr := NewTranslator(be)

	got, err := tr.Translate(context.Background(), s, "a dog running", "fr")
	require.NoError(t, err)
	assert.Equal(t, DisplayState{Language: "fr", Text: "un chien qui court"}, got)
	assert.Equal(t, got, s.Display())

	cached, ok := s.Cache().Lookup("a dog running", "fr")
	require.True(t, ok)
	assert.Equal(t, "un chien qui court", cached)

	again, err := tr.Translate(context.Background(), s, "a dog running", "fr")
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, int32(1), be.calls.Load())

	shown, _ := p.last("caption")
	assert.Equal(t, "un chien qui court", shown.Message)
}

func TestTranslate_IdentityLaw(t *testing.T) {
	t.Parallel()

	be := &fakeTranslationBackend{}
	tr := NewTranslator(be)
	for _, text := range []string{"a dog running", "  padded  ", "x"} {
		s := NewSession(nil)
		got, err := tr.Translate(context.Background(), s, text, "en")
		require.NoError(t, err)
		assert.Equal(t, DisplayState{Language: "en", Text: text}, got)
		assert.Equal(t, got, s.Display())
	}
	assert.Zero(t, be.calls.Load())
}

func TestTranslate_BackToEnglishAfterTranslation(t *testing.T) {
	t.Parallel()

	s := sessionWithCaption(t, nil, "a cat")
	tr := NewTranslator(&fakeTranslationBackend{results: map[string]string{"a cat|de": "eine Katze"}})

	_, err := tr.TranslateCurrent(context.Background(), s, "de")
	require.NoError(t, err)
	got, err := tr.TranslateCurrent(context.Background(), s, "en")
	require.NoError(t, err)
	assert.Equal(t, DisplayState{Language: "en", Text: "a cat"}, got)
}

func TestTranslate_NoCaption(t *testing.T) {
	t.Parallel()

	p := &recordingPresenter{}
	s := NewSession(p)
	be := &fakeTranslationBackend{}

	for _, src := range []string{"", "   "} {
		_, err := NewTranslator(be).Translate(context.Background(), s, src, "fr")
		require.ErrorIs(t, err, ErrNoCaptionToTranslate)
		assert.True(t, IsKind(err, KindPrecondition))
	}
	_, err := NewTranslator(be).TranslateCurrent(context.Background(), s, "fr")
	require.ErrorIs(t, err, ErrNoCaptionToTranslate)

	assert.Zero(t, be.calls.Load())
	assert.False(t, s.Busy().TranslationInProgress)
	shown, _ := p.last("error")
	assert.Equal(t, "No caption to translate. Generate a caption first.", shown.Message)
}

func TestTranslate_RequiresTarget(t *testing.T) {
	t.Parallel()

	_, err := NewTranslator(&fakeTranslationBackend{}).Translate(context.Background(), NewSession(nil), "a dog", " ")
	require.ErrorIs(t, err, ErrNoTargetLanguage)
	assert.True(t, IsKind(err, KindValidation))
}

func TestTranslate_BackendError(t *testing.T) {
	t.Parallel()

	p := &recordingPresenter{}
	s := sessionWithCaption(t, p, "a dog running")
	before := s.Display()

	be := &fakeTranslationBackend{err: &backend.StatusError{Op: "translate", StatusCode: http.StatusInternalServerError, Body: `{"error": "Translation failed"}`}}
	_, err := NewTranslator(be).TranslateCurrent(context.Background(), s, "fr")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBackend))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))

	assert.Equal(t, before, s.Display())
	assert.False(t, s.Busy().TranslationInProgress)
	assert.Zero(t, s.Cache().Len())

	shown, _ := p.last("error")
	assert.Equal(t, "Translation failed. Please try again later.", shown.Message, "backend detail stays in the log")
	ctrl, _ := p.last("control")
	assert.Equal(t, presenterEvent{Kind: "control", Target: "translate", On: true}, ctrl)
	overlay, _ := p.last("overlay")
	assert.Equal(t, "global", overlay.Target)
	assert.False(t, overlay.On)
}

func TestTranslate_OtherFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		be   *fakeTranslationBackend
		kind ErrorKind
		is   error
	}{
		{
			name: "transport",
			be:   &fakeTranslationBackend{err: &backend.TransportError{Op: "translate", Err: errors.New("timeout")}},
			kind: KindTransport,
		},
		{
			name: "format",
			be:   &fakeTranslationBackend{err: backend.ErrMalformedResponse},
			kind: KindFormat,
			is:   backend.ErrMalformedResponse,
		},
		{
			name: "empty",
			be:   &fakeTranslationBackend{results: map[string]string{"a dog running|fr": "   "}},
			kind: KindEmptyResult,
			is:   ErrEmptyTranslation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPresenter{}
			s := sessionWithCaption(t, p, "a dog running")
			_, err := NewTranslator(tt.be).TranslateCurrent(context.Background(), s, "fr")
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, DisplayState{Language: "en", Text: "a dog running"}, s.Display())
			assert.False(t, s.Busy().TranslationInProgress)
			assert.Zero(t, s.Cache().Len())
			shown, _ := p.last("error")
			assert.Equal(t, translationFailedMessage, shown.Message)
		})
	}
}

func TestTranslate_RejectsReentry(t *testing.T) {
	t.Parallel()

	s := sessionWithCaption(t, nil, "a dog running")
	be := &fakeTranslationBackend{
		results: map[string]string{"a dog running|fr": "un chien qui court", "a dog running|es": "un perro corriendo"},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	tr := NewTranslator(be)

	done := make(chan error, 1)
	go func() {
		_, err := tr.TranslateCurrent(context.Background(), s, "fr")
		done <- err
	}()
	<-be.entered
	assert.True(t, s.Busy().TranslationInProgress)

	_, err := tr.TranslateCurrent(context.Background(), s, "es")
	require.ErrorIs(t, err, ErrBusy)

	// fast paths never touch the busy flag
	got, err := tr.TranslateCurrent(context.Background(), s, "en")
	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)

	close(be.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy().TranslationInProgress)
	assert.Equal(t, int32(1), be.calls.Load())
}

func TestTranslate_StaleResultDoesNotOverwriteNewCaption(t *testing.T) {
	t.Parallel()

	s := sessionWithCaption(t, nil, "a dog running")
	be := &fakeTranslationBackend{
		results: map[string]string{"a dog running|fr": "un chien qui court"},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := NewTranslator(be).TranslateCurrent(context.Background(), s, "fr")
		done <- err
	}()
	<-be.entered

	_, err := NewCaptioner(&fakeCaptionBackend{caption: "a cat sleeping"}).Generate(context.Background(), s)
	require.NoError(t, err)

	close(be.release)
	require.NoError(t, <-done)

	assert.Equal(t, DisplayState{Language: "en", Text: "a cat sleeping"}, s.Display())
	cached, ok := s.Cache().Lookup("a dog running", "fr")
	assert.True(t, ok)
	assert.Equal(t, "un chien qui court", cached)
}
