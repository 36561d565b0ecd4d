package httpapi

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/MimeLyc/caption-studio/internal/config"
	"github.com/MimeLyc/caption-studio/internal/service"
	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/stretchr/testify/require"
)

type fakeSettingsStore struct {
	current   config.RuntimeSettings
	updateErr error
}

func (f *fakeSettingsStore) GetRuntimeSettings() (config.RuntimeSettings, error) {
	return f.current, nil
}

func (f *fakeSettingsStore) UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error) {
	if f.updateErr != nil {
		return config.RuntimeSettings{}, f.updateErr
	}
	f.current = next
	return f.current, nil
}

// fakeBackend answers both caption and translation calls. When block is
// set, Caption waits for release after signalling entered.
type fakeBackend struct {
	caption    string
	captionErr error
	block      bool
	entered    chan struct{}
	release    chan struct{}

	mu           sync.Mutex
	translations map[string]string
	translateErr error
	translates   atomic.Int32
}

func newFakeBackend(caption string) *fakeBackend {
	return &fakeBackend{
		caption:      caption,
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
		translations: map[string]string{},
	}
}

func (f *fakeBackend) Caption(ctx context.Context, img backend.Image) (string, error) {
	if f.block {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.caption, f.captionErr
}

func (f *fakeBackend) Translate(ctx context.Context, text, target string) (string, error) {
	f.translates.Add(1)
	if f.translateErr != nil {
		return "", f.translateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.translations[target], nil
}

type fakePlayback struct{ done chan struct{} }

func (p *fakePlayback) Cancel()               {}
func (p *fakePlayback) Done() <-chan struct{} { return p.done }

type fakeEngine struct {
	available bool

	mu     sync.Mutex
	spoken []speech.Utterance
}

func (e *fakeEngine) Available() bool { return e.available }

func (e *fakeEngine) Voices(context.Context) ([]speech.Voice, error) { return nil, nil }

func (e *fakeEngine) Start(_ context.Context, u speech.Utterance) (speech.Playback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spoken = append(e.spoken, u)
	return &fakePlayback{done: make(chan struct{})}, nil
}

func (e *fakeEngine) utterances() []speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Utterance(nil), e.spoken...)
}

type staticVoices []speech.Voice

func (v staticVoices) Voices() []speech.Voice { return v }

type testRig struct {
	server  *Server
	session *service.Session
	backend *fakeBackend
	engine  *fakeEngine
	hub     *EventHub
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	hub := NewEventHub(nil)
	session := service.NewSession(hub)
	fb := newFakeBackend("a dog on a beach")
	engine := &fakeEngine{available: true}
	voices := staticVoices{
		{ID: "en-us", Name: "English (America)", Locale: "en-US"},
		{ID: "fr-fr", Name: "French", Locale: "fr-FR"},
	}
	speaker := speech.NewSpeaker(engine, voices)

	base := []Option{
		WithEvents(hub),
		WithNarrator(service.NewNarrator(speaker)),
		WithVoices(voices),
		WithDefaults("fr", 1.0),
	}
	srv := NewServer(session, service.NewCaptioner(fb), service.NewTranslator(fb), append(base, opts...)...)
	return &testRig{server: srv, session: session, backend: fb, engine: engine, hub: hub}
}

func (r *testRig) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.server.Handler().ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, name, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + name + `"`}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/selection", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
