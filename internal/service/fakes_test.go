package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/MimeLyc/caption-studio/internal/speech"
)

type presenterEvent struct {
	Kind    string
	Target  string
	On      bool
	Message string
}

type recordingPresenter struct {
	mu     sync.Mutex
	events []presenterEvent
}

func (p *recordingPresenter) add(e presenterEvent) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPresenter) ShowOverlay(o Overlay, show bool, msg string) {
	p.add(presenterEvent{Kind: "overlay", Target: string(o), On: show, Message: msg})
}
func (p *recordingPresenter) ShowCaption(text string) {
	p.add(presenterEvent{Kind: "caption", Message: text})
}
func (p *recordingPresenter) ShowError(msg string) {
	p.add(presenterEvent{Kind: "error", Message: msg})
}
func (p *recordingPresenter) ShowFileLabel(label string) {
	p.add(presenterEvent{Kind: "label", Message: label})
}
func (p *recordingPresenter) SetControl(c Control, enabled bool) {
	p.add(presenterEvent{Kind: "control", Target: string(c), On: enabled})
}
func (p *recordingPresenter) Notify(msg string) {
	p.add(presenterEvent{Kind: "notify", Message: msg})
}

func (p *recordingPresenter) all() []presenterEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]presenterEvent(nil), p.events...)
}

func (p *recordingPresenter) last(kind string) (presenterEvent, bool) {
	events := p.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return presenterEvent{}, false
}

func (p *recordingPresenter) count(kind string) int {
	n := 0
	for _, e := range p.all() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fakeCaptionBackend struct {
	calls   atomic.Int32
	caption string
	err     error
	// when set, Caption signals entered and waits on release
	entered chan struct{}
	release chan struct{}
	last    backend.Image
}

func (f *fakeCaptionBackend) Caption(ctx context.Context, img backend.Image) (string, error) {
	f.calls.Add(1)
	f.last = img
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.caption, f.err
}

type fakeTranslationBackend struct {
	calls   atomic.Int32
	results map[string]string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeTranslationBackend) Translate(ctx context.Context, text, target string) (string, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	return f.results[text+"|"+target], nil
}

type fakePlayback struct{ done chan struct{} }

func (p *fakePlayback) Cancel()               {}
func (p *fakePlayback) Done() <-chan struct{} { return p.done }

type fakeEngine struct {
	available bool
	mu        sync.Mutex
	started   []speech.Utterance
}

func (e *fakeEngine) Available() bool { return e.available }

func (e *fakeEngine) Voices(context.Context) ([]speech.Voice, error) { return nil, nil }

func (e *fakeEngine) Start(_ context.Context, u speech.Utterance) (speech.Playback, error) {
	e.mu.Lock()
	e.started = append(e.started, u)
	e.mu.Unlock()
	return &fakePlayback{done: make(chan struct{})}, nil
}
