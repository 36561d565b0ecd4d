package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/MimeLyc/caption-studio/internal/config"
	"github.com/MimeLyc/caption-studio/internal/service"
	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoices struct {
	mu       sync.Mutex
	specs    []string
	startErr error
	stopped  int
}

func (f *fakeVoices) Start(_ context.Context, spec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	return f.startErr
}

func (f *fakeVoices) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

type fakeHTTP struct {
	listenCalled chan struct{}
	listenErr    error
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Addr:      "127.0.0.1:0",
			UIEnabled: true,
		},
		Speech: config.SpeechConfig{
			VoiceRefresh: "@every 1m",
		},
	}
}

func TestMain_StartsVoicesAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	voices := &fakeVoices{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, testConfig(), voices, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.Equal(t, []string{"@every 1m"}, voices.specs)
	assert.Equal(t, 1, voices.stopped)
}

func TestMain_ListenFailureStopsRun(t *testing.T) {
	voices := &fakeVoices{}
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address in use")

	err := runWithComponents(context.Background(), testConfig(), voices, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.Equal(t, 1, voices.stopped)
}

func TestMain_BadVoiceScheduleFailsFast(t *testing.T) {
	voices := &fakeVoices{startErr: errors.New("invalid voice refresh schedule")}
	httpSrv := newFakeHTTP()

	err := runWithComponents(context.Background(), testConfig(), voices, httpSrv)
	require.Error(t, err)

	select {
	case <-httpSrv.listenCalled:
		t.Fatal("http server must not start")
	default:
	}
}

func TestSettingsApplier_UpdatesClientAndSchedule(t *testing.T) {
	client, err := backend.NewClient(&backend.Config{BaseURL: "http://old:10000"})
	require.NoError(t, err)
	catalog := speech.NewVoiceCatalog(nil)
	t.Cleanup(catalog.Stop)

	c := &components{
		client:  client,
		session: service.NewSession(nil),
		catalog: catalog,
	}
	apply := settingsApplier(context.Background(), c)

	require.NoError(t, apply(config.RuntimeSettings{
		BackendURL:     "http://new:10000",
		TargetLanguage: "fr",
		SpeechRate:     1,
		VoiceRefresh:   "@every 5m",
	}))
	assert.Equal(t, "http://new:10000", client.BaseURL())
	assert.Equal(t, "@every 5m", catalog.Schedule())

	err = apply(config.RuntimeSettings{
		BackendURL:   "http://new:10000",
		VoiceRefresh: "not a schedule",
	})
	require.Error(t, err)
}

func TestSettingsApplier_ConcurrentApplies(t *testing.T) {
	client, err := backend.NewClient(&backend.Config{BaseURL: "http://old:10000"})
	require.NoError(t, err)
	catalog := speech.NewVoiceCatalog(nil)
	require.NoError(t, catalog.Start(context.Background(), "@every 1h"))
	t.Cleanup(catalog.Stop)

	c := &components{
		client:  client,
		session: service.NewSession(nil),
		catalog: catalog,
	}
	apply := settingsApplier(context.Background(), c)

	type applied struct{ url, spec string }
	want := make([]applied, 8)
	for i := range want {
		want[i] = applied{
			url:  fmt.Sprintf("http://host%d:10000", i),
			spec: fmt.Sprintf("@every %dm", i+1),
		}
	}

	var wg sync.WaitGroup
	for _, w := range want {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, apply(config.RuntimeSettings{
				BackendURL:     w.url,
				TargetLanguage: "fr",
				SpeechRate:     1,
				VoiceRefresh:   w.spec,
			}))
		}()
	}
	wg.Wait()

	// whichever apply ran last, client and schedule come from the same one
	got := applied{url: client.BaseURL(), spec: catalog.Schedule()}
	assert.Contains(t, want, got)
}
