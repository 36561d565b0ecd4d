package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/MimeLyc/caption-studio/internal/config"
	"github.com/MimeLyc/caption-studio/internal/httpapi"
	"github.com/MimeLyc/caption-studio/internal/selection"
	"github.com/MimeLyc/caption-studio/internal/service"
	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/MimeLyc/caption-studio/pkg/file"
	"github.com/MimeLyc/caption-studio/pkg/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type voiceScheduler interface {
	Start(ctx context.Context, spec string) error
	Stop()
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	config.LoadDotEnv()

	cfg, store, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, store)
	case "caption":
		err = captionCmd(ctx, cfg, args)
	default:
		err = fmt.Errorf("unknown command %q (want serve or caption)", cmd)
	}
	if err != nil {
		service.Handle(err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and overlays the runtime settings file
// when one exists.
func loadConfig() (*config.Config, *config.RuntimeSettingsStore, error) {
	path := config.RuntimeSettingsFilePath()

	var opts []config.Option
	if settings, err := config.LoadRuntimeSettingsFile(path); err == nil {
		opts = append(opts, config.WithRuntimeSettings(settings))
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn("Ignoring settings file %s: %v", path, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, nil, err
	}
	store, err := config.NewRuntimeSettingsStore(path, cfg.RuntimeSettings())
	if err != nil {
		log.Warn("Runtime settings are read-only: %v", err)
		return cfg, nil, nil
	}
	return cfg, store, nil
}

// components is everything one caption session needs.
type components struct {
	client     *backend.Client
	session    *service.Session
	captioner  *service.Captioner
	translator *service.Translator
	narrator   *service.Narrator
	catalog    *speech.VoiceCatalog
}

func newComponents(cfg *config.Config, presenter service.Presenter) (*components, error) {
	client, err := backend.NewClient(&backend.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, err
	}

	engine := speech.NewCommandEngine(cfg.Speech.Command)
	catalog := speech.NewVoiceCatalog(engine)
	speaker := speech.NewSpeaker(engine, catalog, speech.WithUnsupportedNotice(presenter.Notify))

	return &components{
		client:     client,
		session:    service.NewSession(presenter, service.WithPreviewMaxDim(cfg.Preview.MaxDim)),
		captioner:  service.NewCaptioner(client),
		translator: service.NewTranslator(client),
		narrator:   service.NewNarrator(speaker),
		catalog:    catalog,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, store *config.RuntimeSettingsStore) error {
	hub := httpapi.NewEventHub(service.LogPresenter{})
	c, err := newComponents(cfg, hub)
	if err != nil {
		return err
	}

	opts := []httpapi.Option{
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithCORS(cfg.HTTP.CORSOrigins),
		httpapi.WithEvents(hub),
		httpapi.WithNarrator(c.narrator),
		httpapi.WithVoices(c.catalog),
		httpapi.WithDefaults(cfg.TargetLanguageCode(), cfg.Speech.Rate),
	}
	if store != nil {
		opts = append(opts,
			httpapi.WithRuntimeSettingsStore(store),
			httpapi.WithRuntimeSettingsApplier(settingsApplier(ctx, c)),
		)
	}
	srv := httpapi.NewServer(c.session, c.captioner, c.translator, opts...)
	defer c.narrator.Stop()

	return runWithComponents(ctx, cfg, c.catalog, srv)
}

// settingsApplier pushes saved runtime settings into the live components.
// Applies are serialized so concurrent updates land whole, one after another.
func settingsApplier(ctx context.Context, c *components) func(config.RuntimeSettings) error {
	var mu sync.Mutex
	return func(next config.RuntimeSettings) error {
		mu.Lock()
		defer mu.Unlock()

		if err := c.client.SetBaseURL(next.BackendURL); err != nil {
			return err
		}
		if err := c.catalog.Reschedule(ctx, next.VoiceRefresh); err != nil {
			return err
		}
		log.Info("Applied runtime settings: backend=%s target=%s rate=%.2f voices=%s",
			next.BackendURL, next.TargetLanguage, next.SpeechRate, next.VoiceRefresh)
		return nil
	}
}

// runWithComponents starts the voice refresher and the HTTP server and
// blocks until ctx is cancelled or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, voices voiceScheduler, httpSrv httpServer) error {
	if err := voices.Start(ctx, cfg.Speech.VoiceRefresh); err != nil {
		return err
	}
	defer voices.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Listening on %s", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// captionCmd captions one image from disk, optionally translating and
// reading the result aloud.
func captionCmd(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("caption", flag.ContinueOnError)
	lang := fs.String("lang", "", "translate the caption into this language code")
	speak := fs.Bool("speak", false, "read the result aloud")
	rate := fs.Float64("rate", cfg.Speech.Rate, "speaking rate")
	thumb := fs.Bool("preview", false, "also write a JPEG thumbnail next to the image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: caption [-lang code] [-speak] [-rate n] [-preview] <image>")
	}

	c, err := newComponents(cfg, service.LogPresenter{})
	if err != nil {
		return err
	}

	candidate, err := selection.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := c.session.Select(candidate); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if *thumb {
		out := file.Sibling(fs.Arg(0), ".preview.jpg")
		g.Go(func() error {
			// a missing preview never fails the caption
			data, err := c.session.Preview(gctx)
			if err == nil {
				err = os.WriteFile(out, data, 0o644)
			}
			if err != nil {
				log.Warn("Failed to write preview %s: %v", out, err)
				return nil
			}
			log.Info("Preview written to %s", out)
			return nil
		})
	}
	g.Go(func() error {
		_, err := c.captioner.Generate(gctx, c.session)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if *lang != "" {
		if _, err := c.translator.TranslateCurrent(ctx, c.session, *lang); err != nil {
			return err
		}
	}

	display := c.session.Display()
	fmt.Println(display.Text)

	if *speak {
		if err := c.catalog.Refresh(ctx); err != nil {
			log.Debug("Voice list unavailable: %v", err)
		}
		if err := c.narrator.Speak(ctx, c.session, *rate); err != nil {
			return err
		}
		c.narrator.Wait(ctx)
	}
	return nil
}
