package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/caption-studio/internal/config"
	"github.com/MimeLyc/caption-studio/internal/service"
	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/MimeLyc/caption-studio/pkg/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// defaultMaxUpload bounds the multipart body of an image upload. Files above
// selection.MaxQuietSize are still accepted with a warning.
const defaultMaxUpload = 64 << 20

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

// Server exposes one caption session over a local JSON API.
type Server struct {
	session    *service.Session
	captioner  *service.Captioner
	translator *service.Translator
	narrator   *service.Narrator
	voices     speech.VoiceSource
	events     *EventHub

	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	mu            sync.RWMutex
	defaultTarget string
	defaultRate   float64

	maxUpload   int64
	corsOrigins []string
	uiEnabled   bool
	uiStaticDir string

	mux    *chi.Mux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

// WithCORS allows browser pages served from origins to call the API.
// An empty list allows any origin without credentials.
func WithCORS(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func WithNarrator(narrator *service.Narrator) Option {
	return func(s *Server) {
		s.narrator = narrator
	}
}

func WithVoices(voices speech.VoiceSource) Option {
	return func(s *Server) {
		s.voices = voices
	}
}

// WithEvents streams presenter updates from hub on /api/events.
func WithEvents(hub *EventHub) Option {
	return func(s *Server) {
		s.events = hub
	}
}

// WithDefaults sets the target language and speaking rate used when a
// request leaves them out.
func WithDefaults(target string, rate float64) Option {
	return func(s *Server) {
		s.defaultTarget = target
		s.defaultRate = rate
	}
}

func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(session *service.Session, captioner *service.Captioner, translator *service.Translator, opts ...Option) *Server {
	s := &Server{
		session:       session,
		captioner:     captioner,
		translator:    translator,
		defaultTarget: "fr",
		defaultRate:   speech.DefaultRate,
		maxUpload:     defaultMaxUpload,
		uiEnabled:     false,
		mux:           chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.events != nil {
		s.events.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := s.mux
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(s.corsOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Post("/selection", s.handleSelect)
		r.Delete("/selection", s.handleClearSelection)
		r.Get("/selection/preview", s.handlePreview)
		r.Post("/caption", s.handleCaption)
		r.Post("/translate", s.handleTranslate)
		r.Post("/speak", s.handleSpeak)
		r.Delete("/speak", s.handleStopSpeech)
		r.Get("/state", s.handleState)
		r.Get("/voices", s.handleVoices)
		r.Get("/voices/status", s.handleVoiceStatus)
		r.Get("/events", s.handleEventStream)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(s.handleStatic)
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCreds := true
	for _, o := range origins {
		if o == "*" {
			allowCreds = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

// requestLogger logs one line per API request. The wrapped writer keeps
// http.Flusher so event streams still work.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Debug("%s %s -> %d in %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		}
	})
}

func (s *Server) defaults() (string, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultTarget, s.defaultRate
}

func (s *Server) setDefaults(target string, rate float64) {
	s.mu.Lock()
	s.defaultTarget = target
	s.defaultRate = rate
	s.mu.Unlock()
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// unknown asset paths fall back to the page
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
