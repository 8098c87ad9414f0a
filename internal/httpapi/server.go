package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
	"github.com/MimeLyc/contextual-caption-translator/internal/service"
	"github.com/MimeLyc/contextual-caption-translator/internal/termmap"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
	SetCustomPrompt(lang, prompt string) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type diagnoser interface {
	Diagnose(ctx context.Context, creds []translator.Credential) ([]translator.Diagnosis, error)
}

type glossaryStore interface {
	Lookup(sourceLang, targetLang string) (termmap.TermMap, error)
	Put(sourceLang, targetLang string, tm termmap.TermMap) error
}

type Server struct {
	captions  *service.CaptionService
	queue     *jobs.Queue
	settings  runtimeSettingsStore
	apply     runtimeSettingsApplier
	diagnoser diagnoser
	logs      translator.LogSink
	glossary  glossaryStore

	streamInterval time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

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

func WithDiagnoser(d diagnoser) Option {
	return func(s *Server) {
		s.diagnoser = d
	}
}

func WithLogSink(logs translator.LogSink) Option {
	return func(s *Server) {
		s.logs = logs
	}
}

func WithGlossary(store glossaryStore) Option {
	return func(s *Server) {
		s.glossary = store
	}
}

func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		s.streamInterval = d
	}
}

func NewServer(captions *service.CaptionService, opts ...Option) *Server {
	s := &Server{
		captions:       captions,
		queue:          captions.Queue(),
		streamInterval: time.Second,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks until the server fails or is shut down. A Shutdown
// that lands first makes it return http.ErrServerClosed right away.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/segment", s.handleSegment)
	s.mux.HandleFunc("/api/translate", s.handleTranslate)
	s.mux.HandleFunc("/api/videos", s.handleVideos)
	s.mux.HandleFunc("/api/videos/", s.handleVideo)
	s.mux.HandleFunc("/api/logs", s.handleLogs)
	s.mux.HandleFunc("/api/keys/diagnose", s.handleDiagnose)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/prompts/custom", s.handleCustomPrompts)
	s.mux.HandleFunc("/api/glossary", s.handleGlossary)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobDetail)
}
