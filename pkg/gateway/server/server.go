// Package server wires the gateway: configuration, collaborators, routes,
// and the middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/covercall/covercall/pkg/gateway/ai"
	"github.com/covercall/covercall/pkg/gateway/archive"
	"github.com/covercall/covercall/pkg/gateway/config"
	"github.com/covercall/covercall/pkg/gateway/handlers"
	"github.com/covercall/covercall/pkg/gateway/kb"
	"github.com/covercall/covercall/pkg/gateway/lifecycle"
	"github.com/covercall/covercall/pkg/gateway/meeting/engine"
	"github.com/covercall/covercall/pkg/gateway/meeting/sessions"
	"github.com/covercall/covercall/pkg/gateway/mw"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	engine    *engine.Engine
	lifecycle *lifecycle.Lifecycle
	sessions  *sessions.Tracker
	archive   *archive.Store

	aiEnabled        bool
	retrievalEnabled bool
}

// New builds the gateway. Missing collaborator credentials degrade features
// instead of failing startup: without a Gemini key the gateway still relays
// calls, without Pinecone every suggestion escalates, without a database URL
// nothing is archived.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var co engine.Collaborators

	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewClient(ctx, ai.Config{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDims:  int32(cfg.EmbeddingDims),
		})
		if err != nil {
			return nil, err
		}
		co.Transcriber = client
		co.Embedder = client
		co.Generator = client
	} else {
		logger.Warn("gemini api key not set, transcription and suggestions disabled")
	}

	if cfg.PineconeAPIKey != "" && cfg.PineconeHost != "" {
		searcher, err := kb.New(cfg.PineconeAPIKey, cfg.PineconeHost)
		if err != nil {
			return nil, err
		}
		co.Searcher = searcher
	} else {
		logger.Warn("pinecone not configured, retrieval disabled")
	}

	var store *archive.Store
	if cfg.DatabaseURL != "" {
		var err error
		store, err = archive.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		co.Archive = store
	} else {
		logger.Warn("database url not set, transcript archival disabled")
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		engine: engine.New(engine.Config{
			TriggerBytes:          cfg.TriggerBytes,
			GatedCeilingBytes:     cfg.GatedCeilingBytes,
			PartitionTopK:         cfg.PartitionTopK,
			MergeTopK:             cfg.MergeTopK,
			ContextWindow:         cfg.ContextWindow,
			Partitions:            cfg.Partitions,
			PartitionQueryTimeout: cfg.PartitionQueryTimeout,
			TranscribeTimeout:     cfg.TranscribeTimeout,
			SuggestionTimeout:     cfg.SuggestionTimeout,
		}, logger, co),
		lifecycle:        &lifecycle.Lifecycle{},
		sessions:         sessions.NewTracker(),
		archive:          store,
		aiEnabled:        co.Transcriber != nil,
		retrievalEnabled: co.Searcher != nil,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:           s.cfg,
		Lifecycle:        s.lifecycle,
		AIEnabled:        s.aiEnabled,
		RetrievalEnabled: s.retrievalEnabled,
		ArchiveEnabled:   s.archive != nil,
	})
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.Handle("/v1/meetings", handlers.MeetingsHandler{Logger: s.logger})
	var transcripts handlers.TranscriptStore
	if s.archive != nil {
		transcripts = s.archive
	}
	s.mux.Handle("/v1/meetings/", handlers.MeetingHandler{Engine: s.engine, Archive: transcripts})

	s.mux.Handle("/ws", handlers.MeetingSocketHandler{
		Config:    s.cfg,
		Engine:    s.engine,
		Logger:    s.logger,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Drain refuses new websocket upgrades, warns connected participants, waits
// for background work, and finally tears down remaining connections.
func (s *Server) Drain(ctx context.Context) {
	s.lifecycle.SetDraining(true)
	n := s.sessions.WarnAll("server is shutting down")
	if n > 0 {
		s.logger.Info("warned live connections", "count", n)
	}
	if !s.engine.Wait(ctx) {
		s.logger.Warn("background work did not drain before deadline")
	}
	s.sessions.CancelAll()
	if !s.sessions.Wait(ctx) {
		s.logger.Warn("live connections did not drain before deadline")
	}
}

// Close releases held resources after Drain.
func (s *Server) Close() {
	if s.archive != nil {
		s.archive.Close()
	}
}
