// Package server exposes the text encoder over HTTP: encode requests,
// similarity search against the vector store, registry introspection, and a
// WebSocket feed of pipeline progress.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/cache"
	"github.com/lumenml/textvec/internal/config"
	"github.com/lumenml/textvec/internal/encoder"
	"github.com/lumenml/textvec/internal/events"
	"github.com/lumenml/textvec/internal/logger"
	"github.com/lumenml/textvec/internal/registry"
	"github.com/lumenml/textvec/internal/store"
	"github.com/lumenml/textvec/internal/web"
)

// Server is the encoding service HTTP server.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	enc      *encoder.Encoder
	vectors  *store.Store
	embCache *cache.EmbeddingCache
	eventHub *events.Hub
	router   *mux.Router
	server   *http.Server

	// The encoder runs one forward pass at a time; concurrent requests
	// serialize here.
	encodeMu sync.Mutex
}

// New creates the encoding service around a prepared encoder. Store and cache
// may be nil when disabled in configuration.
func New(cfg *config.Config, log *logger.Logger, enc *encoder.Encoder, vectors *store.Store, embCache *cache.EmbeddingCache) *Server {
	eventHub := events.NewHub(cfg.Events.MaxConnections, log.WithComponent("events").Logger)

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		enc:      enc,
		vectors:  vectors,
		embCache: embCache,
		eventHub: eventHub,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Status page, embedded HTML
	s.router.HandleFunc("/", web.ServeStatus).Methods("GET")
	s.router.HandleFunc("/status", web.ServeStatus).Methods("GET")

	if s.config.Events.Enabled {
		s.router.HandleFunc(s.config.Events.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/encode", s.handleEncode).Methods("POST")
	api.HandleFunc("/similar", s.handleSimilar).Methods("POST")
	api.HandleFunc("/families", s.handleFamilies).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// Start starts the HTTP server and the event hub.
func (s *Server) Start() error {
	s.logger.Info("Starting encoding service",
		zap.Int("port", s.config.Server.Port),
		zap.String("checkpoint", s.enc.Binding().Checkpoint),
		zap.Int("dimensions", s.enc.Dimensions()),
	)

	go s.eventHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping encoding service")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// EventHub returns the progress event hub for pipeline wiring.
func (s *Server) EventHub() *events.Hub {
	return s.eventHub
}

// EncodeRequest is the POST /v1/encode body. Texts may contain JSON nulls;
// they encode as the empty string.
type EncodeRequest struct {
	Texts []*string `json:"texts"`
}

// EncodeResponse carries the encoded matrix in input row order.
type EncodeResponse struct {
	Vectors    [][]float32 `json:"vectors"`
	Dimensions int         `json:"dimensions"`
	Checkpoint string      `json:"checkpoint"`
	Rows       int         `json:"rows"`
	DurationMS int64       `json:"duration_ms"`
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Texts) == 0 {
		s.writeError(w, http.StatusBadRequest, "texts must not be empty")
		return
	}

	start := time.Now()
	s.encodeMu.Lock()
	vectors, err := s.enc.Encode(r.Context(), req.Texts)
	s.encodeMu.Unlock()
	if err != nil {
		s.logger.Error("Encode request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, EncodeResponse{
		Vectors:    vectors,
		Dimensions: s.enc.Dimensions(),
		Checkpoint: s.enc.Binding().Checkpoint,
		Rows:       len(vectors),
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// SimilarRequest is the POST /v1/similar body. Either Text or Embedding must
// be set; Text is encoded first.
type SimilarRequest struct {
	Text          string    `json:"text,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	MinSimilarity float32   `json:"min_similarity,omitempty"`
	Column        string    `json:"column,omitempty"`
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if s.vectors == nil {
		s.writeError(w, http.StatusServiceUnavailable, "vector store is disabled")
		return
	}

	var req SimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	embedding := req.Embedding
	if len(embedding) == 0 {
		if req.Text == "" {
			s.writeError(w, http.StatusBadRequest, "either text or embedding is required")
			return
		}
		s.encodeMu.Lock()
		vectors, err := s.enc.Encode(r.Context(), []*string{&req.Text})
		s.encodeMu.Unlock()
		if err != nil {
			s.logger.Error("Query encoding failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		embedding = vectors[0]
	}

	options := &store.SearchOptions{
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
		ColumnFilter:  req.Column,
	}
	if options.Limit <= 0 {
		options.Limit = 5
	}

	results, err := s.vectors.FindSimilar(r.Context(), embedding, options)
	if err != nil {
		s.logger.Error("Similarity search failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// FamilyInfo describes one registry entry for the families endpoint.
type FamilyInfo struct {
	Family     string `json:"family"`
	Checkpoint string `json:"checkpoint"`
	Tokenizer  string `json:"tokenizer"`
	HiddenSize int    `json:"hidden_size"`
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	families := registry.Families()
	infos := make([]FamilyInfo, 0, len(families))
	for _, family := range families {
		binding := registry.Resolve(family)
		infos = append(infos, FamilyInfo{
			Family:     family,
			Checkpoint: binding.Checkpoint,
			Tokenizer:  string(binding.Tokenizer),
			HiddenSize: binding.HiddenSize,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"families": infos,
		"default":  registry.DefaultFamily,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"events": s.eventHub.GetStats(),
	}

	if s.embCache != nil {
		stats["cache"] = s.embCache.GetStats()
	}
	if s.vectors != nil {
		storeStats, err := s.vectors.GetStats(r.Context())
		if err != nil {
			s.logger.Warn("Failed to get store stats", zap.Error(err))
		} else {
			stats["store"] = storeStats
		}
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":          "textvec",
		"model_name":    s.config.Encoder.ModelName,
		"checkpoint":    s.enc.Binding().Checkpoint,
		"dimensions":    s.enc.Dimensions(),
		"sent_embedder": s.config.Encoder.SentEmbedder,
		"store_enabled": s.vectors != nil,
		"cache_enabled": s.embCache != nil,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.eventHub.HandleWebSocket(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
