package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/researchflow/phi-sentinel/internal/audit"
	"github.com/researchflow/phi-sentinel/internal/batch"
	"github.com/researchflow/phi-sentinel/internal/cache"
	"github.com/researchflow/phi-sentinel/internal/config"
	"github.com/researchflow/phi-sentinel/internal/elevate"
	"github.com/researchflow/phi-sentinel/internal/logger"
	"github.com/researchflow/phi-sentinel/internal/ner"
	"github.com/researchflow/phi-sentinel/internal/phi"
	"github.com/researchflow/phi-sentinel/internal/scrub"
	"github.com/researchflow/phi-sentinel/internal/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server exposes the detection engine over HTTP.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	library    *phi.Library
	scanner    *phi.Scanner
	elevator   *elevate.Elevator
	nerClient  *ner.Client
	aggregator *batch.Aggregator
	scrubber   *scrub.Scrubber
	scanCache  *cache.ScanCache
	auditStore *audit.Store
	router     *mux.Router
	server     *http.Server
	wsHub      *websocket.Hub
	limiters   *clientLimiters
	startedAt  time.Time

	totalScans      atomic.Int64
	totalDetections atomic.Int64
}

// New creates a new server instance. The pattern library is built from the
// configured table up front; a table that fails validation is a startup
// error, never a silently reduced rule set.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	library, err := phi.NewLibrary(cfg.Engine.PatternSpecs(), log.WithComponent("phi").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pattern library: %w", err)
	}

	scanner := phi.NewScanner(library, phi.ScannerConfig{
		MaxTextLength: cfg.Engine.MaxTextLength,
	}, log.WithComponent("phi").Logger)

	elevator := elevate.NewElevator(nil, log.WithComponent("elevate").Logger)

	var nerClient *ner.Client
	if cfg.NER.Enabled {
		nerClient = ner.NewClient(ner.Config{
			Enabled:  cfg.NER.Enabled,
			Endpoint: cfg.NER.Endpoint,
			Timeout:  cfg.NER.Timeout,
		}, log.WithComponent("ner").Logger)
	}

	aggregator := batch.NewAggregator(scanner, elevator, nerClient, batch.Config{
		Workers:    cfg.Batch.Workers,
		ReportTopN: cfg.Batch.ReportTopN,
	}, log.WithComponent("batch").Logger)

	var scanCache *cache.ScanCache
	if cfg.Cache.Enabled {
		scanCache, err = cache.NewScanCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scan cache: %w", err)
		}
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(&audit.Config{
			DatabaseURL:     cfg.Audit.DatabaseURL,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		}, log.WithComponent("audit").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastDetections:  true,
		BroadcastBatches:     true,
		BroadcastSystem:      true,
		BroadcastConnections: true,
	}, log.WithComponent("websocket").Logger)

	router := mux.NewRouter()

	server := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		library:    library,
		scanner:    scanner,
		elevator:   elevator,
		nerClient:  nerClient,
		aggregator: aggregator,
		scrubber:   scrub.New(scanner),
		scanCache:  scanCache,
		auditStore: auditStore,
		router:     router,
		wsHub:      wsHub,
		startedAt:  time.Now(),
	}

	if cfg.Server.RateLimit.Enabled {
		server.limiters = newClientLimiters(
			rate.Limit(cfg.Server.RateLimit.RequestsPerSec),
			cfg.Server.RateLimit.Burst,
		)
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for detection event subscribers
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// Scan API
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/haspii", s.handleHasPhi).Methods("POST")
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")
	api.HandleFunc("/scrub", s.handleScrub).Methods("POST")
	api.HandleFunc("/report", s.handleReport).Methods("POST")
	api.HandleFunc("/cache", s.handleCacheClear).Methods("DELETE")
	api.HandleFunc("/audit/outcomes", s.handleAuditOutcomes).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting PHI-Sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.Int("active_patterns", s.library.PatternCount()),
		zap.String("library_version", s.library.Version()),
		zap.Bool("ner_enabled", s.config.NER.Enabled),
		zap.Bool("cache_enabled", s.config.Cache.Enabled),
		zap.Bool("audit_enabled", s.config.Audit.Enabled),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PHI-Sentinel server")
	if s.limiters != nil {
		s.limiters.close()
	}
	if s.scanCache != nil {
		if err := s.scanCache.Close(); err != nil {
			s.logger.Warn("Failed to close scan cache", zap.Error(err))
		}
	}
	if s.auditStore != nil {
		if err := s.auditStore.Close(); err != nil {
			s.logger.Warn("Failed to close audit store", zap.Error(err))
		}
	}
	return s.server.Shutdown(ctx)
}

// Library returns the pattern library so configuration reloads can swap
// the table in place.
func (s *Server) Library() *phi.Library {
	return s.library
}

// handleWebSocket handles WebSocket connections for event subscribers
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
