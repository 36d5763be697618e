package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CTAG07/stache/pkg/tokenstore"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the engine, its stores and the HTTP API together.
type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	engine      *Engine
	snapshots   *tokenstore.SQLStore
	registry    *prometheus.Registry
	templateAPI *TemplateAPI
	snapshotAPI *SnapshotAPI
	serverAPI   *ServerAPI
	router      *mux.Router
}

// NewServer builds the engine for the current configuration and registers
// every route. A configured boot snapshot seeds the token cache.
func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	config := cm.Get()

	var registry *prometheus.Registry
	var reg prometheus.Registerer
	if config.Server.MetricsEnabled {
		registry = prometheus.NewRegistry()
		reg = registry
	}

	engine, err := newEngine(&config, logger, db, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create template engine: %w", err)
	}
	cm.SetEngine(engine.Mustache)

	snapshots, err := tokenstore.NewSQLStore(db)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}
	snapshots.SetLogger(logger)

	if name := config.Server.BootSnapshot; name != "" {
		if err = tokenstore.Seed(context.Background(), snapshots, name, engine.Mustache); err != nil {
			logger.Warn("Boot snapshot not restored, starting with an empty cache", "snapshot", name, "error", err)
		}
	}

	s := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		engine:      engine,
		snapshots:   snapshots,
		registry:    registry,
		templateAPI: NewTemplateAPI(engine, config.Server.MaxRequestBytes, logger),
		snapshotAPI: NewSnapshotAPI(engine, snapshots, config.Server.MaxRequestBytes, logger),
		serverAPI:   NewServerAPI(cm, actionChan, engine, logger),
		router:      mux.NewRouter(),
	}

	s.router.Use(s.logRequests)
	s.serverAPI.RegisterRoutes(s.router)
	s.templateAPI.RegisterRoutes(s.router)
	s.snapshotAPI.RegisterRoutes(s.router)
	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not Found")
	})

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the prepared statements held by the server.
func (s *Server) Close() {
	s.snapshots.Close()
	s.engine.Close()
}

// logRequests logs every API request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
