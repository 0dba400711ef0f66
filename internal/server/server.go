package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartoza/exoplanet-portal/internal/api"
	"github.com/kartoza/exoplanet-portal/internal/archive"
	"github.com/kartoza/exoplanet-portal/internal/config"
	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/logging"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg          config.Config
	httpServer   *http.Server
	router       *mux.Router
	registry     *api.Registry
	archiveStore *archive.Store
	logger       *slog.Logger
	stopJanitor  context.CancelFunc
}

// New creates a new Server with all components initialized. predictions is
// the remote model service every form submits to.
func New(cfg config.Config, predictions flow.PredictionAPI) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logging.New("server"),
	}

	flowOpts := []flow.Option{flow.WithLogger(logging.New("flow"))}

	// Archive is optional; the portal works without it
	store, err := archive.Open(filepath.Join(cfg.DataDir, archive.FileName))
	if err != nil {
		s.logger.Warn("detection archive not available", "error", err)
	} else {
		s.archiveStore = store
		flowOpts = append(flowOpts, flow.WithRecorder(store))
	}

	s.registry = api.NewRegistry(api.NewFactory(predictions, flowOpts...), cfg.SessionTTL)

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	var detections api.DetectionArchive
	if s.archiveStore != nil {
		detections = s.archiveStore
	}
	apiHandler := api.NewHandler(s.registry, detections, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Warn("could not load embedded static files", "error", err)
		return
	}

	// SPA fallback: serve index.html for any non-API route
	fileServer := http.FileServer(http.FS(staticContent))
	s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	go s.registry.Run(ctx)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Submissions wait on the remote API, so writes get its budget on top.
		WriteTimeout: 60*time.Second + s.cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("server listening", "url", fmt.Sprintf("http://localhost:%d", s.cfg.Port), "api", s.cfg.APIBaseURL)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.stopJanitor != nil {
		s.stopJanitor()
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Close stores
	if s.archiveStore != nil {
		if cerr := s.archiveStore.Close(); cerr != nil {
			s.logger.Warn("closing archive", "error", cerr)
		}
	}

	return err
}

// spaHandler serves the SPA, falling back to index.html for client-side routing
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	if _, err := fs.Stat(h.staticContent, cleanPath); err != nil {
		// File not found, serve index.html for SPA routing
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}
