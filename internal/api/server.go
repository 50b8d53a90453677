package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nflpicks/tracker/internal/cloudsync"
	"nflpicks/tracker/internal/predictions"
	"nflpicks/tracker/internal/registry"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Deps are the services the API exposes.
type Deps struct {
	Store       *predictions.Store
	Coordinator *cloudsync.Coordinator
	Registry    registry.Source
	// AllowedOrigins configures CORS; empty allows any origin.
	AllowedOrigins []string
	Now            func() time.Time
}

// Server serves the tracker JSON API.
type Server struct {
	store    *predictions.Store
	coord    *cloudsync.Coordinator
	registry registry.Source
	now      func() time.Time

	router  *mux.Router
	handler http.Handler
	srv     *http.Server
}

// NewServer wires routes and middleware.
func NewServer(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		store:    deps.Store,
		coord:    deps.Coordinator,
		registry: deps.Registry,
		now:      deps.Now,
		router:   mux.NewRouter(),
	}
	s.routes()

	c := cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) routes() {
	s.router.Use(requestIDMiddleware, accessLogMiddleware)

	r := s.router.PathPrefix("/api").Subrouter()

	r.HandleFunc("/teams", s.handleTeams).Methods(http.MethodGet)
	r.HandleFunc("/games", s.handleGames).Methods(http.MethodGet)

	r.HandleFunc("/predictions", s.handleGetPredictions).Methods(http.MethodGet)
	r.HandleFunc("/predictions/games/{gameID}", s.handleSetGamePrediction).Methods(http.MethodPut)
	r.HandleFunc("/predictions/games/{gameID}", s.handleClearGamePrediction).Methods(http.MethodDelete)
	r.HandleFunc("/predictions/records/{team}", s.handleSetRecordPrediction).Methods(http.MethodPut)
	r.HandleFunc("/predictions/records/{team}", s.handleClearRecordPrediction).Methods(http.MethodDelete)
	r.HandleFunc("/predictions/postseason", s.handleGetPostseason).Methods(http.MethodGet)
	r.HandleFunc("/predictions/postseason", s.handleSetPostseason).Methods(http.MethodPut)

	r.HandleFunc("/accuracy", s.handleAccuracy).Methods(http.MethodGet)

	r.HandleFunc("/sync/status", s.handleSyncStatus).Methods(http.MethodGet)
	r.HandleFunc("/sync/configure", s.handleSyncConfigure).Methods(http.MethodPost)
	r.HandleFunc("/sync/reconcile", s.handleSyncReconcile).Methods(http.MethodPost)
	r.HandleFunc("/sync/push", s.handleSyncPush).Methods(http.MethodPost)
	r.HandleFunc("/sync/resync", s.handleSyncResync).Methods(http.MethodPost)
	r.HandleFunc("/sync/schedule", s.handleSyncSchedule).Methods(http.MethodPut)
	r.HandleFunc("/sync/disconnect", s.handleSyncDisconnect).Methods(http.MethodPost)
	r.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)

	r.HandleFunc("/backup/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/backup/import", s.handleImport).Methods(http.MethodPost)
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting API server")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	log.Info().Msg("Shutting down API server")
	return s.srv.Shutdown(ctx)
}
