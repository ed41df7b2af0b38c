// Package api exposes the threat-hunting engine over HTTP. It adapts
// requests to the hunt engine and nothing more: incident CRUD, AI
// classification, billing and session management are separate services.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"argus/config"
	"argus/hunt"
)

// API holds the HTTP server for the hunt engine.
type API struct {
	engine    *hunt.Engine
	logger    *zap.SugaredLogger
	validate  *validator.Validate
	limiters  *rateLimiters
	jwtSecret string

	historyLimit int
	server       *http.Server
}

// NewAPI creates the API server around an engine.
func NewAPI(engine *hunt.Engine, cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		engine:       engine,
		logger:       logger,
		validate:     validator.New(),
		limiters:     newRateLimiters(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
		jwtSecret:    cfg.API.JWTSecret,
		historyLimit: cfg.Query.HistoryLimit,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", a.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	huntRouter := router.PathPrefix("/api/v1/hunt").Subrouter()
	huntRouter.Use(a.principalMiddleware, a.rateLimitMiddleware)
	huntRouter.HandleFunc("/query", a.runQuery).Methods(http.MethodPost)
	huntRouter.HandleFunc("/saved", a.saveQuery).Methods(http.MethodPost)
	huntRouter.HandleFunc("/saved", a.listSaved).Methods(http.MethodGet)
	huntRouter.HandleFunc("/saved/{id}/run", a.runSaved).Methods(http.MethodPost)
	huntRouter.HandleFunc("/saved/{id}", a.deleteSaved).Methods(http.MethodDelete)
	huntRouter.HandleFunc("/history", a.listHistory).Methods(http.MethodGet)
	huntRouter.HandleFunc("/schema", a.getSchema).Methods(http.MethodGet)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Handler exposes the router, primarily for tests.
func (a *API) Handler() http.Handler {
	return a.server.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (a *API) Start() error {
	a.logger.Infow("Hunt API listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
