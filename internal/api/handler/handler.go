// Package handler provides HTTP handlers for all API endpoints.
// Handlers stay thin: the sweep and the risk scorer do the work, handlers
// translate their results into the JSON contracts the dashboard and the
// external cron scheduler rely on.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/immowaechter/immowaechter/internal/api/respond"
	"github.com/immowaechter/immowaechter/internal/cache"
	"github.com/immowaechter/immowaechter/internal/config"
	"github.com/immowaechter/immowaechter/internal/notifications"
	"github.com/immowaechter/immowaechter/internal/risk"
)

// DB is the database health probe. *db.Pool satisfies it.
type DB interface {
	HealthCheck(ctx context.Context) error
}

// Sweeper runs one reminder sweep. *notifications.Sweeper satisfies it.
type Sweeper interface {
	Run(ctx context.Context, opts notifications.RunOptions) (*notifications.Result, error)
}

// RiskScorer scores one property. *risk.Scorer satisfies it.
type RiskScorer interface {
	Score(ctx context.Context, propertyID uuid.UUID) (risk.Assessment, error)
}

// Deps are the handler collaborators.
type Deps struct {
	DB      DB
	Cache   *cache.Cache
	Config  *config.Config
	Sweeper Sweeper
	Scorer  RiskScorer
	Logger  *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	db      DB
	cache   *cache.Cache
	cfg     *config.Config
	sweeper Sweeper
	scorer  RiskScorer
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	h := &Handler{
		db:      d.DB,
		cache:   d.Cache,
		cfg:     d.Config,
		sweeper: d.Sweeper,
		scorer:  d.Scorer,
		logger:  d.Logger,
	}
	if h.cache == nil {
		h.cache = cache.New(false)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "ImmoWächter API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
