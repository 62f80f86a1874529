package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/immowaechter/immowaechter/internal/api/respond"
	"github.com/immowaechter/immowaechter/internal/cache"
	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/rules"
)

// GetRiskScore returns the risk assessment of one property.
// @Summary Get property risk score
// @Description Additive 0-100 risk indicator computed from the property's active components. Cached per property; invalidated when a component changes.
// @Tags risk
// @Produce json
// @Param propertyID path string true "Property UUID"
// @Success 200 {object} respond.Envelope{data=risk.Assessment}
// @Success 304 "Not modified"
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/v1/properties/{propertyID}/risk-score [get]
func (h *Handler) GetRiskScore(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "propertyID")
	propertyID, err := uuid.Parse(raw)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_ID", "propertyID must be a UUID", raw)
		return
	}

	cacheKey := cache.RiskScoreKey(propertyID.String())
	ttl := cache.TTLRiskScore

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	assessment, err := h.scorer.Score(r.Context(), propertyID)
	if errors.Is(err, component.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Property not found")
		return
	}
	if err != nil {
		h.logger.Error("Risk score failed", "property_id", propertyID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute risk score")
		return
	}

	data, err := respond.Marshal(assessment)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode risk score")
		return
	}
	etag := h.cache.Set(cacheKey, data, ttl)
	respond.WriteJSON(w, data, etag, ttl, false)
}

// GetRules returns the reminder cadence and risk weight table.
// @Summary Get threshold table
// @Description Reminder offsets, overdue cadence, category weights and level thresholds used by the sweep and the risk scorer.
// @Tags risk
// @Produce json
// @Success 200 {object} respond.Envelope{data=rules.Table}
// @Router /api/v1/rules [get]
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	data, err := respond.Marshal(rules.Snapshot())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode rules")
		return
	}
	etag := cache.ComputeETag(data)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLRules, false)
}
