package handlers

import (
	"net/http"

	"fishda-monitor/internal/models"
)

// GetConfig handles GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.config.Get(), http.StatusOK)
}

// SaveThresholds handles PUT /api/config/thresholds
func (h *Handler) SaveThresholds(w http.ResponseWriter, r *http.Request) {
	var table models.ThresholdTable
	if err := decodeJSON(r, &table); err != nil {
		h.sendServiceError(w, r, "/api/config/thresholds", err)
		return
	}

	saved, err := h.config.SaveThresholds(r.Context(), table)
	if err != nil {
		h.sendServiceError(w, r, "/api/config/thresholds", err)
		return
	}
	h.sendJSON(w, saved, http.StatusOK)
}

// ResetThresholds handles POST /api/config/thresholds/reset
func (h *Handler) ResetThresholds(w http.ResponseWriter, r *http.Request) {
	saved, err := h.config.ResetThresholds(r.Context())
	if err != nil {
		h.sendServiceError(w, r, "/api/config/thresholds/reset", err)
		return
	}
	h.sendJSON(w, saved, http.StatusOK)
}

// SaveAerator handles PUT /api/config/aerator
func (h *Handler) SaveAerator(w http.ResponseWriter, r *http.Request) {
	var aerator models.AeratorConfig
	if err := decodeJSON(r, &aerator); err != nil {
		h.sendServiceError(w, r, "/api/config/aerator", err)
		return
	}

	saved, err := h.config.SaveAerator(r.Context(), aerator)
	if err != nil {
		h.sendServiceError(w, r, "/api/config/aerator", err)
		return
	}
	h.sendJSON(w, saved, http.StatusOK)
}

// SaveSampling handles PUT /api/config/sampling
func (h *Handler) SaveSampling(w http.ResponseWriter, r *http.Request) {
	var sampling models.SamplingConfig
	if err := decodeJSON(r, &sampling); err != nil {
		h.sendServiceError(w, r, "/api/config/sampling", err)
		return
	}

	saved, preview, err := h.config.SaveSampling(r.Context(), sampling)
	if err != nil {
		h.sendServiceError(w, r, "/api/config/sampling", err)
		return
	}
	h.sendJSON(w, map[string]interface{}{
		"sampling": saved,
		"preview":  preview,
	}, http.StatusOK)
}

// SaveNotifications handles PUT /api/config/notifications
func (h *Handler) SaveNotifications(w http.ResponseWriter, r *http.Request) {
	var prefs models.NotificationConfig
	if err := decodeJSON(r, &prefs); err != nil {
		h.sendServiceError(w, r, "/api/config/notifications", err)
		return
	}

	saved, err := h.config.SaveNotifications(r.Context(), prefs)
	if err != nil {
		h.sendServiceError(w, r, "/api/config/notifications", err)
		return
	}
	h.sendJSON(w, saved, http.StatusOK)
}

// SaveWiFi handles PUT /api/config/wifi. The response waits for the node to
// confirm the new network or for the confirmation timeout.
func (h *Handler) SaveWiFi(w http.ResponseWriter, r *http.Request) {
	var wifi models.WiFiConfig
	if err := decodeJSON(r, &wifi); err != nil {
		h.sendServiceError(w, r, "/api/config/wifi", err)
		return
	}

	result, err := h.config.SaveWiFi(r.Context(), wifi)
	if err != nil {
		h.sendServiceError(w, r, "/api/config/wifi", err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}
