package handlers

import (
	"io"
	"net/http"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/services"
	"fishda-monitor/pkg/logging"
)

// maxFeedBody caps a feed batch upload
const maxFeedBody = 8 << 20

// PostReadings handles POST /api/feed/readings
func (h *Handler) PostReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBody))
	if err != nil {
		h.sendError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	records, err := services.ParseFeed(body)
	if err != nil {
		h.sendServiceError(w, r, "/api/feed/readings", err)
		return
	}

	result, err := h.readings.IngestBatch(ctx, records)
	if err != nil && result == nil {
		h.sendServiceError(w, r, "/api/feed/readings", err)
		return
	}
	if err != nil {
		// The batch is in; only some alerts failed to store.
		h.logger.Warn(ctx, "[API_FEED_PARTIAL] Batch stored with alert errors", logging.Fields{
			"error": err.Error(),
		})
		result.Errors = append(result.Errors, err.Error())
	}

	h.sendJSON(w, result, http.StatusOK)
}

// PostLatest handles POST /api/feed/latest
func (h *Handler) PostLatest(w http.ResponseWriter, r *http.Request) {
	var raw models.RawReading
	if err := decodeJSON(r, &raw); err != nil {
		h.sendServiceError(w, r, "/api/feed/latest", err)
		return
	}

	result, err := h.readings.IngestLatest(r.Context(), raw)
	if err != nil {
		h.sendServiceError(w, r, "/api/feed/latest", err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}

// GetDeviceStatus handles GET /api/device/status
func (h *Handler) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.config.Status(), http.StatusOK)
}

// PostDeviceStatus handles POST /api/device/status
func (h *Handler) PostDeviceStatus(w http.ResponseWriter, r *http.Request) {
	var status models.DeviceStatus
	if err := decodeJSON(r, &status); err != nil {
		h.sendServiceError(w, r, "/api/device/status", err)
		return
	}

	updated, err := h.config.UpdateDeviceStatus(r.Context(), status)
	if err != nil {
		h.sendServiceError(w, r, "/api/device/status", err)
		return
	}
	h.sendJSON(w, updated, http.StatusOK)
}
