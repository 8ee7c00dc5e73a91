package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"fishda-monitor/internal/history"
)

// GetActiveAlerts handles GET /api/alerts/active
func (h *Handler) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	alerts, err := h.alerts.Active(q.Get("severity"), q.Get("parameter"))
	if err != nil {
		h.sendServiceError(w, r, "/api/alerts/active", err)
		return
	}

	h.sendJSON(w, map[string]interface{}{
		"data":  alerts,
		"total": len(alerts),
	}, http.StatusOK)
}

// GetAlertHistory handles GET /api/alerts/history
func (h *Handler) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.alerts.History(alertFilter(r), pageParam(r.URL.Query().Get("page")))
	if err != nil {
		h.sendServiceError(w, r, "/api/alerts/history", err)
		return
	}
	h.sendJSON(w, page, http.StatusOK)
}

// ExportAlertHistory handles GET /api/alerts/history/export
func (h *Handler) ExportAlertHistory(w http.ResponseWriter, r *http.Request) {
	file, err := h.alerts.ExportHistory(r.Context(), alertFilter(r))
	if err != nil {
		h.sendServiceError(w, r, "/api/alerts/history/export", err)
		return
	}
	sendFile(w, file.Filename, file.ContentType, file.Data)
}

// AcknowledgeAlert handles POST /api/alerts/{id}/acknowledge
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	moved, err := h.alerts.Acknowledge(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, "/api/alerts/{id}/acknowledge", err)
		return
	}
	h.sendJSON(w, moved, http.StatusOK)
}

// AcknowledgeAll handles POST /api/alerts/acknowledge-all
func (h *Handler) AcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.alerts.AcknowledgeAll(r.Context())
	if err != nil {
		h.sendServiceError(w, r, "/api/alerts/acknowledge-all", err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}

// DismissAlert handles DELETE /api/alerts/{id}
func (h *Handler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.alerts.Dismiss(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.sendServiceError(w, r, "/api/alerts/{id}", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// alertFilter reads whole-day alert history filters; time windows do not apply
func alertFilter(r *http.Request) history.Filter {
	q := r.URL.Query()
	return history.Filter{
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		Severity:  q.Get("severity"),
		Parameter: q.Get("parameter"),
		SortOrder: history.SortNewest,
	}
}
