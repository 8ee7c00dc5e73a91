package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
	"fishda-monitor/internal/session"
)

// HistoryResponse is one page of a history query
type HistoryResponse struct {
	Data       []models.Reading   `json:"data"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
	Statistics history.Statistics `json:"statistics"`
	NoData     bool               `json:"noData"`
	Filter     history.Filter     `json:"filter"`
	Moved      *bool              `json:"moved,omitempty"`
}

func newHistoryResponse(p session.Page) HistoryResponse {
	items := p.Items
	if items == nil {
		items = []models.Reading{}
	}
	stats := p.Statistics
	if stats == nil {
		stats = history.Statistics{}
	}
	return HistoryResponse{
		Data:       items,
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		Statistics: stats,
		NoData:     p.Total == 0,
		Filter:     p.Filter,
	}
}

// QueryHistory handles GET /api/history
func (h *Handler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.history.Query(r.Context(), historyFilter(r), pageParam(r.URL.Query().Get("page")))
	if err != nil {
		h.sendServiceError(w, r, "/api/history", err)
		return
	}
	h.sendJSON(w, newHistoryResponse(page), http.StatusOK)
}

// GoToPage handles POST /api/history/page/{page}
func (h *Handler) GoToPage(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["page"]
	target, err := strconv.Atoi(raw)
	if err != nil {
		h.sendServiceError(w, r, "/api/history/page/{page}", &models.ValidationError{
			Field:   "page",
			Value:   raw,
			Message: fmt.Sprintf("invalid page %q", raw),
		})
		return
	}

	page, moved, err := h.history.GoToPage(r.Context(), target)
	if err != nil {
		h.sendServiceError(w, r, "/api/history/page/{page}", err)
		return
	}

	resp := newHistoryResponse(page)
	resp.Moved = &moved
	h.sendJSON(w, resp, http.StatusOK)
}

// GetCalendar handles GET /api/history/calendar
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.history.Calendar(), http.StatusOK)
}

// ExportHistory handles GET /api/history/export. Without filter parameters
// the current view is exported.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter *history.Filter
	if q.Get("date_from") != "" || q.Get("date_to") != "" {
		f := historyFilter(r)
		filter = &f
	}

	format := q.Get("format")
	if format == "" {
		format = "csv"
	}

	file, err := h.history.Export(r.Context(), format, filter)
	if err != nil {
		h.sendServiceError(w, r, "/api/history/export", err)
		return
	}
	sendFile(w, file.Filename, file.ContentType, file.Data)
}

func historyFilter(r *http.Request) history.Filter {
	q := r.URL.Query()
	return history.Filter{
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		TimeFrom:  q.Get("time_from"),
		TimeTo:    q.Get("time_to"),
		Severity:  q.Get("severity"),
		Parameter: q.Get("parameter"),
		SortOrder: history.SortOrder(q.Get("sort")),
	}
}

// sendFile writes a download with an attachment disposition
func sendFile(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
