package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/services"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves the pond monitor API
type Handler struct {
	readings *services.ReadingService
	alerts   *services.AlertService
	history  *services.HistoryService
	config   *services.ConfigService
	health   HealthChecker
	ws       http.Handler
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// Options bundles the handler's collaborators
type Options struct {
	Readings  *services.ReadingService
	Alerts    *services.AlertService
	History   *services.HistoryService
	Config    *services.ConfigService
	Health    HealthChecker
	Websocket http.Handler
	Logger    *logging.StructuredLogger
	Metrics   *metrics.Collector
}

// NewHandler creates a new API handler
func NewHandler(opts Options) *Handler {
	return &Handler{
		readings: opts.Readings,
		alerts:   opts.Alerts,
		history:  opts.History,
		config:   opts.Config,
		health:   opts.Health,
		ws:       opts.Websocket,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Code      int      `json:"code"`
	Field     string   `json:"field,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Succeeded []string `json:"succeeded,omitempty"`
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Use(h.requestID)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/feed/readings", h.instrument("/api/feed/readings", h.PostReadings)).Methods("POST")
	api.HandleFunc("/feed/latest", h.instrument("/api/feed/latest", h.PostLatest)).Methods("POST")

	api.HandleFunc("/device/status", h.instrument("/api/device/status", h.GetDeviceStatus)).Methods("GET")
	api.HandleFunc("/device/status", h.instrument("/api/device/status", h.PostDeviceStatus)).Methods("POST")

	api.HandleFunc("/alerts/active", h.instrument("/api/alerts/active", h.GetActiveAlerts)).Methods("GET")
	api.HandleFunc("/alerts/history", h.instrument("/api/alerts/history", h.GetAlertHistory)).Methods("GET")
	api.HandleFunc("/alerts/history/export", h.instrument("/api/alerts/history/export", h.ExportAlertHistory)).Methods("GET")
	api.HandleFunc("/alerts/acknowledge-all", h.instrument("/api/alerts/acknowledge-all", h.AcknowledgeAll)).Methods("POST")
	api.HandleFunc("/alerts/{id}/acknowledge", h.instrument("/api/alerts/{id}/acknowledge", h.AcknowledgeAlert)).Methods("POST")
	api.HandleFunc("/alerts/{id}", h.instrument("/api/alerts/{id}", h.DismissAlert)).Methods("DELETE")

	api.HandleFunc("/history", h.instrument("/api/history", h.QueryHistory)).Methods("GET")
	api.HandleFunc("/history/page/{page}", h.instrument("/api/history/page/{page}", h.GoToPage)).Methods("POST")
	api.HandleFunc("/history/calendar", h.instrument("/api/history/calendar", h.GetCalendar)).Methods("GET")
	api.HandleFunc("/history/export", h.instrument("/api/history/export", h.ExportHistory)).Methods("GET")

	api.HandleFunc("/config", h.instrument("/api/config", h.GetConfig)).Methods("GET")
	api.HandleFunc("/config/thresholds", h.instrument("/api/config/thresholds", h.SaveThresholds)).Methods("PUT")
	api.HandleFunc("/config/thresholds/reset", h.instrument("/api/config/thresholds/reset", h.ResetThresholds)).Methods("POST")
	api.HandleFunc("/config/aerator", h.instrument("/api/config/aerator", h.SaveAerator)).Methods("PUT")
	api.HandleFunc("/config/sampling", h.instrument("/api/config/sampling", h.SaveSampling)).Methods("PUT")
	api.HandleFunc("/config/notifications", h.instrument("/api/config/notifications", h.SaveNotifications)).Methods("PUT")
	api.HandleFunc("/config/wifi", h.instrument("/api/config/wifi", h.SaveWiFi)).Methods("PUT")

	api.HandleFunc("/docs/openapi.json", OpenAPISpec).Methods("GET")
	api.HandleFunc("/docs", SwaggerUI).Methods("GET")

	if h.ws != nil {
		router.Handle("/ws", h.ws).Methods("GET")
	}
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{
		"status": status["status"],
	})
	h.sendJSON(w, status, code)
}

// requestID tags every request context with an id for log correlation
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request count and duration per route template
func (h *Handler) instrument(endpoint string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(startTime)
			h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
			h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
		}()

		fn(rec, r)
	}
}

// sendJSON sends a JSON response
func (h *Handler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// sendServiceError maps typed service errors to status codes
func (h *Handler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var (
		validationErr *models.ValidationError
		shapeErr      *models.DataShapeError
		notFoundErr   *models.NotFoundError
		persistErr    *models.PersistenceError
		timeoutErr    *models.ConfirmationTimeoutError
	)

	resp := ErrorResponse{Message: err.Error()}

	switch {
	case errors.As(err, &validationErr):
		resp.Code = http.StatusBadRequest
		resp.Error = "validation_error"
		resp.Field = validationErr.Field
	case errors.As(err, &shapeErr):
		resp.Code = http.StatusBadRequest
		resp.Error = "invalid_reading"
	case errors.As(err, &persistErr):
		// checked before NotFound: a bulk failure may wrap one
		resp.Code = http.StatusBadGateway
		resp.Error = "persistence_error"
		resp.Failed = persistErr.IDs
		resp.Succeeded = persistErr.Succeeded
	case errors.As(err, &notFoundErr):
		resp.Code = http.StatusNotFound
		resp.Error = "not_found"
	case errors.As(err, &timeoutErr):
		resp.Code = http.StatusGatewayTimeout
		resp.Error = "confirmation_timeout"
	case errors.Is(err, context.Canceled):
		resp.Code = http.StatusRequestTimeout
		resp.Error = "cancelled"
	default:
		resp.Code = http.StatusInternalServerError
		resp.Error = "internal_error"
		resp.Message = "internal server error"
	}

	if resp.Code >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"method":   r.Method,
			"code":     resp.Code,
		}, err)
	}
	h.metrics.RecordAPIError(resp.Error, endpoint)
	h.sendJSON(w, resp, resp.Code)
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return &models.ValidationError{
			Field:   "body",
			Message: "invalid JSON body: " + err.Error(),
		}
	}
	return nil
}

// pageParam parses an optional page number; anything invalid means page 1
func pageParam(s string) int {
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
