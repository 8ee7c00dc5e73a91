package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/services"
	"fishda-monitor/internal/session"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

var pht = time.FixedZone("PHT", 8*3600)

// memRepo is a minimal in-memory PondRepository
type memRepo struct {
	mu        sync.Mutex
	readings  []models.Reading
	active    map[string]models.Alert
	history   []models.Alert
	status    models.DeviceStatus
	healthErr error
}

func newMemRepo() *memRepo {
	return &memRepo{active: make(map[string]models.Alert)}
}

func (r *memRepo) UpsertReadings(ctx context.Context, readings []models.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, readings...)
	return nil
}

func (r *memRepo) ListReadings(ctx context.Context, filter repository.ReadingFilter) ([]models.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(filter.Keys) == 0 {
		return append([]models.Reading{}, r.readings...), nil
	}
	want := make(map[string]bool, len(filter.Keys))
	for _, k := range filter.Keys {
		want[k] = true
	}
	out := []models.Reading{}
	for _, rd := range r.readings {
		if want[rd.Key] {
			out = append(out, rd)
		}
	}
	return out, nil
}

func (r *memRepo) CreateActiveAlert(ctx context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[alert.ID] = *alert
	return nil
}

func (r *memRepo) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, a)
	}
	return out, nil
}

func (r *memRepo) AcknowledgeAlert(ctx context.Context, id string, at int64, by string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.active[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "alert", ID: id}
	}
	delete(r.active, id)
	a.SourceID = id
	a.ID = "h-" + id
	a.Acknowledged = true
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = by
	r.history = append(r.history, a)
	return &a, nil
}

func (r *memRepo) DeleteActiveAlert(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; !ok {
		return &models.NotFoundError{Resource: "alert", ID: id}
	}
	delete(r.active, id)
	return nil
}

func (r *memRepo) ListHistoryAlerts(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert{}, r.history...), nil
}

func (r *memRepo) GetConfig(ctx context.Context) (models.DeviceConfig, error) {
	return models.DefaultDeviceConfig(), nil
}

func (r *memRepo) SaveConfigSection(ctx context.Context, section string, value interface{}) error {
	return nil
}

func (r *memRepo) GetDeviceStatus(ctx context.Context) (models.DeviceStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *memRepo) SaveDeviceStatus(ctx context.Context, status models.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	return nil
}

func (r *memRepo) HealthCheck(ctx context.Context) error {
	return r.healthErr
}

func newTestRouter(t *testing.T, repo *memRepo) *mux.Router {
	t.Helper()

	deps := services.Deps{
		Repo:     repo,
		Session:  session.New(session.Options{Location: pht, HistoryLimit: 500}),
		Logger:   logging.NewDiscardLogger(),
		Metrics:  metrics.NewNopCollector(),
		Operator: "tester",
	}

	h := NewHandler(Options{
		Readings: services.NewReadingService(deps, 5*time.Minute, 500),
		Alerts:   services.NewAlertService(deps),
		History:  services.NewHistoryService(deps),
		Config:   services.NewConfigService(deps, 50*time.Millisecond),
		Health:   repo,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
	})

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func millis(hour, minute int) int64 {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, pht).UnixMilli()
}

// feedBody builds a keyed batch: a normal reading at 08:00 and a critical DO at 08:30
func feedBody() string {
	batch := map[string]map[string]interface{}{
		"r1": {"timestamp": millis(8, 0), "temperature": 28.0, "do": 6.5, "ph": 7.8},
		"r2": {"timestamp": millis(8, 30), "temperature": 28.4, "do": 3.0, "ph": 7.6},
	}
	b, _ := json.Marshal(batch)
	return string(b)
}

func TestFeedThenQueryHistory(t *testing.T) {
	router := newTestRouter(t, newMemRepo())

	rr := do(t, router, http.MethodPost, "/api/feed/readings", feedBody())
	if rr.Code != http.StatusOK {
		t.Fatalf("feed status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var ingest services.IngestResult
	decode(t, rr, &ingest)
	if ingest.Accepted != 2 || len(ingest.Alerts) != 1 {
		t.Errorf("ingest = %+v, want 2 accepted and 1 alert", ingest)
	}

	rr = do(t, router, http.MethodGet, "/api/history?date_from=2026-03-02&date_to=2026-03-02&sort=oldest", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("history status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var page HistoryResponse
	decode(t, rr, &page)
	if page.Total != 2 || page.NoData || page.TotalPages != 1 || page.PageSize != 10 {
		t.Errorf("page = %+v", page)
	}
	if len(page.Data) != 2 || page.Data[0].Timestamp != millis(8, 0) {
		t.Errorf("data = %+v, want oldest first", page.Data)
	}
	if got := page.Statistics[models.DO].Count; got != 2 {
		t.Errorf("DO count = %d, want 2", got)
	}

	rr = do(t, router, http.MethodGet, "/api/history?date_from=2026-03-02&date_to=2026-03-02&time_from=08:15&time_to=08:45", "")
	decode(t, rr, &page)
	if page.Total != 1 {
		t.Errorf("windowed total = %d, want 1", page.Total)
	}

	rr = do(t, router, http.MethodGet, "/api/history?date_from=2026-03-03&date_to=2026-03-03", "")
	decode(t, rr, &page)
	if !page.NoData || page.Data == nil {
		t.Errorf("empty query = %+v, want noData with an empty list", page)
	}
}

func TestGoToPageOutOfRange(t *testing.T) {
	router := newTestRouter(t, newMemRepo())

	rr := do(t, router, http.MethodPost, "/api/history/page/2", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("before any query status = %d, want 400", rr.Code)
	}

	do(t, router, http.MethodPost, "/api/feed/readings", feedBody())
	do(t, router, http.MethodGet, "/api/history?date_from=2026-03-02&date_to=2026-03-02", "")

	rr = do(t, router, http.MethodPost, "/api/history/page/5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var page HistoryResponse
	decode(t, rr, &page)
	if page.Moved == nil || *page.Moved || page.Page != 1 {
		t.Errorf("page = %+v, want unmoved page 1", page)
	}
}

func TestAlertLifecycleRoutes(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(t, repo)
	do(t, router, http.MethodPost, "/api/feed/readings", feedBody())

	rr := do(t, router, http.MethodGet, "/api/alerts/active?severity=critical", "")
	var active struct {
		Data  []models.Alert `json:"data"`
		Total int            `json:"total"`
	}
	decode(t, rr, &active)
	if active.Total != 1 || active.Data[0].Parameter != models.DO {
		t.Fatalf("active = %+v", active)
	}

	rr = do(t, router, http.MethodPost, "/api/alerts/"+active.Data[0].ID+"/acknowledge", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("acknowledge status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var moved models.Alert
	decode(t, rr, &moved)
	if !moved.Acknowledged || moved.AcknowledgedBy != "tester" {
		t.Errorf("moved = %+v", moved)
	}

	rr = do(t, router, http.MethodGet, "/api/alerts/history", "")
	var hist services.AlertPage
	decode(t, rr, &hist)
	if hist.Total != 1 {
		t.Errorf("history total = %d, want 1", hist.Total)
	}

	rr = do(t, router, http.MethodGet, "/api/alerts/history/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestAcknowledgeAllPartialFailure(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(t, repo)

	// one reading with DO and pH both critical raises two alerts
	body := `{"r1": {"timestamp": ` + strconv.FormatInt(millis(8, 0), 10) + `, "do": 3.0, "ph": 6.0}}`
	rr := do(t, router, http.MethodPost, "/api/feed/readings", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("feed status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// drop one alert from the store so only the session still holds it
	var kept, gone string
	repo.mu.Lock()
	for id, a := range repo.active {
		if a.Parameter == models.PH {
			gone = id
			delete(repo.active, id)
		} else {
			kept = id
		}
	}
	repo.mu.Unlock()
	if kept == "" || gone == "" {
		t.Fatalf("expected a DO and a pH alert, got kept=%q gone=%q", kept, gone)
	}

	rr = do(t, router, http.MethodPost, "/api/alerts/acknowledge-all", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body = %s", rr.Code, rr.Body.String())
	}
	var resp ErrorResponse
	decode(t, rr, &resp)
	if resp.Error != "persistence_error" {
		t.Errorf("error = %q, want persistence_error", resp.Error)
	}
	if len(resp.Failed) != 1 || resp.Failed[0] != gone {
		t.Errorf("failed = %v, want [%s]", resp.Failed, gone)
	}
	if len(resp.Succeeded) != 1 || resp.Succeeded[0] != kept {
		t.Errorf("succeeded = %v, want [%s]", resp.Succeeded, kept)
	}

	rr = do(t, router, http.MethodGet, "/api/alerts/history", "")
	var hist services.AlertPage
	decode(t, rr, &hist)
	if hist.Total != 1 {
		t.Errorf("history total = %d, want the acknowledged alert", hist.Total)
	}
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t, newMemRepo())

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid date", http.MethodGet, "/api/history?date_from=03/02/2026&date_to=2026-03-02", "", http.StatusBadRequest, "validation_error"},
		{"half time window", http.MethodGet, "/api/history?date_from=2026-03-02&date_to=2026-03-02&time_from=08:00", "", http.StatusBadRequest, "validation_error"},
		{"unknown alert", http.MethodPost, "/api/alerts/missing/acknowledge", "", http.StatusNotFound, "not_found"},
		{"dismiss unknown", http.MethodDelete, "/api/alerts/missing", "", http.StatusNotFound, "not_found"},
		{"bad page", http.MethodPost, "/api/history/page/abc", "", http.StatusBadRequest, "validation_error"},
		{"export without data", http.MethodGet, "/api/history/export?format=csv", "", http.StatusBadRequest, "validation_error"},
		{"bad export format", http.MethodGet, "/api/history/export?format=docx", "", http.StatusBadRequest, "validation_error"},
		{"malformed feed", http.MethodPost, "/api/feed/readings", "not json", http.StatusBadRequest, "validation_error"},
		{"latest with bad time", http.MethodPost, "/api/feed/latest", `{"time": "yesterday", "do": 5}`, http.StatusBadRequest, "invalid_reading"},
		{"empty wifi ssid", http.MethodPut, "/api/config/wifi", `{"ssid": "", "password": "x"}`, http.StatusBadRequest, "validation_error"},
		{"inverted thresholds", http.MethodPut, "/api/config/thresholds", `{"do": {"safeMin": 8, "safeMax": 5, "warnMin": 4, "warnMax": 10}}`, http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, tt.method, tt.target, tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			var resp ErrorResponse
			decode(t, rr, &resp)
			if resp.Error != tt.wantErr || resp.Code != tt.wantCode {
				t.Errorf("response = %+v, want error %q", resp, tt.wantErr)
			}
		})
	}
}

func TestExportCurrentView(t *testing.T) {
	router := newTestRouter(t, newMemRepo())
	do(t, router, http.MethodPost, "/api/feed/readings", feedBody())
	do(t, router, http.MethodGet, "/api/history?date_from=2026-03-02&date_to=2026-03-02", "")

	rr := do(t, router, http.MethodGet, "/api/history/export?format=csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "fishda_history_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestHealthCheck(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(t, repo)

	if rr := do(t, router, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rr.Code)
	}

	repo.healthErr = errors.New("connection refused")
	rr := do(t, router, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}

func TestOpenAPISpecCoversRoutes(t *testing.T) {
	router := newTestRouter(t, newMemRepo())

	rr := do(t, router, http.MethodGet, "/api/docs/openapi.json", "")
	var doc struct {
		Info  map[string]interface{}     `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	decode(t, rr, &doc)

	for _, path := range []string{"/api/history", "/api/history/page/{page}", "/api/alerts/{id}/acknowledge", "/api/config/wifi"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("OpenAPI document is missing %s", path)
		}
	}
	if doc.Info["title"] != "FISHDA Pond Monitor API" {
		t.Errorf("title = %v", doc.Info["title"])
	}
}
