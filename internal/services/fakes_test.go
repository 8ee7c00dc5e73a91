package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/session"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

var pht = time.FixedZone("PHT", 8*3600)

var errStore = errors.New("store unavailable")

// fakeRepo is an in-memory PondRepository with per-operation failure injection
type fakeRepo struct {
	mu sync.Mutex

	readings []models.Reading
	active   map[string]models.Alert
	history  []models.Alert
	sections map[string]interface{}
	status   models.DeviceStatus

	historyFilter repository.AlertFilter

	upsertErr   error
	failAck     map[string]bool
	failSection map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		active:      make(map[string]models.Alert),
		sections:    make(map[string]interface{}),
		failAck:     make(map[string]bool),
		failSection: make(map[string]bool),
	}
}

func (r *fakeRepo) UpsertReadings(ctx context.Context, readings []models.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.readings = append(r.readings, readings...)
	return nil
}

func (r *fakeRepo) ListReadings(ctx context.Context, filter repository.ReadingFilter) ([]models.Reading, error) {
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

func (r *fakeRepo) CreateActiveAlert(ctx context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[alert.ID] = *alert
	return nil
}

func (r *fakeRepo) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeRepo) AcknowledgeAlert(ctx context.Context, id string, at int64, by string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAck[id] {
		return nil, errStore
	}
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

func (r *fakeRepo) DeleteActiveAlert(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; !ok {
		return &models.NotFoundError{Resource: "alert", ID: id}
	}
	delete(r.active, id)
	return nil
}

func (r *fakeRepo) ListHistoryAlerts(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyFilter = filter
	out := append([]models.Alert{}, r.history...)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeRepo) GetConfig(ctx context.Context) (models.DeviceConfig, error) {
	return models.DefaultDeviceConfig(), nil
}

func (r *fakeRepo) SaveConfigSection(ctx context.Context, section string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSection[section] {
		return errStore
	}
	r.sections[section] = value
	return nil
}

func (r *fakeRepo) section(name string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sections[name]
}

func (r *fakeRepo) GetDeviceStatus(ctx context.Context) (models.DeviceStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *fakeRepo) SaveDeviceStatus(ctx context.Context, status models.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	return nil
}

func (r *fakeRepo) HealthCheck(ctx context.Context) error {
	return nil
}

// recorder captures pushed events
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(msgType string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, msgType)
}

func (r *recorder) count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == msgType {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	deps  Deps
	repo  *fakeRepo
	push  *recorder
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	push := &recorder{}
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, pht)}

	return &fixture{
		deps: Deps{
			Repo:     repo,
			Session:  session.New(session.Options{Location: pht, HistoryLimit: 500}),
			Notifier: push,
			Logger:   logging.NewDiscardLogger(),
			Metrics:  metrics.NewNopCollector(),
			Clock:    clock.Now,
			Operator: "tester",
		},
		repo:  repo,
		push:  push,
		clock: clock,
	}
}

// seedActive puts alerts into both the store and the session
func (f *fixture) seedActive(alerts ...models.Alert) {
	for _, a := range alerts {
		f.repo.active[a.ID] = a
	}
	f.deps.Session.AddActive(alerts...)
}

func ms(t time.Time) float64 {
	return float64(t.UnixMilli())
}
