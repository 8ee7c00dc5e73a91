package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/websocket"
)

func TestReadingService_IngestBatch(t *testing.T) {
	fx := newFixture(t)
	svc := NewReadingService(fx.deps, 5*time.Minute, 500)

	now := fx.clock.Now()
	records := []FeedRecord{
		{Key: "r1", Raw: models.RawReading{"timestamp": ms(now.Add(-10 * time.Minute)), "do": 6.2, "temperature": 28.0}},
		{Key: "r2", Raw: models.RawReading{"timestamp": ms(now), "do": 3.0}},
		{Key: "bad", Raw: models.RawReading{"do": 6.0}},
	}

	result, err := svc.IngestBatch(context.Background(), records)
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}

	if result.Received != 3 || result.Accepted != 2 || result.Rejected != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", result.Received, result.Accepted, result.Rejected)
	}
	if len(fx.deps.Session.Readings()) != 2 {
		t.Errorf("session readings = %d, want 2", len(fx.deps.Session.Readings()))
	}
	if len(fx.repo.readings) != 2 {
		t.Errorf("stored readings = %d, want 2", len(fx.repo.readings))
	}

	// Only the newest reading is checked: DO 3.0 is critical.
	if len(result.Alerts) != 1 {
		t.Fatalf("alerts = %+v, want one", result.Alerts)
	}
	alert := result.Alerts[0]
	if alert.Parameter != models.DO || alert.Severity != models.SeverityCritical || alert.Threshold != "Min: 4" {
		t.Errorf("alert = %+v", alert)
	}
	if len(fx.repo.active) != 1 || len(fx.deps.Session.ActiveAlerts()) != 1 {
		t.Error("alert should be stored and added to the session")
	}
	if fx.push.count(websocket.TypeReadings) != 1 || fx.push.count(websocket.TypeAlert) != 1 {
		t.Errorf("pushed events = %v", fx.push.events)
	}
}

func TestReadingService_CoolDown(t *testing.T) {
	fx := newFixture(t)
	svc := NewReadingService(fx.deps, 5*time.Minute, 500)
	ctx := context.Background()

	low := func() models.RawReading {
		return models.RawReading{"timestamp": ms(fx.clock.Now()), "do": 3.2}
	}

	first, err := svc.IngestLatest(ctx, low())
	if err != nil || len(first.Alerts) != 1 {
		t.Fatalf("first check = %+v, %v", first, err)
	}

	fx.clock.Advance(4 * time.Minute)
	second, err := svc.IngestLatest(ctx, low())
	if err != nil {
		t.Fatalf("second check error = %v", err)
	}
	if len(second.Alerts) != 0 || second.Suppressed != 1 {
		t.Errorf("within cool-down: alerts=%d suppressed=%d, want 0/1", len(second.Alerts), second.Suppressed)
	}

	fx.clock.Advance(2 * time.Minute)
	third, err := svc.IngestLatest(ctx, low())
	if err != nil {
		t.Fatalf("third check error = %v", err)
	}
	if len(third.Alerts) != 1 {
		t.Errorf("after cool-down: alerts=%d, want 1", len(third.Alerts))
	}
	if len(fx.deps.Session.ActiveAlerts()) != 2 {
		t.Errorf("active alerts = %d, existing alerts must not be overwritten", len(fx.deps.Session.ActiveAlerts()))
	}
}

func TestReadingService_DOScenario(t *testing.T) {
	tests := []struct {
		value    float64
		severity models.Severity
		alert    bool
	}{
		{4.5, models.SeverityWarning, true},
		{3.0, models.SeverityCritical, true},
		{7.0, models.SeveritySafe, false},
	}

	fx := newFixture(t)
	svc := NewReadingService(fx.deps, 5*time.Minute, 500)

	for _, tt := range tests {
		res, err := svc.IngestLatest(context.Background(), models.RawReading{
			"timestamp": ms(fx.clock.Now()),
			"do":        tt.value,
		})
		if err != nil {
			t.Fatalf("IngestLatest(%v) error = %v", tt.value, err)
		}
		if !tt.alert {
			if len(res.Alerts) != 0 {
				t.Errorf("DO %v raised %+v, want none", tt.value, res.Alerts)
			}
			continue
		}
		if len(res.Alerts) != 1 || res.Alerts[0].Severity != tt.severity {
			t.Errorf("DO %v alerts = %+v, want one %s", tt.value, res.Alerts, tt.severity)
		}
	}
}

func TestReadingService_PersistenceFailure(t *testing.T) {
	fx := newFixture(t)
	fx.repo.upsertErr = errStore
	svc := NewReadingService(fx.deps, 5*time.Minute, 500)

	_, err := svc.IngestBatch(context.Background(), []FeedRecord{
		{Key: "r1", Raw: models.RawReading{"timestamp": ms(fx.clock.Now()), "do": 3.0}},
	})

	var pErr *models.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if !errors.Is(err, errStore) {
		t.Error("PersistenceError should wrap the store error")
	}
	if len(fx.deps.Session.Readings()) != 0 || len(fx.deps.Session.ActiveAlerts()) != 0 {
		t.Error("failed batch must not change the session")
	}
}

func TestReadingService_IngestLatestTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		raw       models.RawReading
		wantShape bool
		wantAlert bool
	}{
		{"missing timestamp uses the clock", models.RawReading{"do": 3.0}, false, true},
		{"explicit timestamp", models.RawReading{"timestamp": float64(1000), "do": 3.0}, false, true},
		{"unparseable time", models.RawReading{"time": "yesterday", "do": 3.0}, true, false},
		{"out of range timestamp", models.RawReading{"timestamp": float64(1e19), "do": 3.0}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			svc := NewReadingService(fx.deps, 5*time.Minute, 500)

			hadTime := tt.raw.HasTime()
			res, err := svc.IngestLatest(context.Background(), tt.raw)

			var shapeErr *models.DataShapeError
			if got := errors.As(err, &shapeErr); got != tt.wantShape {
				t.Fatalf("error = %v, want DataShapeError %v", err, tt.wantShape)
			}
			if tt.wantShape {
				return
			}
			if err != nil {
				t.Fatalf("IngestLatest() error = %v", err)
			}
			if len(res.Alerts) != 1 {
				t.Fatalf("alerts = %+v, want one", res.Alerts)
			}
			if got := res.Alerts[0].Timestamp; got != fx.clock.Now().UnixMilli() {
				t.Errorf("alert timestamp = %d, want clock %d", got, fx.clock.Now().UnixMilli())
			}
			if !hadTime && tt.raw.HasTime() {
				t.Errorf("caller's reading was stamped in place: %v", tt.raw)
			}
		})
	}
}

func TestReadingService_Load(t *testing.T) {
	fx := newFixture(t)
	fx.repo.readings = []models.Reading{
		{Key: "a", Timestamp: 1000, DO: models.Float(6)},
		{Key: "b", Timestamp: 2000, DO: models.Float(6.5)},
	}
	svc := NewReadingService(fx.deps, 5*time.Minute, 500)

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	latest, ok := fx.deps.Session.Latest()
	if !ok || latest.Key != "b" {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
}

func TestReadingService_Stored(t *testing.T) {
	fx := newFixture(t)
	svc := NewReadingService(fx.deps, 5*time.Minute, 500)
	ctx := context.Background()

	_, err := svc.IngestBatch(ctx, []FeedRecord{
		{Key: "r1", Raw: models.RawReading{"timestamp": ms(fx.clock.Now()), "do": 6.2}},
		{Key: "r2", Raw: models.RawReading{"timestamp": ms(fx.clock.Now()), "do": 6.4}},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}

	tests := []struct {
		name string
		keys []string
		want int
	}{
		{"all keys", []string{"r1", "r2"}, 2},
		{"unknown key left out", []string{"r1", "missing"}, 1},
		{"no keys", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Stored(ctx, tt.keys)
			if err != nil {
				t.Fatalf("Stored() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Stored() = %d readings, want %d", len(got), tt.want)
			}
		})
	}
}
