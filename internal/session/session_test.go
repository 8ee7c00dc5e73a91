package session

import (
	"testing"
	"time"

	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
)

func TestSession_OnReadingBatch(t *testing.T) {
	s := New(Options{Location: time.UTC, HistoryLimit: 3})

	batch := []models.Reading{
		{Key: "r5", Timestamp: 5000},
		{Key: "r1", Timestamp: 1000},
		{Key: "r4", Timestamp: 4000},
		{Key: "r2", Timestamp: 2000},
		{Key: "r3", Timestamp: 3000},
	}

	kept := s.OnReadingBatch(batch)

	if len(kept) != 3 {
		t.Fatalf("kept %d readings, want 3", len(kept))
	}
	want := []string{"r3", "r4", "r5"}
	for i, r := range kept {
		if r.Key != want[i] {
			t.Errorf("kept[%d] = %s, want %s", i, r.Key, want[i])
		}
	}
	if batch[0].Key != "r5" {
		t.Error("OnReadingBatch must not reorder the caller's slice")
	}

	latest, ok := s.Latest()
	if !ok || latest.Key != "r5" {
		t.Errorf("Latest() = %v, %v", latest.Key, ok)
	}

	s.OnReadingBatch([]models.Reading{{Key: "only", Timestamp: 10}})
	if got := s.Readings(); len(got) != 1 || got[0].Key != "only" {
		t.Errorf("snapshot not replaced: %+v", got)
	}
}

func TestSession_OnConfigChange_FillsThresholds(t *testing.T) {
	s := New(Options{})

	s.OnConfigChange(models.DeviceConfig{
		Thresholds: models.ThresholdTable{
			models.PH: {SafeMin: 7.0, SafeMax: 8.0, WarnMin: 6.5, WarnMax: 8.5},
		},
	})

	table := s.Thresholds()
	if len(table) != len(models.Parameters) {
		t.Fatalf("thresholds = %d parameters, want %d", len(table), len(models.Parameters))
	}
	if table[models.PH].SafeMin != 7.0 {
		t.Errorf("PH.SafeMin = %v, want 7.0", table[models.PH].SafeMin)
	}

	table[models.PH] = models.ThresholdBand{}
	if s.Thresholds()[models.PH].SafeMin != 7.0 {
		t.Error("Thresholds() must return a copy")
	}
}

func TestSession_Alerts(t *testing.T) {
	s := New(Options{})
	s.AddActive(models.Alert{ID: "a"}, models.Alert{ID: "b"})

	if _, ok := s.FindActive("b"); !ok {
		t.Fatal("FindActive(b) = false")
	}

	removed, ok := s.RemoveActive("a")
	if !ok || removed.ID != "a" {
		t.Fatalf("RemoveActive(a) = %v, %v", removed.ID, ok)
	}
	if _, ok := s.RemoveActive("a"); ok {
		t.Error("second RemoveActive(a) should report false")
	}

	s.AddHistory(removed)
	if len(s.ActiveAlerts()) != 1 || len(s.HistoryAlerts()) != 1 {
		t.Errorf("active=%d history=%d", len(s.ActiveAlerts()), len(s.HistoryAlerts()))
	}
}

func TestSession_WatchStatus(t *testing.T) {
	s := New(Options{})
	ch, cancel := s.WatchStatus()
	defer cancel()

	s.OnDeviceStatus(models.DeviceStatus{WiFiConnected: false})
	s.OnDeviceStatus(models.DeviceStatus{WiFiConnected: true, WiFiSSID: "pond"})

	select {
	case st := <-ch:
		if !st.WiFiConnected || st.WiFiSSID != "pond" {
			t.Errorf("watcher got %+v, want newest status", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no status delivered")
	}

	cancel()
	s.OnDeviceStatus(models.DeviceStatus{WiFiConnected: false})
	select {
	case st := <-ch:
		t.Errorf("cancelled watcher received %+v", st)
	default:
	}

	if s.Status().WiFiConnected {
		t.Error("Status() should reflect the last update")
	}
}

func TestSession_View(t *testing.T) {
	s := New(Options{Location: time.UTC})

	if _, _, err := s.GoToPage(1); err == nil {
		t.Error("GoToPage before any query should fail")
	}

	var readings []models.Reading
	for i := 0; i < 15; i++ {
		readings = append(readings, models.Reading{Timestamp: int64(i) * 1000})
	}
	res, err := history.QueryReadings(readings, history.Filter{DateFrom: "1970-01-01", DateTo: "1970-01-01"}, time.UTC, models.DefaultThresholds())
	if err != nil {
		t.Fatalf("QueryReadings() error = %v", err)
	}

	if s.PageSize() != history.DefaultPageSize {
		t.Errorf("PageSize() = %d, want fixed %d", s.PageSize(), history.DefaultPageSize)
	}

	page := s.SetView(history.Filter{}, res)
	if page.PageSize != 10 {
		t.Errorf("page size = %d, want 10", page.PageSize)
	}
	if page.Page != 1 || page.TotalPages != 2 || len(page.Items) != 10 {
		t.Errorf("first page = %d/%d with %d items", page.Page, page.TotalPages, len(page.Items))
	}

	page, moved, err := s.GoToPage(3)
	if err != nil || moved || page.Page != 1 {
		t.Errorf("GoToPage(3) = page %d, moved %v, err %v; want no-op", page.Page, moved, err)
	}

	page, moved, _ = s.GoToPage(2)
	if !moved || page.Page != 2 || len(page.Items) != 5 {
		t.Errorf("GoToPage(2) = page %d with %d items", page.Page, len(page.Items))
	}

	current, ok := s.CurrentPage()
	if !ok || current.Page != 2 || current.Total != 15 {
		t.Errorf("CurrentPage() = %+v", current)
	}
}
