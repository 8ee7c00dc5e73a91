package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/websocket"
)

func TestConfigService_SaveWiFiConfirmed(t *testing.T) {
	fx := newFixture(t)
	svc := NewConfigService(fx.deps, 2*time.Second)
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		svc.UpdateDeviceStatus(ctx, models.DeviceStatus{WiFiConnected: true, WiFiSSID: "pond-net"})
	}()

	result, err := svc.SaveWiFi(ctx, models.WiFiConfig{SSID: "pond-net", Password: "secret"})
	if err != nil {
		t.Fatalf("SaveWiFi() error = %v", err)
	}
	if !result.Confirmed || result.Status.WiFiSSID != "pond-net" {
		t.Errorf("result = %+v", result)
	}
	if got := svc.Get().WiFi.SSID; got != "pond-net" {
		t.Errorf("stored SSID = %q", got)
	}
}

func TestConfigService_SaveWiFiTimeoutClearsCredentials(t *testing.T) {
	fx := newFixture(t)
	svc := NewConfigService(fx.deps, 50*time.Millisecond)

	// A status for another network does not confirm.
	fx.deps.Session.OnDeviceStatus(models.DeviceStatus{WiFiConnected: true, WiFiSSID: "old-net"})

	_, err := svc.SaveWiFi(context.Background(), models.WiFiConfig{SSID: "pond-net", Password: "secret"})

	var timeoutErr *models.ConfirmationTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %v, want *ConfirmationTimeoutError", err)
	}
	if timeoutErr.SSID != "pond-net" {
		t.Errorf("SSID = %q", timeoutErr.SSID)
	}

	cfg := svc.Get()
	if cfg.WiFi.SSID != "" || cfg.WiFi.Password != "" {
		t.Errorf("session credentials not cleared: %+v", cfg.WiFi)
	}
	stored, ok := fx.repo.section(repository.SectionWiFi).(models.WiFiConfig)
	if !ok || stored.SSID != "" || stored.Password != "" {
		t.Errorf("stored credentials not cleared: %+v", fx.repo.section(repository.SectionWiFi))
	}
	if fx.push.count(websocket.TypeWiFiStatus) != 1 {
		t.Errorf("pushed events = %v", fx.push.events)
	}
}

func TestConfigService_SaveWiFiValidation(t *testing.T) {
	fx := newFixture(t)
	svc := NewConfigService(fx.deps, time.Second)

	_, err := svc.SaveWiFi(context.Background(), models.WiFiConfig{Password: "secret"})

	var vErr *models.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "ssid" {
		t.Errorf("error = %v, want ssid ValidationError", err)
	}
}

func TestConfigService_SaveThresholds(t *testing.T) {
	tests := []struct {
		name    string
		table   models.ThresholdTable
		wantErr bool
	}{
		{
			name:  "partial update keeps other bands",
			table: models.ThresholdTable{"pH": {SafeMin: 7.2, SafeMax: 8.2, WarnMin: 6.8, WarnMax: 8.8}},
		},
		{
			name:    "safe min equal to safe max",
			table:   models.ThresholdTable{models.DO: {SafeMin: 5, SafeMax: 5, WarnMin: 4, WarnMax: 10}},
			wantErr: true,
		},
		{
			name:    "unknown parameter",
			table:   models.ThresholdTable{"ammonia": {SafeMin: 0, SafeMax: 1, WarnMin: 0, WarnMax: 2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			svc := NewConfigService(fx.deps, time.Second)

			got, err := svc.SaveThresholds(context.Background(), tt.table)
			if tt.wantErr {
				var vErr *models.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("error = %v, want *ValidationError", err)
				}
				if fx.repo.section(repository.SectionThresholds) != nil {
					t.Error("invalid thresholds must not be stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("SaveThresholds() error = %v", err)
			}
			if got[models.PH].SafeMin != 7.2 {
				t.Errorf("pH band = %+v", got[models.PH])
			}
			if got[models.DO] != models.DefaultThresholds()[models.DO] {
				t.Errorf("DO band changed: %+v", got[models.DO])
			}
			if fx.deps.Session.Thresholds()[models.PH].SafeMin != 7.2 {
				t.Error("session thresholds not updated")
			}
		})
	}
}

func TestConfigService_ResetThresholds(t *testing.T) {
	fx := newFixture(t)
	svc := NewConfigService(fx.deps, time.Second)
	ctx := context.Background()

	if _, err := svc.SaveThresholds(ctx, models.ThresholdTable{models.DO: {SafeMin: 6, SafeMax: 8, WarnMin: 5, WarnMax: 9}}); err != nil {
		t.Fatalf("SaveThresholds() error = %v", err)
	}
	table, err := svc.ResetThresholds(ctx)
	if err != nil {
		t.Fatalf("ResetThresholds() error = %v", err)
	}
	if table[models.DO] != models.DefaultThresholds()[models.DO] {
		t.Errorf("DO band = %+v, want default", table[models.DO])
	}
}

func TestConfigService_SaveSamplingAndAerator(t *testing.T) {
	fx := newFixture(t)
	svc := NewConfigService(fx.deps, time.Second)
	ctx := context.Background()

	sampling, preview, err := svc.SaveSampling(ctx, models.SamplingConfig{Interval: 3600})
	if err != nil {
		t.Fatalf("SaveSampling() error = %v", err)
	}
	if preview != "Data will be recorded every 1 hour" || sampling.UpdatedAt == 0 {
		t.Errorf("sampling = %+v, preview %q", sampling, preview)
	}

	_, err = svc.SaveAerator(ctx, models.AeratorConfig{AutoMode: true, DOThreshold: 6, DOStopThreshold: 5})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("aerator error = %v, want *ValidationError", err)
	}

	fx.repo.failSection[repository.SectionNotifications] = true
	_, err = svc.SaveNotifications(ctx, models.NotificationConfig{Email: true})
	var pErr *models.PersistenceError
	if !errors.As(err, &pErr) {
		t.Errorf("notifications error = %v, want *PersistenceError", err)
	}
}
