package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/websocket"
	"fishda-monitor/pkg/logging"
)

// DefaultWiFiConfirmTimeout bounds the wait for the node to join a new network
const DefaultWiFiConfirmTimeout = 10 * time.Second

// WiFiResult is pushed and returned once a WiFi change settles
type WiFiResult struct {
	SSID      string              `json:"ssid"`
	Confirmed bool                `json:"confirmed"`
	Status    models.DeviceStatus `json:"status"`
}

// ConfigService handles device configuration and status
type ConfigService struct {
	Deps
	log            *logging.ContextLogger
	confirmTimeout time.Duration
}

// NewConfigService creates a new config service
func NewConfigService(deps Deps, confirmTimeout time.Duration) *ConfigService {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultWiFiConfirmTimeout
	}
	deps = deps.withDefaults()
	return &ConfigService{
		Deps:           deps,
		log:            deps.component("config"),
		confirmTimeout: confirmTimeout,
	}
}

// Load fills the session with the stored configuration and device status
func (s *ConfigService) Load(ctx context.Context) error {
	cfg, err := s.Repo.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device config: %w", err)
	}
	s.Session.OnConfigChange(cfg)

	status, err := s.Repo.GetDeviceStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device status: %w", err)
	}
	s.Session.OnDeviceStatus(status)

	s.log.Info(ctx, "[CONFIG_LOAD] Device configuration loaded", logging.Fields{
		"wifi_ssid":        cfg.WiFi.SSID,
		"sampling":         cfg.Sampling.Interval,
		"aerator_auto":     cfg.Aerator.AutoMode,
		"wifi_connected":   status.WiFiConnected,
		"threshold_params": len(cfg.Thresholds),
	})
	return nil
}

// Get returns the current configuration
func (s *ConfigService) Get() models.DeviceConfig {
	return s.Session.Config()
}

// Status returns the last reported device status
func (s *ConfigService) Status() models.DeviceStatus {
	return s.Session.Status()
}

// SaveThresholds validates and stores threshold bands. Parameters not present
// in table keep their current bands.
func (s *ConfigService) SaveThresholds(ctx context.Context, table models.ThresholdTable) (models.ThresholdTable, error) {
	canonical := make(models.ThresholdTable, len(table))
	for key, band := range table {
		p, ok := models.ParseParameter(string(key))
		if !ok {
			return nil, &models.ValidationError{
				Field:   "thresholds",
				Value:   string(key),
				Message: fmt.Sprintf("unknown parameter %q", key),
			}
		}
		canonical[p] = band
	}

	merged := canonical.Merge(s.Session.Thresholds())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return s.storeThresholds(ctx, merged)
}

// ResetThresholds restores the default bands
func (s *ConfigService) ResetThresholds(ctx context.Context) (models.ThresholdTable, error) {
	return s.storeThresholds(ctx, models.DefaultThresholds())
}

func (s *ConfigService) storeThresholds(ctx context.Context, table models.ThresholdTable) (models.ThresholdTable, error) {
	if err := s.save(ctx, repository.SectionThresholds, table); err != nil {
		return nil, err
	}
	cfg := s.Session.UpdateConfig(func(c *models.DeviceConfig) {
		c.Thresholds = table.Clone()
	})
	s.publishConfig(ctx, repository.SectionThresholds, cfg)
	return cfg.Thresholds, nil
}

// SaveAerator validates and stores the aerator settings
func (s *ConfigService) SaveAerator(ctx context.Context, aerator models.AeratorConfig) (models.AeratorConfig, error) {
	if err := aerator.Validate(); err != nil {
		return models.AeratorConfig{}, err
	}
	if aerator.Schedules == nil {
		aerator.Schedules = []models.AeratorSchedule{}
	}
	aerator.UpdatedAt = s.nowMillis()

	if err := s.save(ctx, repository.SectionAerator, aerator); err != nil {
		return models.AeratorConfig{}, err
	}
	cfg := s.Session.UpdateConfig(func(c *models.DeviceConfig) {
		c.Aerator = aerator
	})
	s.publishConfig(ctx, repository.SectionAerator, cfg)
	return cfg.Aerator, nil
}

// SaveSampling validates and stores the recording interval and returns its preview text
func (s *ConfigService) SaveSampling(ctx context.Context, sampling models.SamplingConfig) (models.SamplingConfig, string, error) {
	if err := sampling.Validate(); err != nil {
		return models.SamplingConfig{}, "", err
	}
	sampling.UpdatedAt = s.nowMillis()

	if err := s.save(ctx, repository.SectionSampling, sampling); err != nil {
		return models.SamplingConfig{}, "", err
	}
	cfg := s.Session.UpdateConfig(func(c *models.DeviceConfig) {
		c.Sampling = sampling
	})
	s.publishConfig(ctx, repository.SectionSampling, cfg)
	return cfg.Sampling, sampling.Preview(), nil
}

// SaveNotifications stores the notification preferences
func (s *ConfigService) SaveNotifications(ctx context.Context, prefs models.NotificationConfig) (models.NotificationConfig, error) {
	prefs.UpdatedAt = s.nowMillis()

	if err := s.save(ctx, repository.SectionNotifications, prefs); err != nil {
		return models.NotificationConfig{}, err
	}
	cfg := s.Session.UpdateConfig(func(c *models.DeviceConfig) {
		c.Notifications = prefs
	})
	s.publishConfig(ctx, repository.SectionNotifications, cfg)
	return cfg.Notifications, nil
}

// SaveWiFi stores new credentials and waits for the node to report a
// connection to them. If no confirmation arrives within the timeout the stored
// credentials are cleared and a ConfirmationTimeoutError is returned.
func (s *ConfigService) SaveWiFi(ctx context.Context, wifi models.WiFiConfig) (*WiFiResult, error) {
	if err := wifi.Validate(); err != nil {
		return nil, err
	}
	wifi.UpdatedAt = s.nowMillis()

	// Subscribe before saving so a fast confirmation is not missed.
	updates, cancel := s.Session.WatchStatus()
	defer cancel()

	if err := s.save(ctx, repository.SectionWiFi, wifi); err != nil {
		return nil, err
	}
	s.Session.UpdateConfig(func(c *models.DeviceConfig) {
		c.WiFi = wifi
	})

	s.log.Info(ctx, "[WIFI_SAVE] Waiting for device to confirm connection", logging.Fields{
		"ssid":       wifi.SSID,
		"timeout_ms": s.confirmTimeout.Milliseconds(),
	})

	waitCtx, stop := context.WithTimeout(ctx, s.confirmTimeout)
	defer stop()

	status, confirmed := s.awaitConfirmation(waitCtx, updates, wifi.SSID)
	if !confirmed {
		// A status may have landed between the last update and the deadline.
		status = s.Session.Status()
		confirmed = confirms(status, wifi.SSID)
	}

	result := &WiFiResult{SSID: wifi.SSID, Confirmed: confirmed, Status: status}
	if confirmed {
		s.Metrics.WiFiConfirmationsTotal.WithLabelValues("confirmed").Inc()
		s.Notifier.Publish(websocket.TypeWiFiStatus, result)
		s.log.Info(ctx, "[WIFI_CONFIRMED] Device joined network", logging.Fields{
			"ssid": wifi.SSID,
		})
		return result, nil
	}

	outcome := "timeout"
	if errors.Is(ctx.Err(), context.Canceled) {
		outcome = "cancelled"
	}
	s.Metrics.WiFiConfirmationsTotal.WithLabelValues(outcome).Inc()

	// The request may be gone; clearing must still happen.
	if err := s.clearWiFi(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	s.Notifier.Publish(websocket.TypeWiFiStatus, result)

	s.log.Warn(ctx, "[WIFI_TIMEOUT] Device did not confirm connection, credentials cleared", logging.Fields{
		"ssid":    wifi.SSID,
		"outcome": outcome,
	})

	if outcome == "cancelled" {
		return nil, fmt.Errorf("wifi confirmation cancelled: %w", ctx.Err())
	}
	return nil, &models.ConfirmationTimeoutError{SSID: wifi.SSID, Timeout: s.confirmTimeout}
}

func (s *ConfigService) awaitConfirmation(ctx context.Context, updates <-chan models.DeviceStatus, ssid string) (models.DeviceStatus, bool) {
	for {
		select {
		case <-ctx.Done():
			return models.DeviceStatus{}, false
		case status := <-updates:
			if confirms(status, ssid) {
				return status, true
			}
		}
	}
}

// confirms reports whether status shows the node connected to ssid. Nodes that
// do not report an SSID are taken at their word.
func confirms(status models.DeviceStatus, ssid string) bool {
	return status.WiFiConnected && (status.WiFiSSID == "" || status.WiFiSSID == ssid)
}

func (s *ConfigService) clearWiFi(ctx context.Context) error {
	cleared := models.WiFiConfig{UpdatedAt: s.nowMillis()}
	if err := s.save(ctx, repository.SectionWiFi, cleared); err != nil {
		return err
	}
	cfg := s.Session.UpdateConfig(func(c *models.DeviceConfig) {
		c.WiFi = cleared
	})
	s.publishConfig(ctx, repository.SectionWiFi, cfg)
	return nil
}

// UpdateDeviceStatus records a status report from the node. The session is
// updated first so pending WiFi confirmations see it even if the store fails.
func (s *ConfigService) UpdateDeviceStatus(ctx context.Context, status models.DeviceStatus) (models.DeviceStatus, error) {
	if status.UpdatedAt == 0 {
		status.UpdatedAt = s.nowMillis()
	}

	s.Session.OnDeviceStatus(status)
	s.Notifier.Publish(websocket.TypeWiFiStatus, status)

	if err := s.Repo.SaveDeviceStatus(ctx, status); err != nil {
		return status, persistenceError("save device status", nil, err)
	}

	s.log.Debug(ctx, "[DEVICE_STATUS] Device status updated", logging.Fields{
		"wifi_connected": status.WiFiConnected,
		"wifi_ssid":      status.WiFiSSID,
	})
	return status, nil
}

func (s *ConfigService) save(ctx context.Context, section string, value interface{}) error {
	if err := s.Repo.SaveConfigSection(ctx, section, value); err != nil {
		s.log.Error(ctx, "[CONFIG_SAVE_ERROR] Failed to save configuration", logging.Fields{
			"section": section,
		}, err)
		return persistenceError("save "+section, nil, err)
	}
	return nil
}

func (s *ConfigService) publishConfig(ctx context.Context, section string, cfg models.DeviceConfig) {
	cfg.WiFi.Password = ""
	s.Notifier.Publish(websocket.TypeConfig, cfg)
	s.log.Info(ctx, "[CONFIG_SAVE] Configuration saved", logging.Fields{
		"section": section,
	})
}
