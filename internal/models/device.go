package models

import (
	"fmt"
	"regexp"
	"time"
)

// WiFiConfig holds the credentials the sensor node joins on restart
type WiFiConfig struct {
	SSID      string `json:"ssid"`
	Password  string `json:"password"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// AeratorSchedule is one daily on/off window in HH:MM
type AeratorSchedule struct {
	StartTime string `json:"startTime"`
	StopTime  string `json:"stopTime"`
}

// AeratorConfig controls automatic aeration from DO levels and schedules
type AeratorConfig struct {
	AutoMode        bool              `json:"autoMode"`
	DOThreshold     float64           `json:"doThreshold"`
	DOStopThreshold float64           `json:"doStopThreshold"`
	Schedules       []AeratorSchedule `json:"schedules"`
	UpdatedAt       int64             `json:"updatedAt,omitempty"`
}

// SamplingConfig is the sensor recording interval in seconds
type SamplingConfig struct {
	Interval  int   `json:"interval"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// NotificationConfig holds operator notification preferences
type NotificationConfig struct {
	Email          bool  `json:"email"`
	Push           bool  `json:"push"`
	CriticalAlerts bool  `json:"criticalAlerts"`
	WarningAlerts  bool  `json:"warningAlerts"`
	SystemAlerts   bool  `json:"systemAlerts"`
	DailyReport    bool  `json:"dailyReport"`
	UpdatedAt      int64 `json:"updatedAt,omitempty"`
}

// DeviceConfig is the full configuration tree of one pond node
type DeviceConfig struct {
	WiFi          WiFiConfig         `json:"wifi"`
	Aerator       AeratorConfig      `json:"aerator"`
	Sampling      SamplingConfig     `json:"sampling"`
	Thresholds    ThresholdTable     `json:"thresholds"`
	Notifications NotificationConfig `json:"notifications"`
}

// DefaultDeviceConfig mirrors the dashboard's factory settings
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Aerator: AeratorConfig{
			DOThreshold:     5.0,
			DOStopThreshold: 6.5,
			Schedules:       []AeratorSchedule{},
		},
		Sampling:   SamplingConfig{Interval: 300},
		Thresholds: DefaultThresholds(),
		Notifications: NotificationConfig{
			Email:          true,
			Push:           true,
			CriticalAlerts: true,
			WarningAlerts:  true,
			SystemAlerts:   true,
		},
	}
}

// DeviceStatus is the connectivity signal written by the sensor node
type DeviceStatus struct {
	WiFiConnected bool   `json:"wifiConnected" db:"wifi_connected"`
	WiFiSSID      string `json:"wifiSSID" db:"wifi_ssid"`
	UpdatedAt     int64  `json:"updatedAt" db:"updated_at_ms"`
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidClock reports whether s is an HH:MM time of day
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// Validate checks the WiFi form
func (w WiFiConfig) Validate() error {
	if w.SSID == "" {
		return &ValidationError{Field: "ssid", Message: "please enter a WiFi network name"}
	}
	return nil
}

// Validate checks aerator thresholds and schedules
func (a AeratorConfig) Validate() error {
	if a.AutoMode && a.DOThreshold >= a.DOStopThreshold {
		return &ValidationError{
			Field:   "doStopThreshold",
			Value:   formatBound(a.DOStopThreshold),
			Message: "stop threshold must be higher than start threshold",
		}
	}
	for i, s := range a.Schedules {
		if !ValidClock(s.StartTime) || !ValidClock(s.StopTime) {
			return &ValidationError{
				Field:   fmt.Sprintf("schedules[%d]", i),
				Value:   s.StartTime + "-" + s.StopTime,
				Message: "schedule times must be HH:MM",
			}
		}
	}
	return nil
}

// Validate checks the sampling interval
func (s SamplingConfig) Validate() error {
	if s.Interval <= 0 {
		return &ValidationError{
			Field:   "interval",
			Value:   fmt.Sprintf("%d", s.Interval),
			Message: "sampling interval must be a positive number of seconds",
		}
	}
	return nil
}

// Preview describes the interval the way the settings page shows it
func (s SamplingConfig) Preview() string {
	d := time.Duration(s.Interval) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes())

	if hours >= 1 {
		return fmt.Sprintf("Data will be recorded every %d hour%s", hours, plural(hours))
	}
	return fmt.Sprintf("Data will be recorded every %d minute%s", minutes, plural(minutes))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
