package models

import (
	"strings"
)

// Severity is the classification tier of a value relative to its band
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityUnknown  Severity = "unknown"
)

// ParseSeverity accepts safe/warning/critical; "caution" is the dashboard's
// colour-class name for warning
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return SeveritySafe, true
	case "warning", "caution":
		return SeverityWarning, true
	case "critical":
		return SeverityCritical, true
	}
	return "", false
}

// Alert is a threshold violation raised for a single parameter.
// An active alert moves to history (acknowledged) or is discarded (dismissed) exactly once.
// History entries get a new ID; SourceID keeps the active alert's ID.
type Alert struct {
	ID             string    `json:"id" db:"id"`
	Parameter      Parameter `json:"parameter" db:"parameter"`
	Value          float64   `json:"value" db:"value"`
	Severity       Severity  `json:"severity" db:"severity"`
	Threshold      string    `json:"threshold" db:"threshold"`
	Message        string    `json:"message" db:"message"`
	Timestamp      int64     `json:"timestamp" db:"timestamp_ms"`
	Acknowledged   bool      `json:"acknowledged" db:"acknowledged"`
	AcknowledgedAt *int64    `json:"acknowledgedAt,omitempty" db:"acknowledged_at_ms"`
	AcknowledgedBy string    `json:"acknowledgedBy,omitempty" db:"acknowledged_by"`
	SourceID       string    `json:"sourceId,omitempty" db:"source_id"`
}

// TimestampMillis satisfies the history engine's record contract
func (a Alert) TimestampMillis() int64 {
	return a.Timestamp
}

// AlertMessage builds the operator text for a violation
func AlertMessage(p Parameter, severity Severity) string {
	if severity == SeverityCritical {
		return p.Label() + " critically out of range"
	}
	return p.Label() + " out of range"
}

// BulkFailure records one alert that could not be moved during a batch
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult reports the outcome of a batch acknowledgement
type BulkResult struct {
	Acknowledged []string      `json:"acknowledged"`
	Failed       []BulkFailure `json:"failed,omitempty"`
}
