package classifier

import (
	"time"

	"github.com/google/uuid"

	"fishda-monitor/internal/models"
)

// DefaultCoolDown is the minimum gap between two alerts of the same parameter and severity
const DefaultCoolDown = 5 * time.Minute

// ShouldCreate reports whether a new alert may be raised for (p, sev).
// It is false while an active alert with the same pair is younger than coolDown.
func ShouldCreate(p models.Parameter, sev models.Severity, active []models.Alert, now time.Time, coolDown time.Duration) bool {
	nowMs := now.UnixMilli()
	windowMs := coolDown.Milliseconds()

	for _, a := range active {
		if a.Parameter != p || a.Severity != sev {
			continue
		}
		if nowMs-a.Timestamp < windowMs {
			return false
		}
	}
	return true
}

// NewAlert builds an unacknowledged alert with a fresh id
func NewAlert(v Violation, now time.Time) models.Alert {
	return models.Alert{
		ID:        uuid.NewString(),
		Parameter: v.Parameter,
		Value:     v.Value,
		Severity:  v.Severity,
		Threshold: v.Threshold,
		Message:   models.AlertMessage(v.Parameter, v.Severity),
		Timestamp: now.UnixMilli(),
	}
}

// Deduplicator applies ShouldCreate against a caller-owned active set
type Deduplicator struct {
	CoolDown time.Duration
}

// NewDeduplicator returns a deduplicator; non-positive coolDown uses DefaultCoolDown
func NewDeduplicator(coolDown time.Duration) *Deduplicator {
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &Deduplicator{CoolDown: coolDown}
}

// Evaluate returns the alerts to create for violations, in order.
// Alerts created earlier in the same call count towards suppression.
// suppressed is the number of violations that were held back.
func (d *Deduplicator) Evaluate(violations []Violation, active []models.Alert, now time.Time) (created []models.Alert, suppressed int) {
	pool := make([]models.Alert, len(active), len(active)+len(violations))
	copy(pool, active)

	for _, v := range violations {
		if !ShouldCreate(v.Parameter, v.Severity, pool, now, d.CoolDown) {
			suppressed++
			continue
		}
		alert := NewAlert(v, now)
		pool = append(pool, alert)
		created = append(created, alert)
	}
	return created, suppressed
}
