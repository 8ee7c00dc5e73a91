// Package classifier maps sensor values onto severity tiers and decides when
// a threshold violation should raise a new alert.
package classifier

import (
	"strconv"

	"fishda-monitor/internal/models"
)

// Classify returns the severity tier of value for parameter p.
// Unknown is returned when the value is absent or p has no band.
func Classify(p models.Parameter, value *float64, table models.ThresholdTable) models.Severity {
	if value == nil {
		return models.SeverityUnknown
	}
	band, ok := table[p]
	if !ok {
		return models.SeverityUnknown
	}

	v := *value
	switch {
	case v >= band.SafeMin && v <= band.SafeMax:
		return models.SeveritySafe
	case v < band.WarnMin || v > band.WarnMax:
		return models.SeverityCritical
	default:
		return models.SeverityWarning
	}
}

// ClassifyReading classifies every present parameter of r
func ClassifyReading(r models.Reading, table models.ThresholdTable) map[models.Parameter]models.Severity {
	out := make(map[models.Parameter]models.Severity, len(models.Parameters))
	for _, p := range models.Parameters {
		sev := Classify(p, r.Value(p), table)
		if sev == models.SeverityUnknown {
			continue
		}
		out[p] = sev
	}
	return out
}

// Violation describes a crossed bound found by CheckAlert
type Violation struct {
	Parameter models.Parameter
	Value     float64
	Severity  models.Severity
	Threshold string
}

// CheckAlert runs the binary live-monitor check. The critical band is
// [WarnMin, WarnMax] and the warning band is [SafeMin, SafeMax]; the
// reported threshold is whichever bound was crossed.
func CheckAlert(p models.Parameter, value *float64, table models.ThresholdTable) (Violation, bool) {
	if value == nil {
		return Violation{}, false
	}
	band, ok := table[p]
	if !ok {
		return Violation{}, false
	}

	v := *value
	violation := Violation{Parameter: p, Value: v}

	switch {
	case v < band.WarnMin:
		violation.Severity = models.SeverityCritical
		violation.Threshold = "Min: " + formatBound(band.WarnMin)
	case v > band.WarnMax:
		violation.Severity = models.SeverityCritical
		violation.Threshold = "Max: " + formatBound(band.WarnMax)
	case v < band.SafeMin:
		violation.Severity = models.SeverityWarning
		violation.Threshold = "Min: " + formatBound(band.SafeMin)
	case v > band.SafeMax:
		violation.Severity = models.SeverityWarning
		violation.Threshold = "Max: " + formatBound(band.SafeMax)
	default:
		return Violation{}, false
	}

	return violation, true
}

// CheckReading returns the violations of r in parameter order
func CheckReading(r models.Reading, table models.ThresholdTable) []Violation {
	var out []Violation
	for _, p := range models.Parameters {
		if v, ok := CheckAlert(p, r.Value(p), table); ok {
			out = append(out, v)
		}
	}
	return out
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
