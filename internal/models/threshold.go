package models

import (
	"fmt"
	"strconv"
)

// ThresholdBand is the four-bound definition for one parameter: a safe band
// nested inside a wider warning band. Values outside the warning band are critical.
type ThresholdBand struct {
	SafeMin float64 `json:"safeMin" mapstructure:"safe_min"`
	SafeMax float64 `json:"safeMax" mapstructure:"safe_max"`
	WarnMin float64 `json:"warnMin" mapstructure:"warn_min"`
	WarnMax float64 `json:"warnMax" mapstructure:"warn_max"`
}

// Validate enforces WarnMin <= SafeMin < SafeMax <= WarnMax with WarnMin < WarnMax
func (b ThresholdBand) Validate(p Parameter) error {
	if b.SafeMin >= b.SafeMax {
		return &ValidationError{
			Field:   string(p) + ".safeMin",
			Value:   formatBound(b.SafeMin),
			Message: fmt.Sprintf("invalid %s thresholds: safe min must be less than safe max", p),
		}
	}
	if b.WarnMin >= b.WarnMax {
		return &ValidationError{
			Field:   string(p) + ".warnMin",
			Value:   formatBound(b.WarnMin),
			Message: fmt.Sprintf("invalid %s thresholds: warning min must be less than warning max", p),
		}
	}
	if b.WarnMin > b.SafeMin || b.SafeMax > b.WarnMax {
		return &ValidationError{
			Field:   string(p),
			Value:   fmt.Sprintf("%s/%s/%s/%s", formatBound(b.WarnMin), formatBound(b.SafeMin), formatBound(b.SafeMax), formatBound(b.WarnMax)),
			Message: fmt.Sprintf("invalid %s thresholds: safe band must lie inside the warning band", p),
		}
	}
	return nil
}

// ThresholdTable maps each parameter to its band
type ThresholdTable map[Parameter]ThresholdBand

// DefaultThresholds returns the factory bands for a tilapia/bangus pond
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		DO:          {SafeMin: 5.0, SafeMax: 9.0, WarnMin: 4.0, WarnMax: 10.0},
		Temperature: {SafeMin: 26.0, SafeMax: 32.0, WarnMin: 24.0, WarnMax: 34.0},
		PH:          {SafeMin: 7.5, SafeMax: 8.5, WarnMin: 7.0, WarnMax: 9.0},
		Salinity:    {SafeMin: 15.0, SafeMax: 25.0, WarnMin: 12.0, WarnMax: 28.0},
		Turbidity:   {SafeMin: 20.0, SafeMax: 50.0, WarnMin: 10.0, WarnMax: 70.0},
	}
}

// Validate checks every band and rejects unknown parameter keys
func (t ThresholdTable) Validate() error {
	for p := range t {
		if _, ok := ParseParameter(string(p)); !ok {
			return &ValidationError{
				Field:   "thresholds",
				Value:   string(p),
				Message: fmt.Sprintf("unknown parameter %q", p),
			}
		}
	}
	for _, p := range Parameters {
		band, ok := t[p]
		if !ok {
			continue
		}
		if err := band.Validate(p); err != nil {
			return err
		}
	}
	return nil
}

// Merge returns a copy of t with missing parameters filled from defaults
func (t ThresholdTable) Merge(defaults ThresholdTable) ThresholdTable {
	out := make(ThresholdTable, len(defaults))
	for p, b := range defaults {
		out[p] = b
	}
	for p, b := range t {
		out[p] = b
	}
	return out
}

// Clone returns an independent copy of the table
func (t ThresholdTable) Clone() ThresholdTable {
	out := make(ThresholdTable, len(t))
	for p, b := range t {
		out[p] = b
	}
	return out
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
