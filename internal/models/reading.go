package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parameter identifies one of the five water-quality measurements
type Parameter string

const (
	Temperature Parameter = "temperature"
	PH          Parameter = "ph"
	Salinity    Parameter = "salinity"
	Turbidity   Parameter = "turbidity"
	DO          Parameter = "do"
)

// Parameters lists every measured parameter in display and export order
var Parameters = []Parameter{Temperature, PH, Salinity, Turbidity, DO}

var parameterLabels = map[Parameter]string{
	Temperature: "Temperature",
	PH:          "pH",
	Salinity:    "Salinity",
	Turbidity:   "Turbidity",
	DO:          "DO",
}

var parameterUnits = map[Parameter]string{
	Temperature: "°C",
	PH:          "",
	Salinity:    "ppt",
	Turbidity:   "NTU",
	DO:          "mg/L",
}

// ParseParameter accepts the canonical key or the display label, case-insensitively
func ParseParameter(s string) (Parameter, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Parameters {
		if string(p) == key || strings.ToLower(p.Label()) == key {
			return p, true
		}
	}
	return "", false
}

// Label returns the operator-facing name of the parameter
func (p Parameter) Label() string {
	if l, ok := parameterLabels[p]; ok {
		return l
	}
	return string(p)
}

// Unit returns the measurement unit, empty for dimensionless pH
func (p Parameter) Unit() string {
	return parameterUnits[p]
}

// Reading is one timestamped observation from the pond sensor node.
// Absent measurements are nil; readings are immutable once normalized.
type Reading struct {
	Key         string   `json:"key,omitempty" db:"reading_key"`
	Timestamp   int64    `json:"timestamp" db:"timestamp_ms"`
	Temperature *float64 `json:"temperature,omitempty" db:"temperature"`
	PH          *float64 `json:"ph,omitempty" db:"ph"`
	Salinity    *float64 `json:"salinity,omitempty" db:"salinity"`
	Turbidity   *float64 `json:"turbidity,omitempty" db:"turbidity"`
	DO          *float64 `json:"do,omitempty" db:"do"`
}

// TimestampMillis satisfies the history engine's record contract
func (r Reading) TimestampMillis() int64 {
	return r.Timestamp
}

// Time returns the reading timestamp in the given location
func (r Reading) Time(loc *time.Location) time.Time {
	return time.UnixMilli(r.Timestamp).In(loc)
}

// Value returns the measurement for p, nil when absent
func (r Reading) Value(p Parameter) *float64 {
	switch p {
	case Temperature:
		return r.Temperature
	case PH:
		return r.PH
	case Salinity:
		return r.Salinity
	case Turbidity:
		return r.Turbidity
	case DO:
		return r.DO
	}
	return nil
}

func (r *Reading) set(p Parameter, v *float64) {
	switch p {
	case Temperature:
		r.Temperature = v
	case PH:
		r.PH = v
	case Salinity:
		r.Salinity = v
	case Turbidity:
		r.Turbidity = v
	case DO:
		r.DO = v
	}
}

// RawReading is one record as delivered by the realtime feed.
// The timestamp arrives either as numeric "timestamp" (ms) or as a "time" string.
type RawReading map[string]interface{}

// timeLayouts are tried in order for the "time" field
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts a feed record into a Reading.
// Records with neither a usable timestamp nor time yield a DataShapeError.
func (raw RawReading) Normalize(key string, loc *time.Location) (Reading, error) {
	if loc == nil {
		loc = time.Local
	}

	reading := Reading{Key: key}

	ts, err := raw.timestamp(loc)
	if err != nil {
		return Reading{}, &DataShapeError{Key: key, Reason: err.Error()}
	}
	reading.Timestamp = ts

	for _, p := range Parameters {
		v, ok := numeric(raw[string(p)])
		if !ok {
			continue
		}
		reading.set(p, &v)
	}

	return reading, nil
}

// HasTime reports whether the record carries a timestamp or time field at all
func (raw RawReading) HasTime() bool {
	_, ts := raw["timestamp"]
	_, tm := raw["time"]
	return ts || tm
}

func (raw RawReading) timestamp(loc *time.Location) (int64, error) {
	if v, ok := numeric(raw["timestamp"]); ok && v > 0 {
		if v >= math.MaxInt64 {
			return 0, fmt.Errorf("timestamp %g is out of range", v)
		}
		return int64(v), nil
	}

	s, ok := raw["time"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("record has no valid timestamp or time field")
	}

	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			if t.UnixMilli() < 0 {
				return 0, fmt.Errorf("time %q is before the epoch", s)
			}
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("could not parse time string %q", s)
}

// numeric accepts JSON numbers and numeric strings; anything else counts as absent
func numeric(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Float returns a pointer to v; handy for building readings by hand
func Float(v float64) *float64 {
	return &v
}
