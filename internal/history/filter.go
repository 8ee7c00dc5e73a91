// Package history answers date-ranged, time-of-day windowed queries over
// readings and alerts, and summarizes the results.
package history

import (
	"fmt"
	"strings"
	"time"

	"fishda-monitor/internal/models"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// SortOrder selects the direction of the timestamp sort
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// Filter is an operator-issued history query
type Filter struct {
	DateFrom  string    `json:"dateFrom"`
	DateTo    string    `json:"dateTo"`
	TimeFrom  string    `json:"timeFrom,omitempty"`
	TimeTo    string    `json:"timeTo,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Parameter string    `json:"parameter,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
}

// Window is a validated Filter resolved against a time zone
type Window struct {
	from, to    civilDate
	hasTime     bool
	startMinute int
	endMinute   int
	order       SortOrder
	loc         *time.Location
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func (d civilDate) before(o civilDate) bool {
	if d.year != o.year {
		return d.year < o.year
	}
	if d.month != o.month {
		return d.month < o.month
	}
	return d.day < o.day
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

// Compile validates f and resolves it in loc
func (f Filter) Compile(loc *time.Location) (*Window, error) {
	if loc == nil {
		loc = time.Local
	}

	if strings.TrimSpace(f.DateFrom) == "" || strings.TrimSpace(f.DateTo) == "" {
		return nil, &models.ValidationError{
			Field:   "date_from",
			Message: "please select both start date and end date",
		}
	}

	from, err := parseDate("date_from", f.DateFrom, loc)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("date_to", f.DateTo, loc)
	if err != nil {
		return nil, err
	}
	if to.before(from) {
		return nil, &models.ValidationError{
			Field:   "date_from",
			Value:   f.DateFrom,
			Message: "start date cannot be after end date",
		}
	}

	w := &Window{from: from, to: to, order: SortNewest, loc: loc}

	switch f.SortOrder {
	case "", SortNewest:
	case SortOldest:
		w.order = SortOldest
	default:
		return nil, &models.ValidationError{
			Field:   "sort",
			Value:   string(f.SortOrder),
			Message: fmt.Sprintf("sort order must be %q or %q", SortNewest, SortOldest),
		}
	}

	hasFrom := strings.TrimSpace(f.TimeFrom) != ""
	hasTo := strings.TrimSpace(f.TimeTo) != ""
	if hasFrom != hasTo {
		return nil, &models.ValidationError{
			Field:   "time_from",
			Message: "please select both start time and end time, or leave both empty",
		}
	}
	if !hasFrom {
		return w, nil
	}

	start, err := parseClock("time_from", f.TimeFrom)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("time_to", f.TimeTo)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, &models.ValidationError{
			Field:   "time_from",
			Value:   f.TimeFrom,
			Message: "start time must be before end time",
		}
	}

	w.hasTime = true
	w.startMinute = start
	w.endMinute = end
	return w, nil
}

// Contains reports whether the millisecond timestamp falls inside the window
func (w *Window) Contains(ms int64) bool {
	t := time.UnixMilli(ms).In(w.loc)

	d := dateOf(t)
	if d.before(w.from) || w.to.before(d) {
		return false
	}
	if !w.hasTime {
		return true
	}

	minute := t.Hour()*60 + t.Minute()
	return minute >= w.startMinute && minute <= w.endMinute
}

// Order returns the resolved sort order
func (w *Window) Order() SortOrder {
	return w.order
}

func parseDate(field, s string, loc *time.Location) (civilDate, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return civilDate{}, &models.ValidationError{
			Field:   field,
			Value:   s,
			Message: fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field),
		}
	}
	return dateOf(t), nil
}

func parseClock(field, s string) (int, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, &models.ValidationError{
			Field:   field,
			Value:   s,
			Message: fmt.Sprintf("%s must be a time in HH:MM format", field),
		}
	}
	return t.Hour()*60 + t.Minute(), nil
}
