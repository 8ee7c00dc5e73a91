package history

import (
	"sort"
	"time"
)

// Calendar describes the bounds and highlighted days of the date picker
type Calendar struct {
	MinDate       string   `json:"minDate,omitempty"`
	MaxDate       string   `json:"maxDate,omitempty"`
	DatesWithData []string `json:"datesWithData"`
}

// BuildCalendar spans whole years: Jan 1 of the earliest record's year to
// Dec 31 of the latest. Dates are local to loc.
func BuildCalendar[T Record](items []T, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}

	cal := Calendar{DatesWithData: []string{}}
	if len(items) == 0 {
		return cal
	}

	seen := make(map[string]struct{})
	minYear, maxYear := 0, 0

	for i, item := range items {
		t := time.UnixMilli(item.TimestampMillis()).In(loc)
		if i == 0 || t.Year() < minYear {
			minYear = t.Year()
		}
		if i == 0 || t.Year() > maxYear {
			maxYear = t.Year()
		}

		day := t.Format(DateLayout)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		cal.DatesWithData = append(cal.DatesWithData, day)
	}

	sort.Strings(cal.DatesWithData)
	cal.MinDate = time.Date(minYear, time.January, 1, 0, 0, 0, 0, loc).Format(DateLayout)
	cal.MaxDate = time.Date(maxYear, time.December, 31, 0, 0, 0, 0, loc).Format(DateLayout)

	return cal
}
