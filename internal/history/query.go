package history

import (
	"sort"
	"time"

	"fishda-monitor/internal/classifier"
	"fishda-monitor/internal/models"
)

// DefaultPageSize is the number of records shown per page
const DefaultPageSize = 10

// Record is anything with a millisecond timestamp
type Record interface {
	TimestampMillis() int64
}

// Result is the sorted, filtered set of a query
type Result[T Record] struct {
	Items    []T
	Total    int
	PageSize int
	Window   *Window
}

// TotalPages is ceil(Total/PageSize); zero for an empty result
func (r *Result[T]) TotalPages() int {
	return totalPages(r.Total, r.PageSize)
}

// Query filters items by f, then stable-sorts them by timestamp.
// match, when non-nil, applies additional record-specific predicates.
// The input slice is not modified.
func Query[T Record](items []T, f Filter, loc *time.Location, match func(T) bool) (*Result[T], error) {
	w, err := f.Compile(loc)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if !w.Contains(item.TimestampMillis()) {
			continue
		}
		if match != nil && !match(item) {
			continue
		}
		out = append(out, item)
	}

	SortByTime(out, w.Order())

	return &Result[T]{
		Items:    out,
		Total:    len(out),
		PageSize: DefaultPageSize,
		Window:   w,
	}, nil
}

// SortByTime stable-sorts items in place; equal timestamps keep input order
func SortByTime[T Record](items []T, order SortOrder) {
	if order == SortOldest {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].TimestampMillis() < items[j].TimestampMillis()
		})
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TimestampMillis() > items[j].TimestampMillis()
	})
}

// ReadingResult is a reading query plus statistics over the full filtered set
type ReadingResult struct {
	*Result[models.Reading]
	Statistics Statistics
}

// QueryReadings runs Query over readings with the parameter and severity
// predicates of f. A parameter filter keeps readings with a value for it; a
// severity filter keeps readings where the selected parameter (or any
// parameter when none is selected) classifies to that severity.
func QueryReadings(readings []models.Reading, f Filter, loc *time.Location, table models.ThresholdTable) (*ReadingResult, error) {
	match, err := readingMatcher(f, table)
	if err != nil {
		return nil, err
	}

	res, err := Query(readings, f, loc, match)
	if err != nil {
		return nil, err
	}

	return &ReadingResult{
		Result:     res,
		Statistics: Aggregate(res.Items),
	}, nil
}

// QueryAlerts runs Query over alerts with the parameter and severity filters of f
func QueryAlerts(alerts []models.Alert, f Filter, loc *time.Location) (*Result[models.Alert], error) {
	param, sev, err := selectors(f)
	if err != nil {
		return nil, err
	}

	return Query(alerts, f, loc, func(a models.Alert) bool {
		return MatchAlert(a, param, sev)
	})
}

// MatchAlert applies the optional parameter and severity selectors
func MatchAlert(a models.Alert, param models.Parameter, sev models.Severity) bool {
	if param != "" && a.Parameter != param {
		return false
	}
	if sev != "" && a.Severity != sev {
		return false
	}
	return true
}

func readingMatcher(f Filter, table models.ThresholdTable) (func(models.Reading) bool, error) {
	param, sev, err := selectors(f)
	if err != nil {
		return nil, err
	}
	if param == "" && sev == "" {
		return nil, nil
	}

	return func(r models.Reading) bool {
		if param != "" {
			if r.Value(param) == nil {
				return false
			}
			return sev == "" || classifier.Classify(param, r.Value(param), table) == sev
		}
		for _, p := range models.Parameters {
			if classifier.Classify(p, r.Value(p), table) == sev {
				return true
			}
		}
		return false
	}, nil
}

// selectors parses the parameter and severity fields; "" and "all" select everything
func selectors(f Filter) (models.Parameter, models.Severity, error) {
	var (
		param models.Parameter
		sev   models.Severity
	)

	if f.Parameter != "" && f.Parameter != "all" {
		p, ok := models.ParseParameter(f.Parameter)
		if !ok {
			return "", "", &models.ValidationError{
				Field:   "parameter",
				Value:   f.Parameter,
				Message: "unknown parameter " + f.Parameter,
			}
		}
		param = p
	}

	if f.Severity != "" && f.Severity != "all" {
		s, ok := models.ParseSeverity(f.Severity)
		if !ok {
			return "", "", &models.ValidationError{
				Field:   "severity",
				Value:   f.Severity,
				Message: "unknown severity " + f.Severity,
			}
		}
		sev = s
	}

	return param, sev, nil
}

// ParseSelectors exposes the selector parsing used by the active alert list
func ParseSelectors(parameter, severity string) (models.Parameter, models.Severity, error) {
	return selectors(Filter{Parameter: parameter, Severity: severity})
}
