package services

import (
	"bytes"
	"context"
	"fmt"

	"fishda-monitor/internal/export"
	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
	"fishda-monitor/internal/session"
	"fishda-monitor/pkg/logging"
)

// HistoryService runs history queries over the session's reading set
type HistoryService struct {
	Deps
	log *logging.ContextLogger
}

// NewHistoryService creates a new history service
func NewHistoryService(deps Deps) *HistoryService {
	deps = deps.withDefaults()
	return &HistoryService{Deps: deps, log: deps.component("history")}
}

// Query runs f over the reading set and makes the result the current view.
// A page other than 1 is applied afterwards with no-op semantics.
func (s *HistoryService) Query(ctx context.Context, f history.Filter, page int) (session.Page, error) {
	timer := s.Metrics.NewTimer(s.Metrics.HistoryQueryDuration)
	defer timer.ObserveDuration()

	res, err := history.QueryReadings(s.Session.Readings(), f, s.Session.Location(), s.Session.Thresholds())
	if err != nil {
		s.Metrics.HistoryQueriesTotal.WithLabelValues("invalid").Inc()
		s.log.Warn(ctx, "[HISTORY_QUERY_INVALID] Rejected history query", logging.Fields{
			"date_from": f.DateFrom,
			"date_to":   f.DateTo,
			"error":     err.Error(),
		})
		return session.Page{}, err
	}

	if res.Total == 0 {
		s.Metrics.HistoryQueriesTotal.WithLabelValues("empty").Inc()
	} else {
		s.Metrics.HistoryQueriesTotal.WithLabelValues("ok").Inc()
	}

	current := s.Session.SetView(f, res)
	if page > 1 {
		if moved, _, err := s.Session.GoToPage(page); err == nil {
			current = moved
		}
	}

	s.log.Info(ctx, "[HISTORY_QUERY] History query executed", logging.Fields{
		"date_from":   f.DateFrom,
		"date_to":     f.DateTo,
		"time_from":   f.TimeFrom,
		"time_to":     f.TimeTo,
		"parameter":   f.Parameter,
		"severity":    f.Severity,
		"total":       current.Total,
		"total_pages": current.TotalPages,
	})
	return current, nil
}

// GoToPage moves the current view; out-of-range pages leave it unchanged
func (s *HistoryService) GoToPage(ctx context.Context, page int) (session.Page, bool, error) {
	current, moved, err := s.Session.GoToPage(page)
	if err != nil {
		return session.Page{}, false, err
	}

	s.log.Debug(ctx, "[HISTORY_PAGE] Page navigation", logging.Fields{
		"requested": page,
		"page":      current.Page,
		"moved":     moved,
	})
	return current, moved, nil
}

// CurrentPage returns the current view, if a query has been run
func (s *HistoryService) CurrentPage() (session.Page, bool) {
	return s.Session.CurrentPage()
}

// Calendar describes the date picker bounds and the days that have readings
func (s *HistoryService) Calendar() history.Calendar {
	return history.BuildCalendar(s.Session.Readings(), s.Session.Location())
}

// Export encodes the full filtered set of the current view, or of f when given,
// into format. The current view is not changed by an export with its own filter.
func (s *HistoryService) Export(ctx context.Context, format string, f *history.Filter) (*ExportFile, error) {
	enc, err := export.Lookup(format)
	if err != nil {
		return nil, err
	}

	var doc *export.Document
	if f != nil {
		res, err := history.QueryReadings(s.Session.Readings(), *f, s.Session.Location(), s.Session.Thresholds())
		if err != nil {
			return nil, err
		}
		doc = s.document(*f, res.Items, res.Statistics)
	} else if current, ok := s.Session.CurrentPage(); ok {
		doc = s.document(current.Filter, current.Rows, current.Statistics)
	}

	if doc == nil || len(doc.Rows) == 0 {
		return nil, &models.ValidationError{
			Field:   "data",
			Message: "No data to export. Please apply a date filter first.",
		}
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, doc); err != nil {
		s.log.Error(ctx, "[HISTORY_EXPORT_ERROR] Export encoding failed", logging.Fields{
			"format": enc.Format(),
		}, err)
		return nil, fmt.Errorf("failed to encode %s export: %w", enc.Format(), err)
	}
	s.Metrics.ExportsTotal.WithLabelValues(enc.Format()).Inc()

	file := newExportFile(export.Filename(export.FilePrefix, enc.Extension(), doc.ExportedAt), enc.ContentType(), &buf)
	s.log.Info(ctx, "[HISTORY_EXPORT] History exported", logging.Fields{
		"format":   enc.Format(),
		"filename": file.Filename,
		"rows":     len(doc.Rows),
		"bytes":    len(file.Data),
	})
	return file, nil
}

func (s *HistoryService) document(f history.Filter, rows []models.Reading, stats history.Statistics) *export.Document {
	loc := s.Session.Location()
	return &export.Document{
		Rows:       rows,
		Statistics: stats,
		DateFrom:   f.DateFrom,
		DateTo:     f.DateTo,
		ExportedAt: s.Clock().In(loc),
		Location:   loc,
	}
}
