package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"fishda-monitor/internal/export"
	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/websocket"
	"fishda-monitor/pkg/logging"
)

// AlertPage is one page of the alert history
type AlertPage struct {
	Items      []models.Alert `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Total      int            `json:"total"`
	PageSize   int            `json:"pageSize"`
}

// AlertService handles alert transitions and listings
type AlertService struct {
	Deps
	log *logging.ContextLogger
}

// AlertHistoryLimit caps how many acknowledged alerts are loaded on startup
const AlertHistoryLimit = 100

// NewAlertService creates a new alert service
func NewAlertService(deps Deps) *AlertService {
	deps = deps.withDefaults()
	return &AlertService{Deps: deps, log: deps.component("alerts")}
}

// Load fills the session with the stored active and history alerts
func (s *AlertService) Load(ctx context.Context) error {
	active, err := s.Repo.ListActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active alerts: %w", err)
	}

	hist, err := s.Repo.ListHistoryAlerts(ctx, repository.AlertFilter{Limit: AlertHistoryLimit})
	if err != nil {
		return fmt.Errorf("failed to load alert history: %w", err)
	}

	s.Session.SetAlerts(active, hist)
	s.Metrics.ActiveAlerts.Set(float64(len(active)))

	s.log.Info(ctx, "[ALERT_LOAD] Alerts loaded from store", logging.Fields{
		"active":  len(active),
		"history": len(hist),
	})
	return nil
}

// Active lists active alerts newest first, optionally filtered
func (s *AlertService) Active(severity, parameter string) ([]models.Alert, error) {
	param, sev, err := history.ParseSelectors(parameter, severity)
	if err != nil {
		return nil, err
	}

	out := make([]models.Alert, 0)
	for _, a := range s.Session.ActiveAlerts() {
		if history.MatchAlert(a, param, sev) {
			out = append(out, a)
		}
	}
	history.SortByTime(out, history.SortNewest)
	return out, nil
}

// Acknowledge moves an active alert to history, stamped with the operator
func (s *AlertService) Acknowledge(ctx context.Context, id string) (*models.Alert, error) {
	moved, err := s.acknowledge(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Metrics.ActiveAlerts.Set(float64(len(s.Session.ActiveAlerts())))
	return moved, nil
}

func (s *AlertService) acknowledge(ctx context.Context, id string) (*models.Alert, error) {
	if _, ok := s.Session.FindActive(id); !ok {
		s.Metrics.RecordAlertTransition("acknowledge", "not_found")
		return nil, &models.NotFoundError{Resource: "alert", ID: id}
	}

	moved, err := s.Repo.AcknowledgeAlert(ctx, id, s.nowMillis(), s.Operator)
	if err != nil {
		var nfErr *models.NotFoundError
		if errors.As(err, &nfErr) {
			// Already gone from the store; keep the session in step.
			s.Session.RemoveActive(id)
			s.Metrics.RecordAlertTransition("acknowledge", "not_found")
			return nil, err
		}
		s.Metrics.RecordAlertTransition("acknowledge", "error")
		s.log.Error(ctx, "[ALERT_ACK_ERROR] Failed to acknowledge alert", logging.Fields{
			"alert_id": id,
		}, err)
		return nil, persistenceError("acknowledge", []string{id}, err)
	}

	s.Session.RemoveActive(id)
	s.Session.AddHistory(*moved)
	s.Metrics.RecordAlertTransition("acknowledge", "success")
	s.Notifier.Publish(websocket.TypeAlertAcknowledged, moved)

	s.log.Info(ctx, "[ALERT_ACK] Alert acknowledged", logging.Fields{
		"alert_id":        id,
		"history_id":      moved.ID,
		"acknowledged_by": moved.AcknowledgedBy,
	})
	return moved, nil
}

// AcknowledgeAll acknowledges every active alert. Failures do not roll back
// the alerts that were acknowledged; they are listed in a PersistenceError.
func (s *AlertService) AcknowledgeAll(ctx context.Context) (*models.BulkResult, error) {
	result := &models.BulkResult{
		Acknowledged: []string{},
		Failed:       []models.BulkFailure{},
	}

	var lastErr error
	for _, a := range s.Session.ActiveAlerts() {
		if _, err := s.acknowledge(ctx, a.ID); err != nil {
			result.Failed = append(result.Failed, models.BulkFailure{ID: a.ID, Error: err.Error()})
			lastErr = err
			continue
		}
		result.Acknowledged = append(result.Acknowledged, a.ID)
	}
	s.Metrics.ActiveAlerts.Set(float64(len(s.Session.ActiveAlerts())))

	s.log.Info(ctx, "[ALERT_ACK_ALL] Bulk acknowledge finished", logging.Fields{
		"acknowledged": len(result.Acknowledged),
		"failed":       len(result.Failed),
	})

	if len(result.Failed) > 0 {
		ids := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			ids = append(ids, f.ID)
		}
		return result, &models.PersistenceError{
			Op:        "acknowledge",
			IDs:       ids,
			Succeeded: result.Acknowledged,
			Err:       lastErr,
		}
	}
	return result, nil
}

// Dismiss removes an active alert without recording it in history
func (s *AlertService) Dismiss(ctx context.Context, id string) error {
	if _, ok := s.Session.FindActive(id); !ok {
		s.Metrics.RecordAlertTransition("dismiss", "not_found")
		return &models.NotFoundError{Resource: "alert", ID: id}
	}

	if err := s.Repo.DeleteActiveAlert(ctx, id); err != nil {
		var nfErr *models.NotFoundError
		if errors.As(err, &nfErr) {
			s.Session.RemoveActive(id)
			s.Metrics.RecordAlertTransition("dismiss", "not_found")
			return err
		}
		s.Metrics.RecordAlertTransition("dismiss", "error")
		return persistenceError("dismiss", []string{id}, err)
	}

	s.Session.RemoveActive(id)
	s.Metrics.RecordAlertTransition("dismiss", "success")
	s.Metrics.ActiveAlerts.Set(float64(len(s.Session.ActiveAlerts())))
	s.Notifier.Publish(websocket.TypeAlertDismissed, map[string]string{"id": id})

	s.log.Info(ctx, "[ALERT_DISMISS] Alert dismissed", logging.Fields{
		"alert_id": id,
	})
	return nil
}

// History pages through acknowledged alerts. Missing dates default to the
// whole span of the history; an out-of-range page falls back to page 1.
func (s *AlertService) History(f history.Filter, page int) (*AlertPage, error) {
	res, err := s.queryHistory(f)
	if err != nil {
		return nil, err
	}

	pager := history.NewPaginator(res.Items, s.Session.PageSize())
	pager.GoToPage(page)

	items := pager.Items()
	if items == nil {
		items = []models.Alert{}
	}

	return &AlertPage{
		Items:      items,
		Page:       pager.Page(),
		TotalPages: pager.TotalPages(),
		Total:      pager.Total(),
		PageSize:   pager.PageSize(),
	}, nil
}

// ExportHistory renders the filtered alert history as CSV
func (s *AlertService) ExportHistory(ctx context.Context, f history.Filter) (*ExportFile, error) {
	res, err := s.queryHistory(f)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.EncodeAlertsCSV(&buf, res.Items, s.Session.Location()); err != nil {
		return nil, fmt.Errorf("failed to encode alert history: %w", err)
	}
	s.Metrics.ExportsTotal.WithLabelValues("alerts_csv").Inc()

	file := newExportFile(export.Filename(export.AlertsFilePrefix, "csv", s.Clock().In(s.Session.Location())), "text/csv; charset=utf-8", &buf)
	s.log.Info(ctx, "[ALERT_EXPORT] Alert history exported", logging.Fields{
		"filename": file.Filename,
		"rows":     len(res.Items),
	})
	return file, nil
}

func (s *AlertService) queryHistory(f history.Filter) (*history.Result[models.Alert], error) {
	if _, _, err := history.ParseSelectors(f.Parameter, f.Severity); err != nil {
		return nil, err
	}

	alerts := s.Session.HistoryAlerts()
	if f.DateFrom == "" || f.DateTo == "" {
		cal := history.BuildCalendar(alerts, s.Session.Location())
		if len(alerts) == 0 {
			return &history.Result[models.Alert]{Items: []models.Alert{}, PageSize: s.Session.PageSize()}, nil
		}
		if f.DateFrom == "" {
			f.DateFrom = cal.MinDate
		}
		if f.DateTo == "" {
			f.DateTo = cal.MaxDate
		}
	}
	if f.SortOrder == "" {
		f.SortOrder = history.SortNewest
	}

	return history.QueryAlerts(alerts, f, s.Session.Location())
}
