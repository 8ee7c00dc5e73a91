package services

import (
	"context"
	"fmt"
	"time"

	"fishda-monitor/internal/classifier"
	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/websocket"
	"fishda-monitor/pkg/logging"
)

// FeedRecord is one keyed record of a feed batch
type FeedRecord struct {
	Key string
	Raw models.RawReading
}

// IngestResult contains feed batch statistics
type IngestResult struct {
	Received   int            `json:"received"`
	Accepted   int            `json:"accepted"`
	Rejected   int            `json:"rejected"`
	Kept       int            `json:"kept"`
	Alerts     []models.Alert `json:"alerts"`
	Suppressed int            `json:"suppressed"`
	Duration   time.Duration  `json:"-"`
	Errors     []string       `json:"errors,omitempty"`
}

// ReadingService handles the realtime reading feed
type ReadingService struct {
	Deps
	log          *logging.ContextLogger
	dedupe       *classifier.Deduplicator
	historyLimit int
}

// NewReadingService creates a new reading service
func NewReadingService(deps Deps, coolDown time.Duration, historyLimit int) *ReadingService {
	deps = deps.withDefaults()
	return &ReadingService{
		Deps:         deps,
		log:          deps.component("feed"),
		dedupe:       classifier.NewDeduplicator(coolDown),
		historyLimit: historyLimit,
	}
}

// Load fills the session with the newest stored readings
func (s *ReadingService) Load(ctx context.Context) error {
	readings, err := s.Repo.ListReadings(ctx, repository.ReadingFilter{Limit: s.historyLimit})
	if err != nil {
		return fmt.Errorf("failed to load readings: %w", err)
	}

	kept := s.Session.OnReadingBatch(readings)
	s.log.Info(ctx, "[FEED_LOAD] Readings loaded from store", logging.Fields{
		"count": len(kept),
	})
	return nil
}

// Stored reads back the readings the store holds for keys, oldest first.
// Keys the store does not know are left out.
func (s *ReadingService) Stored(ctx context.Context, keys []string) ([]models.Reading, error) {
	if len(keys) == 0 {
		return []models.Reading{}, nil
	}
	readings, err := s.Repo.ListReadings(ctx, repository.ReadingFilter{Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to read back readings: %w", err)
	}
	return readings, nil
}

// IngestBatch normalizes a feed batch, persists it, replaces the session's
// reading set and checks the newest reading against thresholds. Records that
// cannot be normalized are skipped.
func (s *ReadingService) IngestBatch(ctx context.Context, records []FeedRecord) (*IngestResult, error) {
	startTime := time.Now()

	result := &IngestResult{
		Received: len(records),
		Alerts:   []models.Alert{},
	}

	readings := make([]models.Reading, 0, len(records))
	for _, rec := range records {
		reading, err := rec.Raw.Normalize(rec.Key, s.Session.Location())
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			s.Metrics.RecordRejectedReading("data_shape")
			s.log.Warn(ctx, "[FEED_REJECT] Skipping malformed reading", logging.Fields{
				"key":   rec.Key,
				"error": err.Error(),
			})
			continue
		}
		readings = append(readings, reading)
	}
	result.Accepted = len(readings)
	s.Metrics.FeedBatchSize.Observe(float64(len(records)))

	if err := s.Repo.UpsertReadings(ctx, readings); err != nil {
		keys := make([]string, 0, len(readings))
		for _, r := range readings {
			keys = append(keys, r.Key)
		}
		return nil, persistenceError("persist readings", keys, err)
	}
	s.Metrics.ReadingsIngestedTotal.Add(float64(len(readings)))

	kept := s.Session.OnReadingBatch(readings)
	result.Kept = len(kept)
	s.Notifier.Publish(websocket.TypeReadings, kept)

	var checkErr error
	if latest, ok := s.Session.Latest(); ok {
		created, suppressed, err := s.check(ctx, latest)
		result.Alerts = append(result.Alerts, created...)
		result.Suppressed = suppressed
		checkErr = err
	}

	result.Duration = time.Since(startTime)
	s.log.Info(ctx, "[FEED_BATCH] Reading batch processed", logging.Fields{
		"received":    result.Received,
		"accepted":    result.Accepted,
		"rejected":    result.Rejected,
		"kept":        result.Kept,
		"alerts":      len(result.Alerts),
		"suppressed":  result.Suppressed,
		"duration_ms": result.Duration.Milliseconds(),
	})

	return result, checkErr
}

// IngestLatest runs the threshold check for a single latest reading. A
// reading that carries neither timestamp nor time is stamped with the clock.
func (s *ReadingService) IngestLatest(ctx context.Context, raw models.RawReading) (*IngestResult, error) {
	if !raw.HasTime() {
		stamped := make(models.RawReading, len(raw)+1)
		for k, v := range raw {
			stamped[k] = v
		}
		stamped["timestamp"] = s.nowMillis()
		raw = stamped
	}

	reading, err := raw.Normalize("latest", s.Session.Location())
	if err != nil {
		s.Metrics.RecordRejectedReading("data_shape")
		return nil, err
	}

	created, suppressed, err := s.check(ctx, reading)
	return &IngestResult{
		Received:   1,
		Accepted:   1,
		Alerts:     created,
		Suppressed: suppressed,
	}, err
}

// check classifies a reading and raises alerts that pass the cool-down.
// Alerts that cannot be stored are reported in a PersistenceError; the rest are kept.
func (s *ReadingService) check(ctx context.Context, reading models.Reading) ([]models.Alert, int, error) {
	violations := classifier.CheckReading(reading, s.Session.Thresholds())
	if len(violations) == 0 {
		return []models.Alert{}, 0, nil
	}

	candidates, suppressed := s.dedupe.Evaluate(violations, s.Session.ActiveAlerts(), s.Clock())
	s.Metrics.AlertsSuppressedTotal.Add(float64(suppressed))

	created := make([]models.Alert, 0, len(candidates))
	var failed, stored []string
	var lastErr error

	for i := range candidates {
		alert := candidates[i]
		if err := s.Repo.CreateActiveAlert(ctx, &alert); err != nil {
			failed = append(failed, alert.ID)
			lastErr = err
			continue
		}

		s.Session.AddActive(alert)
		s.Metrics.RecordAlertCreated(string(alert.Parameter), string(alert.Severity))
		s.Notifier.Publish(websocket.TypeAlert, alert)
		created = append(created, alert)
		stored = append(stored, alert.ID)

		s.log.Info(ctx, "[ALERT_CREATED] Threshold alert raised", logging.Fields{
			"alert_id":  alert.ID,
			"parameter": alert.Parameter,
			"severity":  alert.Severity,
			"value":     alert.Value,
			"threshold": alert.Threshold,
		})
	}
	s.Metrics.ActiveAlerts.Set(float64(len(s.Session.ActiveAlerts())))

	if len(failed) > 0 {
		s.log.Error(ctx, "[ALERT_CREATE_ERROR] Failed to store alerts", logging.Fields{
			"failed": failed,
		}, lastErr)
		return created, suppressed, &models.PersistenceError{
			Op:        "create alert",
			IDs:       failed,
			Succeeded: stored,
			Err:       lastErr,
		}
	}
	return created, suppressed, nil
}
