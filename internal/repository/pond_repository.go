package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fishda-monitor/internal/models"
	"fishda-monitor/pkg/database"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

// Configuration sections stored in device_config
const (
	SectionWiFi          = "wifi"
	SectionAerator       = "aerator"
	SectionSampling      = "sampling"
	SectionThresholds    = "thresholds"
	SectionNotifications = "notifications"
)

// PondRepository provides data access for the pond monitor
type PondRepository interface {
	// Reading operations
	UpsertReadings(ctx context.Context, readings []models.Reading) error
	ListReadings(ctx context.Context, filter ReadingFilter) ([]models.Reading, error)

	// Active alert operations
	CreateActiveAlert(ctx context.Context, alert *models.Alert) error
	ListActiveAlerts(ctx context.Context) ([]models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string, at int64, by string) (*models.Alert, error)
	DeleteActiveAlert(ctx context.Context, id string) error

	// History alert operations
	ListHistoryAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error)

	// Configuration operations
	GetConfig(ctx context.Context) (models.DeviceConfig, error)
	SaveConfigSection(ctx context.Context, section string, value interface{}) error

	// Device status operations
	GetDeviceStatus(ctx context.Context) (models.DeviceStatus, error)
	SaveDeviceStatus(ctx context.Context, status models.DeviceStatus) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ReadingFilter defines filters for loading readings. Limit keeps the newest N.
type ReadingFilter struct {
	Keys  []string
	Limit int
}

// AlertFilter defines filters for loading alert history. Limit keeps the newest N.
type AlertFilter struct {
	Limit int
}

// pondRepository implements PondRepository
type pondRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPondRepository creates a new pond repository
func NewPondRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PondRepository {
	return &pondRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const readingColumns = `reading_key, timestamp_ms, temperature, ph, salinity, turbidity, "do"`

const alertColumns = `id, parameter, value, severity, threshold, message, timestamp_ms,
		acknowledged, acknowledged_at_ms, acknowledged_by`

// UpsertReadings writes a feed batch in a single transaction
func (r *pondRepository) UpsertReadings(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Reading batch written", logging.Fields{
			"count":       len(readings),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (`+readingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reading_key) DO UPDATE SET
			timestamp_ms = EXCLUDED.timestamp_ms,
			temperature = EXCLUDED.temperature,
			ph = EXCLUDED.ph,
			salinity = EXCLUDED.salinity,
			turbidity = EXCLUDED.turbidity,
			"do" = EXCLUDED."do"
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		key := reading.Key
		if key == "" {
			key = fmt.Sprintf("ts-%d", reading.Timestamp)
		}
		_, err := stmt.ExecContext(ctx,
			key,
			reading.Timestamp,
			reading.Temperature,
			reading.PH,
			reading.Salinity,
			reading.Turbidity,
			reading.DO,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert reading %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListReadings returns readings in ascending timestamp order
func (r *pondRepository) ListReadings(ctx context.Context, filter ReadingFilter) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if len(filter.Keys) > 0 {
		query += fmt.Sprintf(" AND reading_key = ANY($%d)", argNum)
		args = append(args, pq.Array(filter.Keys))
		argNum++
	}

	query += " ORDER BY timestamp_ms DESC, reading_key DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	var readings []models.Reading
	if err := r.db.SelectContext(ctx, "list_readings", &readings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	// newest-first for the LIMIT; callers get oldest-first
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}

	return readings, nil
}

// CreateActiveAlert stores a new active alert, assigning an id when missing
func (r *pondRepository) CreateActiveAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	query := `
		INSERT INTO active_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, "insert_active_alert", query,
		alert.ID,
		alert.Parameter,
		alert.Value,
		alert.Severity,
		alert.Threshold,
		alert.Message,
		alert.Timestamp,
		alert.Acknowledged,
		alert.AcknowledgedAt,
		alert.AcknowledgedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_ALERT] Alert created", logging.Fields{
		"alert_id":  alert.ID,
		"parameter": alert.Parameter,
		"severity":  alert.Severity,
	})

	return nil
}

// ListActiveAlerts returns active alerts, newest first
func (r *pondRepository) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM active_alerts ORDER BY timestamp_ms DESC`

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, "list_active_alerts", &alerts, query); err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert writes the alert to history under a new key, then removes
// the active record, in one transaction
func (r *pondRepository) AcknowledgeAlert(ctx context.Context, id string, at int64, by string) (*models.Alert, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	historyID := uuid.NewString()
	query := `
		INSERT INTO alert_history (
			id, source_id, parameter, value, severity, threshold, message, timestamp_ms,
			acknowledged, acknowledged_at_ms, acknowledged_by
		)
		SELECT $1, id, parameter, value, severity, threshold, message, timestamp_ms,
			TRUE, $2, $3
		FROM active_alerts
		WHERE id = $4
		RETURNING ` + alertColumns + `, source_id
	`

	var moved models.Alert
	err = tx.GetContext(ctx, &moved, query, historyID, at, by, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "alert", ID: id}
	}
	if err != nil {
		r.metrics.RecordDBError("acknowledge_error")
		return nil, fmt.Errorf("failed to write alert history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM active_alerts WHERE id = $1`, id); err != nil {
		r.metrics.RecordDBError("acknowledge_error")
		return nil, fmt.Errorf("failed to remove active alert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &moved, nil
}

// DeleteActiveAlert removes an active alert without a history entry
func (r *pondRepository) DeleteActiveAlert(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "delete_active_alert", `DELETE FROM active_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if affected == 0 {
		return &models.NotFoundError{Resource: "alert", ID: id}
	}

	return nil
}

// ListHistoryAlerts returns acknowledged alerts, newest first
func (r *pondRepository) ListHistoryAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + `, source_id FROM alert_history ORDER BY timestamp_ms DESC`
	args := []interface{}{}

	if filter.Limit > 0 {
		query += " LIMIT $1"
		args = append(args, filter.Limit)
	}

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, "list_history_alerts", &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}

	return alerts, nil
}

type configRow struct {
	Section string `db:"section"`
	Payload []byte `db:"payload"`
}

// GetConfig assembles the configuration tree; missing sections keep defaults
func (r *pondRepository) GetConfig(ctx context.Context) (models.DeviceConfig, error) {
	cfg := models.DefaultDeviceConfig()

	var rows []configRow
	if err := r.db.SelectContext(ctx, "get_config", &rows, `SELECT section, payload FROM device_config`); err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	for _, row := range rows {
		var target interface{}
		switch row.Section {
		case SectionWiFi:
			target = &cfg.WiFi
		case SectionAerator:
			target = &cfg.Aerator
		case SectionSampling:
			target = &cfg.Sampling
		case SectionThresholds:
			target = &cfg.Thresholds
		case SectionNotifications:
			target = &cfg.Notifications
		default:
			r.logger.Warn(ctx, "[REPO_CONFIG_UNKNOWN] Ignoring unknown config section", logging.Fields{
				"section": row.Section,
			})
			continue
		}

		if err := json.Unmarshal(row.Payload, target); err != nil {
			return cfg, fmt.Errorf("failed to decode config section %s: %w", row.Section, err)
		}
	}

	cfg.Thresholds = cfg.Thresholds.Merge(models.DefaultThresholds())
	return cfg, nil
}

// SaveConfigSection replaces one configuration section
func (r *pondRepository) SaveConfigSection(ctx context.Context, section string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode config section %s: %w", section, err)
	}

	query := `
		INSERT INTO device_config (section, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (section) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, "save_config_section", query, section, payload); err != nil {
		return fmt.Errorf("failed to save config section %s: %w", section, err)
	}

	return nil
}

// GetDeviceStatus returns the last status reported by the node
func (r *pondRepository) GetDeviceStatus(ctx context.Context) (models.DeviceStatus, error) {
	query := `SELECT wifi_connected, wifi_ssid, updated_at_ms FROM device_status WHERE id = 1`

	var status models.DeviceStatus
	err := r.db.GetContext(ctx, "get_device_status", &status, query)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeviceStatus{}, nil
	}
	if err != nil {
		return models.DeviceStatus{}, fmt.Errorf("failed to get device status: %w", err)
	}

	return status, nil
}

// SaveDeviceStatus records the node's connectivity signal
func (r *pondRepository) SaveDeviceStatus(ctx context.Context, status models.DeviceStatus) error {
	query := `
		INSERT INTO device_status (id, wifi_connected, wifi_ssid, updated_at_ms)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			wifi_connected = EXCLUDED.wifi_connected,
			wifi_ssid = EXCLUDED.wifi_ssid,
			updated_at_ms = EXCLUDED.updated_at_ms
	`

	if _, err := r.db.ExecContext(ctx, "save_device_status", query, status.WiFiConnected, status.WiFiSSID, status.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save device status: %w", err)
	}

	return nil
}

// HealthCheck performs a repository health check
func (r *pondRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
