// Package services implements the monitor's operations on top of the session,
// the repository and the push hub.
package services

import (
	"bytes"
	"time"

	"fishda-monitor/internal/models"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/session"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

// Notifier pushes events to connected dashboards
type Notifier interface {
	Publish(msgType string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, interface{}) {}

// Clock returns the current time
type Clock func() time.Time

// Deps are the collaborators shared by every service
type Deps struct {
	Repo     repository.PondRepository
	Session  *session.Session
	Notifier Notifier
	Logger   *logging.StructuredLogger
	Metrics  *metrics.Collector
	Clock    Clock
	Operator string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.NewDiscardLogger()
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Operator == "" {
		d.Operator = "operator"
	}
	return d
}

// component tags every entry a service logs with its name
func (d Deps) component(name string) *logging.ContextLogger {
	return d.Logger.WithFields(logging.Fields{"component": name})
}

func (d Deps) nowMillis() int64 {
	return d.Clock().UnixMilli()
}

// ExportFile is an encoded download
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

func newExportFile(filename, contentType string, buf *bytes.Buffer) *ExportFile {
	return &ExportFile{
		Filename:    filename,
		ContentType: contentType,
		Data:        buf.Bytes(),
	}
}

func persistenceError(op string, ids []string, err error) error {
	return &models.PersistenceError{Op: op, IDs: ids, Err: err}
}
