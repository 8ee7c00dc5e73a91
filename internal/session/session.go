// Package session holds the dashboard state that the feed and the operator act on.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
)

// Options configures a Session
type Options struct {
	Location     *time.Location
	HistoryLimit int
}

// View is the current history query and its page cursor
type View struct {
	Filter history.Filter
	Result *history.ReadingResult
	Pager  *history.Paginator[models.Reading]
}

// Session owns the subscribed reading set, configuration, device status,
// active and history alerts, and the current history view. It is created on
// startup and updated on every inbound feed event. All methods are safe for
// concurrent use; returned slices are copies.
type Session struct {
	mu sync.RWMutex

	id           string
	loc          *time.Location
	historyLimit int
	pageSize     int

	readings []models.Reading
	config   models.DeviceConfig
	status   models.DeviceStatus
	active   []models.Alert
	history  []models.Alert
	view     *View

	watchers map[int]chan models.DeviceStatus
	nextWID  int
}

// New creates a session with default device configuration
func New(opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Session{
		id:           uuid.NewString(),
		loc:          opts.Location,
		historyLimit: opts.HistoryLimit,
		pageSize:     history.DefaultPageSize,
		config:       models.DefaultDeviceConfig(),
		watchers:     make(map[int]chan models.DeviceStatus),
	}
}

// ID identifies the session in logs
func (s *Session) ID() string {
	return s.id
}

// Location is the time zone used for calendar dates
func (s *Session) Location() *time.Location {
	return s.loc
}

// PageSize is the history page size
func (s *Session) PageSize() int {
	return s.pageSize
}

// OnReadingBatch replaces the subscribed reading set. When a history limit is
// set only the newest readings are kept.
func (s *Session) OnReadingBatch(readings []models.Reading) []models.Reading {
	snapshot := make([]models.Reading, len(readings))
	copy(snapshot, readings)

	if s.historyLimit > 0 && len(snapshot) > s.historyLimit {
		history.SortByTime(snapshot, history.SortOldest)
		snapshot = snapshot[len(snapshot)-s.historyLimit:]
	}

	s.mu.Lock()
	s.readings = snapshot
	s.mu.Unlock()

	return snapshot
}

// Readings returns the subscribed reading set
func (s *Session) Readings() []models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Latest returns the reading with the greatest timestamp
func (s *Session) Latest() (models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.readings) == 0 {
		return models.Reading{}, false
	}
	latest := s.readings[0]
	for _, r := range s.readings[1:] {
		if r.Timestamp > latest.Timestamp {
			latest = r
		}
	}
	return latest, true
}

// OnConfigChange replaces the device configuration. Missing threshold
// parameters are filled from defaults.
func (s *Session) OnConfigChange(cfg models.DeviceConfig) {
	cfg.Thresholds = cfg.Thresholds.Merge(models.DefaultThresholds())
	if cfg.Aerator.Schedules == nil {
		cfg.Aerator.Schedules = []models.AeratorSchedule{}
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

// Config returns a copy of the device configuration
func (s *Session) Config() models.DeviceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.config
	cfg.Thresholds = s.config.Thresholds.Clone()
	cfg.Aerator.Schedules = append([]models.AeratorSchedule{}, s.config.Aerator.Schedules...)
	return cfg
}

// Thresholds returns a copy of the threshold table
func (s *Session) Thresholds() models.ThresholdTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Thresholds.Clone()
}

// UpdateConfig applies fn to the configuration under the write lock
func (s *Session) UpdateConfig(fn func(*models.DeviceConfig)) models.DeviceConfig {
	s.mu.Lock()
	fn(&s.config)
	s.mu.Unlock()
	return s.Config()
}

// OnDeviceStatus records a status update and notifies watchers
func (s *Session) OnDeviceStatus(status models.DeviceStatus) {
	s.mu.Lock()
	s.status = status
	watchers := make([]chan models.DeviceStatus, 0, len(s.watchers))
	for _, ch := range s.watchers {
		watchers = append(watchers, ch)
	}
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- status:
		default:
			// keep only the newest pending status
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- status:
			default:
			}
		}
	}
}

// Status returns the last device status
func (s *Session) Status() models.DeviceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// WatchStatus subscribes to device status updates. The returned cancel
// function must be called to release the subscription.
func (s *Session) WatchStatus() (<-chan models.DeviceStatus, func()) {
	ch := make(chan models.DeviceStatus, 1)

	s.mu.Lock()
	id := s.nextWID
	s.nextWID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// SetAlerts replaces both alert sets, as loaded from the store
func (s *Session) SetAlerts(active, hist []models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append([]models.Alert{}, active...)
	s.history = append([]models.Alert{}, hist...)
}

// ActiveAlerts returns the active set
func (s *Session) ActiveAlerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Alert{}, s.active...)
}

// HistoryAlerts returns the acknowledged alerts
func (s *Session) HistoryAlerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Alert{}, s.history...)
}

// AddActive appends new alerts to the active set
func (s *Session) AddActive(alerts ...models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append(s.active, alerts...)
}

// FindActive looks up an active alert by id
func (s *Session) FindActive(id string) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.active {
		if a.ID == id {
			return a, true
		}
	}
	return models.Alert{}, false
}

// RemoveActive drops an active alert; it reports false when id is unknown
func (s *Session) RemoveActive(id string) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.active {
		if a.ID == id {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return a, true
		}
	}
	return models.Alert{}, false
}

// AddHistory records an acknowledged alert
func (s *Session) AddHistory(a models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, a)
}

// SetView makes res the current history view, on page 1
func (s *Session) SetView(f history.Filter, res *history.ReadingResult) Page {
	v := &View{
		Filter: f,
		Result: res,
		Pager:  history.NewPaginator(res.Items, s.pageSize),
	}

	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
	return v.snapshot()
}

// Page is a consistent snapshot of the current history view
type Page struct {
	Filter     history.Filter
	Items      []models.Reading
	Page       int
	TotalPages int
	Total      int
	PageSize   int
	Statistics history.Statistics
	Rows       []models.Reading
}

// CurrentPage snapshots the current view; false before the first query
func (s *Session) CurrentPage() (Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return Page{}, false
	}
	return s.view.snapshot(), true
}

// GoToPage moves the current view to page n and reports whether the page
// changed. Out-of-range pages are a no-op.
func (s *Session) GoToPage(n int) (Page, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return Page{}, false, &models.ValidationError{
			Field:   "page",
			Message: "no history query has been run yet",
		}
	}
	moved := s.view.Pager.GoToPage(n)
	return s.view.snapshot(), moved, nil
}

func (v *View) snapshot() Page {
	return Page{
		Filter:     v.Filter,
		Items:      append([]models.Reading{}, v.Pager.Items()...),
		Page:       v.Pager.Page(),
		TotalPages: v.Pager.TotalPages(),
		Total:      v.Pager.Total(),
		PageSize:   v.Pager.PageSize(),
		Statistics: v.Result.Statistics,
		Rows:       v.Result.Items,
	}
}
