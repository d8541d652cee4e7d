package telemetry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/pinenut/internal/logger"
)

// Event is a single diagnostic reported by a logger.Tracker, retained in
// memory for inspection alongside being logged and counted. Grounded on
// the teacher's internal/audit.AuditEvent, narrowed to the write path's
// actual payload (an error plus the call site that produced it) now that
// there's no bucket/key/algorithm to carry.
type Event struct {
	Domain string
	File   string
	Line   int
	Err    error
}

// Tracker adapts logger.Tracker to structured logging plus Prometheus
// counters, and retains a bounded ring of recent events for the admin
// surface to expose. It never blocks the write path: Track only logs,
// increments a counter and appends to an in-memory slice under a mutex.
type Tracker struct {
	domain    string
	log       *logrus.Logger
	metrics   *Metrics
	mu        sync.Mutex
	events    []Event
	maxEvents int
}

// NewTracker constructs a Tracker for domain, logging through log (a nil
// log falls back to logrus.StandardLogger()) and recording into metrics
// (a nil metrics disables counting). maxEvents bounds the in-memory
// ring; a maxEvents of 0 or less retains nothing (events are logged and
// counted but not stored).
func NewTracker(domain string, log *logrus.Logger, metrics *Metrics, maxEvents int) *Tracker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{domain: domain, log: log, metrics: metrics, maxEvents: maxEvents}
}

// Track implements logger.Tracker.
func (t *Tracker) Track(err error, file string, line int) {
	t.log.WithFields(logrus.Fields{
		"domain": t.domain,
		"file":   file,
		"line":   line,
	}).WithError(err).Error("pinenut: write path error")

	if t.metrics != nil {
		t.metrics.RecordWriteError(t.domain)
	}

	if t.maxEvents <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, Event{Domain: t.domain, File: file, Line: line, Err: err})
	if len(t.events) > t.maxEvents {
		t.events = t.events[len(t.events)-t.maxEvents:]
	}
}

// Events returns a copy of the retained diagnostic ring, most recent
// last.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

var _ logger.Tracker = (*Tracker)(nil)
