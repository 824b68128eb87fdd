package watcher

import (
	"sync"

	"github.com/openclaw/vaultbridge/internal/models"
)

// EventLog keeps the most recent watcher events for inspection over
// the API, newest first, bounded by a fixed capacity.
type EventLog struct {
	mu  sync.RWMutex
	buf []models.WatcherEvent
	cap int
}

// NewEventLog creates a log holding at most capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &EventLog{cap: capacity}
}

// Add records an event, evicting the oldest when full.
func (l *EventLog) Add(ev models.WatcherEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = append(l.buf, ev)
	if len(l.buf) > l.cap {
		l.buf = l.buf[len(l.buf)-l.cap:]
	}
}

// Recent returns up to limit events, newest first. limit <= 0 returns
// all retained events.
func (l *EventLog) Recent(limit int) []models.WatcherEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.buf)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.WatcherEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.buf[i])
	}
	return out
}
