package watcher

import (
	"sync"
	"time"

	"github.com/openclaw/vaultbridge/internal/models"
)

// Debouncer coalesces rapid event bursts per path. Each Trigger resets
// the path's timer; when it expires the callback fires once with the
// most recent event. Editors that write a file several times per save
// then cost one reindex instead of many.
type Debouncer struct {
	delay time.Duration
	fire  func(models.WatcherEvent)

	mu      sync.Mutex
	pending map[string]*pendingEvent
}

type pendingEvent struct {
	timer *time.Timer
	event models.WatcherEvent
}

// NewDebouncer creates a Debouncer that calls fire after delay of
// quiet time per path.
func NewDebouncer(delay time.Duration, fire func(models.WatcherEvent)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		fire:    fire,
		pending: make(map[string]*pendingEvent),
	}
}

// Trigger schedules ev for its path, replacing any pending event and
// restarting the quiet-time window.
func (d *Debouncer) Trigger(ev models.WatcherEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[ev.Path]; ok {
		p.event = ev
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingEvent{event: ev}
	p.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cur, ok := d.pending[ev.Path]
		if !ok || cur != p {
			d.mu.Unlock()
			return
		}
		delete(d.pending, ev.Path)
		fired := cur.event
		d.mu.Unlock()

		d.fire(fired)
	})
	d.pending[ev.Path] = p
}

// Cancel drops the pending event for path, if any.
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

// CancelAll drops every pending event.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

// PendingCount returns the number of paths with an event in flight.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
