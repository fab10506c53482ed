package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer collapses a burst of events for one rule into a single run.
// The callback receives the path of the last event of the burst.
type Debouncer struct {
	interval time.Duration
	fire     func(path string)

	mu      sync.Mutex
	pending string
	gen     uint64
	timer   *time.Timer
}

// NewDebouncer returns a debouncer that calls fire once interval has passed
// without a new Trigger. A non-positive interval fires on every Trigger.
func NewDebouncer(interval time.Duration, fire func(path string)) *Debouncer {
	return &Debouncer{interval: interval, fire: fire}
}

// Trigger records an event and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	if d.interval <= 0 {
		d.call(path)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = path
	d.gen++

	if d.timer != nil {
		d.timer.Stop()
	}

	gen := d.gen
	d.timer = time.AfterFunc(d.interval, func() { d.expire(gen) })
}

// expire runs the callback unless a later Trigger or Stop superseded gen.
func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}

	path := d.pending
	d.timer = nil
	d.mu.Unlock()

	d.call(path)
}

func (d *Debouncer) call(path string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("watch callback panicked", slog.String("path", path), slog.Any("panic", r))
		}
	}()

	d.fire(path)
}

// Stop drops a pending event. Trigger may be called again afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
