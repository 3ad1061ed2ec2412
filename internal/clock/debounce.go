package clock

import (
	"sync"
	"time"
)

// Debouncer is a trailing-edge debounce: every Trigger (re)starts a timer of
// a fixed delay, and fire runs only once the delay elapses with no further
// Trigger. States are idle and pending(deadline).
type Debouncer struct {
	sched Scheduler
	delay time.Duration
	fire  func()

	mu       sync.Mutex
	timer    Timer
	deadline time.Time
	token    uint64
}

// NewDebouncer creates an idle debouncer.
func NewDebouncer(sched Scheduler, delay time.Duration, fire func()) *Debouncer {
	return &Debouncer{sched: sched, delay: delay, fire: fire}
}

// Trigger cancels any pending deadline and starts a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.token++
	token := d.token
	d.deadline = d.sched.Now().Add(d.delay)
	d.timer = d.sched.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A Stop or Trigger that raced with the timer firing wins.
		if d.token != token || d.timer == nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fire()
	})
}

// Stop returns the debouncer to idle without firing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.token++
}

// Pending reports whether a deadline is armed, and when it is due.
func (d *Debouncer) Pending() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return time.Time{}, false
	}
	return d.deadline, true
}
