package watcher

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultQuietPeriod is the quiet window after which the output directory is
// considered settled.
const DefaultQuietPeriod = 150 * time.Millisecond

// State is the debouncer state.
type State int

const (
	StateIdle State = iota
	StatePending
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Debouncer coalesces bursts of Trigger calls into one call of fire. It is a
// two state machine: idle, or pending with a deadline. Every Trigger moves the
// deadline to now+delay; reaching the deadline fires once and returns to idle.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration
	fire  func()

	mu       sync.Mutex
	state    State
	deadline time.Time
	timer    clockwork.Timer
	gen      uint64
	stopped  bool
}

// NewDebouncer creates a debouncer firing fn after delay of quiet on clock.
// A nil clock uses the real clock.
func NewDebouncer(clock clockwork.Clock, delay time.Duration, fn func()) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{clock: clock, delay: delay, fire: fn}
}

// Trigger records an event, (re)arming the quiet-period timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.state = StatePending
	d.deadline = d.clock.Now().Add(d.delay)
	d.timer = d.clock.AfterFunc(d.delay, func() { d.expire(gen) })
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	// A Trigger that raced the timer superseded this expiry.
	if d.stopped || gen != d.gen || d.state != StatePending {
		d.mu.Unlock()
		return
	}
	d.state = StateIdle
	d.timer = nil
	d.mu.Unlock()

	d.fire()
}

// State returns the current state and, when pending, the deadline.
func (d *Debouncer) State() (State, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePending {
		return d.state, d.deadline
	}
	return d.state, time.Time{}
}

// Stop cancels a pending fire. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.state = StateIdle
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
