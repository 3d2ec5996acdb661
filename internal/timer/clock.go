// Package timer implements the session countdown clock.
//
// A Clock is Idle until Start is called, then counts down once per second on its own
// ticker goroutine. Reaching zero returns it to Idle and fires the expire callback; it
// never submits anything itself.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("clock is already running")
	ErrNoTimeBudget   = errors.New("clock has no time budget")
	ErrClosed         = errors.New("clock is closed")
)

// Ticker is the heartbeat driving the clock. *time.Ticker satisfies it through stdTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

type Option func(*Clock)

// WithTicker replaces the real one-second ticker.
func WithTicker(f TickerFactory) Option {
	return func(c *Clock) { c.newTicker = f }
}

// OnTick is called after every decrement with the new remaining value.
func OnTick(fn func(remaining int)) Option {
	return func(c *Clock) { c.onTick = fn }
}

// OnExpire is called once each time the clock runs down to zero.
func OnExpire(fn func()) Option {
	return func(c *Clock) { c.onExpire = fn }
}

type Clock struct {
	mu        sync.Mutex
	total     int
	remaining int
	running   bool
	closed    bool
	gen       uint64
	ticker    Ticker
	done      chan struct{}

	newTicker TickerFactory
	onTick    func(remaining int)
	onExpire  func()
}

func New(opts ...Option) *Clock {
	c := &Clock{newTicker: NewStdTicker}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed sets the total budget in seconds. It only takes effect while the total is still
// zero, so repeated calls for the same catalog do not reset a clock in use.
func (c *Clock) Seed(total int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total != 0 || total <= 0 {
		return false
	}
	c.total = total
	c.remaining = total
	return true
}

// Start moves the clock from Idle to Running, re-seeding remaining from the total.
func (c *Clock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.running {
		return ErrAlreadyRunning
	}
	if c.total <= 0 {
		return ErrNoTimeBudget
	}

	c.remaining = c.total
	c.running = true
	c.gen++
	c.ticker = c.newTicker(time.Second)
	c.done = make(chan struct{})
	go c.run(c.gen, c.ticker, c.done)
	return nil
}

// Stop moves the clock to Idle. Remaining is kept for display. Stopping an idle clock is a no-op.
func (c *Clock) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// Close stops the clock and releases its ticker. A closed clock cannot be started again.
func (c *Clock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.closed = true
}

func (c *Clock) stopLocked() bool {
	if !c.running {
		return false
	}
	c.running = false
	c.gen++
	c.ticker.Stop()
	close(c.done)
	c.ticker = nil
	c.done = nil
	return true
}

func (c *Clock) run(gen uint64, t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick decrements once; it reports whether the goroutine for gen should keep going.
func (c *Clock) tick(gen uint64) bool {
	c.mu.Lock()
	if !c.running || c.gen != gen {
		c.mu.Unlock()
		return false
	}

	c.remaining--
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.remaining = 0
		remaining = 0
		c.stopLocked()
	}
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
	return !expired
}

func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Clock) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Format renders remaining time as HH:MM:SS.
func (c *Clock) Format() string {
	return FormatSeconds(c.Remaining())
}

func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
