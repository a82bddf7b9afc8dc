// Package clock rewrites encoder timestamps onto a timeline that runs only
// while a take is being recorded, so the exported clip plays its takes back
// to back.
package clock

import (
	"sync"
	"time"
)

// Source supplies presentation timestamps in microseconds.
type Source interface {
	PTSUsec() int64
}

type options struct {
	frameInterval time.Duration
}

type Option func(*options)

// WithFrameInterval sets the gap left between the last frame of a take and
// the first frame of the next one.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) {
		o.frameInterval = d
	}
}

// TakeClock starts paused. The first timestamp mapped after Resume is placed
// one frame interval after the last mapped one, and the rest of the take
// keeps the spacing the encoder gave it. Mapped timestamps are strictly
// increasing.
type TakeClock struct {
	mu sync.Mutex

	frameIntervalUsec int64

	started bool
	paused  bool
	// the next mapped timestamp opens a take
	rebase bool
	offset int64
	last   int64
}

func New(opts ...Option) *TakeClock {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &TakeClock{
		frameIntervalUsec: o.frameInterval.Microseconds(),
		paused:            true,
		last:              -1,
	}
}

// Resume starts a take.
func (c *TakeClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.started = true
	c.rebase = true
}

// Pause ends a take.
func (c *TakeClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *TakeClock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Map converts an encoder timestamp to the take timeline.
func (c *TakeClock) Map(ptsUsec int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rebase {
		var next int64
		if c.last >= 0 {
			next = c.last + c.frameIntervalUsec
		}
		c.offset = ptsUsec - next
		c.rebase = false
	}
	ts := ptsUsec - c.offset
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

// Last is the most recent mapped timestamp, -1 before the first one.
func (c *TakeClock) Last() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// RewindTo makes the next take follow ptsUsec, after the takes behind it
// were dropped. It is a no-op while running or before the first take.
func (c *TakeClock) RewindTo(ptsUsec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused || !c.started {
		return
	}
	c.last = ptsUsec
}

// Reset forgets every take.
func (c *TakeClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started, c.paused, c.rebase = false, true, false
	c.offset = 0
	c.last = -1
}
