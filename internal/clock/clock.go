// Package clock measures elapsed time with the high resolution timer.
package clock

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock tracks time since Start. It is not running until Start is called,
// and Update has no effect on a stopped clock.
type Clock struct {
	now     func() time.Duration
	start   time.Duration
	elapsed time.Duration
	running bool
}

// New returns a stopped clock driven by hrtime.
func New() *Clock {
	return &Clock{now: hrtime.Now}
}

// NewWithSource returns a stopped clock reading time from now.
func NewWithSource(now func() time.Duration) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Start() {
	c.start = c.now()
	c.elapsed = 0
	c.running = true
}

// Update refreshes Elapsed. Call it once per frame.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = c.now() - c.start
	}
}

// Stop halts the clock. Elapsed keeps the last updated value.
func (c *Clock) Stop() {
	c.running = false
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}
