package pacer

import (
	"time"

	"github.com/user/framepace/pkg/ports"
)

// playClock measures elapsed presentation time in milliseconds.
//
// It is stopped until start or rebase is called. While paused the reading is
// frozen; resuming shifts the epoch by the paused duration.
type playClock struct {
	clock ports.Clock

	started  bool
	epoch    time.Time
	paused   bool
	pausedAt time.Time
}

func newPlayClock(clock ports.Clock) *playClock {
	return &playClock{clock: clock}
}

// reference is the instant elapsed time is measured at.
func (c *playClock) reference() time.Time {
	if c.paused {
		return c.pausedAt
	}
	return c.clock.Now()
}

func (c *playClock) start() {
	c.epoch = c.reference()
	c.started = true
}

// rebase moves the epoch so that the current reading is ms.
func (c *playClock) rebase(ms int64) {
	c.epoch = c.reference().Add(-time.Duration(ms) * time.Millisecond)
	c.started = true
}

func (c *playClock) elapsedMs() int64 {
	if !c.started {
		return 0
	}
	return c.reference().Sub(c.epoch).Milliseconds()
}

func (c *playClock) pause() {
	if c.paused {
		return
	}
	c.pausedAt = c.clock.Now()
	c.paused = true
}

func (c *playClock) resume() {
	if !c.paused {
		return
	}
	c.paused = false
	if c.started {
		c.epoch = c.epoch.Add(c.clock.Now().Sub(c.pausedAt))
	}
}
