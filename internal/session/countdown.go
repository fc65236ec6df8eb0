package session

import (
	"sync"
	"time"
)

// countdown drives the one-second timer for a timed session. It holds the
// session only through Tick, which re-checks the session status under its
// lock, so a stopped or submitted session never observes a late tick.
type countdown struct {
	session  *Session
	done     chan struct{}
	stopOnce sync.Once
}

func newCountdown(s *Session) *countdown {
	return &countdown{
		session: s,
		done:    make(chan struct{}),
	}
}

func (c *countdown) run() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.session.Tick()
				if c.session.Status() == StatusSubmitted {
					return
				}
			}
		}
	}()
}

// stop cancels the ticker goroutine. Safe to call repeatedly, including from
// the tick path itself during an auto-submit.
func (c *countdown) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}
