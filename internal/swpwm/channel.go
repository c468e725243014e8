package swpwm

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var sleepFn = time.Sleep

// channel is the runtime state of one active output line.
type channel struct {
	slot int
	line int

	mu   sync.Mutex
	spec Spec

	// level is read and written only by the scheduling loop.
	level Level

	// running has a single writer (Disable/Close) and a single reader (the
	// loop, once per half-cycle). Clearing it is never undone.
	running atomic.Bool

	// done is closed once the loop has released the slot.
	done chan struct{}

	halfCycles    atomic.Uint64
	writeFailures atomic.Uint64
}

func newChannel(slot int, s Spec) *channel {
	ch := &channel{
		slot:  slot,
		line:  s.Line,
		spec:  s,
		level: High,
		done:  make(chan struct{}),
	}
	ch.running.Store(true)
	return ch
}

func (c *channel) load() Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spec
}

func (c *channel) store(s Spec) {
	c.mu.Lock()
	c.spec = s
	c.mu.Unlock()
}

func (c *channel) stop() {
	c.running.Store(false)
}

func (c *channel) stopping() bool {
	return !c.running.Load()
}

// run is the scheduling loop of ch. Each iteration is one half-cycle: take a
// snapshot of the spec, drive the current level, hold it, flip. Spec updates
// therefore take effect at the next half-cycle boundary, and a stop request
// is noticed at most one half-cycle after it was made.
//
// A zero-length hold (0% or 100% duty) skips the write and the sleep but still
// counts toward HalfCycles, so the line stays at the other level.
func (e *Engine) run(ch *channel) {
	for {
		s := ch.load()
		hold := s.hold(ch.level)

		if hold > 0 {
			if err := e.out.SetLevel(ch.line, ch.level); err != nil {
				n := ch.writeFailures.Add(1)
				if n == 1 || n%100 == 0 {
					log.Printf("swpwm: line %d: set %s failed (%d failures): %v", ch.line, ch.level, n, err)
				}
			}
			sleepFn(hold)
		}

		ch.halfCycles.Add(1)
		ch.level = ch.level.flip()

		if ch.stopping() {
			e.table.release(ch)
			close(ch.done)
			return
		}
	}
}
