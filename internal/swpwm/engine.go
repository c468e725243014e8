// Package swpwm emulates pulse-width modulation on plain digital output
// lines by toggling them from software.
//
// An Engine owns a fixed number of channel slots. Every active channel runs
// its own goroutine which alternates the line between high and low, holding
// each level for the time given by the channel's Spec.
package swpwm

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// DefaultCapacity is the number of channels an Engine can run at once when
// Config.Capacity is unset.
const DefaultCapacity = 4

type Config struct {
	// Capacity is the maximum number of simultaneously active channels.
	Capacity int
	// Lines lists the output line identifiers Set accepts.
	Lines []int
}

// ChannelStatus is a point-in-time view of one active channel.
type ChannelStatus struct {
	Slot          int     `json:"slot"`
	Line          int     `json:"line"`
	PulseMs       int     `json:"pulse_ms"`
	PeriodMs      int     `json:"period_ms"`
	Duty          float64 `json:"duty"`
	Stopping      bool    `json:"stopping"`
	HalfCycles    uint64  `json:"half_cycles"`
	WriteFailures uint64  `json:"write_failures"`
}

type Engine struct {
	out      Output
	capacity int
	lines    map[int]struct{}
	table    *table
}

// New initializes a software PWM engine driving out. All slots start free.
func New(out Output, cfg Config) (*Engine, error) {
	if out == nil {
		return nil, fmt.Errorf("swpwm: output is nil")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("swpwm: capacity must be > 0")
	}
	if len(cfg.Lines) == 0 {
		return nil, fmt.Errorf("swpwm: at least one output line is required")
	}
	lines := make(map[int]struct{}, len(cfg.Lines))
	for _, l := range cfg.Lines {
		if l < 0 {
			return nil, fmt.Errorf("swpwm: invalid output line %d", l)
		}
		lines[l] = struct{}{}
	}

	log.Printf("swpwm: init capacity=%d lines=%v", cfg.Capacity, sortedLines(lines))
	return &Engine{
		out:      out,
		capacity: cfg.Capacity,
		lines:    lines,
		table:    newTable(cfg.Capacity),
	}, nil
}

func sortedLines(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Init frees every slot. It is a no-op on an idle engine and fails with
// ErrChannelsActive while any channel is running.
func (e *Engine) Init() error {
	return e.table.reset()
}

// Capacity returns the maximum number of simultaneously active channels.
func (e *Engine) Capacity() int {
	return e.capacity
}

// Lines returns the recognized output lines in ascending order.
func (e *Engine) Lines() []int {
	return sortedLines(e.lines)
}

// Active returns the number of occupied slots.
func (e *Engine) Active() int {
	return e.table.occupied()
}

func (e *Engine) Set(line, pulseMs, periodMs int) error {
	return e.SetSpec(Spec{Line: line, PulseMs: pulseMs, PeriodMs: periodMs})
}

// SetSpec enables PWM on s.Line, or replaces the spec of the channel already
// running there. The running channel picks up the new spec at its next
// half-cycle boundary.
//
// If the line's channel is shutting down after Disable, SetSpec waits for it
// to finish and then starts a fresh channel.
func (e *Engine) SetSpec(s Spec) error {
	if _, ok := e.lines[s.Line]; !ok {
		log.Printf("swpwm: rejected spec %+v: unknown line", s)
		return fmt.Errorf("%w: unknown output line %d", ErrInvalidSpec, s.Line)
	}
	if err := s.validRange(); err != nil {
		log.Printf("swpwm: rejected spec %+v: %v", s, err)
		return err
	}

	for {
		e.table.mu.RLock()
		ch := e.table.findLocked(s.Line)
		if ch != nil && !ch.stopping() {
			ch.store(s)
			e.table.mu.RUnlock()
			return nil
		}
		e.table.mu.RUnlock()

		if ch != nil {
			<-ch.done
			continue
		}

		ch, created, err := e.table.allocate(s)
		if err != nil {
			log.Printf("swpwm: cannot enable line %d: %v", s.Line, err)
			return fmt.Errorf("line %d: %w", s.Line, err)
		}
		if !created {
			// Another caller enabled the line first; go through the update path.
			continue
		}
		go e.run(ch)
		log.Printf("swpwm: enabled line %d slot=%d pulse=%dms period=%dms", s.Line, ch.slot, s.PulseMs, s.PeriodMs)
		return nil
	}
}

// Get returns the spec of the channel on line, or Inactive.
func (e *Engine) Get(line int) Spec {
	ch := e.table.find(line)
	if ch == nil {
		return Inactive
	}
	return ch.load()
}

// Disable asks the channel on line to stop and reports whether one existed.
// The channel stops at the end of its current half-cycle; with wait set,
// Disable blocks until then and the slot is free when it returns.
func (e *Engine) Disable(line int, wait bool) bool {
	ch := e.table.find(line)
	if ch == nil {
		return false
	}
	ch.stop()
	if wait {
		<-ch.done
		log.Printf("swpwm: line %d disabled", line)
	} else {
		log.Printf("swpwm: line %d will be disabled", line)
	}
	return true
}

// Close stops every channel and waits for them to finish or for ctx to end.
// Once Close has been called, Set no longer starts channels and returns
// ErrClosed, so no loop outlives the output.
func (e *Engine) Close(ctx context.Context) error {
	chs := e.table.close()
	for _, ch := range chs {
		ch.stop()
	}
	for _, ch := range chs {
		select {
		case <-ch.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Channels returns the status of every active channel, ordered by slot.
func (e *Engine) Channels() []ChannelStatus {
	chs := e.table.channels()
	out := make([]ChannelStatus, 0, len(chs))
	for _, ch := range chs {
		s := ch.load()
		out = append(out, ChannelStatus{
			Slot:          ch.slot,
			Line:          ch.line,
			PulseMs:       s.PulseMs,
			PeriodMs:      s.PeriodMs,
			Duty:          s.Duty(),
			Stopping:      ch.stopping(),
			HalfCycles:    ch.halfCycles.Load(),
			WriteFailures: ch.writeFailures.Load(),
		})
	}
	return out
}
