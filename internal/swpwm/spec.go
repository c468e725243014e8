package swpwm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSpec is returned by Set when the line is not a recognized
	// output line or the pulse/period pair is out of range.
	ErrInvalidSpec = errors.New("swpwm: invalid spec")
	// ErrOutOfSlots is returned by Set when a new line is requested and every
	// slot is held by another line.
	ErrOutOfSlots = errors.New("swpwm: out of slots")
	// ErrChannelsActive is returned by Init while channels are still running.
	ErrChannelsActive = errors.New("swpwm: channels still active")
	// ErrClosed is returned by Set when a new channel is requested after
	// Close.
	ErrClosed = errors.New("swpwm: engine closed")
)

// InactiveLine marks a Spec that does not describe an active channel.
const InactiveLine = -1

// Inactive is what Get returns for a line with no channel.
var Inactive = Spec{Line: InactiveLine}

// Level is the electrical state an output line is driven to.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

func (l Level) flip() Level {
	if l == High {
		return Low
	}
	return High
}

// Spec is the requested duty cycle of one output line: the line is held high
// for PulseMs out of every PeriodMs milliseconds.
type Spec struct {
	Line     int `json:"line"`
	PulseMs  int `json:"pulse_ms"`
	PeriodMs int `json:"period_ms"`
}

// Active reports whether s describes an active channel (as opposed to the
// Inactive sentinel).
func (s Spec) Active() bool {
	return s.Line != InactiveLine
}

// Duty returns PulseMs/PeriodMs in [0,1], or 0 for an inactive spec.
func (s Spec) Duty() float64 {
	if !s.Active() || s.PeriodMs <= 0 {
		return 0
	}
	return float64(s.PulseMs) / float64(s.PeriodMs)
}

func (s Spec) validRange() error {
	switch {
	case s.PeriodMs <= 0:
		return fmt.Errorf("%w: period_ms=%d must be > 0", ErrInvalidSpec, s.PeriodMs)
	case s.PulseMs < 0:
		return fmt.Errorf("%w: pulse_ms=%d must be >= 0", ErrInvalidSpec, s.PulseMs)
	case s.PulseMs > s.PeriodMs:
		return fmt.Errorf("%w: pulse_ms=%d exceeds period_ms=%d", ErrInvalidSpec, s.PulseMs, s.PeriodMs)
	}
	return nil
}

// hold is how long level is held within one period of s.
func (s Spec) hold(level Level) time.Duration {
	if level == High {
		return time.Duration(s.PulseMs) * time.Millisecond
	}
	return time.Duration(s.PeriodMs-s.PulseMs) * time.Millisecond
}
