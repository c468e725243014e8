package effects

import (
	"log"
	"sync"

	"softpwm/internal/button"
	"softpwm/internal/swpwm"
)

// Brightness steps the duty cycle of a single control line.
type Brightness struct {
	pwm      PWM
	out      swpwm.Output
	line     int
	stepMs   int
	periodMs int

	// mu serializes read-modify-write of the line's spec.
	mu sync.Mutex
}

func NewBrightness(pwm PWM, out swpwm.Output, line, stepMs, periodMs int) *Brightness {
	return &Brightness{pwm: pwm, out: out, line: line, stepMs: stepMs, periodMs: periodMs}
}

func (b *Brightness) Line() int { return b.line }

func (b *Brightness) Brighter() error { return b.change(b.stepMs) }

func (b *Brightness) Dimmer() error { return b.change(-b.stepMs) }

// change moves the pulse by delta, clamped to [0, period]. Nothing happens
// while the line is off.
func (b *Brightness) change(delta int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.pwm.Get(b.line)
	if !s.Active() {
		return nil
	}
	return b.pwm.Set(b.line, clampInt(s.PulseMs+delta, 0, s.PeriodMs), s.PeriodMs)
}

// Off stops PWM on the line, waits for its loop to exit and leaves the line
// low.
func (b *Brightness) Off() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pwm.Disable(b.line, true)
	return b.out.SetLevel(b.line, swpwm.Low)
}

// On starts the line at the dimmest non-zero setting.
func (b *Brightness) On() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pwm.Set(b.line, 1, b.periodMs)
}

// Bind maps buttons 1..4 to Brighter, Dimmer, Off and On.
func (b *Brightness) Bind(d *button.Dispatcher) {
	actions := []struct {
		name string
		fn   func() error
	}{
		{"brighter", b.Brighter},
		{"dimmer", b.Dimmer},
		{"off", b.Off},
		{"on", b.On},
	}
	for i, a := range actions {
		d.On(i+1, func() {
			if err := a.fn(); err != nil {
				log.Printf("effects: control line %d %s: %v", b.line, a.name, err)
			}
		})
	}
}
