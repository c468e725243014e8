// Package effects contains the demonstration producers that drive the
// software PWM engine: a breathing pattern and a stepped brightness control.
package effects

import "softpwm/internal/swpwm"

// PWM is the part of *swpwm.Engine the effects use.
type PWM interface {
	Set(line, pulseMs, periodMs int) error
	Get(line int) swpwm.Spec
	Disable(line int, wait bool) bool
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
