package fancontrol

import "time"

// pid is a positional PID controller with a clamped output. Not safe for
// concurrent use.
type pid struct {
	kp, ki, kd     float64
	target         float64
	outMin, outMax float64

	integral float64
	lastErr  float64
	primed   bool
}

func newPID(kp, ki, kd float64) *pid {
	return &pid{kp: kp, ki: ki, kd: kd, outMin: -100, outMax: 0}
}

func (p *pid) SetOutputLimits(lo, hi float64) {
	p.outMin, p.outMax = lo, hi
}

// SetTarget changes the setpoint and clears the accumulated state.
func (p *pid) SetTarget(target float64) {
	p.target = target
	p.integral = 0
	p.lastErr = 0
	p.primed = false
}

// Step feeds one measurement taken dt after the previous one. A non-positive
// dt yields 0 and leaves the state untouched.
func (p *pid) Step(measured float64, dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	sec := dt.Seconds()
	e := p.target - measured
	p.integral += e * sec

	var d float64
	if p.primed {
		d = (e - p.lastErr) / sec
	}
	p.lastErr = e
	p.primed = true

	return clamp(p.kp*e+p.ki*p.integral+p.kd*d, p.outMin, p.outMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
