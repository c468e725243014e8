package swpwm

// Output drives output lines high or low.
//
// SetLevel is called once per half-cycle from every channel's scheduling
// loop, so implementations must tolerate concurrent calls for distinct lines.
// A returned error is logged by the loop and otherwise ignored.
type Output interface {
	SetLevel(line int, level Level) error
}

// OutputFunc adapts an ordinary function to Output.
type OutputFunc func(line int, level Level) error

func (f OutputFunc) SetLevel(line int, level Level) error {
	return f(line, level)
}
