package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"softpwm/internal/swpwm"
)

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

var hostInitFn = func() error {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	return hostInitErr
}

// periphGPIO drives lines through periph.io's pin registry, which picks the
// fastest driver available on the host (memory-mapped on a Pi).
type periphGPIO struct {
	pins map[int]pgpio.PinIO
}

func openPeriph(cfg Config) (Driver, error) {
	if err := hostInitFn(); err != nil {
		return nil, fmt.Errorf("gpio: periph host init: %w", err)
	}
	d := &periphGPIO{pins: make(map[int]pgpio.PinIO, len(cfg.Lines))}
	for _, n := range cfg.Lines {
		name := fmt.Sprintf("GPIO%d", n)
		p := gpioreg.ByName(name)
		if p == nil {
			_ = d.Close()
			return nil, fmt.Errorf("gpio: periph pin %q not found", name)
		}
		if err := p.Out(pgpio.Low); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("gpio: periph pin %s: %w", name, err)
		}
		d.pins[n] = p
	}
	return d, nil
}

func (d *periphGPIO) SetLevel(n int, level swpwm.Level) error {
	p, ok := d.pins[n]
	if !ok {
		return fmt.Errorf("gpio: line %d not requested", n)
	}
	return p.Out(pgpio.Level(level == swpwm.High))
}

func (d *periphGPIO) Close() error {
	for _, p := range d.pins {
		_ = p.Out(pgpio.Low)
		_ = p.Halt()
	}
	d.pins = nil
	return nil
}
