// Package gpio provides the output line backends driven by the software PWM
// engine.
package gpio

import (
	"fmt"
	"strings"

	"softpwm/internal/swpwm"
)

const (
	BackendSim      = "sim"
	BackendGPIOCDev = "gpiocdev"
	BackendSysfs    = "sysfs"
	BackendPeriph   = "periph"
)

// Driver is an opened set of output lines.
type Driver interface {
	swpwm.Output
	// Close drives every line low and releases it.
	Close() error
}

type Config struct {
	Backend string
	// Chip is the GPIO character device (e.g. "gpiochip0"). Only used by the
	// gpiocdev backend; empty means search every chip for "GPIO<n>" names.
	Chip     string
	Consumer string
	Lines    []int
}

var (
	openGPIOCDevFn = openGPIOCDev
	openSysfsFn    = openSysfs
	openPeriphFn   = openPeriph
)

// Open returns the driver selected by cfg.Backend with every line requested
// as an output and driven low.
func Open(cfg Config) (Driver, error) {
	if len(cfg.Lines) == 0 {
		return nil, fmt.Errorf("gpio: no output lines configured")
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "softpwm"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSim:
		return NewMemory(cfg.Lines), nil
	case BackendGPIOCDev:
		return openGPIOCDevFn(cfg)
	case BackendSysfs:
		return openSysfsFn(cfg)
	case BackendPeriph:
		return openPeriphFn(cfg)
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
}
