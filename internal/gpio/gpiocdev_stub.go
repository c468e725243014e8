//go:build !linux

package gpio

import "fmt"

func openGPIOCDev(cfg Config) (Driver, error) {
	return nil, fmt.Errorf("gpio: gpiocdev backend unsupported on this platform")
}
