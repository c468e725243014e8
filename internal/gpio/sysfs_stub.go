//go:build !linux

package gpio

import "fmt"

func openSysfs(cfg Config) (Driver, error) {
	return nil, fmt.Errorf("gpio: sysfs backend unsupported on this platform")
}
