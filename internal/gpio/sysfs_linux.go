//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"softpwm/internal/swpwm"
)

// sysfsGPIO drives lines through the legacy /sys/class/gpio interface.
//
// The value file of every line is opened once and written with pwrite, so a
// half-cycle costs a single syscall.
type sysfsGPIO struct {
	fds map[int]int
}

var gpioSysfsBase = "/sys/class/gpio"

var levelBytes = [2][]byte{[]byte("0"), []byte("1")}

func openSysfs(cfg Config) (Driver, error) {
	d := &sysfsGPIO{fds: make(map[int]int, len(cfg.Lines))}
	for _, n := range cfg.Lines {
		fd, err := exportOutput(n)
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.fds[n] = fd
	}
	return d, nil
}

func linePath(n int) string {
	return filepath.Join(gpioSysfsBase, "gpio"+strconv.Itoa(n))
}

func exportOutput(n int) (int, error) {
	dir := linePath(n)
	if _, err := os.Stat(dir); err != nil {
		if err := writeSysfs(filepath.Join(gpioSysfsBase, "export"), strconv.Itoa(n)); err != nil {
			// Someone else may have exported it in the meantime.
			if _, statErr := os.Stat(dir); statErr != nil {
				return -1, fmt.Errorf("gpio: export %d: %w", n, err)
			}
		}
		deadline := time.Now().Add(500 * time.Millisecond)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(dir); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	// "low" sets the direction and the initial value in one write.
	if err := writeSysfs(filepath.Join(dir, "direction"), "low"); err != nil {
		return -1, fmt.Errorf("gpio: line %d direction: %w", n, err)
	}
	fd, err := unix.Open(filepath.Join(dir, "value"), unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("gpio: line %d open value: %w", n, err)
	}
	return fd, nil
}

func (d *sysfsGPIO) SetLevel(n int, level swpwm.Level) error {
	fd, ok := d.fds[n]
	if !ok {
		return fmt.Errorf("gpio: line %d not requested", n)
	}
	if _, err := unix.Pwrite(fd, levelBytes[level&1], 0); err != nil {
		return fmt.Errorf("gpio: line %d write: %w", n, err)
	}
	return nil
}

func (d *sysfsGPIO) Close() error {
	var errs []error
	for n, fd := range d.fds {
		_, _ = unix.Pwrite(fd, levelBytes[0], 0)
		if err := unix.Close(fd); err != nil {
			errs = append(errs, fmt.Errorf("gpio: line %d close: %w", n, err))
		}
		_ = writeSysfs(filepath.Join(gpioSysfsBase, "unexport"), strconv.Itoa(n))
	}
	d.fds = nil
	return errors.Join(errs...)
}

func writeSysfs(path string, value string) error {
	// O_WRONLY without O_TRUNC/O_CREAT: some sysfs attributes reject those
	// flags. Right after export udev may still be fixing permissions, so
	// EACCES/ENOENT are retried for a short while.
	deadline := time.Now().Add(2 * time.Second)
	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
		if err == nil {
			_, err = unix.Write(fd, []byte(value))
			if cerr := unix.Close(fd); err == nil {
				err = cerr
			}
		}
		if err == nil {
			return nil
		}
		if time.Now().Before(deadline) && isRetryableSysfsErr(err) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		return &os.PathError{Op: "write", Path: path, Err: err}
	}
}

func isRetryableSysfsErr(err error) bool {
	return errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}
