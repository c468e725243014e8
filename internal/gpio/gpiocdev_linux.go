//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"

	"softpwm/internal/swpwm"
)

// cdevGPIO drives lines through the Linux GPIO character device. Each line
// is requested on its own so loops for distinct lines never share a handle.
type cdevGPIO struct {
	chips []*gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

func openGPIOCDev(cfg Config) (Driver, error) {
	d := &cdevGPIO{lines: make(map[int]*gpiocdev.Line, len(cfg.Lines))}
	for _, n := range cfg.Lines {
		var (
			line *gpiocdev.Line
			err  error
		)
		if cfg.Chip != "" {
			line, err = d.requestOffset(cfg.Chip, n, cfg.Consumer)
		} else {
			line, err = d.requestByName(n, cfg.Consumer)
		}
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.lines[n] = line
	}
	return d, nil
}

func (d *cdevGPIO) requestOffset(chipName string, offset int, consumer string) (*gpiocdev.Line, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("gpio: request %s:%d: %w", chipName, offset, err)
	}
	d.chips = append(d.chips, chip)
	return line, nil
}

// requestByName finds the line called "GPIO<n>" (the Raspberry Pi naming)
// on any chip.
func (d *cdevGPIO) requestByName(n int, consumer string) (*gpiocdev.Line, error) {
	lineName := fmt.Sprintf("GPIO%d", n)

	// Pi 5 kernel variants can expose header GPIOs on gpiochip4.
	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath, gpiocdev.WithConsumer(consumer))
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			_ = chip.Close()
			continue
		}
		d.chips = append(d.chips, chip)
		return line, nil
	}
	return nil, fmt.Errorf("gpio: line %q not found (or busy)", lineName)
}

func (d *cdevGPIO) SetLevel(n int, level swpwm.Level) error {
	line, ok := d.lines[n]
	if !ok {
		return fmt.Errorf("gpio: line %d not requested", n)
	}
	return line.SetValue(int(level))
}

func (d *cdevGPIO) Close() error {
	var errs []error
	for n, line := range d.lines {
		_ = line.SetValue(0)
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gpio: close line %d: %w", n, err))
		}
	}
	d.lines = nil
	for _, chip := range d.chips {
		_ = chip.Close()
	}
	d.chips = nil
	return errors.Join(errs...)
}
