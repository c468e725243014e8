package button

import "time"

type Config struct {
	// Chip is the GPIO character device name, e.g. "gpiochip0".
	Chip string
	// Lines are the input offsets; the first is button 1.
	Lines    []int
	Debounce time.Duration
	Consumer string
}
