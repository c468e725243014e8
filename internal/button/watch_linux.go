//go:build linux

package button

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Watcher delivers edge events from GPIO input lines wired to buttons. The
// lines are pulled up and treated as active-low, so a press pulling the line
// to ground arrives as Pressed.
type Watcher struct {
	lines *gpiocdev.Lines
}

func Watch(cfg Config, h Handler) (*Watcher, error) {
	if len(cfg.Lines) == 0 {
		return nil, fmt.Errorf("button: no input lines configured")
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "softpwm-buttons"
	}
	button := make(map[int]int, len(cfg.Lines))
	for i, off := range cfg.Lines {
		button[off] = i + 1
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(cfg.Consumer),
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			h(Event{
				Button:  button[evt.Offset],
				Pressed: evt.Type == gpiocdev.LineEventRisingEdge,
			})
		}),
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
	}

	lines, err := gpiocdev.RequestLines(cfg.Chip, cfg.Lines, opts...)
	if err != nil {
		return nil, fmt.Errorf("button: request %s:%v: %w", cfg.Chip, cfg.Lines, err)
	}
	return &Watcher{lines: lines}, nil
}

func (w *Watcher) Close() error {
	if w == nil || w.lines == nil {
		return nil
	}
	err := w.lines.Close()
	w.lines = nil
	return err
}
