//go:build !linux

package button

import "fmt"

type Watcher struct{}

func Watch(cfg Config, h Handler) (*Watcher, error) {
	return nil, fmt.Errorf("button: gpio input unsupported on this platform")
}

func (w *Watcher) Close() error { return nil }
