// Package button turns button presses into actions.
package button

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownButton = errors.New("button: unknown button")

// Event is a debounced state change of one button. Button is the 1-based
// position of the input line in the configured list.
type Event struct {
	Button  int
	Pressed bool
}

type Handler func(Event)

// Dispatcher runs the action bound to a button each time it is pressed.
// Releases are ignored. Actions run on the caller's goroutine.
type Dispatcher struct {
	mu      sync.RWMutex
	actions map[int]func()
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{actions: make(map[int]func())}
}

// On binds fn to button, replacing any earlier binding.
func (d *Dispatcher) On(button int, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[button] = fn
}

func (d *Dispatcher) Handle(ev Event) {
	if !ev.Pressed {
		return
	}
	_ = d.Press(ev.Button)
}

// Press runs the action bound to button as if it had been pressed.
func (d *Dispatcher) Press(button int) error {
	d.mu.RLock()
	fn := d.actions[button]
	d.mu.RUnlock()
	if fn == nil {
		return fmt.Errorf("%w %d", ErrUnknownButton, button)
	}
	fn()
	return nil
}

// Buttons returns the bound button numbers in ascending order.
func (d *Dispatcher) Buttons() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int, 0, len(d.actions))
	for b := range d.actions {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}
