package gpio

import (
	"fmt"
	"sync"

	"softpwm/internal/swpwm"
)

// Memory is an in-process Driver used by the simulator and by tests. It keeps
// the last level of every line and counts level changes.
type Memory struct {
	mu      sync.Mutex
	levels  map[int]swpwm.Level
	toggles map[int]uint64
	writes  map[int]uint64
	fail    map[int]error
	closed  bool
}

func NewMemory(lines []int) *Memory {
	m := &Memory{
		levels:  make(map[int]swpwm.Level, len(lines)),
		toggles: make(map[int]uint64, len(lines)),
		writes:  make(map[int]uint64, len(lines)),
		fail:    make(map[int]error),
	}
	for _, l := range lines {
		m.levels[l] = swpwm.Low
	}
	return m
}

func (m *Memory) SetLevel(line int, level swpwm.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("gpio: line %d: driver closed", line)
	}
	prev, ok := m.levels[line]
	if !ok {
		return fmt.Errorf("gpio: line %d not requested", line)
	}
	m.writes[line]++
	if err := m.fail[line]; err != nil {
		return err
	}
	if prev != level {
		m.toggles[line]++
	}
	m.levels[line] = level
	return nil
}

// Fail makes every later write to line return err. A nil err clears it.
func (m *Memory) Fail(line int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, line)
		return
	}
	m.fail[line] = err
}

// Level returns the last level written to line.
func (m *Memory) Level(line int) (swpwm.Level, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[line]
	return l, ok
}

func (m *Memory) Toggles(line int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggles[line]
}

func (m *Memory) Writes(line int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[line]
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for l := range m.levels {
		m.levels[l] = swpwm.Low
	}
	m.closed = true
	return nil
}
