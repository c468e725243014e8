package swpwm

import "sync"

type slotState uint8

const (
	slotFree slotState = iota
	slotActive
)

type slot struct {
	state slotState
	ch    *channel
}

// table is the fixed-capacity set of channel slots.
//
// Lookups and in-place spec updates hold mu for reading, so callers working on
// distinct lines never wait on each other. Allocation and release hold mu for
// writing, which serializes every decision about which slot is free.
type table struct {
	mu    sync.RWMutex
	slots []slot
	// closed refuses further allocation once set.
	closed bool
}

func newTable(capacity int) *table {
	return &table{slots: make([]slot, capacity)}
}

// findLocked returns the active channel for line. Caller holds mu.
func (t *table) findLocked(line int) *channel {
	for i := range t.slots {
		if t.slots[i].state == slotActive && t.slots[i].ch.line == line {
			return t.slots[i].ch
		}
	}
	return nil
}

func (t *table) find(line int) *channel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findLocked(line)
}

// allocate claims a free slot for s and returns the new channel. If a channel
// for s.Line appeared since the caller last looked, that channel is returned
// with created=false and nothing is changed.
func (t *table) allocate(s Spec) (ch *channel, created bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing := t.findLocked(s.Line); existing != nil {
		return existing, false, nil
	}
	if t.closed {
		return nil, false, ErrClosed
	}
	for i := range t.slots {
		if t.slots[i].state != slotFree {
			continue
		}
		ch = newChannel(i, s)
		t.slots[i] = slot{state: slotActive, ch: ch}
		return ch, true, nil
	}
	return nil, false, ErrOutOfSlots
}

// release frees the slot held by ch. Only ch's own scheduling loop calls it.
func (t *table) release(ch *channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := &t.slots[ch.slot]; s.state == slotActive && s.ch == ch {
		*s = slot{}
	}
}

// close refuses any further allocation and returns the channels active at
// that point.
func (t *table) close() []*channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.activeLocked()
}

// channels returns the active channels ordered by slot.
func (t *table) channels() []*channel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeLocked()
}

func (t *table) activeLocked() []*channel {
	out := make([]*channel, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].state == slotActive {
			out = append(out, t.slots[i].ch)
		}
	}
	return out
}

func (t *table) occupied() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := range t.slots {
		if t.slots[i].state == slotActive {
			n++
		}
	}
	return n
}

// reset frees every slot. It refuses while any channel is still active.
func (t *table) reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i].state == slotActive {
			return ErrChannelsActive
		}
	}
	for i := range t.slots {
		t.slots[i] = slot{}
	}
	return nil
}
