package gpio

import (
	"errors"
	"testing"

	"softpwm/internal/swpwm"
)

func TestMemory_RecordsLevelsAndToggles(t *testing.T) {
	m := NewMemory([]int{17, 27})

	if l, ok := m.Level(17); !ok || l != swpwm.Low {
		t.Fatalf("initial level=%v ok=%v want low", l, ok)
	}
	for _, l := range []swpwm.Level{swpwm.High, swpwm.High, swpwm.Low, swpwm.High} {
		if err := m.SetLevel(17, l); err != nil {
			t.Fatalf("SetLevel: %v", err)
		}
	}
	if got := m.Toggles(17); got != 3 {
		t.Fatalf("toggles=%d want 3", got)
	}
	if got := m.Writes(17); got != 4 {
		t.Fatalf("writes=%d want 4", got)
	}
	if got := m.Toggles(27); got != 0 {
		t.Fatalf("line 27 toggles=%d want 0", got)
	}
}

func TestMemory_UnknownLine(t *testing.T) {
	m := NewMemory([]int{1})
	if err := m.SetLevel(2, swpwm.High); err == nil {
		t.Fatalf("expected error for unrequested line")
	}
}

func TestMemory_FailInjection(t *testing.T) {
	m := NewMemory([]int{1})
	boom := errors.New("boom")
	m.Fail(1, boom)
	if err := m.SetLevel(1, swpwm.High); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
	if l, _ := m.Level(1); l != swpwm.Low {
		t.Fatalf("failed write changed level to %v", l)
	}
	m.Fail(1, nil)
	if err := m.SetLevel(1, swpwm.High); err != nil {
		t.Fatalf("SetLevel after clear: %v", err)
	}
}

func TestMemory_CloseDrivesLow(t *testing.T) {
	m := NewMemory([]int{1})
	_ = m.SetLevel(1, swpwm.High)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l, _ := m.Level(1); l != swpwm.Low {
		t.Fatalf("level after close=%v want low", l)
	}
	if err := m.SetLevel(1, swpwm.High); err == nil {
		t.Fatalf("expected error after close")
	}
}
