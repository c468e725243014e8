package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"softpwm/internal/button"
	"softpwm/internal/config"
	"softpwm/internal/gpio"
	"softpwm/internal/swpwm"
	"softpwm/internal/web"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig() config.Config {
	return config.Config{
		Output:  config.OutputConfig{Backend: "sim", Lines: []int{17, 27, 22}},
		PWM:     config.PWMConfig{Capacity: 4},
		Control: config.ControlConfig{Enable: true, Line: 27, StepMs: 2, PeriodMs: 10},
		Breathing: []config.BreathingConfig{
			{Line: 17, PeriodMs: 5, UpdateDelay: 5 * time.Millisecond},
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDevConfigLoads(t *testing.T) {
	cfg, err := config.Load("../../configs/dev.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Backend != "sim" || !cfg.Control.Enable {
		t.Fatalf("unexpected dev config: %+v", cfg)
	}
}

func TestRuntime_StartsControlAndBreathing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, testConfig(), web.NewLogBuffer(100))
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()

	if got := rt.engine.Get(27); got != (swpwm.Spec{Line: 27, PulseMs: 1, PeriodMs: 10}) {
		t.Fatalf("control spec=%+v", got)
	}
	waitFor(t, "breathing line", func() bool { return rt.engine.Get(17).Active() })
	if rt.engine.Get(22).Active() {
		t.Fatalf("line 22 should stay idle")
	}

	mem, ok := rt.drv.(*gpio.Memory)
	if !ok {
		t.Fatalf("driver=%T want *gpio.Memory", rt.drv)
	}
	waitFor(t, "control line toggling", func() bool { return mem.Toggles(27) >= 2 })
}

func TestRuntime_ButtonsDriveControlLine(t *testing.T) {
	var handler button.Handler
	old := watchButtonsFn
	watchButtonsFn = func(cfg button.Config, h button.Handler) (*button.Watcher, error) {
		if len(cfg.Lines) != 4 || cfg.Chip != "gpiochip0" {
			t.Errorf("button cfg=%+v", cfg)
		}
		handler = h
		return nil, nil
	}
	t.Cleanup(func() { watchButtonsFn = old })

	cfg := testConfig()
	cfg.Breathing = nil
	cfg.Buttons = config.ButtonsConfig{Enable: true, Chip: "gpiochip0", Lines: []int{5, 6, 13, 19}}

	rt, err := newRuntime(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()

	handler(button.Event{Button: 1, Pressed: true})
	handler(button.Event{Button: 1, Pressed: false})
	if got := rt.engine.Get(27).PulseMs; got != 3 {
		t.Fatalf("pulse=%d want 3", got)
	}
	handler(button.Event{Button: 3, Pressed: true})
	if rt.engine.Get(27).Active() {
		t.Fatalf("control line still active after off button")
	}
	handler(button.Event{Button: 4, Pressed: true})
	if got := rt.engine.Get(27).PulseMs; got != 1 {
		t.Fatalf("pulse=%d want 1 after on button", got)
	}
	if n := rt.status.Snapshot(time.Time{}, rt.engine).ButtonPresses; n != 3 {
		t.Fatalf("button_presses=%d want 3", n)
	}
}

func TestRuntime_HTTPControl(t *testing.T) {
	cfg := testConfig()
	cfg.Breathing = nil
	rt, err := newRuntime(context.Background(), cfg, web.NewLogBuffer(100))
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()

	ts := httptest.NewServer(rt.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/buttons/2", "application/json", nil)
	if err != nil {
		t.Fatalf("press: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("press status=%d", resp.StatusCode)
	}
	if got := rt.engine.Get(27).PulseMs; got != 0 {
		t.Fatalf("pulse=%d want 0 after dimmer", got)
	}

	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var snap web.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Backend != "sim" || snap.Active != 1 || snap.ButtonPresses != 1 {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestRuntime_FanStartsAtFullDuty(t *testing.T) {
	temp := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(temp, []byte("45000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := testConfig()
	cfg.Breathing = nil
	cfg.Fan = config.FanConfig{Enable: true, Line: 22, PeriodMs: 20, TempTargetC: 50, UpdateInterval: time.Hour, TempPath: temp}

	rt, err := newRuntime(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()

	if got := rt.engine.Get(22); got != (swpwm.Spec{Line: 22, PulseMs: 20, PeriodMs: 20}) {
		t.Fatalf("fan spec=%+v", got)
	}
	snap := rt.status.Snapshot(time.Time{}, rt.engine)
	if snap.Fan == nil || snap.Fan.DutyPercent != 100 {
		t.Fatalf("fan=%+v", snap.Fan)
	}
}

func TestRuntime_OpenFailure(t *testing.T) {
	want := errors.New("no gpiochip")
	old := openDriverFn
	openDriverFn = func(gpio.Config) (gpio.Driver, error) { return nil, want }
	t.Cleanup(func() { openDriverFn = old })

	if _, err := newRuntime(context.Background(), testConfig(), nil); !errors.Is(err, want) {
		t.Fatalf("err=%v want %v", err, want)
	}
}

func TestRuntime_CloseReleasesEverything(t *testing.T) {
	rt, err := newRuntime(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	engine := rt.engine
	mem := rt.drv.(*gpio.Memory)
	rt.Close()

	if n := engine.Active(); n != 0 {
		t.Fatalf("active=%d want 0", n)
	}
	if l, _ := mem.Level(27); l != swpwm.Low {
		t.Fatalf("control line left %v", l)
	}
	rt.Close()
}
