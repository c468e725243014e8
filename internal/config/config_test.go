package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Output.Backend != "sim" {
		t.Fatalf("backend=%q want sim", cfg.Output.Backend)
	}
	if len(cfg.Output.Lines) != 4 {
		t.Fatalf("lines=%v want 4 defaults", cfg.Output.Lines)
	}
	if cfg.PWM.Capacity != 4 {
		t.Fatalf("capacity=%d want 4", cfg.PWM.Capacity)
	}
	if cfg.Control.StepMs != 2 || cfg.Control.PeriodMs != 10 {
		t.Fatalf("control=%+v", cfg.Control)
	}
	if cfg.Buttons.Debounce != 10*time.Millisecond {
		t.Fatalf("debounce=%s want 10ms", cfg.Buttons.Debounce)
	}
	if cfg.Fan.Enable || cfg.Fan.PeriodMs != 20 || cfg.Fan.TempTargetC != 50 || cfg.Fan.UpdateInterval != 5*time.Second {
		t.Fatalf("fan=%+v", cfg.Fan)
	}
	if cfg.Web.Listen != "127.0.0.1:8080" || cfg.Log.BufferLines != 2000 {
		t.Fatalf("web=%+v log=%+v", cfg.Web, cfg.Log)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	body := `output:
  backend: GPIOCDev
  chip: gpiochip0
  lines: [5, 6, 7]
pwm:
  capacity: 3
control:
  enable: true
  line: 6
  step_ms: 3
  period_ms: 12
buttons:
  enable: true
  lines: [20, 21, 22, 23]
  debounce: 5ms
breathing:
  - line: 5
    period_ms: 8
    update_delay: 50ms
  - line: 7
    period_ms: 5
web:
  enable: true
  listen: ":9000"
`
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Output.Backend != "gpiocdev" {
		t.Fatalf("backend=%q want gpiocdev", cfg.Output.Backend)
	}
	if cfg.Buttons.Debounce != 5*time.Millisecond || cfg.Buttons.Chip != "gpiochip0" {
		t.Fatalf("buttons=%+v", cfg.Buttons)
	}
	if len(cfg.Breathing) != 2 {
		t.Fatalf("breathing=%+v", cfg.Breathing)
	}
	if cfg.Breathing[0].UpdateDelay != 50*time.Millisecond || cfg.Breathing[1].UpdateDelay != 25*time.Millisecond {
		t.Fatalf("update delays=%s,%s", cfg.Breathing[0].UpdateDelay, cfg.Breathing[1].UpdateDelay)
	}
	if !cfg.Web.Enable || cfg.Web.Listen != ":9000" {
		t.Fatalf("web=%+v", cfg.Web)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "UnknownBackend",
			body: "output:\n  backend: pigpio\n",
			want: "output.backend must be one of sim, gpiocdev, sysfs, periph",
		},
		{
			name: "DuplicateLine",
			body: "output:\n  lines: [1, 2, 1]\n",
			want: "output.lines contains duplicate line 1",
		},
		{
			name: "NegativeLine",
			body: "output:\n  lines: [-1]\n",
			want: "output.lines must not contain negative values",
		},
		{
			name: "NegativeCapacity",
			body: "pwm:\n  capacity: -2\n",
			want: "pwm.capacity must be > 0",
		},
		{
			name: "ControlLineUnknown",
			body: "output:\n  lines: [1, 2]\ncontrol:\n  enable: true\n  line: 3\n",
			want: "control.line 3 is not listed in output.lines",
		},
		{
			name: "ControlNegativeStep",
			body: "output:\n  lines: [1]\ncontrol:\n  enable: true\n  line: 1\n  step_ms: -1\n",
			want: "control.step_ms must be > 0",
		},
		{
			name: "ButtonsNeedControl",
			body: "buttons:\n  enable: true\n  lines: [5]\n",
			want: "buttons.enable requires control.enable",
		},
		{
			name: "ButtonsNeedLines",
			body: "output:\n  lines: [1]\ncontrol:\n  enable: true\n  line: 1\nbuttons:\n  enable: true\n",
			want: "buttons.lines is required when buttons.enable is true",
		},
		{
			name: "BreathingLineUnknown",
			body: "output:\n  lines: [1]\nbreathing:\n  - line: 2\n    period_ms: 5\n",
			want: "breathing[0].line 2 is not listed in output.lines",
		},
		{
			name: "BreathingOnControlLine",
			body: "output:\n  lines: [1]\ncontrol:\n  enable: true\n  line: 1\nbreathing:\n  - line: 1\n    period_ms: 5\n",
			want: "breathing[0].line 1 is already the control line",
		},
		{
			name: "BreathingTwice",
			body: "output:\n  lines: [1]\nbreathing:\n  - line: 1\n    period_ms: 5\n  - line: 1\n    period_ms: 6\n",
			want: "breathing[1].line 1 is listed twice",
		},
		{
			name: "BreathingZeroPeriod",
			body: "output:\n  lines: [1]\nbreathing:\n  - line: 1\n",
			want: "breathing[0].period_ms must be > 0",
		},
		{
			name: "FanLineUnknown",
			body: "output:\n  lines: [1]\nfan:\n  enable: true\n  line: 18\n",
			want: "fan.line 18 is not listed in output.lines",
		},
		{
			name: "FanOnBreathingLine",
			body: "output:\n  lines: [1]\nbreathing:\n  - line: 1\n    period_ms: 5\nfan:\n  enable: true\n  line: 1\n",
			want: "fan.line 1 is already in use",
		},
		{
			name: "FanDutyMinRange",
			body: "output:\n  lines: [1]\nfan:\n  enable: true\n  line: 1\n  duty_min: 120\n",
			want: "fan.duty_min must be between 0 and 100",
		},
		{
			name: "OverCapacity",
			body: "output:\n  lines: [1, 2, 3]\npwm:\n  capacity: 2\ncontrol:\n  enable: true\n  line: 1\nbreathing:\n  - line: 2\n    period_ms: 5\n  - line: 3\n    period_ms: 5\n",
			want: "configured producers need 3 channels but pwm.capacity is 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "output:\n  backend: sim\n  pin: 18\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field pin not found in type config.OutputConfig")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeTempConfig(t, "output: [\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
