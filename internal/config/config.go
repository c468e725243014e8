package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output    OutputConfig      `yaml:"output"`
	PWM       PWMConfig         `yaml:"pwm"`
	Control   ControlConfig     `yaml:"control"`
	Buttons   ButtonsConfig     `yaml:"buttons"`
	Breathing []BreathingConfig `yaml:"breathing"`
	Fan       FanConfig         `yaml:"fan"`
	Web       WebConfig         `yaml:"web"`
	Log       LogConfig         `yaml:"log"`
}

type OutputConfig struct {
	// Backend is one of sim, gpiocdev, sysfs, periph.
	Backend  string `yaml:"backend"`
	Chip     string `yaml:"chip"`
	Consumer string `yaml:"consumer"`
	Lines    []int  `yaml:"lines"`
}

type PWMConfig struct {
	Capacity int `yaml:"capacity"`
}

// ControlConfig is the button-controlled brightness line.
type ControlConfig struct {
	Enable   bool `yaml:"enable"`
	Line     int  `yaml:"line"`
	StepMs   int  `yaml:"step_ms"`
	PeriodMs int  `yaml:"period_ms"`
}

type ButtonsConfig struct {
	Enable   bool          `yaml:"enable"`
	Chip     string        `yaml:"chip"`
	Lines    []int         `yaml:"lines"`
	Debounce time.Duration `yaml:"debounce"`
}

type BreathingConfig struct {
	Line        int           `yaml:"line"`
	PeriodMs    int           `yaml:"period_ms"`
	UpdateDelay time.Duration `yaml:"update_delay"`
}

// FanConfig drives a cooling fan from the CPU temperature.
type FanConfig struct {
	Enable         bool          `yaml:"enable"`
	Line           int           `yaml:"line"`
	PeriodMs       int           `yaml:"period_ms"`
	TempTargetC    float64       `yaml:"temp_target_c"`
	DutyMin        int           `yaml:"duty_min"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	TempPath       string        `yaml:"temp_path"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	BufferLines int `yaml:"buffer_lines"`
}

var backends = map[string]bool{"sim": true, "gpiocdev": true, "sysfs": true, "periph": true}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, unknownFieldsErr(err)
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var yamlLinePrefix = regexp.MustCompile(`^line \d+: `)

func unknownFieldsErr(err error) error {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return err
	}
	unknown := make([]string, 0, len(te.Errors))
	for _, e := range te.Errors {
		if strings.Contains(e, "not found in type") {
			unknown = append(unknown, yamlLinePrefix.ReplaceAllString(e, ""))
		}
	}
	if len(unknown) == 0 {
		return err
	}
	return fmt.Errorf("config contains unknown fields: %s", strings.Join(unknown, "; "))
}

func applyDefaults(cfg *Config) {
	cfg.Output.Backend = strings.ToLower(strings.TrimSpace(cfg.Output.Backend))
	if cfg.Output.Backend == "" {
		cfg.Output.Backend = "sim"
	}
	if cfg.Output.Consumer == "" {
		cfg.Output.Consumer = "softpwm"
	}
	if len(cfg.Output.Lines) == 0 {
		// Four LEDs on the Raspberry Pi header.
		cfg.Output.Lines = []int{17, 27, 22, 23}
	}
	if cfg.PWM.Capacity == 0 {
		cfg.PWM.Capacity = 4
	}

	if cfg.Control.StepMs == 0 {
		cfg.Control.StepMs = 2
	}
	if cfg.Control.PeriodMs == 0 {
		cfg.Control.PeriodMs = 10
	}
	if cfg.Buttons.Chip == "" {
		cfg.Buttons.Chip = "gpiochip0"
	}
	if cfg.Buttons.Debounce == 0 {
		cfg.Buttons.Debounce = 10 * time.Millisecond
	}
	for i := range cfg.Breathing {
		if cfg.Breathing[i].UpdateDelay <= 0 {
			cfg.Breathing[i].UpdateDelay = 25 * time.Millisecond
		}
	}
	if cfg.Fan.PeriodMs == 0 {
		cfg.Fan.PeriodMs = 20
	}
	if cfg.Fan.TempTargetC == 0 {
		cfg.Fan.TempTargetC = 50
	}
	if cfg.Fan.UpdateInterval == 0 {
		cfg.Fan.UpdateInterval = 5 * time.Second
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Log.BufferLines <= 0 {
		cfg.Log.BufferLines = 2000
	}
}

func validate(cfg Config) error {
	if !backends[cfg.Output.Backend] {
		return fmt.Errorf("output.backend must be one of sim, gpiocdev, sysfs, periph")
	}
	lines := make(map[int]bool, len(cfg.Output.Lines))
	for _, l := range cfg.Output.Lines {
		if l < 0 {
			return fmt.Errorf("output.lines must not contain negative values")
		}
		if lines[l] {
			return fmt.Errorf("output.lines contains duplicate line %d", l)
		}
		lines[l] = true
	}
	if cfg.PWM.Capacity < 0 {
		return fmt.Errorf("pwm.capacity must be > 0")
	}

	if cfg.Control.Enable {
		if !lines[cfg.Control.Line] {
			return fmt.Errorf("control.line %d is not listed in output.lines", cfg.Control.Line)
		}
		if cfg.Control.PeriodMs < 1 {
			return fmt.Errorf("control.period_ms must be > 0")
		}
		if cfg.Control.StepMs < 1 {
			return fmt.Errorf("control.step_ms must be > 0")
		}
	}
	if cfg.Buttons.Enable {
		if !cfg.Control.Enable {
			return fmt.Errorf("buttons.enable requires control.enable")
		}
		if len(cfg.Buttons.Lines) == 0 {
			return fmt.Errorf("buttons.lines is required when buttons.enable is true")
		}
		if cfg.Buttons.Debounce < 0 {
			return fmt.Errorf("buttons.debounce must be >= 0")
		}
	}

	seen := make(map[int]bool, len(cfg.Breathing))
	for i, br := range cfg.Breathing {
		if !lines[br.Line] {
			return fmt.Errorf("breathing[%d].line %d is not listed in output.lines", i, br.Line)
		}
		if cfg.Control.Enable && br.Line == cfg.Control.Line {
			return fmt.Errorf("breathing[%d].line %d is already the control line", i, br.Line)
		}
		if seen[br.Line] {
			return fmt.Errorf("breathing[%d].line %d is listed twice", i, br.Line)
		}
		seen[br.Line] = true
		if br.PeriodMs < 1 {
			return fmt.Errorf("breathing[%d].period_ms must be > 0", i)
		}
	}
	if cfg.Fan.Enable {
		if !lines[cfg.Fan.Line] {
			return fmt.Errorf("fan.line %d is not listed in output.lines", cfg.Fan.Line)
		}
		if (cfg.Control.Enable && cfg.Fan.Line == cfg.Control.Line) || seen[cfg.Fan.Line] {
			return fmt.Errorf("fan.line %d is already in use", cfg.Fan.Line)
		}
		if cfg.Fan.PeriodMs < 1 {
			return fmt.Errorf("fan.period_ms must be > 0")
		}
		if cfg.Fan.DutyMin < 0 || cfg.Fan.DutyMin > 100 {
			return fmt.Errorf("fan.duty_min must be between 0 and 100")
		}
		if cfg.Fan.UpdateInterval < 0 {
			return fmt.Errorf("fan.update_interval must be > 0")
		}
	}

	used := len(cfg.Breathing)
	if cfg.Control.Enable {
		used++
	}
	if cfg.Fan.Enable {
		used++
	}
	if used > cfg.PWM.Capacity {
		return fmt.Errorf("configured producers need %d channels but pwm.capacity is %d", used, cfg.PWM.Capacity)
	}
	return nil
}
