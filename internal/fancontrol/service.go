// Package fancontrol keeps the CPU near a target temperature by driving a fan
// on a software PWM line.
package fancontrol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"softpwm/internal/swpwm"
)

var (
	readTempFn = ReadTempC
	afterFn    = time.After
)

// Fans stall below a few percent duty; spin them up first.
var spinUpDuration = 2 * time.Second

// PWM is the part of *swpwm.Engine the fan controller uses.
type PWM interface {
	Set(line, pulseMs, periodMs int) error
}

type Config struct {
	Line     int
	PeriodMs int
	// TempTargetC is the CPU temperature target in degrees C.
	TempTargetC float64
	// DutyMin is the lowest duty (0-100) that keeps the fan turning.
	DutyMin        int
	UpdateInterval time.Duration
	TempPath       string
}

type Snapshot struct {
	Line     int     `json:"line"`
	CPUValid bool    `json:"cpu_valid"`
	CPUTempC float64 `json:"cpu_temp_c"`

	DutyPercent int `json:"duty_percent"`
	PulseMs     int `json:"pulse_ms"`
	PeriodMs    int `json:"period_ms"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	pwm PWM

	mu   sync.RWMutex
	snap Snapshot

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(pwm PWM, cfg Config) *Service {
	if cfg.PeriodMs <= 0 {
		cfg.PeriodMs = 20
	}
	if cfg.TempTargetC == 0 {
		cfg.TempTargetC = 50.0
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 5 * time.Second
	}
	if cfg.TempPath == "" {
		cfg.TempPath = DefaultTempPath
	}
	return &Service{
		cfg:    cfg,
		pwm:    pwm,
		snap:   Snapshot{Line: cfg.Line, PeriodMs: cfg.PeriodMs},
		stopCh: make(chan struct{}),
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start applies full duty and returns; regulation continues in the background
// until ctx is canceled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fancontrol: service is nil")
	}
	if err := s.setDuty(100); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-afterFn(spinUpDuration):
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
		s.runLoop(ctx)
	}()
	return nil
}

// Close stops regulation. The line keeps its last duty until the engine is
// closed.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) runLoop(ctx context.Context) {
	ctl := newPID(0.2, 0.2, 0.1)
	ctl.SetOutputLimits(-100, 0)
	ctl.SetTarget(s.cfg.TempTargetC)

	t := time.NewTicker(s.cfg.UpdateInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-t.C:
			if !s.step(ctl, s.cfg.UpdateInterval) {
				return
			}
		}
	}
}

// step reads the temperature once and applies the resulting duty. It reports
// false when the line can no longer be driven.
func (s *Service) step(ctl *pid, dt time.Duration) bool {
	tempC, err := readTempFn(s.cfg.TempPath)
	if err != nil {
		s.update(func(sn *Snapshot) {
			sn.CPUValid = false
			sn.LastError = err.Error()
		})
		// Unknown temperature: run the fan flat out.
		return s.apply(100)
	}
	s.update(func(sn *Snapshot) {
		sn.CPUValid = true
		sn.CPUTempC = tempC
		sn.LastError = ""
	})
	return s.apply(scaleDuty(-ctl.Step(tempC, dt), s.cfg.DutyMin))
}

func (s *Service) apply(duty float64) bool {
	err := s.setDuty(duty)
	if err == nil {
		return true
	}
	if errors.Is(err, swpwm.ErrInvalidSpec) {
		log.Printf("fancontrol: line %d: %v; stopping", s.cfg.Line, err)
		return false
	}
	return true
}

// scaleDuty maps a controller output in [0,100] onto [dutyMin,100]. Zero stays
// zero so the fan can stop when the CPU is cool.
func scaleDuty(out float64, dutyMin int) float64 {
	lo := clamp(float64(dutyMin), 0, 100)
	out = clamp(out, 0, 100)
	if out == 0 {
		return 0
	}
	return lo + out*(100-lo)/100
}

// pulseFor converts a duty percentage into a whole-millisecond pulse.
func pulseFor(duty float64, periodMs int) int {
	return int(math.Round(clamp(duty, 0, 100) * float64(periodMs) / 100))
}

func (s *Service) setDuty(duty float64) error {
	pulse := pulseFor(duty, s.cfg.PeriodMs)
	if err := s.pwm.Set(s.cfg.Line, pulse, s.cfg.PeriodMs); err != nil {
		err = fmt.Errorf("fancontrol: set line %d: %w", s.cfg.Line, err)
		s.update(func(sn *Snapshot) { sn.LastError = err.Error() })
		return err
	}
	s.update(func(sn *Snapshot) {
		sn.DutyPercent = int(math.Round(duty))
		sn.PulseMs = pulse
	})
	return nil
}

func (s *Service) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}
