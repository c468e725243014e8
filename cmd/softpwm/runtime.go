package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"softpwm/internal/button"
	"softpwm/internal/config"
	"softpwm/internal/effects"
	"softpwm/internal/fancontrol"
	"softpwm/internal/gpio"
	"softpwm/internal/swpwm"
	"softpwm/internal/web"
)

var (
	openDriverFn   = gpio.Open
	watchButtonsFn = button.Watch
)

const shutdownTimeout = 2 * time.Second

// runtime owns everything the program starts, in dependency order.
type runtime struct {
	cfg config.Config

	drv       gpio.Driver
	engine    *swpwm.Engine
	buttons   *button.Dispatcher
	watcher   *button.Watcher
	control   *effects.Brightness
	breathing *effects.Breathing
	fan       *fancontrol.Service
	status    *web.Status
	handler   http.Handler
}

func newRuntime(ctx context.Context, cfg config.Config, logs *web.LogBuffer) (*runtime, error) {
	r := &runtime{cfg: cfg, buttons: button.NewDispatcher()}

	drv, err := openDriverFn(gpio.Config{
		Backend:  cfg.Output.Backend,
		Chip:     cfg.Output.Chip,
		Consumer: cfg.Output.Consumer,
		Lines:    cfg.Output.Lines,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s output: %w", cfg.Output.Backend, err)
	}
	r.drv = drv

	engine, err := swpwm.New(drv, swpwm.Config{Capacity: cfg.PWM.Capacity, Lines: cfg.Output.Lines})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.engine = engine
	r.status = web.NewStatus(cfg.Output.Backend)

	if cfg.Control.Enable {
		r.control = effects.NewBrightness(engine, drv, cfg.Control.Line, cfg.Control.StepMs, cfg.Control.PeriodMs)
		r.control.Bind(r.buttons)
		if err := r.control.On(); err != nil {
			r.Close()
			return nil, fmt.Errorf("control line %d: %w", cfg.Control.Line, err)
		}
		log.Printf("control line %d step=%dms period=%dms", cfg.Control.Line, cfg.Control.StepMs, cfg.Control.PeriodMs)
	}

	if cfg.Buttons.Enable {
		w, err := watchButtonsFn(button.Config{
			Chip:     cfg.Buttons.Chip,
			Lines:    cfg.Buttons.Lines,
			Debounce: cfg.Buttons.Debounce,
		}, r.handleButton)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.watcher = w
		log.Printf("buttons %s:%v debounce=%s", cfg.Buttons.Chip, cfg.Buttons.Lines, cfg.Buttons.Debounce)
	}

	breathers := make([]effects.Breather, 0, len(cfg.Breathing))
	for _, b := range cfg.Breathing {
		breathers = append(breathers, effects.Breather{Line: b.Line, PeriodMs: b.PeriodMs, UpdateDelay: b.UpdateDelay})
	}
	r.breathing = effects.NewBreathing(engine, breathers)
	if err := r.breathing.Start(ctx); err != nil {
		r.Close()
		return nil, err
	}

	if cfg.Fan.Enable {
		r.fan = fancontrol.New(engine, fancontrol.Config{
			Line:           cfg.Fan.Line,
			PeriodMs:       cfg.Fan.PeriodMs,
			TempTargetC:    cfg.Fan.TempTargetC,
			DutyMin:        cfg.Fan.DutyMin,
			UpdateInterval: cfg.Fan.UpdateInterval,
			TempPath:       cfg.Fan.TempPath,
		})
		if err := r.fan.Start(ctx); err != nil {
			r.Close()
			return nil, err
		}
		r.status.AttachFan(r.fan)
		log.Printf("fan line %d target=%.1fC period=%dms", cfg.Fan.Line, cfg.Fan.TempTargetC, cfg.Fan.PeriodMs)
	}
	r.handler = web.Handler(r.status, engine, r.buttons, logs)
	return r, nil
}

// handleButton counts presses from the input lines the same way the HTTP
// route does, then dispatches them.
func (r *runtime) handleButton(ev button.Event) {
	if ev.Pressed {
		r.status.MarkPress()
	}
	r.buttons.Handle(ev)
}

func (r *runtime) Handler() http.Handler {
	return r.handler
}

// Close stops producers first, then the PWM channels, then releases the
// output lines.
func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.watcher != nil {
		if err := r.watcher.Close(); err != nil {
			log.Printf("buttons close: %v", err)
		}
		r.watcher = nil
	}
	if r.breathing != nil {
		r.breathing.Close()
		r.breathing = nil
	}
	if r.fan != nil {
		r.fan.Close()
		r.fan = nil
	}
	if r.engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := r.engine.Close(ctx); err != nil {
			log.Printf("pwm close: %v", err)
		}
		cancel()
		r.engine = nil
	}
	if r.drv != nil {
		if err := r.drv.Close(); err != nil {
			log.Printf("output close: %v", err)
		}
		r.drv = nil
	}
}
