package effects

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"softpwm/internal/swpwm"
)

// Breather ramps the pulse of one line from 0 up to PeriodMs and back down,
// one millisecond every UpdateDelay.
type Breather struct {
	Line        int
	PeriodMs    int
	UpdateDelay time.Duration
}

// BreathPulse is the pulse width at step counter of a triangle wave with the
// given period: 0,1,..,period,..,1,0,1,...
func BreathPulse(counter, periodMs int) int {
	x := counter % (2 * periodMs)
	return min(2*periodMs-x, x)
}

// Breathing runs one goroutine per Breather.
type Breathing struct {
	pwm       PWM
	breathers []Breather

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewBreathing(pwm PWM, breathers []Breather) *Breathing {
	return &Breathing{pwm: pwm, breathers: breathers, stopCh: make(chan struct{})}
}

func (b *Breathing) Start(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("effects: breathing is nil")
	}
	for _, br := range b.breathers {
		if br.PeriodMs <= 0 {
			return fmt.Errorf("effects: line %d: period_ms must be > 0", br.Line)
		}
		if br.UpdateDelay <= 0 {
			return fmt.Errorf("effects: line %d: update_delay must be > 0", br.Line)
		}
	}
	for _, br := range b.breathers {
		b.wg.Add(1)
		go func(br Breather) {
			defer b.wg.Done()
			b.run(ctx, br)
		}(br)
	}
	return nil
}

func (b *Breathing) run(ctx context.Context, br Breather) {
	t := time.NewTicker(br.UpdateDelay)
	defer t.Stop()

	counter := 0
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-t.C:
		}
		counter++
		err := b.pwm.Set(br.Line, BreathPulse(counter, br.PeriodMs), br.PeriodMs)
		switch {
		case err != nil && !failing:
			log.Printf("effects: breathing line %d: %v", br.Line, err)
			failing = true
		case err == nil && failing:
			log.Printf("effects: breathing line %d recovered", br.Line)
			failing = false
		}
		if errors.Is(err, swpwm.ErrInvalidSpec) {
			return
		}
	}
}

// Close stops every breathing goroutine. The lines are left as they are.
func (b *Breathing) Close() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}
