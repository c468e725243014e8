package web

import (
	"sync/atomic"
	"time"

	"softpwm/internal/fancontrol"
	"softpwm/internal/swpwm"
)

// FanReporter is implemented by *fancontrol.Service.
type FanReporter interface {
	Snapshot() fancontrol.Snapshot
}

// Status collects what /api/status reports besides the live channel table.
type Status struct {
	startUnixNano int64
	backend       atomic.Value // string
	presses       uint64
	fan           atomic.Value // FanReporter
}

func NewStatus(backend string) *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.backend.Store(backend)
	return s
}

func (s *Status) MarkPress() {
	atomic.AddUint64(&s.presses, 1)
}

// AttachFan adds the fan controller to future snapshots.
func (s *Status) AttachFan(f FanReporter) {
	if f != nil {
		s.fan.Store(f)
	}
}

type StatusSnapshot struct {
	Service       string                `json:"service"`
	NowUTC        string                `json:"now_utc"`
	UptimeSec     int64                 `json:"uptime_sec"`
	Backend       string                `json:"backend"`
	Capacity      int                   `json:"capacity"`
	Lines         []int                 `json:"lines"`
	Active        int                   `json:"active"`
	ButtonPresses uint64                `json:"button_presses"`
	Channels      []swpwm.ChannelStatus `json:"channels"`
	Fan           *fancontrol.Snapshot  `json:"fan,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time, pwm PWMController) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	backend, _ := s.backend.Load().(string)

	snap := StatusSnapshot{
		Service:       "softpwm",
		NowUTC:        nowUTC.Format(time.RFC3339Nano),
		UptimeSec:     int64(nowUTC.Sub(start).Seconds()),
		Backend:       backend,
		ButtonPresses: atomic.LoadUint64(&s.presses),
		Channels:      []swpwm.ChannelStatus{},
	}
	if pwm != nil {
		snap.Capacity = pwm.Capacity()
		snap.Lines = pwm.Lines()
		snap.Channels = pwm.Channels()
		snap.Active = len(snap.Channels)
	}
	if f, ok := s.fan.Load().(FanReporter); ok {
		fs := f.Snapshot()
		snap.Fan = &fs
	}
	return snap
}
