package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"softpwm/internal/swpwm"
)

// PWMController is the engine surface exposed over HTTP.
type PWMController interface {
	SetSpec(s swpwm.Spec) error
	Get(line int) swpwm.Spec
	Disable(line int, wait bool) bool
	Channels() []swpwm.ChannelStatus
	Capacity() int
	Lines() []int
}

// ButtonPresser injects button presses, e.g. *button.Dispatcher.
type ButtonPresser interface {
	Press(button int) error
}

type specRequest struct {
	PulseMs  *int `json:"pulse_ms"`
	PeriodMs *int `json:"period_ms"`
}

func Handler(status *Status, pwm PWMController, buttons ButtonPresser, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, status.Snapshot(time.Now().UTC(), pwm))
	})

	mux.HandleFunc("/api/channels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, pwm.Channels())
	})

	mux.HandleFunc("/api/channels/", func(w http.ResponseWriter, r *http.Request) {
		line, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/channels/"))
		if err != nil {
			http.Error(w, "line must be an integer", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			s := pwm.Get(line)
			if !s.Active() {
				http.Error(w, fmt.Sprintf("line %d is not active", line), http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, s)

		case http.MethodPut:
			var req specRequest
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
				return
			}
			if req.PulseMs == nil || req.PeriodMs == nil {
				http.Error(w, "pulse_ms and period_ms are required", http.StatusBadRequest)
				return
			}
			s := swpwm.Spec{Line: line, PulseMs: *req.PulseMs, PeriodMs: *req.PeriodMs}
			if err := pwm.SetSpec(s); err != nil {
				code := http.StatusInternalServerError
				switch {
				case errors.Is(err, swpwm.ErrInvalidSpec):
					code = http.StatusBadRequest
				case errors.Is(err, swpwm.ErrOutOfSlots):
					code = http.StatusConflict
				case errors.Is(err, swpwm.ErrClosed):
					code = http.StatusServiceUnavailable
				}
				http.Error(w, err.Error(), code)
				return
			}
			writeJSON(w, http.StatusOK, pwm.Get(line))

		case http.MethodDelete:
			wait := r.URL.Query().Get("wait")
			if !pwm.Disable(line, wait == "1" || strings.EqualFold(wait, "true")) {
				http.Error(w, fmt.Sprintf("line %d is not active", line), http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

		default:
			w.Header().Set("Allow", "GET, PUT, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/buttons/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if buttons == nil {
			http.Error(w, "buttons unavailable", http.StatusNotFound)
			return
		}
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/buttons/"))
		if err != nil {
			http.Error(w, "button must be an integer", http.StatusBadRequest)
			return
		}
		if err := buttons.Press(n); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		status.MarkPress()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
