package monitor

import (
	"fmt"
	"time"

	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/trigger"
)

// StretchTarget names one float parameter to watch. When Grab is set, the
// named boolean parameter must be true for the stretch value to count;
// a rest-position reading on an ungrabbed ear is noise, not a pull.
type StretchTarget struct {
	Parameter string
	Grab      string
}

// StretchConfig configures the stretch monitor.
type StretchConfig struct {
	// TargetRole is the avatar that receives the stimulus.
	TargetRole event.Role

	Targets []StretchTarget

	// Threshold and Max bound the severity ramp: severity is
	// (value-Threshold)/(Max-Threshold), clamped to [0, 1].
	Threshold float64
	Max       float64

	// Cooldown suppresses repeat triggers while a stretch is held.
	// Compared against event timestamps, already difficulty-scaled.
	Cooldown time.Duration
}

// StretchMonitor watches continuous stretch values and emits a trigger
// with proportional severity when one exceeds the threshold. This is the
// only monitor whose severity is not binary.
type StretchMonitor struct {
	cfg  StretchConfig
	emit EmitFunc

	values map[string]*StretchTarget // value parameter -> target
	grabs  map[string]*StretchTarget // grab parameter -> target

	grabbed  map[string]bool // value parameter -> grabbed state
	lastFire time.Time
}

// NewStretch creates a stretch monitor.
func NewStretch(cfg StretchConfig, emit EmitFunc) *StretchMonitor {
	m := &StretchMonitor{
		cfg:     cfg,
		emit:    emit,
		values:  make(map[string]*StretchTarget),
		grabs:   make(map[string]*StretchTarget),
		grabbed: make(map[string]bool),
	}
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		m.values[t.Parameter] = t
		if t.Grab != "" {
			m.grabs[t.Grab] = t
		}
	}
	return m
}

// Name implements Monitor.
func (m *StretchMonitor) Name() string { return "stretch" }

// HandleEvent implements Monitor.
func (m *StretchMonitor) HandleEvent(ev event.Event) {
	e, ok := ev.(event.SensorEvent)
	if !ok {
		return
	}

	if target, ok := m.grabs[e.Parameter]; ok {
		m.grabbed[target.Parameter] = e.AsBool()
		return
	}

	target, ok := m.values[e.Parameter]
	if !ok {
		return
	}
	if target.Grab != "" && !m.grabbed[target.Parameter] {
		return
	}

	value := e.AsFloat()
	if value <= m.cfg.Threshold {
		return
	}
	if !m.lastFire.IsZero() && e.When().Sub(m.lastFire) < m.cfg.Cooldown {
		return
	}

	severity := (value - m.cfg.Threshold) / (m.cfg.Max - m.cfg.Threshold)
	if severity < 0 {
		severity = 0
	}
	if severity > 1 {
		severity = 1
	}

	m.lastFire = e.When()
	m.emit(trigger.Signal{
		Kind:     trigger.KindStretch,
		Role:     m.cfg.TargetRole,
		Severity: severity,
		At:       e.When(),
		Detail:   fmt.Sprintf("parameter=%s value=%.3f", e.Parameter, value),
	})
}

// Tick implements Monitor; the stretch monitor's cooldown is checked
// against event timestamps, so no wake-ups are needed.
func (m *StretchMonitor) Tick(time.Time) {}

// NextWake implements Monitor.
func (m *StretchMonitor) NextWake(time.Time) (time.Time, bool) {
	return time.Time{}, false
}

// Status implements Monitor.
func (m *StretchMonitor) Status() Status {
	return Status{Name: m.Name(), Detail: fmt.Sprintf("targets=%d", len(m.cfg.Targets))}
}
