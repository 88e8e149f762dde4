package monitor

import (
	"fmt"
	"time"

	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/trigger"
)

// MeterConfig configures one meter monitor instance (focus or proximity).
type MeterConfig struct {
	// Kind is the signal kind emitted on a zero-crossing.
	Kind trigger.Kind
	// TargetRole is the avatar that receives the stimulus.
	TargetRole event.Role
	// Parameter is the watched boolean avatar parameter.
	Parameter string

	// FillRate/DrainRate are meter units per second; RateScale is the
	// difficulty factor applied to both.
	FillRate  float64
	DrainRate float64
	RateScale float64

	// Max bounds the meter; Recovery is the level after a trigger, kept
	// below Max so a trigger cannot immediately re-arm a storm.
	Max      float64
	Recovery float64

	// Staleness freezes the meter when consecutive updates are further
	// apart than this. Zero disables the check.
	Staleness time.Duration

	// PenaltyWords spoken by PenaltyRole drain the meter by Penalty.
	// Used by the focus meter for pet-name calls; leave empty otherwise.
	PenaltyWords []string
	PenaltyRole  event.Role
	Penalty      float64
}

// MeterMonitor maintains a bounded scalar that fills while its watched
// boolean parameter is true and drains while it is false. dt is measured
// between consecutive updates for the parameter, so a silent transport
// freezes the meter instead of draining it. Crossing zero emits exactly
// one trigger and resets the level to the recovery value.
type MeterMonitor struct {
	cfg     MeterConfig
	name    string
	emit    EmitFunc
	matcher *Matcher

	level      float64
	lastUpdate time.Time
	stale      bool
}

// NewMeter creates a meter monitor with the level at Max.
func NewMeter(cfg MeterConfig, emit EmitFunc) *MeterMonitor {
	if cfg.RateScale <= 0 {
		cfg.RateScale = 1
	}
	return &MeterMonitor{
		cfg:     cfg,
		name:    cfg.Kind.String(),
		emit:    emit,
		matcher: NewMatcher(cfg.PenaltyWords, true),
		level:   cfg.Max,
	}
}

// Name implements Monitor.
func (m *MeterMonitor) Name() string { return m.name }

// Level returns the current meter level.
func (m *MeterMonitor) Level() float64 { return m.level }

// Prime sets the dt baseline to the session start so the interval before
// the first update counts. Without it the first update only establishes
// the baseline.
func (m *MeterMonitor) Prime(start time.Time) {
	m.lastUpdate = start
}

// HandleEvent implements Monitor.
func (m *MeterMonitor) HandleEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.SensorEvent:
		if e.Parameter != m.cfg.Parameter {
			return
		}
		m.handleUpdate(e)
	case event.SpeechEvent:
		if m.matcher.Empty() || e.Role != m.cfg.PenaltyRole {
			return
		}
		if word, ok := m.matcher.Match(e.Text); ok {
			log.Debug("meter: penalty word", "monitor", m.name, "word", word)
			m.applyDelta(-m.cfg.Penalty, e.When())
		}
	}
}

func (m *MeterMonitor) handleUpdate(e event.SensorEvent) {
	now := e.When()
	defer func() { m.lastUpdate = now }()

	if m.lastUpdate.IsZero() {
		// First update only establishes the baseline.
		return
	}

	gap := now.Sub(m.lastUpdate)
	if gap < 0 {
		return
	}
	if m.cfg.Staleness > 0 && gap > m.cfg.Staleness {
		// Updates stopped arriving for a while: freeze rather than guess
		// what the state was during the gap.
		if !m.stale {
			log.Warn("meter: signal lost, freezing", "monitor", m.name, "gap", gap.String())
		}
		m.stale = true
		return
	}
	m.stale = false

	dt := gap.Seconds()
	var delta float64
	if e.AsBool() {
		delta = m.cfg.FillRate * m.cfg.RateScale * dt
	} else {
		delta = -m.cfg.DrainRate * m.cfg.RateScale * dt
	}
	m.applyDelta(delta, now)
}

// applyDelta moves the level, clamps it to [0, Max] and fires on the
// zero-crossing. Only a crossing fires: a level already at zero stays
// silent, so trigger storms cannot happen even with Recovery = 0.
func (m *MeterMonitor) applyDelta(delta float64, at time.Time) {
	prev := m.level
	m.level += delta
	if m.level > m.cfg.Max {
		m.level = m.cfg.Max
	}
	if m.level <= 0 {
		m.level = 0
		if prev > 0 {
			m.emit(trigger.Signal{
				Kind:     m.cfg.Kind,
				Role:     m.cfg.TargetRole,
				Severity: 1.0,
				At:       at,
				Detail:   fmt.Sprintf("parameter=%s", m.cfg.Parameter),
			})
			m.level = m.cfg.Recovery
		}
	}
}

// Tick implements Monitor: it only refreshes the staleness status, since
// the meter itself moves on events, never on wall-clock polling.
func (m *MeterMonitor) Tick(now time.Time) {
	if m.cfg.Staleness <= 0 || m.lastUpdate.IsZero() {
		return
	}
	if now.Sub(m.lastUpdate) > m.cfg.Staleness && !m.stale {
		m.stale = true
		log.Warn("meter: signal lost, freezing", "monitor", m.name, "parameter", m.cfg.Parameter)
	}
}

// NextWake implements Monitor: wake when the staleness deadline passes.
func (m *MeterMonitor) NextWake(now time.Time) (time.Time, bool) {
	if m.cfg.Staleness <= 0 || m.lastUpdate.IsZero() || m.stale {
		return time.Time{}, false
	}
	return m.lastUpdate.Add(m.cfg.Staleness), true
}

// Status implements Monitor.
func (m *MeterMonitor) Status() Status {
	return Status{
		Name:   m.name,
		Stale:  m.stale,
		Detail: fmt.Sprintf("level=%.3f max=%.3f", m.level, m.cfg.Max),
	}
}
