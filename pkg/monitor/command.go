package monitor

import (
	"fmt"
	"time"

	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/trigger"
)

// Condition is one boolean avatar-parameter requirement for completing a
// command. Parameters never seen on the bus count as false.
type Condition struct {
	Parameter string
	Want      bool
}

// CommandRule maps spoken phrases to the pose that completes the command.
// Phrases should include common speech-engine mishearings.
type CommandRule struct {
	Name       string
	Phrases    []string
	Conditions []Condition
}

// CommandConfig configures the command monitor.
type CommandConfig struct {
	// SpeakerRole is whose speech can arm a command (the trainer).
	SpeakerRole event.Role
	// TargetRole is the avatar that receives the stimulus on expiry.
	TargetRole event.Role

	Rules []CommandRule

	// Timeout is the completion window, already difficulty-scaled.
	Timeout time.Duration

	// ReplaceArmed controls the policy for a new command word while a
	// session is armed: false ignores it (the default, so rapid repeated
	// speech cannot truncate an in-flight window), true replaces it.
	ReplaceArmed bool

	// Feedback, when set, delivers haptic acknowledgement: one pulse when
	// a command arms, two when it completes. Expiry stays on the trigger
	// path and gets no pulse.
	Feedback func(pulses int)
}

// commandSession is the single in-flight command. Exactly one terminal
// transition happens: completed (silent) or expired (one trigger).
type commandSession struct {
	rule      *CommandRule
	startedAt time.Time
	deadline  time.Time
}

type ruleMatcher struct {
	rule    *CommandRule
	matcher *Matcher
}

// CommandMonitor runs the Idle -> Armed -> {Completed | Expired} state
// machine. It tracks the last-known value of every parameter its rules
// reference, so completion can be checked both when a sensor event
// arrives and when the deadline fires. Because events and ticks share one
// goroutine, a completion event delivered before the deadline tick always
// wins the race.
type CommandMonitor struct {
	cfg  CommandConfig
	emit EmitFunc

	rules   []ruleMatcher
	watched map[string]struct{}

	pose map[string]bool
	sess *commandSession
}

// NewCommand creates a command monitor in the Idle state.
func NewCommand(cfg CommandConfig, emit EmitFunc) *CommandMonitor {
	m := &CommandMonitor{
		cfg:     cfg,
		emit:    emit,
		watched: make(map[string]struct{}),
		pose:    make(map[string]bool),
	}
	for i := range cfg.Rules {
		rule := &cfg.Rules[i]
		m.rules = append(m.rules, ruleMatcher{
			rule:    rule,
			matcher: NewMatcher(rule.Phrases, true),
		})
		for _, cond := range rule.Conditions {
			m.watched[cond.Parameter] = struct{}{}
		}
	}
	return m
}

// Name implements Monitor.
func (m *CommandMonitor) Name() string { return "command" }

// Armed reports whether a command session is in flight.
func (m *CommandMonitor) Armed() bool { return m.sess != nil }

// HandleEvent implements Monitor.
func (m *CommandMonitor) HandleEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.SpeechEvent:
		m.handleSpeech(e)
	case event.SensorEvent:
		m.handleSensor(e)
	}
}

func (m *CommandMonitor) handleSpeech(e event.SpeechEvent) {
	if e.Role != m.cfg.SpeakerRole {
		return
	}
	rule := m.matchRule(e.Text)
	if rule == nil {
		return
	}

	if m.sess != nil {
		if !m.cfg.ReplaceArmed {
			log.Debug("command: ignored while armed", "armed", m.sess.rule.Name, "heard", rule.Name)
			return
		}
		log.Info("command: replaced", "was", m.sess.rule.Name, "now", rule.Name)
	}

	m.sess = &commandSession{
		rule:      rule,
		startedAt: e.When(),
		deadline:  e.When().Add(m.cfg.Timeout),
	}
	log.Info("command: armed", "name", rule.Name, "deadline", m.sess.deadline)
	m.feedback(1)
}

func (m *CommandMonitor) feedback(pulses int) {
	if m.cfg.Feedback != nil {
		m.cfg.Feedback(pulses)
	}
}

func (m *CommandMonitor) matchRule(text string) *CommandRule {
	for _, rm := range m.rules {
		if _, ok := rm.matcher.Match(text); ok {
			return rm.rule
		}
	}
	return nil
}

func (m *CommandMonitor) handleSensor(e event.SensorEvent) {
	if _, ok := m.watched[e.Parameter]; !ok {
		return
	}

	if m.sess != nil && e.When().After(m.sess.deadline) {
		// The deadline passed before this event; declare expiry first so
		// a late pose cannot rescue an already-missed command.
		m.expire()
	}

	m.pose[e.Parameter] = e.AsBool()

	if m.sess != nil && m.satisfied(m.sess.rule) {
		m.complete(e.When())
	}
}

func (m *CommandMonitor) satisfied(rule *CommandRule) bool {
	for _, cond := range rule.Conditions {
		if m.pose[cond.Parameter] != cond.Want {
			return false
		}
	}
	return true
}

func (m *CommandMonitor) complete(at time.Time) {
	log.Info("command: completed", "name", m.sess.rule.Name,
		"took", at.Sub(m.sess.startedAt).String())
	m.sess = nil
	m.feedback(2)
}

func (m *CommandMonitor) expire() {
	sess := m.sess
	m.sess = nil
	log.Info("command: expired", "name", sess.rule.Name)
	m.emit(trigger.Signal{
		Kind:     trigger.KindCommand,
		Role:     m.cfg.TargetRole,
		Severity: 1.0,
		At:       sess.deadline,
		Detail:   fmt.Sprintf("command=%s", sess.rule.Name),
	})
}

// Tick implements Monitor. Completion is checked before expiry is
// declared: a pose satisfied by events that beat the timer wins even when
// the tick and the completing event carry the same timestamp.
func (m *CommandMonitor) Tick(now time.Time) {
	if m.sess == nil || now.Before(m.sess.deadline) {
		return
	}
	if m.satisfied(m.sess.rule) {
		m.complete(m.sess.deadline)
		return
	}
	m.expire()
}

// NextWake implements Monitor: wake at the deadline while armed.
func (m *CommandMonitor) NextWake(now time.Time) (time.Time, bool) {
	if m.sess == nil {
		return time.Time{}, false
	}
	return m.sess.deadline, true
}

// Status implements Monitor.
func (m *CommandMonitor) Status() Status {
	detail := "idle"
	if m.sess != nil {
		detail = fmt.Sprintf("armed=%s deadline=%s", m.sess.rule.Name, m.sess.deadline.Format(time.RFC3339))
	}
	return Status{Name: m.Name(), Detail: detail}
}
