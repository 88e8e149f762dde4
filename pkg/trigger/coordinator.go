package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/shock"
)

// Config holds the coordinator's session-start configuration.
type Config struct {
	// Enabled is the initial per-kind toggle state.
	Enabled map[Kind]bool
	// Scaling is the difficulty configuration.
	Scaling Scaling
	// Levels overrides DefaultLevels when non-nil.
	Levels map[Kind]Levels
	// MinInterval is the per-target cooldown between stimulus deliveries.
	MinInterval time.Duration
	// Targets maps avatar roles to device share codes.
	Targets map[event.Role]string
}

// Outcome records one coordinator decision for the operator feed.
type Outcome struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Role     string        `json:"role"`
	Severity float64       `json:"severity"`
	Detail   string        `json:"detail,omitempty"`
	At       time.Time     `json:"at"`
	Status   OutcomeStatus `json:"status"`
	// Fired fields; only meaningful when Status is OutcomeSent or OutcomeFailed.
	Intensity int    `json:"intensity,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OutcomeStatus says what the coordinator did with a signal.
type OutcomeStatus string

const (
	// OutcomeSent means the stimulus command reached the device.
	OutcomeSent OutcomeStatus = "sent"
	// OutcomeFailed means the device API reported failure. Not retried.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeDisabled means the signal's kind is toggled off.
	OutcomeDisabled OutcomeStatus = "disabled"
	// OutcomeCoalesced means the target was still inside its cooldown window.
	OutcomeCoalesced OutcomeStatus = "coalesced"
	// OutcomeNoTarget means no device is configured for the signal's role.
	OutcomeNoTarget OutcomeStatus = "no_target"
)

// cooldownWindow tracks the last delivery per target. Timestamps come from
// the triggering events, keeping replay deterministic.
type cooldownWindow struct {
	lastFire time.Time
}

// Coordinator fans in trigger signals from all monitors, applies central
// policy and forwards surviving signals to the stimulus sink.
type Coordinator struct {
	sink        shock.Sink
	scaling     Scaling
	levels      map[Kind]Levels
	minInterval time.Duration
	targets     map[event.Role]string

	mu        sync.Mutex
	enabled   map[Kind]bool
	cooldowns map[string]*cooldownWindow
	closed    bool

	// onOutcome, when set, receives every decision. Used by the operator
	// dashboard; never blocks the decision path for long.
	onOutcome func(Outcome)
}

// New creates a coordinator sending through the given sink.
func New(cfg Config, sink shock.Sink) *Coordinator {
	levels := cfg.Levels
	if levels == nil {
		levels = DefaultLevels()
	}
	enabled := make(map[Kind]bool, kindCount)
	for _, k := range Kinds() {
		enabled[k] = cfg.Enabled[k]
	}
	return &Coordinator{
		sink:        sink,
		scaling:     cfg.Scaling.Clamped(),
		levels:      levels,
		minInterval: cfg.MinInterval,
		targets:     cfg.Targets,
		enabled:     enabled,
		cooldowns:   make(map[string]*cooldownWindow),
	}
}

// OnOutcome registers the decision callback. Call before Submit is in use.
func (c *Coordinator) OnOutcome(fn func(Outcome)) {
	c.onOutcome = fn
}

// SetEnabled toggles a signal kind mid-session. Monitors keep emitting
// regardless; only the coordinator's filter changes.
func (c *Coordinator) SetEnabled(kind Kind, enabled bool) {
	c.mu.Lock()
	c.enabled[kind] = enabled
	c.mu.Unlock()
	log.Info("trigger: mode toggled", "kind", kind.String(), "enabled", enabled)
}

// Enabled reports the current toggle state for a kind.
func (c *Coordinator) Enabled(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled[kind]
}

// Close stops the coordinator. Signals submitted afterwards are discarded;
// this is the session-stop path, so nothing further may reach the device.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Submit decides one signal. The toggle check and the cooldown
// check-and-update happen atomically under the coordinator lock, so two
// near-simultaneous signals for the same target cannot both pass; the
// (possibly slow) sink call happens outside the lock.
func (c *Coordinator) Submit(ctx context.Context, sig Signal) {
	target, status := c.decide(sig)

	switch status {
	case OutcomeDisabled, OutcomeCoalesced:
		log.Debug("trigger: discarded", "kind", sig.Kind.String(), "status", string(status))
		c.report(sig, status, shock.Command{}, nil)
		return
	case OutcomeNoTarget:
		log.Warn("trigger: no device target for role", "kind", sig.Kind.String(), "role", string(sig.Role))
		c.report(sig, status, shock.Command{}, nil)
		return
	}

	levels := c.levels[sig.Kind]
	cmd := shock.Command{
		Target:    target,
		Intensity: levels.Intensity(sig.Severity, c.scaling),
		Duration:  levels.Duration(c.scaling),
	}

	if err := c.sink.Send(ctx, cmd); err != nil {
		// Retrying a physical stimulus device silently is unsafe: log,
		// surface to the operator layer, move on.
		log.Error("trigger: stimulus delivery failed",
			"kind", sig.Kind.String(),
			"target", target,
			"intensity", cmd.Intensity,
			"error", err)
		c.report(sig, OutcomeFailed, cmd, err)
		return
	}

	log.Info("trigger: stimulus delivered",
		"kind", sig.Kind.String(),
		"role", string(sig.Role),
		"severity", sig.Severity,
		"intensity", cmd.Intensity,
		"duration", cmd.Duration.String())
	c.report(sig, OutcomeSent, cmd, nil)
}

// Feedback pulse parameters: barely perceptible, long enough for the
// device to render, paced so a double pulse reads as two.
const (
	pulseIntensity = 1
	pulseDuration  = time.Second
	pulseGap       = 300 * time.Millisecond
)

// Pulse delivers count low-strength vibrations to the role's device as
// haptic acknowledgement. Pulses bypass the trigger cooldown: they
// acknowledge commands rather than punish, so they must not consume the
// stimulus window. Delivery runs asynchronously; a failed pulse is
// logged and the remainder abandoned.
func (c *Coordinator) Pulse(ctx context.Context, role event.Role, count int) {
	c.mu.Lock()
	closed := c.closed
	target := c.targets[role]
	c.mu.Unlock()
	if closed || target == "" || count <= 0 {
		return
	}

	go func() {
		for i := 0; i < count; i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(pulseGap):
				}
			}
			cmd := shock.Command{
				Target:    target,
				Intensity: pulseIntensity,
				Duration:  pulseDuration,
				Vibrate:   true,
			}
			if err := c.sink.Send(ctx, cmd); err != nil {
				log.Warn("trigger: feedback pulse failed", "target", target, "error", err)
				return
			}
		}
	}()
}

// decide runs the atomic part of Submit: toggle check, target lookup and
// cooldown check-and-update. lastFire advances at decision time, not on
// delivery success, so a failed send still opens the target's cooldown
// window: the interval bounds the attempt rate against the device, and a
// flapping device must not be hammered at signal rate.
func (c *Coordinator) decide(sig Signal) (target string, status OutcomeStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.enabled[sig.Kind] {
		return "", OutcomeDisabled
	}

	target, ok := c.targets[sig.Role]
	if !ok || target == "" {
		return "", OutcomeNoTarget
	}

	window, ok := c.cooldowns[target]
	if !ok {
		window = &cooldownWindow{}
		c.cooldowns[target] = window
	}
	if !window.lastFire.IsZero() && sig.At.Sub(window.lastFire) < c.minInterval {
		return target, OutcomeCoalesced
	}
	window.lastFire = sig.At

	return target, OutcomeSent
}

func (c *Coordinator) report(sig Signal, status OutcomeStatus, cmd shock.Command, err error) {
	if c.onOutcome == nil {
		return
	}
	out := Outcome{
		ID:       uuid.NewString(),
		Kind:     sig.Kind.String(),
		Role:     string(sig.Role),
		Severity: sig.Severity,
		Detail:   sig.Detail,
		At:       sig.At,
		Status:   status,
	}
	if status == OutcomeSent || status == OutcomeFailed {
		out.Intensity = cmd.Intensity
		out.Duration = cmd.Duration.String()
	}
	if err != nil {
		out.Error = err.Error()
	}
	c.onOutcome(out)
}
