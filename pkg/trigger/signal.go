// Package trigger defines trigger signals and the coordinator that turns
// them into stimulus commands. All policy lives here: mode toggles,
// per-target cooldowns and the difficulty mapping. Monitors emit signals
// unconditionally and stay policy-free.
package trigger

import (
	"time"

	"github.com/strayware/go-collar/pkg/event"
)

// Kind identifies which monitor produced a signal.
type Kind int

const (
	// KindFocus is the focus meter hitting zero.
	KindFocus Kind = iota
	// KindProximity is the proximity meter hitting zero.
	KindProximity
	// KindCommand is a trick command expiring uncompleted.
	KindCommand
	// KindScold is a scolding word spoken by the trainer.
	KindScold
	// KindStretch is an ear/tail stretch past the threshold.
	KindStretch
	// KindSelfReference is the pet using a first-person pronoun.
	KindSelfReference

	kindCount
)

var kindNames = map[Kind]string{
	KindFocus:         "focus",
	KindProximity:     "proximity",
	KindCommand:       "command",
	KindScold:         "scold",
	KindStretch:       "stretch",
	KindSelfReference: "self_reference",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Kinds returns all signal kinds.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Signal is one trigger decision candidate. It is transient: the
// coordinator consumes it immediately.
type Signal struct {
	Kind Kind
	// Role is the avatar the stimulus would be delivered to.
	Role event.Role
	// Severity scales stimulus intensity, 0-1. Most monitors emit 1.0;
	// the stretch monitor scales it with overshoot.
	Severity float64
	// At is the timestamp of the event that caused the signal. Cooldown
	// windows compare these timestamps, not arrival time, so replaying an
	// identical event sequence yields an identical trigger sequence.
	At time.Time
	// Detail is free-form context for the operator feed ("word=bad dog").
	Detail string
}
