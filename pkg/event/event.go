// Package event defines the typed events produced by the sensor and speech
// adapters and the bus that fans them out to monitors.
package event

import "time"

// Role identifies which avatar a producer is reporting on.
type Role string

const (
	// RoleTrainer is the trainer-side avatar.
	RoleTrainer Role = "trainer"
	// RolePet is the pet-side avatar.
	RolePet Role = "pet"
)

// ValueKind indicates which field of a SensorEvent carries the value.
type ValueKind int

const (
	// BoolValue means the Bool field is valid.
	BoolValue ValueKind = iota
	// FloatValue means the Float field is valid.
	FloatValue
)

// Event is any timestamped event delivered through the bus.
// Consumers needing causal order across producers compare When(),
// not arrival order.
type Event interface {
	When() time.Time
}

// SensorEvent is one avatar-parameter update from the rendering client.
// Events are immutable once published.
type SensorEvent struct {
	Source    Role
	Parameter string
	Kind      ValueKind
	Bool      bool
	Float     float64
	Timestamp time.Time
}

// When returns the event timestamp.
func (e SensorEvent) When() time.Time { return e.Timestamp }

// AsBool folds float updates onto a boolean for monitors that only care
// about on/off state.
func (e SensorEvent) AsBool() bool {
	if e.Kind == BoolValue {
		return e.Bool
	}
	return e.Float >= 0.5
}

// AsFloat widens boolean updates to 0/1 for monitors that compare against
// a continuous threshold.
func (e SensorEvent) AsFloat() float64 {
	if e.Kind == FloatValue {
		return e.Float
	}
	if e.Bool {
		return 1
	}
	return 0
}

// SpeechEvent is one completed utterance from the transcription engine.
type SpeechEvent struct {
	Role  Role
	Text  string
	Start time.Time
	End   time.Time
}

// When returns the utterance end time, which is when the text became known.
func (e SpeechEvent) When() time.Time { return e.End }
