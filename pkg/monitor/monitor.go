// Package monitor implements the per-mode monitors of the interaction
// engine. Each monitor owns its state exclusively and is driven from a
// single goroutine: events are handed to HandleEvent in arrival order and
// timer wake-ups call Tick on the same goroutine, so a completion event
// that is already enqueued always wins against the deadline racing it.
//
// Monitors emit trigger signals unconditionally; mode toggles, cooldown
// and difficulty policy live in the trigger coordinator.
package monitor

import (
	"time"

	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/trigger"
)

// EmitFunc receives a trigger signal from a monitor.
type EmitFunc func(trigger.Signal)

// Monitor is one worker in the engine.
type Monitor interface {
	// Name identifies the monitor for logging and the operator feed.
	Name() string

	// HandleEvent processes one bus event. Events the monitor does not
	// care about are ignored cheaply.
	HandleEvent(ev event.Event)

	// Tick is a scheduled wake-up: the monitor checks its deadlines
	// against now. Tick runs on the same goroutine as HandleEvent.
	Tick(now time.Time)

	// NextWake returns when the monitor next needs a Tick, if at all.
	NextWake(now time.Time) (time.Time, bool)

	// Status reports monitor health for the operator layer.
	Status() Status
}

// Status is a monitor's operator-facing state snapshot.
type Status struct {
	Name string `json:"name"`
	// Stale is set when a monitor expecting periodic sensor updates has
	// not seen one within its staleness threshold.
	Stale  bool   `json:"stale"`
	Detail string `json:"detail,omitempty"`
}
