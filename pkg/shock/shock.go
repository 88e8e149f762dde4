// Package shock provides the stimulus sink: an interface over the remote
// shock-device API plus the HTTP client that talks to it. The engine treats
// the device as a fallible, possibly slow remote call; a failed send is
// reported, never silently retried.
package shock

import (
	"context"
	"errors"
	"time"
)

// Errors returned by sinks.
var (
	ErrBadIntensity = errors.New("shock: intensity outside [0, 100]")
	ErrBadDuration  = errors.New("shock: duration must be positive")
	ErrAPIFailure   = errors.New("shock: device API reported failure")
)

// Command is one stimulus request for a single target device.
type Command struct {
	// Target is the device share code.
	Target string
	// Intensity is the stimulus strength, 0-100.
	Intensity int
	// Duration is how long the stimulus lasts.
	Duration time.Duration
	// Vibrate selects the haptic operation instead of a shock. Used for
	// command acknowledgement pulses.
	Vibrate bool
}

// Validate checks the command bounds before it reaches the wire.
func (c Command) Validate() error {
	if c.Intensity < 0 || c.Intensity > 100 {
		return ErrBadIntensity
	}
	if c.Duration <= 0 {
		return ErrBadDuration
	}
	return nil
}

// Sink delivers stimulus commands to a device.
type Sink interface {
	// Send issues one stimulus command. A non-nil error means the device
	// did not confirm delivery; callers must surface it, not retry.
	Send(ctx context.Context, cmd Command) error
}
