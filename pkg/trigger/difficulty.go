package trigger

import (
	"math"
	"time"
)

// Scaling is the difficulty axis: multipliers for timeouts, cooldowns,
// stimulus duration and stimulus strength. Neutral is 1.0 everywhere;
// every scale is clamped to [0, 2].
type Scaling struct {
	Delay    float64
	Cooldown float64
	Duration float64
	Strength float64
}

// NeutralScaling returns the identity scaling.
func NeutralScaling() Scaling {
	return Scaling{Delay: 1, Cooldown: 1, Duration: 1, Strength: 1}
}

// Clamped returns the scaling with every factor limited to [0, 2].
func (s Scaling) Clamped() Scaling {
	return Scaling{
		Delay:    clampScale(s.Delay),
		Cooldown: clampScale(s.Cooldown),
		Duration: clampScale(s.Duration),
		Strength: clampScale(s.Strength),
	}
}

func clampScale(v float64) float64 {
	return math.Min(2, math.Max(0, v))
}

// Levels holds the base stimulus parameters for one signal kind.
// The effective intensity interpolates between Min and Max by severity,
// then applies the strength scale.
type Levels struct {
	MinIntensity int
	MaxIntensity int
	BaseDuration time.Duration
}

// DefaultLevels returns the per-kind base levels.
func DefaultLevels() map[Kind]Levels {
	return map[Kind]Levels{
		KindFocus:         {MinIntensity: 10, MaxIntensity: 50, BaseDuration: time.Second},
		KindProximity:     {MinIntensity: 10, MaxIntensity: 50, BaseDuration: time.Second},
		KindCommand:       {MinIntensity: 35, MaxIntensity: 35, BaseDuration: time.Second},
		KindScold:         {MinIntensity: 30, MaxIntensity: 30, BaseDuration: time.Second},
		KindStretch:       {MinIntensity: 20, MaxIntensity: 40, BaseDuration: time.Second},
		KindSelfReference: {MinIntensity: 20, MaxIntensity: 20, BaseDuration: time.Second},
	}
}

// Intensity maps severity through the level range and the strength scale,
// clamped to the device's 0-100 range.
func (l Levels) Intensity(severity float64, s Scaling) int {
	severity = math.Min(1, math.Max(0, severity))
	raw := float64(l.MinIntensity) + severity*float64(l.MaxIntensity-l.MinIntensity)
	scaled := raw * clampScale(s.Strength)
	return int(math.Min(100, math.Max(0, math.Round(scaled))))
}

// Duration applies the duration scale to the base duration, with a floor
// of 100ms so a scaled-down pulse still reaches the device.
func (l Levels) Duration(s Scaling) time.Duration {
	d := time.Duration(float64(l.BaseDuration) * clampScale(s.Duration))
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}
