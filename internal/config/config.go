// Package config loads and validates the session configuration for go-collar.
// The configuration is read once at session start and is immutable afterwards;
// a config that fails validation prevents the session from starting at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Env var overrides for secrets so credentials can stay out of the YAML file.
const (
	EnvAPIKey   = "COLLAR_API_KEY"
	EnvUsername = "COLLAR_USERNAME"
)

// Duration wraps time.Duration so YAML values like "5s" parse naturally.
type Duration time.Duration

// UnmarshalYAML parses a duration string ("500ms", "5s", "2m").
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full session configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Web    Web    `yaml:"web"`
	OSC    OSC    `yaml:"osc"`
	Speech Speech `yaml:"speech"`
	Device Device `yaml:"device"`

	Modes      Modes      `yaml:"modes"`
	Difficulty Difficulty `yaml:"difficulty"`

	Focus         Meter   `yaml:"focus"`
	Proximity     Meter   `yaml:"proximity"`
	Command       Command `yaml:"command"`
	Scold         Words   `yaml:"scold"`
	SelfReference Words   `yaml:"self_reference"`
	Stretch       Stretch `yaml:"stretch"`

	// MinInterval is the per-target trigger cooldown enforced centrally.
	MinInterval Duration `yaml:"min_interval"`
}

// Web configures the operator dashboard server.
type Web struct {
	Addr string `yaml:"addr"`
}

// OSC configures the avatar-parameter receiver.
type OSC struct {
	Addr string `yaml:"addr"`
}

// Speech configures the transcript websocket client.
type Speech struct {
	URL string `yaml:"url"`
}

// Device holds the stimulus API credentials and per-role targets.
type Device struct {
	APIURL   string            `yaml:"api_url"`
	Username string            `yaml:"username"`
	APIKey   string            `yaml:"api_key"`
	Targets  map[string]Target `yaml:"targets"`
}

// Target identifies one shocker unit.
type Target struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Modes enables/disables individual monitors. Monitors always run and emit;
// the trigger coordinator enforces these flags so a mode can be toggled
// mid-session without restarting anything.
type Modes struct {
	Focus         bool `yaml:"focus"`
	Proximity     bool `yaml:"proximity"`
	Command       bool `yaml:"command"`
	Scold         bool `yaml:"scold"`
	SelfReference bool `yaml:"self_reference"`
	Stretch       bool `yaml:"stretch"`
}

// Difficulty scales rates, timeouts, cooldowns and stimulus strength.
// Each scale is clamped to [0, 2] at load time.
type Difficulty struct {
	DelayScale    float64 `yaml:"delay_scale"`
	CooldownScale float64 `yaml:"cooldown_scale"`
	DurationScale float64 `yaml:"duration_scale"`
	StrengthScale float64 `yaml:"strength_scale"`

	// RateScale multiplies meter fill and drain rates.
	RateScale float64 `yaml:"rate_scale"`
}

// Meter configures one meter monitor (focus or proximity).
type Meter struct {
	Parameter string  `yaml:"parameter"`
	FillRate  float64 `yaml:"fill_rate"`
	DrainRate float64 `yaml:"drain_rate"`
	Max       float64 `yaml:"max"`
	Recovery  float64 `yaml:"recovery"`

	// Staleness freezes the meter when no updates arrive for this long.
	Staleness Duration `yaml:"staleness"`

	// Names spoken by the trainer drain the meter by Penalty (focus only).
	Names   []string `yaml:"names"`
	Penalty float64  `yaml:"penalty"`
}

// Command configures the trick-command monitor.
type Command struct {
	Timeout Duration      `yaml:"timeout"`
	Rules   []CommandRule `yaml:"rules"`

	// ReplaceArmed controls what a new command word does while a session is
	// already armed: false (default) ignores it, true replaces the session.
	ReplaceArmed bool `yaml:"replace_armed"`
}

// CommandRule maps spoken phrases to the pose that completes the command.
type CommandRule struct {
	Name       string      `yaml:"name"`
	Phrases    []string    `yaml:"phrases"`
	Conditions []Condition `yaml:"conditions"`
}

// Condition is one boolean avatar parameter requirement.
type Condition struct {
	Parameter string `yaml:"parameter"`
	Value     bool   `yaml:"value"`
}

// Words configures a word-list matcher monitor (scold, self-reference).
type Words struct {
	Words     []string `yaml:"words"`
	WholeWord bool     `yaml:"whole_word"`
}

// Stretch configures the stretch monitor.
type Stretch struct {
	Threshold float64         `yaml:"threshold"`
	Max       float64         `yaml:"max"`
	Cooldown  Duration        `yaml:"cooldown"`
	Targets   []StretchTarget `yaml:"targets"`
}

// StretchTarget names the float parameter to watch and an optional boolean
// grab parameter that must be true for the stretch value to count.
type StretchTarget struct {
	Parameter string `yaml:"parameter"`
	Grab      string `yaml:"grab"`
}

// Default returns a config with the same baseline tunables the desktop app
// ships with. Vocabulary lists and credentials must still be supplied.
func Default() Config {
	return Config{
		LogLevel: "info",
		Web:      Web{Addr: ":8090"},
		OSC:      OSC{Addr: "127.0.0.1:9001"},
		Speech:   Speech{URL: "ws://127.0.0.1:8765/transcripts"},
		Device:   Device{APIURL: "https://do.pishock.com/api/apioperate"},
		Modes: Modes{
			Focus:     true,
			Proximity: true,
			Command:   true,
		},
		Difficulty: Difficulty{
			DelayScale:    1.0,
			CooldownScale: 1.0,
			DurationScale: 1.0,
			StrengthScale: 1.0,
			RateScale:     1.0,
		},
		Focus: Meter{
			Parameter: "Trainer/EyeContact",
			FillRate:  0.2,
			DrainRate: 0.02,
			Max:       1.0,
			Recovery:  0.5,
			Staleness: Duration(3 * time.Second),
			Penalty:   0.15,
		},
		Proximity: Meter{
			Parameter: "Trainer/Near",
			FillRate:  0.2,
			DrainRate: 0.05,
			Max:       1.0,
			Recovery:  0.5,
			Staleness: Duration(3 * time.Second),
		},
		Command: Command{
			Timeout: Duration(5 * time.Second),
			Rules:   DefaultCommandRules(),
		},
		Scold:         Words{WholeWord: true},
		SelfReference: Words{WholeWord: true},
		Stretch: Stretch{
			Threshold: 0.5,
			Max:       1.0,
			Cooldown:  Duration(2 * time.Second),
			Targets: []StretchTarget{
				{Parameter: "LeftEar_Stretch", Grab: "LeftEar_IsGrabbed"},
				{Parameter: "RightEar_Stretch", Grab: "RightEar_IsGrabbed"},
				{Parameter: "Tail_Stretch", Grab: "Tail_IsGrabbed"},
			},
		},
		MinInterval: Duration(2 * time.Second),
	}
}

// DefaultCommandRules returns the built-in trick vocabulary. Phrase lists
// include common speech-to-text mishearings ("paw" -> "pour", etc.).
func DefaultCommandRules() []CommandRule {
	return []CommandRule{
		{
			Name:    "paw",
			Phrases: []string{"paw", "poor", "pour", "pore"},
			Conditions: []Condition{
				{Parameter: "Trainer/Paw", Value: true},
			},
		},
		{
			Name:    "sit",
			Phrases: []string{"sit"},
			Conditions: []Condition{
				{Parameter: "Trainer/HandNearFloor", Value: true},
				{Parameter: "Trainer/FootNearFloor", Value: true},
				{Parameter: "Trainer/HipsNearFloor", Value: true},
				{Parameter: "Trainer/HeadNearFloor", Value: false},
			},
		},
		{
			Name:    "lay down",
			Phrases: []string{"lay down", "laydown", "lie down", "layed down"},
			Conditions: []Condition{
				{Parameter: "Trainer/HandNearFloor", Value: true},
				{Parameter: "Trainer/FootNearFloor", Value: true},
				{Parameter: "Trainer/HipsNearFloor", Value: true},
				{Parameter: "Trainer/HeadNearFloor", Value: true},
			},
		},
		{
			Name:    "beg",
			Phrases: []string{"beg"},
			Conditions: []Condition{
				{Parameter: "Trainer/HandNearFloor", Value: false},
				{Parameter: "Trainer/FootNearFloor", Value: true},
				{Parameter: "Trainer/HipsNearFloor", Value: true},
				{Parameter: "Trainer/HeadNearFloor", Value: false},
			},
		},
		{
			Name:    "play dead",
			Phrases: []string{"play dead", "playdead", "played dead"},
			Conditions: []Condition{
				{Parameter: "Trainer/HandNearFloor", Value: false},
				{Parameter: "Trainer/FootNearFloor", Value: false},
				{Parameter: "Trainer/HipsNearFloor", Value: true},
				{Parameter: "Trainer/HeadNearFloor", Value: true},
			},
		},
		{
			Name:    "roll over",
			Phrases: []string{"roll over", "rollover"},
			Conditions: []Condition{
				{Parameter: "Trainer/HandNearFloor", Value: false},
				{Parameter: "Trainer/FootNearFloor", Value: false},
				{Parameter: "Trainer/HipsNearFloor", Value: true},
				{Parameter: "Trainer/HeadNearFloor", Value: true},
			},
		},
	}
}

// Load reads a YAML config file on top of the defaults and applies env
// overrides. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.clampDifficulty()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Device.APIKey = key
	}
	if user := os.Getenv(EnvUsername); user != "" {
		c.Device.Username = user
	}
}

func (c *Config) clampDifficulty() {
	c.Difficulty.DelayScale = clampScale(c.Difficulty.DelayScale)
	c.Difficulty.CooldownScale = clampScale(c.Difficulty.CooldownScale)
	c.Difficulty.DurationScale = clampScale(c.Difficulty.DurationScale)
	c.Difficulty.StrengthScale = clampScale(c.Difficulty.StrengthScale)
	c.Difficulty.RateScale = clampScale(c.Difficulty.RateScale)
}

func clampScale(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}

// Validation errors.
var (
	ErrMissingCredentials = errors.New("config: device credentials missing")
	ErrMissingTarget      = errors.New("config: no device target configured")
	ErrEmptyVocabulary    = errors.New("config: enabled monitor has empty vocabulary")
	ErrInvalidMeter       = errors.New("config: invalid meter settings")
	ErrInvalidStretch     = errors.New("config: invalid stretch settings")
	ErrInvalidCommand     = errors.New("config: invalid command settings")
)

// Validate checks that every enabled monitor is fully configured.
// The session must not start partially configured.
func (c *Config) Validate() error {
	anyEnabled := c.Modes.Focus || c.Modes.Proximity || c.Modes.Command ||
		c.Modes.Scold || c.Modes.SelfReference || c.Modes.Stretch

	if anyEnabled {
		if c.Device.Username == "" || c.Device.APIKey == "" {
			return ErrMissingCredentials
		}
		if len(c.Device.Targets) == 0 {
			return ErrMissingTarget
		}
		for role, target := range c.Device.Targets {
			if target.Code == "" {
				return fmt.Errorf("%w: target %q has no share code", ErrMissingTarget, role)
			}
		}
	}

	if c.Modes.Focus {
		if err := validateMeter("focus", c.Focus); err != nil {
			return err
		}
	}
	if c.Modes.Proximity {
		if err := validateMeter("proximity", c.Proximity); err != nil {
			return err
		}
	}
	if c.Modes.Command {
		if c.Command.Timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidCommand)
		}
		if len(c.Command.Rules) == 0 {
			return fmt.Errorf("%w: command rules", ErrEmptyVocabulary)
		}
		for _, rule := range c.Command.Rules {
			if rule.Name == "" || len(rule.Phrases) == 0 || len(rule.Conditions) == 0 {
				return fmt.Errorf("%w: rule %q incomplete", ErrInvalidCommand, rule.Name)
			}
		}
	}
	if c.Modes.Scold && len(c.Scold.Words) == 0 {
		return fmt.Errorf("%w: scold words", ErrEmptyVocabulary)
	}
	if c.Modes.Stretch {
		if len(c.Stretch.Targets) == 0 {
			return fmt.Errorf("%w: no targets", ErrInvalidStretch)
		}
		if c.Stretch.Max <= c.Stretch.Threshold {
			return fmt.Errorf("%w: max must exceed threshold", ErrInvalidStretch)
		}
	}
	if c.MinInterval < 0 {
		return errors.New("config: min_interval must not be negative")
	}

	return nil
}

func validateMeter(name string, m Meter) error {
	if m.Parameter == "" {
		return fmt.Errorf("%w: %s has no parameter", ErrInvalidMeter, name)
	}
	if m.Max <= 0 || m.FillRate < 0 || m.DrainRate <= 0 {
		return fmt.Errorf("%w: %s rates", ErrInvalidMeter, name)
	}
	if m.Recovery < 0 || m.Recovery > m.Max {
		return fmt.Errorf("%w: %s recovery outside [0, max]", ErrInvalidMeter, name)
	}
	return nil
}
