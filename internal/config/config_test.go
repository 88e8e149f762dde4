package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collar.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
device:
  username: tester
  api_key: secret
  targets:
    pet:
      code: ABC123
      name: collar
`

func TestLoad_DefaultsSurviveMinimalFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Focus.FillRate != 0.2 || cfg.Focus.DrainRate != 0.02 {
		t.Errorf("focus defaults lost: %+v", cfg.Focus)
	}
	if cfg.Command.Timeout.Std() != 5*time.Second {
		t.Errorf("got command timeout %v, want 5s", cfg.Command.Timeout.Std())
	}
	if len(cfg.Command.Rules) == 0 {
		t.Error("default command rules missing")
	}
	if cfg.Stretch.Threshold != 0.5 {
		t.Errorf("got stretch threshold %v, want 0.5", cfg.Stretch.Threshold)
	}
	if !cfg.Modes.Focus || cfg.Modes.Scold {
		t.Errorf("unexpected default modes: %+v", cfg.Modes)
	}
}

func TestLoad_OverridesAndDurationParsing(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
command:
  timeout: 7500ms
difficulty:
  strength_scale: 0.5
focus:
  drain_rate: 0.04
min_interval: 3s
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Command.Timeout.Std() != 7500*time.Millisecond {
		t.Errorf("got timeout %v, want 7.5s", cfg.Command.Timeout.Std())
	}
	if cfg.Difficulty.StrengthScale != 0.5 {
		t.Errorf("got strength scale %v, want 0.5", cfg.Difficulty.StrengthScale)
	}
	if cfg.Focus.DrainRate != 0.04 {
		t.Errorf("got drain rate %v, want 0.04", cfg.Focus.DrainRate)
	}
	if cfg.MinInterval.Std() != 3*time.Second {
		t.Errorf("got min_interval %v, want 3s", cfg.MinInterval.Std())
	}
}

func TestLoad_ClampsDifficulty(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
difficulty:
  delay_scale: 5.0
  cooldown_scale: -1.0
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Difficulty.DelayScale != 2.0 {
		t.Errorf("got delay scale %v, want clamp to 2", cfg.Difficulty.DelayScale)
	}
	if cfg.Difficulty.CooldownScale != 0.0 {
		t.Errorf("got cooldown scale %v, want clamp to 0", cfg.Difficulty.CooldownScale)
	}
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvUsername, "env-user")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.APIKey != "env-key" || cfg.Device.Username != "env-user" {
		t.Errorf("env overrides not applied: %+v", cfg.Device)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
command:
  timeout: soon
`))
	if err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Device.Username = "tester"
		cfg.Device.APIKey = "secret"
		cfg.Device.Targets = map[string]Target{"pet": {Code: "ABC"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing key", func(c *Config) { c.Device.APIKey = "" }, ErrMissingCredentials},
		{"no targets", func(c *Config) { c.Device.Targets = nil }, ErrMissingTarget},
		{"target without code", func(c *Config) {
			c.Device.Targets = map[string]Target{"pet": {Name: "collar"}}
		}, ErrMissingTarget},
		{"scold enabled without words", func(c *Config) { c.Modes.Scold = true }, ErrEmptyVocabulary},
		{"self reference falls back to builtin words", func(c *Config) {
			c.Modes.SelfReference = true
		}, nil},
		{"meter without parameter", func(c *Config) { c.Focus.Parameter = "" }, ErrInvalidMeter},
		{"meter recovery above max", func(c *Config) { c.Focus.Recovery = 2.0 }, ErrInvalidMeter},
		{"command without rules", func(c *Config) { c.Command.Rules = nil }, ErrEmptyVocabulary},
		{"command rule without conditions", func(c *Config) {
			c.Command.Rules = []CommandRule{{Name: "sit", Phrases: []string{"sit"}}}
		}, ErrInvalidCommand},
		{"stretch max below threshold", func(c *Config) {
			c.Modes.Stretch = true
			c.Stretch.Max = 0.4
		}, ErrInvalidStretch},
		{"all modes disabled needs no credentials", func(c *Config) {
			c.Modes = Modes{}
			c.Device = Device{}
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
