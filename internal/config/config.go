// Package config loads the webpilot.yml project file plus .env overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/probelab/webpilot/internal/telemetry"
	"github.com/probelab/webpilot/internal/types"
)

// Config represents the webpilot.yml file contents.
type Config struct {
	Server       ServerConfig          `yaml:"server"`
	Browser      BrowserConfig         `yaml:"browser"`
	Defaults     RunDefaults           `yaml:"defaults"`
	Devices      []types.DeviceProfile `yaml:"devices"`
	ThirdParty   ThirdPartyConfig      `yaml:"third-party"`
	Design       *telemetry.DesignSpec `yaml:"design-spec"`
	TrackerDebug bool                  `yaml:"tracker-debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type BrowserConfig struct {
	Headless bool   `yaml:"headless"`
	Flags    string `yaml:"flags"`
}

// RunDefaults seed RunOptions for runs that do not set their own.
type RunDefaults struct {
	MaxSteps         int            `yaml:"max-steps"`
	TimeBudget       time.Duration  `yaml:"time-budget"`
	TestMode         types.StepMode `yaml:"test-mode"`
	ApprovalMode     string         `yaml:"approval-mode"`
	MaxBlockers      int            `yaml:"max-blockers"`
	VisualThreshold  float64        `yaml:"visual-threshold"`
	DiagnoserTimeout time.Duration  `yaml:"diagnoser-timeout"`
	FailOnStuck      bool           `yaml:"fail-on-stuck"`
}

// ThirdPartyConfig extends the built-in vendor classification table.
type ThirdPartyConfig struct {
	Domains map[string]string `yaml:"domains"` // domain suffix -> category
}

// Default returns the configuration used when no webpilot.yml exists.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: "127.0.0.1:8440"},
		Browser: BrowserConfig{Headless: true},
		Defaults: RunDefaults{
			MaxSteps:         25,
			TimeBudget:       5 * time.Minute,
			TestMode:         types.ModeLLM,
			ApprovalMode:     string(types.ApprovalManual),
			VisualThreshold:  1.0,
			DiagnoserTimeout: 30 * time.Second,
		},
		Devices: []types.DeviceProfile{
			{Name: "desktop", Width: 1280, Height: 800},
			{Name: "mobile", Width: 390, Height: 844, Mobile: true},
		},
	}
}

// Load reads path, layering the file over defaults. A missing file is not
// an error; .env values (WEBPILOT_*) override both.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	// .env is optional; load errors other than absence are surfaced.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WEBPILOT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("WEBPILOT_BROWSER_FLAGS"); v != "" {
		cfg.Browser.Flags = v
	}
	if v := os.Getenv("WEBPILOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("WEBPILOT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Defaults.MaxSteps = n
		}
	}
	if v := os.Getenv("WEBPILOT_TIME_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Defaults.TimeBudget = d
		}
	}
	if v := os.Getenv("WEBPILOT_APPROVAL_MODE"); v != "" {
		cfg.Defaults.ApprovalMode = v
	}
}

// Validate checks field ranges and cross-references.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Defaults.MaxSteps <= 0 {
		return errors.New("defaults.max-steps must be positive")
	}
	switch types.ApprovalMode(cfg.Defaults.ApprovalMode) {
	case types.ApprovalManual, types.ApprovalAuto, types.ApprovalAutoOnClean:
	default:
		return fmt.Errorf("unknown approval mode %q", cfg.Defaults.ApprovalMode)
	}
	if cfg.Defaults.VisualThreshold < 0 || cfg.Defaults.VisualThreshold > 100 {
		return errors.New("defaults.visual-threshold must be within [0, 100]")
	}
	seen := map[string]bool{}
	for _, d := range cfg.Devices {
		if d.Name == "" {
			return errors.New("device profiles need a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate device profile %q", d.Name)
		}
		seen[d.Name] = true
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("device %q needs positive dimensions", d.Name)
		}
	}
	return nil
}

// Apply installs the config's process-wide effects, currently the
// third-party domain table extensions.
func (c *Config) Apply() {
	if len(c.ThirdParty.Domains) > 0 {
		telemetry.MergeKnownDomains(c.ThirdParty.Domains)
	}
}

// Device resolves a device profile by name; empty name means the first
// configured profile.
func (c *Config) Device(name string) (types.DeviceProfile, error) {
	if name == "" && len(c.Devices) > 0 {
		return c.Devices[0], nil
	}
	for _, d := range c.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return types.DeviceProfile{}, fmt.Errorf("unknown device profile %q", name)
}

// RunOptions builds the option set for a new run from the defaults.
func (c *Config) RunOptions() types.RunOptions {
	return types.RunOptions{
		MaxSteps:   c.Defaults.MaxSteps,
		TimeBudget: c.Defaults.TimeBudget,
		TestMode:   c.Defaults.TestMode,
		VisualDiff: types.VisualDiffOptions{Threshold: c.Defaults.VisualThreshold},
		Approval: types.ApprovalPolicy{
			Mode:        types.ApprovalMode(c.Defaults.ApprovalMode),
			MaxBlockers: c.Defaults.MaxBlockers,
		},
		FailOnStuck: c.Defaults.FailOnStuck,
	}
}

