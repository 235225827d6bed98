// Package config handles configuration for qa-automator.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// App under test
	AppID   string `yaml:"appId"`   // Bundle/application id
	AppPath string `yaml:"appPath"` // Installable artifact (.app/.apk)

	// Driver settings
	MaestroBin      string `yaml:"maestroBin"`      // Maestro executable, defaults to "maestro"
	Device          string `yaml:"device"`          // Target device id
	InstallTool     string `yaml:"installTool"`     // "maestro" or "xcrun"
	SimulatorTarget string `yaml:"simulatorTarget"` // xcrun simctl target, defaults to "booted"
	SkipDeeplink    string `yaml:"skipDeeplink"`    // Deeplink that skips onboarding

	// Execution settings
	MaxAttempts          int  `yaml:"maxAttempts"`          // Attempt ceiling per case
	CommandTimeoutSec    int  `yaml:"commandTimeoutSec"`    // Per-subprocess timeout
	ClearState           bool `yaml:"clearState"`           // Default launch reset flag
	InstallBeforeRun     bool `yaml:"installBeforeRun"`     // Install app before executing
	ReinstallPerScenario bool `yaml:"reinstallPerScenario"` // Clean reinstall on scenario boundary
	InstallOnce          bool `yaml:"installOnce"`          // Install only on first run

	// Scenario grouping
	MaxCasesPerScenario int    `yaml:"maxCasesPerScenario"` // Batch size, defaults to 5
	TargetRootSuite     string `yaml:"targetRootSuite"`     // Restrict grouping to one root suite

	// Paths
	ArtifactsDir       string `yaml:"artifactsDir"`       // Logs, screenshots, flows, stores
	CasesPath          string `yaml:"casesPath"`          // Exported test-case JSON
	TestedPath         string `yaml:"testedPath"`         // Already-executed case ids
	CustomScenarioPath string `yaml:"customScenarioPath"` // Optional user-injected scenario
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaestroBin == "" {
		c.MaestroBin = "maestro"
	}
	if c.InstallTool == "" {
		c.InstallTool = "maestro"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.CommandTimeoutSec <= 0 {
		c.CommandTimeoutSec = 120
	}
	if c.MaxCasesPerScenario <= 0 {
		c.MaxCasesPerScenario = 5
	}
	if c.ArtifactsDir == "" {
		c.ArtifactsDir = "artifacts"
	}
}

// CommandTimeout returns the per-subprocess timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSec) * time.Second
}
