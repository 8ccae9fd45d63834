package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/network"
	"github.com/rennerdo30/auto-proxy/internal/profile"
	"github.com/rennerdo30/auto-proxy/internal/target"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

// DefaultPath is the application config location.
const DefaultPath = "~/.auto-proxy/config.yaml"

// EnvPrefix prefixes environment overrides, e.g. AUTOPROXY_LOG_LEVEL.
const EnvPrefix = "AUTOPROXY"

// AppConfig is the auto-proxy configuration.
type AppConfig struct {
	ProfilesDir string         `yaml:"profiles_dir" json:"profiles_dir"`
	Targets     TargetsConfig  `yaml:"targets" json:"targets"`
	Network     NetworkConfig  `yaml:"network" json:"network"`
	Logging     logging.Config `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// TargetsConfig selects and tunes the target adapters.
type TargetsConfig struct {
	// Enabled lists target names; empty means every target.
	Enabled []string `yaml:"enabled" json:"enabled"`
	// Backup keeps a timestamped copy of each file before rewriting it.
	Backup bool `yaml:"backup" json:"backup"`
	// Paths overrides the file a target edits, keyed by target name.
	Paths map[string]string `yaml:"paths,omitempty" json:"paths,omitempty"`
	// CommandTimeout bounds each external command (gsettings, npm, ...).
	CommandTimeout Duration `yaml:"command_timeout" json:"command_timeout"`
}

// NetworkConfig selects how networks are enumerated.
type NetworkConfig struct {
	Backend string `yaml:"backend" json:"backend"` // nmcli, dbus
	Sudo    bool   `yaml:"sudo" json:"sudo"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath is written after every apply when non-empty.
	TextfilePath string `yaml:"textfile_path,omitempty" json:"textfile_path,omitempty"`
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		ProfilesDir: profile.DefaultDir,
		Targets: TargetsConfig{
			Backup:         false,
			CommandTimeout: Duration(10 * time.Second),
		},
		Network: NetworkConfig{
			Backend: network.BackendNMCLI,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Validate validates the application configuration.
func (c *AppConfig) Validate() error {
	if c.ProfilesDir == "" {
		return fmt.Errorf("profiles_dir is required: %w", util.ErrInvalidConfig)
	}
	for _, name := range c.Targets.Enabled {
		if _, err := target.New(strings.ToLower(name), target.Options{}); err != nil {
			return fmt.Errorf("targets.enabled: %w: %w", util.ErrInvalidConfig, err)
		}
	}
	for name := range c.Targets.Paths {
		if _, err := target.New(name, target.Options{}); err != nil {
			return fmt.Errorf("targets.paths: %w: %w", util.ErrInvalidConfig, err)
		}
	}
	if c.Targets.CommandTimeout < 0 {
		return fmt.Errorf("targets.command_timeout must be non-negative: %w", util.ErrInvalidConfig)
	}
	switch c.Network.Backend {
	case network.BackendNMCLI, network.BackendDBus:
	default:
		return fmt.Errorf("network.backend must be %q or %q, got %q: %w",
			network.BackendNMCLI, network.BackendDBus, c.Network.Backend, util.ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %v: %w", err, util.ErrInvalidConfig)
	}
	return nil
}

// envOverlay lists the settings that can be overridden from the environment.
// Pointers distinguish "unset" from the zero value.
type envOverlay struct {
	ProfilesDir     string   `envconfig:"PROFILES_DIR"`
	Targets         []string `envconfig:"TARGETS"`
	Backup          *bool    `envconfig:"BACKUP"`
	CommandTimeout  string   `envconfig:"COMMAND_TIMEOUT"`
	NetworkBackend  string   `envconfig:"NETWORK_BACKEND"`
	Sudo            *bool    `envconfig:"SUDO"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	LogFormat       string   `envconfig:"LOG_FORMAT"`
	LogOutput       string   `envconfig:"LOG_OUTPUT"`
	MetricsTextfile string   `envconfig:"METRICS_TEXTFILE"`
}

// ApplyEnv overrides c with AUTOPROXY_* environment variables.
func (c *AppConfig) ApplyEnv() error {
	var env envOverlay
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %v: %w", err, util.ErrInvalidConfig)
	}
	setString(&c.ProfilesDir, env.ProfilesDir)
	if len(env.Targets) > 0 {
		c.Targets.Enabled = env.Targets
	}
	if env.Backup != nil {
		c.Targets.Backup = *env.Backup
	}
	if env.CommandTimeout != "" {
		if err := c.Targets.CommandTimeout.Decode(env.CommandTimeout); err != nil {
			return fmt.Errorf("%s_COMMAND_TIMEOUT: %v: %w", EnvPrefix, err, util.ErrInvalidConfig)
		}
	}
	setString(&c.Network.Backend, env.NetworkBackend)
	if env.Sudo != nil {
		c.Network.Sudo = *env.Sudo
	}
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.Format, env.LogFormat)
	setString(&c.Logging.Output, env.LogOutput)
	setString(&c.Metrics.TextfilePath, env.MetricsTextfile)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadApp loads the configuration at path on top of the defaults, applies
// environment overrides and validates the result. A missing file is not an
// error.
func LoadApp(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	expanded, err := fsutil.Expand(path)
	if err != nil {
		return cfg, err
	}
	if err := Load(expanded, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TargetOptions converts the target settings for target.Select.
func (c *AppConfig) TargetOptions(runner target.Runner) target.Options {
	return target.Options{
		Runner: runner,
		Backup: c.Targets.Backup,
		Paths:  c.Targets.Paths,
	}
}

// Bootstrap prepares a first run: it creates the config and profile
// directories and writes the default config when none exists. It reports
// whether a new config file was written.
func Bootstrap(path string) (bool, error) {
	expanded, err := fsutil.Expand(path)
	if err != nil {
		return false, err
	}

	cfg := DefaultAppConfig()
	_, statErr := os.Stat(expanded)
	exists := statErr == nil
	if exists {
		if err := Load(expanded, &cfg); err != nil {
			return false, err
		}
	}

	profilesDir, err := fsutil.Expand(cfg.ProfilesDir)
	if err != nil {
		return false, err
	}
	for _, dir := range []string{filepath.Dir(expanded), profilesDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if exists {
		return false, nil
	}
	if err := Save(expanded, cfg); err != nil {
		return false, err
	}
	return true, nil
}
