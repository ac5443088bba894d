package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const appName = "dirsweep"

type LogCfg struct {
	Path          string `yaml:"path" json:"path"`                     // Explicit audit log file; empty selects the default location
	Disabled      bool   `yaml:"disabled" json:"disabled"`             // Disable the JSONL audit log entirely
	Dir           string `yaml:"dir" json:"dir"`                       // Directory for default-named audit logs and diagnostics
	RetentionDays int    `yaml:"retention_days" json:"retention_days"` // Prune audit logs older than this (default: 30)
	Diagnostics   bool   `yaml:"diagnostics" json:"diagnostics"`       // Also write operator diagnostics to <dir>/dirsweep.log
}

type MetricsCfg struct {
	Textfile string `yaml:"textfile" json:"textfile"` // node_exporter textfile written at end of run
	Listen   string `yaml:"listen" json:"listen"`     // Serve /metrics and /health during the run (e.g. ":9090")
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"` // Per-worker CPU budget; 0 or 100 disables throttling
}

type Config struct {
	Workers        int            `yaml:"workers" json:"workers"`
	FollowSymlinks bool           `yaml:"follow_symlinks" json:"follow_symlinks"`
	Dedupe         *bool          `yaml:"dedupe" json:"dedupe"` // nil means the default (true)
	RestrictTo     []string       `yaml:"restrict_to" json:"restrict_to"`
	AllowRoots     []string       `yaml:"allow_roots" json:"allow_roots"`
	ProtectedRoots []string       `yaml:"protected_roots" json:"protected_roots"`
	Log            LogCfg         `yaml:"log" json:"log"`
	DatabasePath   string         `yaml:"database_path" json:"database_path"` // SQLite run history; empty disables it
	Metrics        MetricsCfg     `yaml:"metrics" json:"metrics"`
	ResourceLimits ResourceLimits `yaml:"resource_limits" json:"resource_limits"`
}

var (
	errNegativeWorkers = errors.New("workers cannot be negative")
	errTooManyWorkers  = errors.New("workers exceeds 256")
	errInvalidPath     = errors.New("path must be absolute")
	errNegativeDays    = errors.New("log.retention_days cannot be negative")
	errCPUPercent      = errors.New("resource_limits.max_cpu_percent must be between 0 and 100")
)

// ErrInvalid marks every validation failure so callers can tell a bad file
// from an unreadable one.
var ErrInvalid = errors.New("invalid configuration")

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	_ = c.validateAndDefault()
	return c
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// LoadOptional loads path when given, else the default location if a file
// exists there, else Default().
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	def, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(def); err != nil {
		return Default(), nil
	}
	return Load(def)
}

// DefaultPath is $XDG_CONFIG_HOME/dirsweep/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.yaml"), nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// empty file
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Workers < 0 {
		return errNegativeWorkers
	}
	if c.Workers > 256 {
		return errTooManyWorkers
	}

	if c.Dedupe == nil {
		t := true
		c.Dedupe = &t
	}

	if c.Log.RetentionDays < 0 {
		return errNegativeDays
	}
	if c.Log.RetentionDays == 0 {
		c.Log.RetentionDays = 30 // Default: keep audit logs for 30 days
	}

	if c.ResourceLimits.MaxCPUPercent < 0 || c.ResourceLimits.MaxCPUPercent > 100 {
		return errCPUPercent
	}

	for _, list := range [][]string{c.RestrictTo, c.AllowRoots, c.ProtectedRoots} {
		for i, p := range list {
			cp, err := cleanAbsolute(p)
			if err != nil {
				return err
			}
			list[i] = cp
		}
	}

	return nil
}

// DedupeEnabled reports the effective dedupe setting.
func (c *Config) DedupeEnabled() bool {
	return c.Dedupe == nil || *c.Dedupe
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}
