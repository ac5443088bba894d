package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
workers: 8
follow_symlinks: true
dedupe: false
restrict_to: [/srv/data/]
allow_roots: [/home/alice]
protected_roots: [/srv/data/keep]
log:
  dir: /var/log/dirsweep
  retention_days: 7
  diagnostics: true
database_path: /var/lib/dirsweep/history.db
metrics:
  textfile: /var/lib/node_exporter/dirsweep.prom
  listen: ":9091"
resource_limits:
  max_cpu_percent: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 8 || !cfg.FollowSymlinks {
		t.Errorf("unexpected workers/follow: %+v", cfg)
	}
	if cfg.DedupeEnabled() {
		t.Error("expected dedupe disabled")
	}
	if len(cfg.RestrictTo) != 1 || cfg.RestrictTo[0] != "/srv/data" {
		t.Errorf("expected cleaned restrict_to, got %v", cfg.RestrictTo)
	}
	if cfg.Log.RetentionDays != 7 || !cfg.Log.Diagnostics {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Metrics.Listen != ":9091" {
		t.Errorf("unexpected metrics listen: %q", cfg.Metrics.Listen)
	}
	if cfg.ResourceLimits.MaxCPUPercent != 50 {
		t.Errorf("unexpected cpu limit: %v", cfg.ResourceLimits.MaxCPUPercent)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.DedupeEnabled() {
		t.Error("dedupe should default to true")
	}
	if cfg.Log.RetentionDays != 30 {
		t.Errorf("retention_days default = %d, want 30", cfg.Log.RetentionDays)
	}
	if cfg.Workers != 0 {
		t.Errorf("workers default = %d, want 0 (auto)", cfg.Workers)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if !cfg.DedupeEnabled() {
		t.Error("dedupe should default to true")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative workers", "workers: -1\n", "negative"},
		{"too many workers", "workers: 1000\n", "256"},
		{"relative restrict", "restrict_to: [data]\n", "absolute"},
		{"empty allow root", "allow_roots: ['']\n", "absolute"},
		{"cpu out of range", "resource_limits:\n  max_cpu_percent: 150\n", "max_cpu_percent"},
		{"negative retention", "log:\n  retention_days: -2\n", "retention_days"},
		{"unknown key", "wrkers: 4\n", "wrkers"},
		{"bad yaml", "workers: [\n", "decode yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrInvalid) {
		t.Error("a missing file is not an invalid configuration")
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Log.RetentionDays != 30 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOptionalUsesDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	dir := filepath.Join(home, "dirsweep")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("workers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Workers)
	}
}
