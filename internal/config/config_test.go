package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reclustering.KMax != 10 {
		t.Fatalf("expected default k_max=10, got %d", cfg.Reclustering.KMax)
	}
	if cfg.Daemon.ConflictResolution != ConflictSkip {
		t.Fatalf("expected default conflict resolution skip, got %v", cfg.Daemon.ConflictResolution)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.toml")
	contents := `
[daemon]
library_paths = ["/music"]
conflict_resolution = "overwrite"

[reclustering]
k_max = 4
clustering_method = "gmm"
projection_method = "tsne"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Daemon.LibraryPaths) != 1 || cfg.Daemon.LibraryPaths[0] != "/music" {
		t.Fatalf("unexpected library paths: %v", cfg.Daemon.LibraryPaths)
	}
	if cfg.Reclustering.KMax != 4 {
		t.Fatalf("expected k_max=4, got %d", cfg.Reclustering.KMax)
	}
}

func TestValidateRejectsBadConflictResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.toml")
	contents := "[daemon]\nconflict_resolution = \"explode\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad conflict_resolution")
	}
}

func TestEnvOverridesDBPath(t *testing.T) {
	t.Setenv("CADENCE_DB_PATH", "/tmp/override.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override to apply, got %q", cfg.Daemon.DBPath)
	}
}
