// Package config loads cadence's TOML configuration file and layers
// environment-variable overrides on top, following the teacher's FromEnv
// idiom (simple getenv/boolEnv/intEnv helpers rather than a
// reflection-based env-binding library).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConflictResolution controls what the library scanner does when a newly
// discovered file collides with an existing song by content hash.
type ConflictResolution string

const (
	ConflictSkip      ConflictResolution = "skip"
	ConflictOverwrite ConflictResolution = "overwrite"
	ConflictMerge     ConflictResolution = "merge"
)

// DaemonConfig configures the library scanner and RPC listener.
type DaemonConfig struct {
	LibraryPaths       []string           `toml:"library_paths"`
	ArtistSeparator    string             `toml:"artist_separator"`
	GenreSeparator     string             `toml:"genre_separator"`
	ConflictResolution ConflictResolution `toml:"conflict_resolution"`
	DBPath             string             `toml:"db_path"`
	Addr               string             `toml:"addr"`
	EnableAnalysis     bool               `toml:"enable_analysis"`
}

// ReclusteringConfig configures the library_recluster job.
type ReclusteringConfig struct {
	KMax              int    `toml:"k_max"`
	ClusteringMethod  string `toml:"clustering_method"`
	ProjectionMethod  string `toml:"projection_method"`
	Optimizer         string `toml:"optimizer"`
	GapReferenceCount int    `toml:"gap_reference_count"`
}

// Config is the fully resolved, immutable configuration the daemon loads
// once at startup. Every RPC handler and job receives it (or a copy of
// it) by value -- nothing mutates it after Load returns, which is what
// lets it be shared across goroutines without synchronization.
type Config struct {
	Daemon       DaemonConfig       `toml:"daemon"`
	Reclustering ReclusteringConfig `toml:"reclustering"`
}

// Snapshot is the read-only view of Config handed to RPC handlers and
// jobs; it is the same value type as Config; the name documents intent at
// call sites that only ever read it.
type Snapshot = Config

func defaults() Config {
	return Config{
		Daemon: DaemonConfig{
			LibraryPaths:       []string{"~/Music"},
			ArtistSeparator:    "; ",
			GenreSeparator:     ";",
			ConflictResolution: ConflictSkip,
			DBPath:             "~/.local/share/cadence/library.db",
			Addr:               "127.0.0.1:7700",
			EnableAnalysis:     true,
		},
		Reclustering: ReclusteringConfig{
			KMax:              10,
			ClusteringMethod:  "kmeans",
			ProjectionMethod:  "pca",
			Optimizer:         "gap",
			GapReferenceCount: 20,
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// CADENCE_*-prefixed environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Daemon.ConflictResolution {
	case ConflictSkip, ConflictOverwrite, ConflictMerge:
	default:
		return fmt.Errorf("config: invalid daemon.conflict_resolution %q", c.Daemon.ConflictResolution)
	}
	switch c.Reclustering.ClusteringMethod {
	case "kmeans", "gmm":
	default:
		return fmt.Errorf("config: invalid reclustering.clustering_method %q", c.Reclustering.ClusteringMethod)
	}
	switch c.Reclustering.ProjectionMethod {
	case "none", "pca", "tsne":
	default:
		return fmt.Errorf("config: invalid reclustering.projection_method %q", c.Reclustering.ProjectionMethod)
	}
	if c.Reclustering.KMax < 1 {
		return fmt.Errorf("config: reclustering.k_max must be >= 1, got %d", c.Reclustering.KMax)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := getenv("CADENCE_DB_PATH", ""); v != "" {
		cfg.Daemon.DBPath = v
	}
	if v := getenv("CADENCE_ADDR", ""); v != "" {
		cfg.Daemon.Addr = v
	}
	if v := getenv("CADENCE_LIBRARY_PATHS", ""); v != "" {
		cfg.Daemon.LibraryPaths = strings.Split(v, string(os.PathListSeparator))
	}
	if v := getenv("CADENCE_CONFLICT_RESOLUTION", ""); v != "" {
		cfg.Daemon.ConflictResolution = ConflictResolution(v)
	}
	cfg.Daemon.EnableAnalysis = boolEnv("CADENCE_ENABLE_ANALYSIS", cfg.Daemon.EnableAnalysis)
	cfg.Reclustering.KMax = intEnv("CADENCE_RECLUSTER_K_MAX", cfg.Reclustering.KMax)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
