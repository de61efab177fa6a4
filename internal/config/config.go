package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Upstream contains configuration for the upstream cataloging service.
type Upstream struct {
	BaseURL           string  `toml:"base_url"`
	HealthURL         string  `toml:"health_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RetryAttempts     int     `toml:"retry_attempts"`
	PageLimit         int     `toml:"page_limit"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Sync contains configuration for incremental synchronization.
type Sync struct {
	OverlapDays     int      `toml:"overlap_days"`
	TimeoutMinutes  int      `toml:"timeout_minutes"`
	IntervalMinutes int      `toml:"interval_minutes"`
	IndexTypes      []string `toml:"index_types"`
}

// Index contains configuration for the identity index store.
type Index struct {
	HeadingTags       []string `toml:"heading_tags"`
	BatchSize         int      `toml:"batch_size"`
	GCIntervalMinutes int      `toml:"gc_interval_minutes"`
}

// Enrich contains configuration for the enrichment resolver.
type Enrich struct {
	Workers       int    `toml:"workers"`
	LookupChunk   int    `toml:"lookup_chunk"`
	PublicBaseURL string `toml:"public_base_url"`
}

// ExternalSource describes one scored candidate table consumed by the joiner.
type ExternalSource struct {
	Name     string `toml:"name"`
	Database string `toml:"database"`
	Query    string `toml:"query"`
	Format   string `toml:"format"`
	Key      string `toml:"key"`
}

// ExternalIDs contains configuration for the external identifier join.
type ExternalIDs struct {
	Sources []ExternalSource `toml:"sources"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for authindex.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Upstream: cataloging service endpoints, timeouts, and pacing
//   - Sync: incremental sync window overlap, timeout, and schedule
//   - Index: heading tag priority and write batching
//   - Enrich: resolver parallelism and public base URL
//   - ExternalIDs: scored candidate tables for the joiner
//   - Logging: log format, level, and retention
type Config struct {
	Paths       Paths       `toml:"paths"`
	Upstream    Upstream    `toml:"upstream"`
	Sync        Sync        `toml:"sync"`
	Index       Index       `toml:"index"`
	Enrich      Enrich      `toml:"enrich"`
	ExternalIDs ExternalIDs `toml:"external_ids"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/authindex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("authindex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IndexPath returns the badger directory holding the identity index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.DataDir, "index")
}

// StatePath returns the SQLite database holding sync cursors.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.DataDir, "state.db")
}

// LockDir returns the directory holding per-index-type write locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// LockPath returns the lock file guarding writes to one index type.
func (c *Config) LockPath(indexType string) string {
	return filepath.Join(c.LockDir(), indexType+".lock")
}

// DaemonLockPath returns the lock file that keeps one daemon per data dir.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.LockDir(), "daemon.lock")
}

// UpstreamTimeout returns the per-request upstream timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// SyncTimeout returns the upper bound on one sync run.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Sync.TimeoutMinutes) * time.Minute
}

// SyncInterval returns the daemon's scheduled sync interval; zero disables scheduling.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}

// SyncOverlap returns the trailing margin re-processed by every sync window.
func (c *Config) SyncOverlap() time.Duration {
	return time.Duration(c.Sync.OverlapDays) * 24 * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
