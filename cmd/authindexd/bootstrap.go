package main

import (
	"path/filepath"
	"strings"

	"authindex/internal/config"
	"authindex/internal/logging"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// retentionTargets lists the per-run duplicate logs. The rolling daemon log
// is never pruned.
func retentionTargets(cfg *config.Config) []logging.RetentionTarget {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return nil
	}
	return []logging.RetentionTarget{
		{
			Dir:     filepath.Join(cfg.Paths.LogDir, "duplicates"),
			Pattern: "*.log",
		},
		{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, "authindex.log")},
		},
	}
}
