package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateEnrich(); err != nil {
		return err
	}
	if err := c.validateExternalIDs(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUpstream() error {
	parsed, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return errors.New("upstream.requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.OverlapDays < 0 {
		return errors.New("sync.overlap_days must not be negative")
	}
	if c.Sync.IntervalMinutes < 0 {
		return errors.New("sync.interval_minutes must not be negative")
	}
	for _, indexType := range c.Sync.IndexTypes {
		if !ValidIndexType(indexType) {
			return fmt.Errorf("sync.index_types: unsupported value %q", indexType)
		}
	}
	return nil
}

func (c *Config) validateEnrich() error {
	parsed, err := url.Parse(c.Enrich.PublicBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("enrich.public_base_url must be an absolute URL, got %q", c.Enrich.PublicBaseURL)
	}
	return nil
}

func (c *Config) validateExternalIDs() error {
	seen := make(map[string]struct{}, len(c.ExternalIDs.Sources))
	for i, src := range c.ExternalIDs.Sources {
		if src.Name == "" {
			return fmt.Errorf("external_ids.sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("external_ids.sources: duplicate source %q", src.Name)
		}
		seen[src.Name] = struct{}{}
		if strings.TrimSpace(src.Database) == "" {
			return fmt.Errorf("external_ids.sources[%d].database must be set", i)
		}
		switch src.Format {
		case "geonames", "wikidata", "verbatim":
		default:
			return fmt.Errorf("external_ids.sources[%d].format: unsupported value %q", i, src.Format)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// ValidIndexType reports whether indexType names a supported index.
func ValidIndexType(indexType string) bool {
	switch indexType {
	case IndexTypeAuthority, IndexTypeBibliographic:
		return true
	default:
		return false
	}
}
