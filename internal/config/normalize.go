package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpstream()
	c.normalizeSync()
	c.normalizeIndex()
	c.normalizeEnrich()
	if err := c.normalizeExternalIDs(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("AUTHINDEX_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeUpstream() {
	if value, ok := os.LookupEnv("AUTHINDEX_UPSTREAM_URL"); ok && strings.TrimSpace(value) != "" {
		c.Upstream.BaseURL = value
	}
	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = defaultUpstreamBaseURL
	}
	c.Upstream.HealthURL = strings.TrimSpace(c.Upstream.HealthURL)
	if c.Upstream.HealthURL == "" {
		c.Upstream.HealthURL = c.Upstream.BaseURL + "/authorities.json?limit=1"
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = defaultUpstreamTimeout
	}
	if c.Upstream.RetryAttempts <= 0 {
		c.Upstream.RetryAttempts = defaultUpstreamRetries
	}
	if c.Upstream.PageLimit <= 0 {
		c.Upstream.PageLimit = defaultUpstreamPageLimit
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.TimeoutMinutes <= 0 {
		c.Sync.TimeoutMinutes = defaultSyncTimeoutMinutes
	}
	types := make([]string, 0, len(c.Sync.IndexTypes))
	seen := make(map[string]struct{}, len(c.Sync.IndexTypes))
	for _, value := range c.Sync.IndexTypes {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		types = append(types, normalized)
	}
	c.Sync.IndexTypes = types
}

func (c *Config) normalizeIndex() {
	tags := make([]string, 0, len(c.Index.HeadingTags))
	for _, tag := range c.Index.HeadingTags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, DefaultHeadingTags...)
	}
	c.Index.HeadingTags = tags
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = defaultIndexBatchSize
	}
}

func (c *Config) normalizeEnrich() {
	if c.Enrich.Workers <= 0 {
		c.Enrich.Workers = defaultEnrichWorkers
	}
	if c.Enrich.LookupChunk <= 0 {
		c.Enrich.LookupChunk = defaultEnrichLookupChunk
	}
	c.Enrich.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Enrich.PublicBaseURL), "/")
	if c.Enrich.PublicBaseURL == "" {
		c.Enrich.PublicBaseURL = defaultEnrichPublicBaseURL
	}
}

func (c *Config) normalizeExternalIDs() error {
	for i := range c.ExternalIDs.Sources {
		src := &c.ExternalIDs.Sources[i]
		src.Name = strings.ToLower(strings.TrimSpace(src.Name))
		src.Format = strings.ToLower(strings.TrimSpace(src.Format))
		if src.Format == "" {
			src.Format = "verbatim"
		}
		src.Key = strings.TrimSpace(src.Key)
		if src.Key == "" {
			src.Key = defaultSourceKey(src.Name, src.Format)
		}
		src.Query = strings.TrimSpace(src.Query)
		if src.Query == "" && src.Name != "" {
			src.Query = fmt.Sprintf(defaultExternalIDsQueryTmpl, src.Name)
		}
		if strings.TrimSpace(src.Database) == "" {
			continue
		}
		var err error
		if src.Database, err = expandPath(src.Database); err != nil {
			return fmt.Errorf("external_ids.sources[%d].database: %w", i, err)
		}
	}
	return nil
}

func defaultSourceKey(name, format string) string {
	switch format {
	case "geonames", "wikidata":
		return format + "_uri"
	default:
		return name + "_id"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
