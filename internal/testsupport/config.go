package testsupport

import (
	"path/filepath"
	"testing"

	"authindex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Upstream.BaseURL = "http://upstream.invalid/api"
	cfgVal.Upstream.HealthURL = "http://upstream.invalid/api/authorities.json?limit=1"
	cfgVal.Upstream.RetryAttempts = 1
	cfgVal.Upstream.RequestsPerSecond = 0
	cfgVal.Upstream.PageLimit = 2
	cfgVal.Index.BatchSize = 2
	cfgVal.Index.GCIntervalMinutes = 0
	cfgVal.Enrich.Workers = 2
	cfgVal.Enrich.LookupChunk = 2
	cfgVal.Enrich.PublicBaseURL = "http://authindex.test"
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithUpstream points the config at a fake upstream base URL.
func WithUpstream(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upstream.BaseURL = baseURL
		b.cfg.Upstream.HealthURL = baseURL + "/authorities.json?limit=1"
	}
}

// WithHeadingTags overrides the heading tag priority.
func WithHeadingTags(tags ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Index.HeadingTags = append([]string(nil), tags...)
	}
}

// WithExternalSource appends one external id source whose database lives in
// the test's temp dir.
func WithExternalSource(name, format, key, dbName string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ExternalIDs.Sources = append(b.cfg.ExternalIDs.Sources, config.ExternalSource{
			Name:     name,
			Database: filepath.Join(b.baseDir, dbName),
			Query:    "SELECT bn__descr_nlp_id, result__" + name + "_id, score, max_score FROM results",
			Format:   format,
			Key:      key,
		})
	}
}
