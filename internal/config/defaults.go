package config

const (
	defaultDataDir              = "~/.local/share/authindex"
	defaultLogDir               = "~/.local/share/authindex/logs"
	defaultAPIBind              = "127.0.0.1:7590"
	defaultUpstreamBaseURL      = "https://data.bn.org.pl/api/institutions"
	defaultUpstreamTimeout      = 30
	defaultUpstreamRetries      = 5
	defaultUpstreamPageLimit    = 100
	defaultUpstreamRPS          = 4
	defaultSyncOverlapDays      = 2
	defaultSyncTimeoutMinutes   = 120
	defaultSyncIntervalMinutes  = 1440
	defaultIndexBatchSize       = 1000
	defaultIndexGCMinutes       = 10
	defaultEnrichWorkers        = 8
	defaultEnrichLookupChunk    = 500
	defaultEnrichPublicBaseURL  = "http://127.0.0.1:7590"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultExternalIDsQueryTmpl = "SELECT bn__descr_nlp_id, result__%s_id, score, max_score FROM results"
)

const (
	// IndexTypeAuthority names the heading/id identity index.
	IndexTypeAuthority = "authority"
	// IndexTypeBibliographic names the raw bibliographic record index.
	IndexTypeBibliographic = "bibliographic"
)

// DefaultHeadingTags lists the heading-bearing authority tags in priority order.
// The final tag is the least-preferred one for tie-breaking.
var DefaultHeadingTags = []string{"100", "110", "111", "150", "151", "155", "130"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Upstream: Upstream{
			BaseURL:           defaultUpstreamBaseURL,
			TimeoutSeconds:    defaultUpstreamTimeout,
			RetryAttempts:     defaultUpstreamRetries,
			PageLimit:         defaultUpstreamPageLimit,
			RequestsPerSecond: defaultUpstreamRPS,
		},
		Sync: Sync{
			OverlapDays:     defaultSyncOverlapDays,
			TimeoutMinutes:  defaultSyncTimeoutMinutes,
			IntervalMinutes: defaultSyncIntervalMinutes,
			IndexTypes:      []string{IndexTypeAuthority, IndexTypeBibliographic},
		},
		Index: Index{
			HeadingTags:       append([]string(nil), DefaultHeadingTags...),
			BatchSize:         defaultIndexBatchSize,
			GCIntervalMinutes: defaultIndexGCMinutes,
		},
		Enrich: Enrich{
			Workers:       defaultEnrichWorkers,
			LookupChunk:   defaultEnrichLookupChunk,
			PublicBaseURL: defaultEnrichPublicBaseURL,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
