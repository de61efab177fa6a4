package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SyncStatus describes the sync state of one index type.
type SyncStatus struct {
	IndexType      string          `json:"indexType"`
	InProgress     bool            `json:"inProgress"`
	RunID          string          `json:"runId,omitempty"`
	LastSyncTime   string          `json:"lastSyncTime,omitempty"`
	LastStartedAt  string          `json:"lastStartedAt,omitempty"`
	LastFinishedAt string          `json:"lastFinishedAt,omitempty"`
	LastError      string          `json:"lastError,omitempty"`
	LastResult     json.RawMessage `json:"lastResult,omitempty"`
}

// StartSyncResponse answers a sync request.
type StartSyncResponse struct {
	Accepted bool       `json:"accepted"`
	Busy     bool       `json:"busy"`
	RunID    string     `json:"runId,omitempty"`
	Message  string     `json:"message"`
	Status   SyncStatus `json:"status"`
}

// AuthorityEntry is the stored payload of one authority.
type AuthorityEntry struct {
	NativeID   string `json:"nativeId"`
	AltID      string `json:"altId,omitempty"`
	SourceID   string `json:"sourceId,omitempty"`
	ViafURI    string `json:"viafUri,omitempty"`
	Coords     string `json:"coords,omitempty"`
	Heading    string `json:"heading"`
	HeadingTag string `json:"headingTag"`
}

// AuthorityRecord merges internal and external ids for one requested id.
type AuthorityRecord struct {
	ID              string            `json:"id"`
	IDsFromInternal *AuthorityEntry   `json:"idsFromInternal"`
	IDsFromExternal map[string]string `json:"idsFromExternal"`
}

// StatsResponse counts the key families of the index.
type StatsResponse struct {
	Entries     int `json:"entries"`
	Headings    int `json:"headings"`
	ExternalIDs int `json:"externalIds"`
	Bibs        int `json:"bibs"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	LockFilePath string       `json:"lockFilePath"`
	IndexPath    string       `json:"indexPath"`
	StatePath    string       `json:"statePath"`
	Syncs        []SyncStatus `json:"syncs"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}
