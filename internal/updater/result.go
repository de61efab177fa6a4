package updater

import (
	"encoding/json"
	"time"
)

// Result summarizes one sync run.
type Result struct {
	IndexType  string        `json:"indexType"`
	RunID      string        `json:"runId"`
	WindowFrom time.Time     `json:"windowFrom"`
	WindowTo   time.Time     `json:"windowTo"`
	Pages      int           `json:"pages"`
	Records    int           `json:"records"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Renamed    int           `json:"renamed"`
	Unchanged  int           `json:"unchanged"`
	Rejected   int           `json:"rejected"`
	Skipped    int           `json:"skipped"`
	Deleted    int           `json:"deleted"`
	Missing    int           `json:"missing"`
	Duration   time.Duration `json:"duration"`
}

// StartResult reports the outcome of Start.
type StartResult struct {
	Accepted bool   `json:"accepted"`
	Busy     bool   `json:"busy"`
	RunID    string `json:"runId,omitempty"`
	Status   Status `json:"status"`
}

// Status is the externally visible state of one index type.
type Status struct {
	IndexType      string          `json:"indexType"`
	InProgress     bool            `json:"inProgress"`
	RunID          string          `json:"runId,omitempty"`
	LastSyncTime   time.Time       `json:"lastSyncTime"`
	LastStartedAt  time.Time       `json:"lastStartedAt"`
	LastFinishedAt time.Time       `json:"lastFinishedAt"`
	LastError      string          `json:"lastError,omitempty"`
	LastResult     json.RawMessage `json:"lastResult,omitempty"`
}
