package api

import (
	"time"

	"authindex/internal/authority"
	"authindex/internal/identity"
	"authindex/internal/service"
	"authindex/internal/updater"
)

// FromSyncStatus converts synchronizer status to its API representation.
func FromSyncStatus(status updater.Status) SyncStatus {
	return SyncStatus{
		IndexType:      status.IndexType,
		InProgress:     status.InProgress,
		RunID:          status.RunID,
		LastSyncTime:   formatTime(status.LastSyncTime),
		LastStartedAt:  formatTime(status.LastStartedAt),
		LastFinishedAt: formatTime(status.LastFinishedAt),
		LastError:      status.LastError,
		LastResult:     status.LastResult,
	}
}

// FromStartResult converts a sync start outcome.
func FromStartResult(res updater.StartResult) StartSyncResponse {
	msg := "sync started"
	if res.Busy {
		msg = "sync already in progress; try again later"
	}
	return StartSyncResponse{
		Accepted: res.Accepted,
		Busy:     res.Busy,
		RunID:    res.RunID,
		Message:  msg,
		Status:   FromSyncStatus(res.Status),
	}
}

// FromEntry converts a stored entry. A nil entry stays nil.
func FromEntry(e *authority.Entry) *AuthorityEntry {
	if e == nil {
		return nil
	}
	return &AuthorityEntry{
		NativeID:   e.NativeID,
		AltID:      e.AltID,
		SourceID:   e.SourceID,
		ViafURI:    e.ViafURI,
		Coords:     e.Coords,
		Heading:    e.Heading,
		HeadingTag: e.HeadingTag,
	}
}

// FromAuthorities converts merged lookups, keeping input order.
func FromAuthorities(in []service.Authority) []AuthorityRecord {
	out := make([]AuthorityRecord, len(in))
	for i, a := range in {
		out[i] = AuthorityRecord{
			ID:              a.ID,
			IDsFromInternal: FromEntry(a.Internal),
			IDsFromExternal: a.External,
		}
	}
	return out
}

// FromStats converts index statistics.
func FromStats(s identity.Stats) StatsResponse {
	return StatsResponse{
		Entries:     s.Entries,
		Headings:    s.Headings,
		ExternalIDs: s.ExternalIDs,
		Bibs:        s.Bibs,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
