package updater

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"authindex/internal/authority"
	"authindex/internal/config"
	"authindex/internal/identity"
	"authindex/internal/logging"
	"authindex/internal/marc"
	"authindex/internal/metrics"
)

type authoritySync struct {
	ctx    context.Context
	s      *Synchronizer
	dups   *authority.DuplicateLog
	result *Result
	logger *slog.Logger
}

func (a *authoritySync) applyPage(page marc.Page) error {
	a.result.Pages++
	ctx := a.ctx
	for _, rec := range page.Records {
		a.result.Records++
		if err := a.applyRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// applyRecord resolves a candidate against the entry stored for its native
// id and the current owner of its heading key, never against other records
// of the same run.
func (a *authoritySync) applyRecord(ctx context.Context, rec *marc.Record) error {
	ix := a.s.index
	candidate, err := a.s.extractor.Extract(rec)
	if err != nil {
		a.result.Skipped++
		a.logger.Debug("updated record skipped", logging.String("native_id", rec.ControlValue("001")), logging.Error(err))
		return nil
	}
	encoded, err := identity.EncodeEntry(candidate)
	if err != nil {
		return err
	}
	raw, ok, err := ix.RawEntry(ctx, candidate.NativeID)
	if err != nil {
		return fmt.Errorf("read stored entry %s: %w", candidate.NativeID, err)
	}
	var stored *authority.Entry
	if ok {
		if stored, err = identity.DecodeEntry(raw); err != nil {
			return err
		}
		if stored.NormalizedHeading() == candidate.NormalizedHeading() && bytes.Equal(raw, encoded) {
			a.result.Unchanged++
			return nil
		}
	}

	decision, err := a.contest(ctx, stored, candidate)
	if err != nil {
		return err
	}
	if !decision.Accept {
		a.result.Rejected++
		return nil
	}

	switch {
	case stored == nil:
		if err := ix.Put(ctx, candidate); err != nil {
			return fmt.Errorf("add %s: %w", candidate.NativeID, err)
		}
		a.result.Added++
		metrics.RecordSyncChange(config.IndexTypeAuthority, "added")
	case stored.NormalizedHeading() != candidate.NormalizedHeading():
		if err := ix.Rename(ctx, stored, candidate); err != nil {
			return fmt.Errorf("rename %s: %w", candidate.NativeID, err)
		}
		a.result.Renamed++
		metrics.RecordSyncChange(config.IndexTypeAuthority, "renamed")
		a.logger.Debug("entry renamed",
			logging.String("native_id", candidate.NativeID),
			logging.String("old_heading", stored.NormalizedHeading()),
			logging.String("new_heading", candidate.NormalizedHeading()),
		)
	default:
		if err := ix.Put(ctx, candidate); err != nil {
			return fmt.Errorf("update %s: %w", candidate.NativeID, err)
		}
		a.result.Updated++
		metrics.RecordSyncChange(config.IndexTypeAuthority, "updated")
	}
	return nil
}

// contest decides whether candidate may be written. A heading key owned by
// another native id is a collision and goes to the duplicate log. A payload
// change under the candidate's own heading is decided against its stored
// version and only logged at debug level.
func (a *authoritySync) contest(ctx context.Context, stored, candidate *authority.Entry) (authority.Decision, error) {
	heading := candidate.NormalizedHeading()
	owner, err := a.s.index.HeadingWinner(ctx, heading)
	if err != nil {
		return authority.Decision{}, fmt.Errorf("read heading owner for %s: %w", candidate.NativeID, err)
	}
	if owner != nil && owner.NativeID != candidate.NativeID {
		decision := a.s.policy.Decide(owner, candidate)
		a.dups.Record(heading, owner, candidate, decision)
		metrics.RecordDuplicate(string(decision.Kind), decision.Accept)
		return decision, nil
	}
	if stored == nil || stored.NormalizedHeading() != heading {
		return a.s.policy.Decide(nil, candidate), nil
	}
	decision := a.s.policy.Decide(stored, candidate)
	a.logger.Debug("payload change for existing entry",
		logging.String("native_id", candidate.NativeID),
		logging.String("decision", decision.Reason()),
		logging.Bool("accepted", decision.Accept),
	)
	return decision, nil
}

func (a *authoritySync) deleteIDs(ids []string) error {
	ctx := a.ctx
	for _, id := range ids {
		entry, err := a.s.index.Entry(ctx, id)
		if err != nil {
			return fmt.Errorf("read %s for deletion: %w", id, err)
		}
		if entry == nil {
			a.result.Missing++
			continue
		}
		if err := a.s.index.Remove(ctx, entry); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		a.result.Deleted++
		metrics.RecordSyncChange(config.IndexTypeAuthority, "deleted")
	}
	return nil
}
