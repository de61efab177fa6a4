package updater

import (
	"context"
	"fmt"
	"log/slog"

	"authindex/internal/config"
	"authindex/internal/logging"
	"authindex/internal/marc"
	"authindex/internal/metrics"
	"authindex/internal/textutil"
)

type bibSync struct {
	ctx    context.Context
	s      *Synchronizer
	result *Result
	logger *slog.Logger
}

func (b *bibSync) applyPage(page marc.Page) error {
	b.result.Pages++
	ctx := b.ctx
	for _, rec := range page.Records {
		b.result.Records++
		id := textutil.NormalizeBibID(rec.ControlValue("001"))
		if id == "" {
			b.result.Skipped++
			b.logger.Debug("bib record without control number skipped", logging.Int("record", b.result.Records))
			continue
		}
		if err := b.s.index.PutBib(ctx, id, marc.EncodeRecord(rec)); err != nil {
			return fmt.Errorf("store bib %s: %w", id, err)
		}
		b.result.Updated++
		metrics.RecordSyncChange(config.IndexTypeBibliographic, "updated")
	}
	return nil
}

func (b *bibSync) deleteIDs(ids []string) error {
	ctx := b.ctx
	for _, raw := range ids {
		id := textutil.NormalizeBibID(raw)
		_, ok, err := b.s.index.Bib(ctx, id)
		if err != nil {
			return fmt.Errorf("read bib %s: %w", id, err)
		}
		if !ok {
			b.result.Missing++
			continue
		}
		if err := b.s.index.RemoveBib(ctx, id); err != nil {
			return fmt.Errorf("delete bib %s: %w", id, err)
		}
		b.result.Deleted++
		metrics.RecordSyncChange(config.IndexTypeBibliographic, "deleted")
	}
	return nil
}
