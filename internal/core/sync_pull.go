package core

// sync_pull.go drives a full source-to-store synchronization.
//
// Control flow is strictly sequential: read header, map columns, read data,
// classify/validate/decode each row (collecting per-row errors, never
// aborting the batch for one bad row), resolve identities in one store round
// trip, then create and update in batches. New rows get their identity token
// written back to the sheet before the store create is issued, bounding the
// window in which a crash could orphan a record.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oskarlind/sheetsync/internal/schema"
)

// pullCandidate is a row that survived classification and validation.
type pullCandidate struct {
	sheetRow int // 1-based source row
	rec      *Record
}

// Pull synchronizes sheet rows into the store. The returned summary is the
// only way failures surface; Pull never returns an error.
func (s *Service) Pull(ctx context.Context, opts Options) *SyncSummary {
	summary := &SyncSummary{Success: true, Errors: []RowError{}}
	log := s.logger(ctx, "pull", opts)

	ok, release, err := s.acquireLock(ctx, s.pull, opts)
	if err != nil {
		return s.abort(ctx, log, s.pull, summary, opts, err)
	}
	if !ok {
		return lockedSummary()
	}
	defer release()

	header, err := s.sheet.ReadRows(ctx, s.layout.HeaderRow, s.layout.HeaderRow)
	if err != nil {
		return s.abort(ctx, log, s.pull, summary, opts, fmt.Errorf("read header: %w", err))
	}
	if len(header) == 0 || isEmptyRow(header[0]) {
		return s.abort(ctx, log, s.pull, summary, opts, fmt.Errorf("header row %d is empty", s.layout.HeaderRow))
	}

	cm, err := MapHeader(header[0])
	if err != nil {
		return s.abort(ctx, log, s.pull, summary, opts, err)
	}

	rows, err := s.sheet.ReadRows(ctx, s.layout.DataStartRow, 0)
	if err != nil {
		return s.abort(ctx, log, s.pull, summary, opts, fmt.Errorf("read data rows: %w", err))
	}

	candidates := s.decodeRows(rows, cm, summary)

	// An empty data range is a successful no-op; the store is not touched.
	if summary.TotalRows == 0 {
		log.Info("no data rows to pull")
		return summary
	}

	tokens := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.rec.Token != "" {
			tokens = append(tokens, c.rec.Token)
		}
	}

	resolved, err := s.ident.ResolveBatch(ctx, tokens)
	if err != nil {
		return s.abort(ctx, log, s.pull, summary, opts, err)
	}

	var creates, updates []pullCandidate
	for _, c := range candidates {
		if id, exists := resolved[c.rec.Token]; exists {
			c.rec.StoreID = id
			updates = append(updates, c)
		} else {
			creates = append(creates, c)
		}
	}

	if opts.DryRun {
		for _, c := range creates {
			summary.Preview = append(summary.Preview, PreviewEntry{
				Action: "create", Row: c.sheetRow, Name: c.rec.Name, Date: c.rec.Date,
			})
		}
		for _, c := range updates {
			summary.Preview = append(summary.Preview, PreviewEntry{
				Action: "update", Row: c.sheetRow, RecordID: c.rec.StoreID,
				Name: c.rec.Name, Date: c.rec.Date,
			})
		}
		summary.Created = len(creates)
		summary.Updated = len(updates)
		return summary
	}

	s.executeCreates(ctx, log, cm, creates, summary)
	s.executeUpdates(ctx, log, updates, summary)

	return s.finish(ctx, log, s.pull, summary, opts)
}

// decodeRows runs classification, date validation, and decoding over every
// data row, recording row-scoped errors and returning the survivors.
func (s *Service) decodeRows(rows [][]string, cm ColumnMap, summary *SyncSummary) []pullCandidate {
	var candidates []pullCandidate

	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		sheetRow := s.layout.DataStartRow + i
		summary.TotalRows++

		cls, err := Classify(row, cm)
		if err != nil {
			summary.Errors = append(summary.Errors, RowError{Row: sheetRow, Message: err.Error()})
			continue
		}
		if err := CheckDate(row, cm); err != nil {
			summary.Errors = append(summary.Errors, RowError{Row: sheetRow, Message: err.Error()})
			continue
		}

		rec := Decode(row, cm)
		rec.Kind = cls.Kind
		rec.Name = cls.Name
		candidates = append(candidates, pullCandidate{sheetRow: sheetRow, rec: rec})
	}

	return candidates
}

// executeCreates assigns tokens, writes them back to the sheet, then issues
// one batch create. A token that cannot be written back is a warning, not a
// rollback: the store create still proceeds and a later pull may duplicate
// the row. That risk window is accepted and documented.
func (s *Service) executeCreates(ctx context.Context, log *slog.Logger, cm ColumnMap, creates []pullCandidate, summary *SyncSummary) {
	if len(creates) == 0 {
		return
	}

	identityCol := cm.IndexOf(schema.IdentityField)
	records := make([]*Record, 0, len(creates))
	for _, c := range creates {
		token := EnsureToken(c.rec)
		if identityCol >= 0 {
			if err := s.sheet.WriteCell(ctx, c.sheetRow, identityCol+1, token); err != nil {
				log.Warn("token write-back failed, store create proceeding",
					"row", c.sheetRow, "error", err)
			}
		}
		records = append(records, c.rec)
	}

	if _, err := s.pull.CreateMany(ctx, records); err != nil {
		log.Error("batch create failed", "count", len(records), "error", err)
		summary.Success = false
		summary.Errors = append(summary.Errors, RowError{
			Message: fmt.Sprintf("create %d records: %v", len(records), err),
		})
		return
	}
	summary.Created = len(records)
}

// executeUpdates merges decoded rows into their resolved store records.
func (s *Service) executeUpdates(ctx context.Context, log *slog.Logger, updates []pullCandidate, summary *SyncSummary) {
	if len(updates) == 0 {
		return
	}

	batch := make([]Update, 0, len(updates))
	for _, c := range updates {
		batch = append(batch, Update{StoreID: c.rec.StoreID, Record: c.rec})
	}

	if err := s.pull.UpdateMany(ctx, batch); err != nil {
		log.Error("batch update failed", "count", len(batch), "error", err)
		summary.Success = false
		summary.Errors = append(summary.Errors, RowError{
			Message: fmt.Sprintf("update %d records: %v", len(batch), err),
		})
		return
	}
	summary.Updated = len(batch)
}
