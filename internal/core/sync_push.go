package core

// sync_push.go drives a full store-to-source synchronization.
//
// Records with a locatable row are rewritten in place, one write per row.
// Records without a token, and records whose token no longer matches any
// sheet row, are appended in a single batch write, with formula row
// references rewritten against their predicted destination rows before the
// append. Ordering matters: the append is the only row-count mutation in the
// run, so predicted destinations are exact.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oskarlind/sheetsync/internal/schema"
)

// pushItem is one record headed for the batch append.
type pushItem struct {
	rec    *Record
	row    []string
	orphan bool // token exists in store but no sheet row carries it
}

// Push synchronizes store records into the sheet. The returned summary is the
// only way failures surface; Push never returns an error.
func (s *Service) Push(ctx context.Context, opts Options) *SyncSummary {
	summary := &SyncSummary{Success: true, Errors: []RowError{}}
	log := s.logger(ctx, "push", opts)

	ok, release, err := s.acquireLock(ctx, s.push, opts)
	if err != nil {
		return s.abort(ctx, log, s.push, summary, opts, err)
	}
	if !ok {
		return lockedSummary()
	}
	defer release()

	records, err := s.push.ListRecords(ctx, s.scope)
	if err != nil {
		return s.abort(ctx, log, s.push, summary, opts, fmt.Errorf("list records: %w", err))
	}
	summary.TotalRecords = len(records)

	header, err := s.sheet.ReadRows(ctx, s.layout.HeaderRow, s.layout.HeaderRow)
	if err != nil {
		return s.abort(ctx, log, s.push, summary, opts, fmt.Errorf("read header: %w", err))
	}
	if len(header) == 0 || isEmptyRow(header[0]) {
		return s.abort(ctx, log, s.push, summary, opts, fmt.Errorf("header row %d is empty", s.layout.HeaderRow))
	}

	cm, err := MapHeader(header[0])
	if err != nil {
		return s.abort(ctx, log, s.push, summary, opts, err)
	}
	identityCol := cm.IndexOf(schema.IdentityField) + 1 // 1-based sheet column

	var appends []pushItem
	for _, rec := range records {
		hadToken := rec.Token != ""
		row := Encode(rec, cm)

		if !hadToken {
			appends = append(appends, pushItem{rec: rec, row: row})
			continue
		}

		loc, err := s.ident.LocateRow(ctx, identityCol, rec.Token)
		if err != nil {
			summary.Errors = append(summary.Errors, RowError{
				RecordID: rec.StoreID, Message: err.Error(),
			})
			continue
		}
		if loc == 0 {
			// Orphaned identity: duplicate-append policy. The appended row
			// keeps the existing token, so the next sync resolves it again.
			log.Warn("no sheet row carries token, re-appending record",
				"record_id", rec.StoreID)
			appends = append(appends, pushItem{rec: rec, row: row, orphan: true})
			continue
		}

		final := RewriteRowReferences(row, loc)
		if opts.DryRun {
			summary.Preview = append(summary.Preview, PreviewEntry{
				Action: "update", Row: loc, RecordID: rec.StoreID,
				Name: rec.Name, Date: rec.Date,
			})
			summary.Updated++
			continue
		}
		if err := s.sheet.WriteRow(ctx, loc, final); err != nil {
			summary.Errors = append(summary.Errors, RowError{
				RecordID: rec.StoreID,
				Message:  fmt.Sprintf("write row %d: %v", loc, err),
			})
			continue
		}
		summary.Updated++
	}

	if err := s.executeAppends(ctx, log, appends, summary, opts); err != nil {
		return s.abort(ctx, log, s.push, summary, opts, err)
	}

	return s.finish(ctx, log, s.push, summary, opts)
}

// executeAppends writes every new and orphaned record in one batch append,
// then tags the truly new store records with their assigned tokens. Orphans
// already carry their token in the store and only count as extra appends.
func (s *Service) executeAppends(ctx context.Context, log *slog.Logger, appends []pushItem, summary *SyncSummary, opts Options) error {
	if len(appends) == 0 {
		return nil
	}

	if opts.DryRun {
		for _, it := range appends {
			summary.Preview = append(summary.Preview, PreviewEntry{
				Action: "create", RecordID: it.rec.StoreID,
				Name: it.rec.Name, Date: it.rec.Date,
			})
			if !it.orphan {
				summary.Created++
			}
		}
		return nil
	}

	count, err := s.sheet.RowCount(ctx)
	if err != nil {
		return fmt.Errorf("read sheet row count: %w", err)
	}

	rows := make([][]string, len(appends))
	for i, it := range appends {
		rows[i] = RewriteRowReferences(it.row, count+1+i)
	}

	first, err := s.sheet.AppendRows(ctx, rows)
	if err != nil {
		for _, it := range appends {
			summary.Errors = append(summary.Errors, RowError{
				RecordID: it.rec.StoreID,
				Message:  fmt.Sprintf("append row: %v", err),
			})
		}
		summary.Success = false
		return nil
	}
	if first != count+1 {
		// The sheet grew between the row-count read and the append, so the
		// rewritten formulas target the wrong rows.
		log.Warn("append landed on an unexpected row, formula references may be mistargeted",
			"predicted", count+1, "actual", first)
	}

	for _, it := range appends {
		if it.orphan {
			continue
		}
		summary.Created++
		if err := s.push.TagWithToken(ctx, it.rec.StoreID, it.rec.Token); err != nil {
			// Same accepted risk window as pull-side token write-back.
			log.Warn("tag record with token failed",
				"record_id", it.rec.StoreID, "error", err)
		}
	}
	return nil
}
