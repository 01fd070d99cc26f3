package core

// service.go wires the sync engine's collaborators together and owns the
// run-level bookkeeping both directions share: the advisory per-scope lock,
// the single aggregate stats write at the end of a run, and the top-level
// error boundary (operation failures are reported in the summary, recorded as
// the scope's last error, and never thrown past this package).

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oskarlind/sheetsync/internal/logging"
)

// Layout describes where data lives in the sheet. Row 1 header and data from
// row 2 is the convention; both are configurable.
type Layout struct {
	HeaderRow    int
	DataStartRow int
}

// DefaultLayout is the conventional sheet layout.
func DefaultLayout() Layout {
	return Layout{HeaderRow: 1, DataStartRow: 2}
}

// Options controls a single sync invocation.
type Options struct {
	// DryRun executes the full decision logic but skips every external
	// write, returning the intended changes in the summary preview.
	DryRun bool
}

// Service orchestrates pull and push synchronization for one scope.
type Service struct {
	sheet  SourceTransport
	pull   PullStore
	push   PushStore
	ident  *Identity
	scope  string
	layout Layout

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a sync service over the given collaborators.
func NewService(sheet SourceTransport, pull PullStore, push PushStore, scope string, layout Layout) *Service {
	if layout.HeaderRow <= 0 {
		layout.HeaderRow = 1
	}
	if layout.DataStartRow <= layout.HeaderRow {
		layout.DataStartRow = layout.HeaderRow + 1
	}
	return &Service{
		sheet:  sheet,
		pull:   pull,
		push:   push,
		ident:  NewIdentity(sheet, pull),
		scope:  scope,
		layout: layout,
		now:    time.Now,
	}
}

// Scope returns the sync scope this service operates on.
func (s *Service) Scope() string {
	return s.scope
}

// Status returns the stored bookkeeping for the service's scope.
func (s *Service) Status(ctx context.Context) (*ScopeStatus, error) {
	return s.pull.Status(ctx, s.scope)
}

// logger returns a run-scoped structured logger.
func (s *Service) logger(ctx context.Context, direction string, opts Options) *slog.Logger {
	return logging.FromContext(ctx).With(
		"scope", s.scope,
		"direction", direction,
		"dry_run", opts.DryRun,
	)
}

// acquireLock takes the advisory per-scope lock unless the run is a dry run.
// Contention comes back as ok=false with a nil error; a store failure comes
// back as an error so the caller can report the real cause. The release func
// is safe to defer either way.
func (s *Service) acquireLock(ctx context.Context, store ScopeStore, opts Options) (bool, func(), error) {
	if opts.DryRun {
		return true, func() {}, nil
	}

	ok, err := store.AcquireLock(ctx, s.scope)
	if err != nil {
		return false, func() {}, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return false, func() {}, nil
	}
	return true, func() {
		// Release even when the surrounding context was cancelled.
		if err := store.ReleaseLock(context.WithoutCancel(ctx), s.scope); err != nil {
			slog.Warn("release sync lock", "scope", s.scope, "error", err)
		}
	}, nil
}

// lockedSummary is the summary returned when another sync holds the lock.
func lockedSummary() *SyncSummary {
	return &SyncSummary{
		Success: false,
		Errors:  []RowError{{Message: "sync already in progress for this scope"}},
	}
}

// abort finalizes a run after a top-level failure: the summary flips to
// failure with one synthetic error entry, and the scope's last error is
// updated (best effort, skipped on dry runs).
func (s *Service) abort(ctx context.Context, log *slog.Logger, store ScopeStore, summary *SyncSummary, opts Options, err error) *SyncSummary {
	log.Error("sync aborted", "error", err)
	summary.Success = false
	summary.Errors = append(summary.Errors, RowError{Message: err.Error()})

	if !opts.DryRun {
		if rerr := store.RecordSyncError(ctx, s.scope, err.Error()); rerr != nil {
			log.Warn("record sync error", "error", rerr)
		}
	}
	return summary
}

// finish persists the aggregate stats exactly once and closes out the run.
func (s *Service) finish(ctx context.Context, log *slog.Logger, store ScopeStore, summary *SyncSummary, opts Options) *SyncSummary {
	if opts.DryRun {
		return summary
	}

	status := "ok"
	if !summary.Success {
		status = "error"
	}
	stats := SyncStats{
		LastSyncAt: s.now(),
		Status:     status,
		Created:    summary.Created,
		Updated:    summary.Updated,
	}
	if err := store.RecordSyncStats(ctx, s.scope, stats); err != nil {
		log.Warn("record sync stats", "error", err)
	}

	log.Info("sync finished",
		"created", summary.Created,
		"updated", summary.Updated,
		"errors", len(summary.Errors),
	)
	return summary
}
