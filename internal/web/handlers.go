package web

// handlers.go exposes the sync engine over HTTP. Sync endpoints honor the
// dry_run query parameter and always return a SyncSummary; the summary's
// success flag, not the HTTP status, carries the sync outcome (a failed sync
// is still a successfully handled request).

import (
	"context"
	"net/http"
	"strconv"

	"github.com/oskarlind/sheetsync/internal/core"
	"github.com/oskarlind/sheetsync/internal/logging"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handlePull runs a source-to-store sync.
// POST /api/sync/pull?dry_run=1
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	s.runSync(w, r, s.service.Pull)
}

// handlePush runs a store-to-source sync.
// POST /api/sync/push?dry_run=1
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	s.runSync(w, r, s.service.Push)
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, run func(context.Context, core.Options) *core.SyncSummary) {
	opts := core.Options{DryRun: boolParam(r, "dry_run")}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Sync.Timeout)
	defer cancel()

	summary := run(ctx, opts)

	log := logging.FromContext(r.Context())
	log.Info("sync requested",
		"path", r.URL.Path,
		"dry_run", opts.DryRun,
		"success", summary.Success,
		"created", summary.Created,
		"updated", summary.Updated,
	)

	writeJSON(w, summary)
}

// handleStatus returns the stored bookkeeping for the configured scope.
// GET /api/sync/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("scope status", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load sync status")
		return
	}
	writeJSON(w, status)
}

// boolParam interprets a query parameter as a boolean, defaulting to false.
func boolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
