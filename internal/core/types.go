// Package core implements the spreadsheet-to-database synchronization engine.
// This package has no transport or storage dependencies and can be driven by
// any frontend.
package core

import (
	"context"
	"time"

	"github.com/oskarlind/sheetsync/internal/schema"
)

// ColumnMap maps zero-based column indexes to field definitions. It is rebuilt
// from the live header row on every sync and never persisted.
type ColumnMap map[int]schema.Field

// IndexOf returns the column index of a canonical field name, or -1.
func (cm ColumnMap) IndexOf(name string) int {
	for idx, f := range cm {
		if f.Name == name {
			return idx
		}
	}
	return -1
}

// Width returns the number of cells a row needs to cover every mapped column.
func (cm ColumnMap) Width() int {
	max := -1
	for idx := range cm {
		if idx > max {
			max = idx
		}
	}
	return max + 1
}

// Event kinds produced by classification.
const (
	KindTwoParty    = "two-party"
	KindSingleParty = "single-party"
	KindStandalone  = "standalone"
)

// Origin identifies which side of the sync a record was materialized from.
type Origin string

const (
	OriginSheet Origin = "sheet"
	OriginStore Origin = "store"
)

// Record is the semantic unit of synchronization: one event.
//
// Attributes holds every field the registry marks as Attribute (status, venue,
// notes as strings; the stats columns as float64). Fields absent from
// Attributes were blank in the source and must be preserved, not cleared.
type Record struct {
	StoreID          string
	Token            string
	Kind             string
	Name             string
	Date             string // YYYY-MM-DD
	HomeTeam         string
	AwayTeam         string
	Title            string
	Attributes       map[string]any
	SourceModifiedAt time.Time
	SyncedAt         time.Time
	Origin           Origin
}

// Update pairs a resolved store record with the freshly decoded row state.
type Update struct {
	StoreID string
	Record  *Record
}

// RowError is a row- or record-scoped sync failure.
type RowError struct {
	Row      int    `json:"row,omitempty"`      // 1-based source row (pull)
	RecordID string `json:"recordId,omitempty"` // store record id (push)
	Message  string `json:"message"`
}

// PreviewEntry describes one intended change computed during a dry run.
type PreviewEntry struct {
	Action   string `json:"action"` // "create" or "update"
	Row      int    `json:"row,omitempty"`
	RecordID string `json:"recordId,omitempty"`
	Name     string `json:"name"`
	Date     string `json:"date"`
}

// SyncSummary is the public result of a pull or push operation.
type SyncSummary struct {
	Success      bool           `json:"success"`
	TotalRows    int            `json:"totalRows,omitempty"`
	TotalRecords int            `json:"totalRecords,omitempty"`
	Created      int            `json:"created"`
	Updated      int            `json:"updated"`
	Errors       []RowError     `json:"errors"`
	Preview      []PreviewEntry `json:"preview,omitempty"`
}

// SyncStats is the aggregate persisted against the owning scope, written
// exactly once at the end of each orchestrator run.
type SyncStats struct {
	LastSyncAt time.Time
	Status     string // "ok" or "error"
	Created    int
	Updated    int
}

// ScopeStatus is the stored bookkeeping for one sync scope.
type ScopeStatus struct {
	Scope          string     `json:"scope"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	LastSyncStatus string     `json:"lastSyncStatus,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	CreatedTotal   int        `json:"createdTotal"`
	UpdatedTotal   int        `json:"updatedTotal"`
	InProgress     bool       `json:"inProgress"`
}

// SourceTransport is the spreadsheet read/write boundary. Rows and columns are
// 1-based on the wire to match spreadsheet conventions; an end row of 0 means
// "through the last row".
type SourceTransport interface {
	ReadRows(ctx context.Context, start, end int) ([][]string, error)
	WriteRow(ctx context.Context, row int, cells []string) error
	WriteCell(ctx context.Context, row, col int, value string) error
	// AppendRows writes all rows in one call and returns the 1-based sheet
	// row the first appended row landed on.
	AppendRows(ctx context.Context, rows [][]string) (int, error)
	// FindRowByToken scans the given 1-based column for the token.
	// Returns 0 when no row carries it.
	FindRowByToken(ctx context.Context, col int, token string) (int, error)
	ClearRange(ctx context.Context, start, end int) error
	RowCount(ctx context.Context) (int, error)
}

// ScopeStore is the per-scope bookkeeping shared by both sync directions.
type ScopeStore interface {
	RecordSyncStats(ctx context.Context, scope string, stats SyncStats) error
	RecordSyncError(ctx context.Context, scope, message string) error
	// AcquireLock sets the advisory "sync in progress" flag for the scope.
	// Returns false when another sync already holds it.
	AcquireLock(ctx context.Context, scope string) (bool, error)
	ReleaseLock(ctx context.Context, scope string) error
	Status(ctx context.Context, scope string) (*ScopeStatus, error)
}

// PullStore is the document-store boundary for source-to-store syncs.
type PullStore interface {
	ScopeStore
	// GetByTokens returns token -> store record id for every token that
	// resolves to an existing record.
	GetByTokens(ctx context.Context, tokens []string) (map[string]string, error)
	CreateMany(ctx context.Context, records []*Record) ([]string, error)
	UpdateMany(ctx context.Context, updates []Update) error
}

// PushStore is the document-store boundary for store-to-source syncs.
type PushStore interface {
	ScopeStore
	ListRecords(ctx context.Context, scope string) ([]*Record, error)
	TagWithToken(ctx context.Context, recordID, token string) error
}
