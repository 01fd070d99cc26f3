package core

// fakes_test.go provides in-memory collaborator fakes for orchestrator tests.
// The shared journal records the order of side effects, which matters for the
// token-before-create contract.

import (
	"context"
	"errors"
	"fmt"
)

type journal struct {
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// fakeSheet is an in-memory SourceTransport. rows[0] is sheet row 1.
type fakeSheet struct {
	rows     [][]string
	jrnl     *journal
	failRead bool

	writes   map[int][]string // row -> cells written via WriteRow
	appended [][]string
	appends  int

	// appendShift offsets the row AppendRows reports back, simulating a
	// sheet that grew between the caller's row-count read and the append.
	appendShift int
}

func newFakeSheet(rows [][]string) *fakeSheet {
	return &fakeSheet{rows: rows, jrnl: &journal{}, writes: map[int][]string{}}
}

func (f *fakeSheet) ReadRows(_ context.Context, start, end int) ([][]string, error) {
	if f.failRead {
		return nil, errors.New("source unavailable")
	}
	if start < 1 {
		start = 1
	}
	if end == 0 || end > len(f.rows) {
		end = len(f.rows)
	}
	if start > end {
		return nil, nil
	}
	return f.rows[start-1 : end], nil
}

func (f *fakeSheet) WriteRow(_ context.Context, row int, cells []string) error {
	f.jrnl.add("writerow:%d", row)
	f.writes[row] = cells
	for row > len(f.rows) {
		f.rows = append(f.rows, nil)
	}
	f.rows[row-1] = cells
	return nil
}

func (f *fakeSheet) WriteCell(_ context.Context, row, col int, value string) error {
	f.jrnl.add("writecell:%d", row)
	for row > len(f.rows) {
		f.rows = append(f.rows, nil)
	}
	cells := f.rows[row-1]
	for col > len(cells) {
		cells = append(cells, "")
	}
	cells[col-1] = value
	f.rows[row-1] = cells
	return nil
}

func (f *fakeSheet) AppendRows(_ context.Context, rows [][]string) (int, error) {
	f.jrnl.add("append:%d", len(rows))
	f.appends++
	first := len(f.rows) + 1 + f.appendShift
	f.rows = append(f.rows, rows...)
	f.appended = append(f.appended, rows...)
	return first, nil
}

func (f *fakeSheet) FindRowByToken(_ context.Context, col int, token string) (int, error) {
	if col < 1 || token == "" {
		return 0, nil
	}
	for i, row := range f.rows {
		if col <= len(row) && row[col-1] == token {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (f *fakeSheet) ClearRange(_ context.Context, start, end int) error {
	if end == 0 || end > len(f.rows) {
		end = len(f.rows)
	}
	for row := start; row <= end; row++ {
		f.rows[row-1] = nil
	}
	return nil
}

func (f *fakeSheet) RowCount(_ context.Context) (int, error) {
	return len(f.rows), nil
}

// fakeStore is an in-memory PullStore and PushStore.
type fakeStore struct {
	jrnl *journal

	existing map[string]string // token -> store id
	records  []*Record         // push source

	created    []*Record
	updated    []Update
	tagged     map[string]string // record id -> token
	stats      []SyncStats
	lastErrors []string

	lockHeld bool
	lockBusy bool

	failList  bool
	failGet   bool
	createErr error
	lockErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jrnl:     &journal{},
		existing: map[string]string{},
		tagged:   map[string]string{},
	}
}

func (f *fakeStore) GetByTokens(_ context.Context, tokens []string) (map[string]string, error) {
	if f.failGet {
		return nil, errors.New("store unavailable")
	}
	f.jrnl.add("get:%d", len(tokens))
	out := map[string]string{}
	for _, t := range tokens {
		if id, ok := f.existing[t]; ok {
			out[t] = id
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMany(_ context.Context, records []*Record) ([]string, error) {
	f.jrnl.add("create:%d", len(records))
	if f.createErr != nil {
		return nil, f.createErr
	}
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = fmt.Sprintf("id-%d", len(f.created)+i+1)
	}
	f.created = append(f.created, records...)
	return ids, nil
}

func (f *fakeStore) UpdateMany(_ context.Context, updates []Update) error {
	f.jrnl.add("update:%d", len(updates))
	f.updated = append(f.updated, updates...)
	return nil
}

func (f *fakeStore) ListRecords(_ context.Context, _ string) ([]*Record, error) {
	if f.failList {
		return nil, errors.New("store unavailable")
	}
	return f.records, nil
}

func (f *fakeStore) TagWithToken(_ context.Context, recordID, token string) error {
	f.jrnl.add("tag:%s", recordID)
	f.tagged[recordID] = token
	return nil
}

func (f *fakeStore) RecordSyncStats(_ context.Context, _ string, stats SyncStats) error {
	f.stats = append(f.stats, stats)
	return nil
}

func (f *fakeStore) RecordSyncError(_ context.Context, _ string, message string) error {
	f.lastErrors = append(f.lastErrors, message)
	return nil
}

func (f *fakeStore) AcquireLock(_ context.Context, _ string) (bool, error) {
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if f.lockBusy {
		return false, nil
	}
	f.lockHeld = true
	return true, nil
}

func (f *fakeStore) ReleaseLock(_ context.Context, _ string) error {
	f.lockHeld = false
	return nil
}

func (f *fakeStore) Status(_ context.Context, scope string) (*ScopeStatus, error) {
	return &ScopeStatus{Scope: scope}, nil
}

// shareJournal makes sheet and store record side effects into one timeline.
func shareJournal(sheet *fakeSheet, store *fakeStore) *journal {
	j := &journal{}
	sheet.jrnl = j
	store.jrnl = j
	return j
}

// testHeader is the conventional header row used across orchestrator tests.
func testHeader() []string {
	return []string{
		"syncId", "eventDate", "homeTeam", "awayTeam", "title",
		"eventName", "status", "venue", "attendance", "ticketPrice", "revenue",
	}
}

func newTestService(sheet *fakeSheet, store *fakeStore) *Service {
	return NewService(sheet, store, store, "test-scope", DefaultLayout())
}
