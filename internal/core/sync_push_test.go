package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func pushRecord(id, token, home, away string) *Record {
	return &Record{
		StoreID:  id,
		Token:    token,
		Kind:     KindTwoParty,
		Name:     home + " vs " + away,
		Date:     "2025-03-01",
		HomeTeam: home,
		AwayTeam: away,
		Attributes: map[string]any{
			"status":      "scheduled",
			"attendance":  1250.0,
			"ticketPrice": 12.5,
		},
	}
}

func TestPush_NewAndOrphanRecords(t *testing.T) {
	sheet := newFakeSheet([][]string{testHeader()})
	store := newFakeStore()
	store.records = []*Record{
		pushRecord("id-1", "", "Lions", "Tigers"),
		pushRecord("id-2", "", "Bears", "Wolves"),
		pushRecord("id-3", "tok-orphan", "Hawks", "Owls"),
	}

	summary := newTestService(sheet, store).Push(context.Background(), Options{})

	if !summary.Success {
		t.Fatalf("Success = false, errors: %v", summary.Errors)
	}
	if summary.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", summary.TotalRecords)
	}
	if summary.Created != 2 {
		t.Errorf("Created = %d, want 2 (orphan re-append is not a create)", summary.Created)
	}
	if summary.Updated != 0 {
		t.Errorf("Updated = %d, want 0", summary.Updated)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("Errors = %v, want none", summary.Errors)
	}

	// All three land in one batch append.
	if sheet.appends != 1 {
		t.Errorf("append batches = %d, want 1", sheet.appends)
	}
	if len(sheet.appended) != 3 {
		t.Fatalf("appended %d rows, want 3", len(sheet.appended))
	}

	// Only the truly new records get tagged; the orphan already has its token.
	if len(store.tagged) != 2 {
		t.Errorf("tagged = %v, want tokens for id-1 and id-2", store.tagged)
	}
	if _, ok := store.tagged["id-3"]; ok {
		t.Error("orphan record was re-tagged")
	}
	for _, id := range []string{"id-1", "id-2"} {
		if store.tagged[id] == "" {
			t.Errorf("record %s not tagged with a token", id)
		}
	}

	// The orphan row keeps its original token in the identity cell.
	if got := sheet.appended[2][0]; got != "tok-orphan" {
		t.Errorf("orphan identity cell = %q, want tok-orphan", got)
	}
}

func TestPush_UpdateInPlaceRewritesFormulas(t *testing.T) {
	sheet := newFakeSheet([][]string{
		testHeader(),
		{"tok-other", "2025-02-01", "Foxes", "Stags"},
		{"tok-a", "2025-03-01", "Lions", "Tigers"},
	})
	store := newFakeStore()
	store.records = []*Record{pushRecord("id-a", "tok-a", "Lions", "Tigers")}

	summary := newTestService(sheet, store).Push(context.Background(), Options{})

	if !summary.Success {
		t.Fatalf("Success = false, errors: %v", summary.Errors)
	}
	if summary.Updated != 1 || summary.Created != 0 {
		t.Errorf("Updated/Created = %d/%d, want 1/0", summary.Updated, summary.Created)
	}

	row, ok := sheet.writes[3]
	if !ok {
		t.Fatalf("expected write to row 3, got writes for %v", sheet.writes)
	}
	// attendance=I, ticketPrice=J; the formula must target row 3, not the
	// placeholder row.
	if want := `=IF(I3="","",I3*J3)`; row[10] != want {
		t.Errorf("revenue cell = %q, want %q", row[10], want)
	}
	if row[0] != "tok-a" {
		t.Errorf("identity cell = %q, want tok-a", row[0])
	}
	if sheet.appends != 0 {
		t.Errorf("append batches = %d, want 0", sheet.appends)
	}
}

func TestPush_AppendTargetsPredictedRows(t *testing.T) {
	sheet := newFakeSheet([][]string{
		testHeader(),
		{"tok-a", "2025-02-01", "Foxes", "Stags"},
	})
	store := newFakeStore()
	store.records = []*Record{
		pushRecord("id-1", "", "Lions", "Tigers"),
		pushRecord("id-2", "", "Bears", "Wolves"),
	}

	summary := newTestService(sheet, store).Push(context.Background(), Options{})

	if !summary.Success {
		t.Fatalf("Success = false, errors: %v", summary.Errors)
	}
	if len(sheet.appended) != 2 {
		t.Fatalf("appended %d rows, want 2", len(sheet.appended))
	}
	// Sheet had 2 rows, so the appends land on rows 3 and 4.
	if want := `=IF(I3="","",I3*J3)`; sheet.appended[0][10] != want {
		t.Errorf("first appended revenue cell = %q, want %q", sheet.appended[0][10], want)
	}
	if want := `=IF(I4="","",I4*J4)`; sheet.appended[1][10] != want {
		t.Errorf("second appended revenue cell = %q, want %q", sheet.appended[1][10], want)
	}
}

func TestPush_AppendRowMismatchIsWarned(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	sheet := newFakeSheet([][]string{testHeader()})
	sheet.appendShift = 2
	store := newFakeStore()
	store.records = []*Record{pushRecord("id-1", "", "Lions", "Tigers")}

	summary := newTestService(sheet, store).Push(context.Background(), Options{})

	// The append itself succeeded, so the run does too; the mistarget is
	// surfaced on the warn channel.
	if !summary.Success {
		t.Fatalf("Success = false, errors: %v", summary.Errors)
	}
	if summary.Created != 1 {
		t.Errorf("Created = %d, want 1", summary.Created)
	}
	if !strings.Contains(logs.String(), "unexpected row") {
		t.Errorf("no mistarget warning logged; log output:\n%s", logs.String())
	}
}

func TestPush_DryRun(t *testing.T) {
	sheet := newFakeSheet([][]string{
		testHeader(),
		{"tok-a", "2025-03-01", "Lions", "Tigers"},
	})
	store := newFakeStore()
	store.records = []*Record{
		pushRecord("id-a", "tok-a", "Lions", "Tigers"),
		pushRecord("id-new", "", "Bears", "Wolves"),
		pushRecord("id-orphan", "tok-gone", "Hawks", "Owls"),
	}

	summary := newTestService(sheet, store).Push(context.Background(), Options{DryRun: true})

	if !summary.Success {
		t.Fatalf("Success = false, errors: %v", summary.Errors)
	}
	if summary.Updated != 1 || summary.Created != 1 {
		t.Errorf("Updated/Created = %d/%d, want 1/1", summary.Updated, summary.Created)
	}
	if len(summary.Preview) != 3 {
		t.Fatalf("Preview = %v, want 3 entries", summary.Preview)
	}

	if sheet.appends != 0 || len(sheet.writes) != 0 {
		t.Error("dry run wrote to the sheet")
	}
	if len(store.tagged) != 0 || len(store.stats) != 0 {
		t.Error("dry run wrote to the store")
	}
}

func TestPush_EmptyStore(t *testing.T) {
	sheet := newFakeSheet([][]string{testHeader()})
	store := newFakeStore()

	summary := newTestService(sheet, store).Push(context.Background(), Options{})

	if !summary.Success {
		t.Fatalf("Success = false, errors: %v", summary.Errors)
	}
	if summary.TotalRecords != 0 || summary.Created != 0 || summary.Updated != 0 {
		t.Errorf("summary = %+v, want all-zero counts", summary)
	}
	if sheet.appends != 0 || len(sheet.writes) != 0 {
		t.Error("empty push wrote to the sheet")
	}
}

func TestPush_StoreFailureReportedInSummary(t *testing.T) {
	sheet := newFakeSheet([][]string{testHeader()})
	store := newFakeStore()
	store.failList = true

	summary := newTestService(sheet, store).Push(context.Background(), Options{})

	if summary.Success {
		t.Fatal("Success = true for unreadable store")
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0].Message, "list records") {
		t.Errorf("Errors = %v", summary.Errors)
	}
	if len(store.lastErrors) != 1 {
		t.Errorf("scope last error not recorded: %v", store.lastErrors)
	}
	if store.lockHeld {
		t.Error("lock still held after aborted run")
	}
}
