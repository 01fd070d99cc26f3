package sheet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// newTestWorkbook creates an xlsx file on disk with the given rows and opens
// it through the package under test.
func newTestWorkbook(t *testing.T, rows [][]string) *Workbook {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.xlsx")
	f := excelize.NewFile()
	const sheetName = "Events"
	if _, err := f.NewSheet(sheetName); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	for r, cells := range rows {
		for c, value := range cells {
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if err := f.SetCellStr(sheetName, ref, value); err != nil {
				t.Fatalf("SetCellStr: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wb, err := Open(path, sheetName)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}

func testRows() [][]string {
	return [][]string{
		{"syncId", "eventDate", "homeTeam", "awayTeam"},
		{"tok-a", "2025-03-01", "Lions", "Tigers"},
		{"tok-b", "2025-03-02", "Bears", "Wolves"},
	}
}

func TestReadRows(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx := context.Background()

	header, err := wb.ReadRows(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ReadRows(header): %v", err)
	}
	if len(header) != 1 || header[0][0] != "syncId" {
		t.Errorf("header = %v", header)
	}

	data, err := wb.ReadRows(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ReadRows(data): %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("data rows = %d, want 2", len(data))
	}
	if data[0][2] != "Lions" || data[1][2] != "Bears" {
		t.Errorf("data = %v", data)
	}

	// Reading past the populated area is not an error.
	past, err := wb.ReadRows(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ReadRows(past end): %v", err)
	}
	if len(past) != 0 {
		t.Errorf("past-end read = %v, want empty", past)
	}
}

func TestWriteRowAndReadBack(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx := context.Background()

	if err := wb.WriteRow(ctx, 2, []string{"tok-a", "2025-03-09", "Lions", "Hawks"}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}

	rows, err := wb.ReadRows(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if rows[0][1] != "2025-03-09" || rows[0][3] != "Hawks" {
		t.Errorf("row after write = %v", rows[0])
	}
}

func TestWriteCell(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx := context.Background()

	if err := wb.WriteCell(ctx, 3, 1, "tok-rewritten"); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}

	rows, err := wb.ReadRows(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if rows[0][0] != "tok-rewritten" {
		t.Errorf("cell = %q, want tok-rewritten", rows[0][0])
	}
}

func TestAppendRows(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx := context.Background()

	first, err := wb.AppendRows(ctx, [][]string{
		{"tok-c", "2025-03-03", "Foxes", "Stags"},
		{"tok-d", "2025-03-04", "Owls", "Crows"},
	})
	if err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if first != 4 {
		t.Errorf("first appended row = %d, want 4", first)
	}

	count, err := wb.RowCount(ctx)
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if count != 5 {
		t.Errorf("RowCount = %d, want 5", count)
	}

	rows, err := wb.ReadRows(ctx, 4, 5)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if rows[0][0] != "tok-c" || rows[1][0] != "tok-d" {
		t.Errorf("appended rows = %v", rows)
	}
}

func TestFindRowByToken(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx := context.Background()

	row, err := wb.FindRowByToken(ctx, 1, "tok-b")
	if err != nil {
		t.Fatalf("FindRowByToken: %v", err)
	}
	if row != 3 {
		t.Errorf("row = %d, want 3", row)
	}

	row, err = wb.FindRowByToken(ctx, 1, "tok-missing")
	if err != nil {
		t.Fatalf("FindRowByToken: %v", err)
	}
	if row != 0 {
		t.Errorf("row = %d, want 0 for unknown token", row)
	}

	row, err = wb.FindRowByToken(ctx, 1, "")
	if err != nil || row != 0 {
		t.Errorf("empty token = %d, %v; want 0, nil", row, err)
	}
}

func TestClearRange(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx := context.Background()

	if err := wb.ClearRange(ctx, 2, 3); err != nil {
		t.Fatalf("ClearRange: %v", err)
	}

	rows, err := wb.ReadRows(ctx, 2, 3)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	for _, row := range rows {
		for _, cell := range row {
			if cell != "" {
				t.Errorf("cell %q survived ClearRange", cell)
			}
		}
	}
}

func TestCancelledContext(t *testing.T) {
	wb := newTestWorkbook(t, testRows())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := wb.ReadRows(ctx, 1, 0); err == nil {
		t.Error("ReadRows ignored cancelled context")
	}
	if err := wb.WriteCell(ctx, 1, 1, "x"); err == nil {
		t.Error("WriteCell ignored cancelled context")
	}
}

func TestOpenCreatesMissingWorksheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.xlsx")
	f := excelize.NewFile()
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	wb, err := Open(path, "Events")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer wb.Close()

	count, err := wb.RowCount(context.Background())
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if count != 0 {
		t.Errorf("RowCount = %d, want 0 for fresh worksheet", count)
	}
}
