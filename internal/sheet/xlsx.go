// Package sheet provides the spreadsheet side of the sync boundary.
//
// The engine only knows the SourceTransport interface; this package backs it
// with an xlsx workbook on disk. Rows and columns are 1-based throughout, to
// match spreadsheet conventions.
package sheet

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Workbook is an xlsx-file implementation of the source transport.
// All operations are serialized; excelize files are not safe for concurrent
// mutation.
type Workbook struct {
	mu    sync.Mutex
	path  string
	sheet string
	f     *excelize.File
}

// Open loads the workbook at path and binds to the named worksheet,
// creating the worksheet when it does not exist yet.
func Open(path, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return nil, fmt.Errorf("create worksheet %s: %w", sheetName, err)
		}
	}

	return &Workbook{path: path, sheet: sheetName, f: f}, nil
}

// Close releases the underlying file handle.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ReadRows returns the cell values of rows start through end (1-based,
// inclusive). An end of 0 means through the last populated row. Rows outside
// the populated area come back as empty slices.
func (w *Workbook) ReadRows(ctx context.Context, start, end int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	if start < 1 {
		start = 1
	}
	if end == 0 || end > len(all) {
		end = len(all)
	}
	if start > end {
		return nil, nil
	}
	return all[start-1 : end], nil
}

// WriteRow replaces the cells of one row. Cells beginning with "=" are
// written as formulas; everything else as text.
func (w *Workbook) WriteRow(ctx context.Context, row int, cells []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.setRow(row, cells); err != nil {
		return err
	}
	return w.save()
}

// WriteCell sets a single cell.
func (w *Workbook) WriteCell(ctx context.Context, row, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.setCell(row, col, value); err != nil {
		return err
	}
	return w.save()
}

// AppendRows writes all rows after the last populated row in one save and
// returns the 1-based row the first of them landed on.
func (w *Workbook) AppendRows(ctx context.Context, rows [][]string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, err := w.f.GetRows(w.sheet)
	if err != nil {
		return 0, fmt.Errorf("read rows: %w", err)
	}
	first := len(existing) + 1

	for i, cells := range rows {
		if err := w.setRow(first+i, cells); err != nil {
			return 0, err
		}
	}
	if err := w.save(); err != nil {
		return 0, err
	}
	return first, nil
}

// FindRowByToken scans the given column for an exact token match and returns
// its 1-based row, or 0 when no row carries the token.
func (w *Workbook) FindRowByToken(ctx context.Context, col int, token string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if col < 1 || token == "" {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.f.GetRows(w.sheet)
	if err != nil {
		return 0, fmt.Errorf("read rows: %w", err)
	}

	for i, row := range all {
		if col <= len(row) && strings.TrimSpace(row[col-1]) == token {
			return i + 1, nil
		}
	}
	return 0, nil
}

// ClearRange blanks every cell in rows start through end (1-based,
// inclusive). The rows themselves remain.
func (w *Workbook) ClearRange(ctx context.Context, start, end int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.f.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	if end == 0 || end > len(all) {
		end = len(all)
	}

	for row := start; row <= end; row++ {
		width := 0
		if row-1 < len(all) {
			width = len(all[row-1])
		}
		for col := 1; col <= width; col++ {
			if err := w.setCell(row, col, ""); err != nil {
				return err
			}
		}
	}
	return w.save()
}

// RowCount returns the number of populated rows including the header.
func (w *Workbook) RowCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.f.GetRows(w.sheet)
	if err != nil {
		return 0, fmt.Errorf("read rows: %w", err)
	}
	return len(all), nil
}

func (w *Workbook) setRow(row int, cells []string) error {
	for col, value := range cells {
		if err := w.setCell(row, col+1, value); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) setCell(row, col int, value string) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell reference %d,%d: %w", col, row, err)
	}

	if strings.HasPrefix(value, "=") {
		if err := w.f.SetCellFormula(w.sheet, ref, strings.TrimPrefix(value, "=")); err != nil {
			return fmt.Errorf("set formula %s: %w", ref, err)
		}
		return nil
	}
	if err := w.f.SetCellStr(w.sheet, ref, value); err != nil {
		return fmt.Errorf("set cell %s: %w", ref, err)
	}
	return nil
}

func (w *Workbook) save() error {
	if err := w.f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
