package tabular

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

var (
	ErrWorkbookDecode = errors.New("workbook decode failed")
	ErrEmptyWorkbook  = errors.New("workbook has no header row")
)

// FromWorkbook decodes an xlsx blob and maps the first sheet. Any decode
// problem fails the whole import.
func FromWorkbook(r io.Reader) ([]models.CanonicalRecord, Stats, error) {
	grid, err := ReadWorkbook(r)
	if err != nil {
		return nil, Stats{}, err
	}
	recs, st := FromGrid(grid)
	return recs, st, nil
}

// ReadWorkbook returns the first sheet as a typed grid: numeric cells become
// float64 so serial dates and fractional percentages keep their meaning,
// everything else stays a string.
func ReadWorkbook(r io.Reader) ([][]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookDecode, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrWorkbookDecode)
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrWorkbookDecode, sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	grid := make([][]any, len(rows))
	for ri, row := range rows {
		out := make([]any, len(row))
		for ci, raw := range row {
			if ri == 0 {
				out[ci] = raw
				continue
			}
			v, err := typedCell(f, sheet, ci+1, ri+1, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrWorkbookDecode, err)
			}
			out[ci] = v
		}
		grid[ri] = out
	}
	return grid, nil
}

func typedCell(f *excelize.File, sheet string, col, row int, raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	}
	return raw, nil
}
