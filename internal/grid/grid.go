// Package grid reads the document listing grid into structured rows.
//
// Rows are addressed by ordinal row-id through RowHandle and are resolved
// afresh on every read, so the grid may re-render between calls. A cell that
// is absent at read time is absent from the resulting RowData.
package grid

import (
	"context"
	"strconv"
	"strings"

	"github.com/kuitang/gridcheck/internal/locator"
)

// Well-known RowData keys.
const (
	KeyDocumentName  = "0"
	KeyVersion       = "version"
	KeyStatus        = "status"
	KeyAvgFluency    = "avgFluency"
	KeyAvgAdequacy   = "avgAdequacy"
	KeyAvgCompliance = "avgCompliance"

	// KeyScoreAverage holds the derived mean of the three score columns.
	KeyScoreAverage = "scoreAverage"
	// KeyDocumentNameForLanguage holds the raw first-cell text read by the
	// language extraction.
	KeyDocumentNameForLanguage = "documentNameForLanguageFilter"
)

// RowHandle addresses a data row by its ordinal row-id.
type RowHandle struct {
	Index int
}

// Row returns the handle for row-id index.
func Row(index int) RowHandle { return RowHandle{Index: index} }

func (h RowHandle) String() string { return "row " + strconv.Itoa(h.Index) }

// Selector is the CSS that resolves the handle.
func (h RowHandle) Selector() string { return locator.RowByIDCSS(h.Index) }

// RowData maps column id to display value.
type RowData map[string]string

// Get reports the value and whether the cell was present.
func (r RowData) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

func (r RowData) DocumentName() string { return r[KeyDocumentName] }
func (r RowData) Status() string       { return r[KeyStatus] }

// Cell is one gridcell as read from the page.
type Cell struct {
	// ColID is the col-id attribute, empty when the cell has none.
	ColID string
	// Position is the cell's index among the row's gridcells.
	Position int
	Text     string
	// Chip is the text of a nested chip widget, if HasChip.
	Chip    string
	HasChip bool
}

// Key is the col-id, or the position when the cell carries none.
func (c Cell) Key() string {
	if c.ColID != "" {
		return c.ColID
	}
	return strconv.Itoa(c.Position)
}

// Display prefers chip text over raw text.
func (c Cell) Display() string {
	if c.HasChip && c.Chip != "" {
		return c.Chip
	}
	return c.Text
}

// Reader is a source of grid cells: a live page or a captured snapshot.
type Reader interface {
	// RowCount counts data rows: distinct row-ids among rows holding at
	// least one gridcell. The header row is not counted.
	RowCount(ctx context.Context) (int, error)
	// Cells lists the row's gridcells in DOM order; an absent row yields none.
	Cells(ctx context.Context, row RowHandle) ([]Cell, error)
	// CellByColID returns the first cell of the row with the col-id.
	CellByColID(ctx context.Context, row RowHandle, colID string) (Cell, bool, error)
	// ColumnTexts lists the text of every element with the col-id in DOM
	// order, header cell first.
	ColumnTexts(ctx context.Context, colID string) ([]string, error)
}

func findCell(cells []Cell, colID string) (Cell, bool) {
	for _, c := range cells {
		if c.ColID == colID {
			return c, true
		}
	}
	return Cell{}, false
}

func clean(s string) string { return strings.TrimSpace(s) }
