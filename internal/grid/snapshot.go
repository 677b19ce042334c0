package grid

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/ui"
)

// Snapshot reads a grid from captured HTML. It backs offline analysis of
// failure artifacts and unit tests of the extraction rules.
type Snapshot struct {
	doc *goquery.Document
}

// NewSnapshot parses html.
func NewSnapshot(html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse grid snapshot: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// Capture snapshots the surface's current DOM.
func Capture(ctx context.Context, surface ui.Surface) (*Snapshot, error) {
	html, err := surface.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture grid: %w", err)
	}
	return NewSnapshot(html)
}

func (s *Snapshot) RowCount(ctx context.Context) (int, error) {
	seen := map[string]bool{}
	s.doc.Find(locator.RowsWithCellsCSS).Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("row-id")
		seen[id] = true
	})
	return len(seen), ctx.Err()
}

func (s *Snapshot) Cells(ctx context.Context, row RowHandle) ([]Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cells []Cell
	s.doc.Find(row.Selector()).First().Find(locator.GridCellCSS).Each(func(i int, sel *goquery.Selection) {
		colID, _ := sel.Attr("col-id")
		chip := sel.Find(locator.ChipTag).First()
		cells = append(cells, Cell{
			ColID:    colID,
			Position: i,
			Text:     clean(sel.Text()),
			Chip:     clean(chip.Text()),
			HasChip:  chip.Length() > 0,
		})
	})
	return cells, nil
}

func (s *Snapshot) CellByColID(ctx context.Context, row RowHandle, colID string) (Cell, bool, error) {
	cells, err := s.Cells(ctx, row)
	if err != nil {
		return Cell{}, false, err
	}
	c, ok := findCell(cells, colID)
	return c, ok, nil
}

func (s *Snapshot) ColumnTexts(ctx context.Context, colID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.doc.Find(locator.ColumnCellsCSS(colID)).Map(func(_ int, sel *goquery.Selection) string {
		return sel.Text()
	}), nil
}

// Markup returns the outer HTML of the header row followed by each data row,
// one per line. It is empty when the page holds no grid.
func (s *Snapshot) Markup() (string, error) {
	var b strings.Builder
	rows := s.doc.Find(locator.RowCSS).Has(locator.HeaderCSS).First().
		AddSelection(s.doc.Find(locator.RowsWithCellsCSS))
	var err error
	rows.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var html string
		if html, err = goquery.OuterHtml(sel); err != nil {
			return false
		}
		b.WriteString(html)
		b.WriteByte('\n')
		return true
	})
	if err != nil {
		return "", fmt.Errorf("render grid markup: %w", err)
	}
	return b.String(), nil
}
