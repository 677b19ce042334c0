package grid

import (
	"context"
	"fmt"

	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/ui"
)

// cellsJS reads every matched gridcell in one round trip so a row is never
// assembled from two different renders.
const cellsJS = `(cells, chipTag) => cells.map((cell) => {
	const chip = cell.querySelector(chipTag);
	return {
		colId: cell.getAttribute('col-id') || '',
		text: (cell.textContent || '').trim(),
		chip: chip ? (chip.textContent || '').trim() : '',
		hasChip: !!chip,
	};
})`

// rowIDsJS returns the distinct row-ids of the matched rows; pinned
// containers repeat a row-id and must count once.
const rowIDsJS = `(rows) => [...new Set(rows.map((row) => row.getAttribute('row-id') || ''))]`

// Browser reads the live grid through a ui.Surface.
type Browser struct {
	surface ui.Surface
}

func NewBrowser(surface ui.Surface) *Browser {
	return &Browser{surface: surface}
}

func (b *Browser) RowCount(ctx context.Context) (int, error) {
	raw, err := b.surface.EvaluateAll(ctx, locator.RowsWithCells(), rowIDsJS, nil)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	ids, ok := raw.([]any)
	if raw != nil && !ok {
		return 0, fmt.Errorf("unexpected row ids payload %T", raw)
	}
	return len(ids), nil
}

func (b *Browser) Cells(ctx context.Context, row RowHandle) ([]Cell, error) {
	raw, err := b.surface.EvaluateAll(ctx, locator.RowCells(row.Index), cellsJS, locator.ChipTag)
	if err != nil {
		return nil, fmt.Errorf("read cells of %s: %w", row, err)
	}
	return decodeCells(raw)
}

func (b *Browser) CellByColID(ctx context.Context, row RowHandle, colID string) (Cell, bool, error) {
	cells, err := b.Cells(ctx, row)
	if err != nil {
		return Cell{}, false, err
	}
	c, ok := findCell(cells, colID)
	return c, ok, nil
}

func (b *Browser) ColumnTexts(ctx context.Context, colID string) ([]string, error) {
	texts, err := b.surface.Texts(ctx, locator.ColumnCells(colID))
	if err != nil {
		return nil, fmt.Errorf("read column %s: %w", colID, err)
	}
	return texts, nil
}

func decodeCells(raw any) ([]Cell, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected cells payload %T", raw)
	}
	cells := make([]Cell, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected cell payload %T at %d", item, i)
		}
		colID, _ := m["colId"].(string)
		text, _ := m["text"].(string)
		chip, _ := m["chip"].(string)
		hasChip, _ := m["hasChip"].(bool)
		cells = append(cells, Cell{
			ColID:    colID,
			Position: i,
			Text:     clean(text),
			Chip:     clean(chip),
			HasChip:  hasChip,
		})
	}
	return cells, nil
}
