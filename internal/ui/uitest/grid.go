package uitest

import (
	"regexp"
	"strconv"

	"github.com/kuitang/gridcheck/internal/locator"
)

// GridCell is one rendered cell. An empty ColID models a cell without the
// attribute (the row menu).
type GridCell struct {
	ColID string
	Text  string
	Chip  string
}

var rowCellsName = regexp.MustCompile(`^grid\.row\[(\d+)\]\.cells$`)

// SetGrid renders rows as the live grid: row ids, per-row cell reads and
// column texts (the header cell first) answer from rows. Row i has row-id i.
func (s *Surface) SetGrid(header []string, rows ...[]GridCell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowsName := locator.RowsWithCells().Name
	s.Counts[rowsName] = len(rows)
	for _, colID := range header {
		texts := []string{colID}
		for _, row := range rows {
			for _, c := range row {
				if c.ColID == colID {
					texts = append(texts, c.Text+c.Chip)
				}
			}
		}
		s.TextsOf[locator.ColumnCells(colID).Name] = texts
	}

	s.Evaluate = func(c locator.Chain, _ string, _ any) (any, error) {
		if c.Name == rowsName {
			ids := make([]any, len(rows))
			for i := range rows {
				ids[i] = strconv.Itoa(i)
			}
			return ids, nil
		}
		m := rowCellsName.FindStringSubmatch(c.Name)
		if m == nil {
			return []any{}, nil
		}
		i, _ := strconv.Atoi(m[1])
		if i < 0 || i >= len(rows) {
			return []any{}, nil
		}
		out := make([]any, 0, len(rows[i]))
		for _, cell := range rows[i] {
			out = append(out, map[string]any{
				"colId":   cell.ColID,
				"text":    cell.Text + cell.Chip,
				"chip":    cell.Chip,
				"hasChip": cell.Chip != "",
			})
		}
		return out, nil
	}
}
