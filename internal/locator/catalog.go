package locator

import (
	"fmt"
	"strconv"
	"strings"
)

// ChipTag is the custom element that renders status and filter chips.
const ChipTag = "en-chip-0-1-48"

// Grid selectors are plain CSS so snapshot readers (goquery) can reuse them.
const (
	RowCSS      = `div[role="row"]`
	GridCellCSS = `div[role="gridcell"]`
	HeaderCSS   = `div[role="columnheader"]`
)

// RowByIDCSS addresses a data row by its row-id attribute.
func RowByIDCSS(rowID int) string {
	return fmt.Sprintf(`div[role="row"][row-id="%d"]`, rowID)
}

// CellInRowCSS addresses a gridcell by column id within a row scope.
func CellInRowCSS(colID string) string {
	return fmt.Sprintf(`div[role="gridcell"][col-id=%s]`, Quote(colID))
}

// ColumnCellsCSS addresses every element of a column in DOM order, the
// header cell included, so position i is data row i-1.
func ColumnCellsCSS(colID string) string {
	return fmt.Sprintf(`[col-id=%s]`, Quote(colID))
}

// RowsWithCellsCSS matches data rows: rows carrying at least one gridcell.
// The header row holds only columnheader cells and never matches.
const RowsWithCellsCSS = `div[role="row"]:has(div[role="gridcell"])`

// RowCellsSelector addresses the gridcells of the first row with rowID. The
// grid repeats a row-id across pinned containers, so only the first counts.
func RowCellsSelector(rowID int) string {
	return RowByIDCSS(rowID) + " >> nth=0 >> " + GridCellCSS
}

// Login page.

func LoginEmail() Chain {
	return New("login.email", CSS(`input.en-c-text-field__input[name="email"]`), Attr("input", "name", "email")).First()
}

func LoginPassword() Chain {
	return New("login.password", CSS(`input.en-c-text-field__input[name="password"]`), Attr("input", "name", "password")).First()
}

func LoginSubmit() Chain {
	return New("login.submit", CSS(`button[type="submit"]`)).First()
}

// Dashboard.

// DashboardTitle prefers the styled heading and falls back to any h1 with the title text.
func DashboardTitle(title string) Chain {
	return New("dashboard.title",
		CSS("h1.heading"),
		CSS("h1").WithText(title),
	).First()
}

func SearchInput() Chain {
	return New("dashboard.search",
		CSS(`input[placeholder="Search"]`),
		CSS(`input.en-c-text-field__input[type="text"]`),
		CSS(`input[type="text"]`),
	).First()
}

func SearchButton() Chain {
	return New("dashboard.searchButton", CSS(".en-c-search-field__search-button >> button")).First()
}

// Grid.

func AnyGridCell() Chain {
	return New("grid.cell", CSS(GridCellCSS)).First()
}

func Row(rowID int) Chain {
	return New("grid.row["+strconv.Itoa(rowID)+"]", CSS(RowByIDCSS(rowID))).First()
}

// ColumnCells matches every element carrying the col-id.
func ColumnCells(colID string) Chain {
	return New("grid.column["+colID+"]", CSS(ColumnCellsCSS(colID))).All()
}

func RowsWithCells() Chain {
	return New("grid.rows", CSS(RowsWithCellsCSS)).All()
}

func RowCells(rowID int) Chain {
	return New("grid.row["+strconv.Itoa(rowID)+"].cells", CSS(RowCellsSelector(rowID))).All()
}

func StatusCell(rowID int) Chain {
	return New("grid.status", CSS(RowByIDCSS(rowID)+" "+CellInRowCSS("status"))).First()
}

// RowMenuButton is the kebab trigger inside a row.
func RowMenuButton(rowID int) Chain {
	return New("grid.menu",
		CSS(fmt.Sprintf(`//div[@row-id=%d]//span[contains(@class, 'flex-center') and contains(@class, 'menu-container')]`, rowID)),
	).First()
}

// Context menu and dialogs.

func MenuItem(text string) Chain {
	return New("menu.item", CSS(fmt.Sprintf(`en-list-item-0-1-48:has-text(%s) >> button >> span`, Quote(text)))).First()
}

// DialogButton is a modal button; the pick is left to the caller because
// discard dialogs repeat labels.
func DialogButton(text string) Chain {
	return New("dialog.button", CSS(fmt.Sprintf(`en-button-0-1-48:has-text(%s) >> button`, Quote(text))))
}

func DialogGroupButton(text string) Chain {
	return New("dialog.group",
		CSS(fmt.Sprintf(`en-button-group-0-1-48 en-button-0-1-48:has-text(%s) >> button`, Quote(text))),
	).First()
}

func LogoutButton() Chain {
	return New("navbar.logout", CSS(`div[role="banner"].navbar en-button-0-1-48 >> button`)).First()
}

// Edit details.

func EditorTextarea() Chain {
	return New("edit.textarea", CSS("div.w-md-editor-text textarea")).First()
}

func FooterButton(text string) Chain {
	return New("edit.footer",
		CSS(fmt.Sprintf(`footer.footer en-button-0-1-48:has-text(%s) >> button`, Quote(text))),
	).First()
}

// NavButton finds a Previous/Next button anywhere on the page.
func NavButton(text string) Chain {
	return New("edit.nav", CSS(fmt.Sprintf(`%s:has-text(%s) >> button`, ButtonHost, Quote(text)))).First()
}

// ButtonHost is the custom element wrapping native buttons.
const ButtonHost = "en-button-0-1-48"

func StepperItems() Chain {
	return New("stepper.items", CSS("ul.stepper li.stepper-item")).All()
}

// StepperLabelCSS is the label element inside a stepper item.
const StepperLabelCSS = "p.stepper-label"

func StepperItem(index int) Chain {
	return New("stepper.item", CSS("ul.stepper li.stepper-item")).Nth(index)
}

func StepperLabel(index int) Chain {
	return New("stepper.label",
		CSS(fmt.Sprintf("ul.stepper li.stepper-item >> nth=%d >> %s", index, StepperLabelCSS)),
	).First()
}

func ScoringSection() Chain {
	return New("scoring.container", CSS("div.comment-metrics-container")).First()
}

// ScoreRadio addresses one score radio of a dimension (fluency, adequacy, compliance).
func ScoreRadio(dimension string, value float64) Chain {
	return New("scoring."+dimension,
		CSS(fmt.Sprintf(`input[name=%s][value=%s]`, Quote(dimension), Quote(FormatScore(value)))),
	).First()
}

// FormatScore renders a score the way radio values carry it ("2", "3.5").
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Filters.

func FilterDropdown(label string) Chain {
	return New("filters.dropdown["+label+"]",
		CSS(fmt.Sprintf(`//div[@class="dropdown"]//button[contains(., %s)]`, xpathLiteral(label))),
	).First()
}

func FilterCheckbox(value string) Chain {
	return New("filters.checkbox["+value+"]",
		CSS(fmt.Sprintf(`input.en-c-checkbox-item__input[value=%s]`, Quote(value))),
	).First()
}

// FilterTile is the toolbar tile proving an applied option.
func FilterTile(text string) Chain {
	return New("filters.tile["+text+"]", CSS(fmt.Sprintf(`//span[text()=%s]`, xpathLiteral(text)))).First()
}

// NewFilterTile matches the New status tile, whose text carries a badge count.
func NewFilterTile(text string) Chain {
	return New("filters.newTile",
		CSS(fmt.Sprintf(`//div[@class="row-alike"]//span[contains(text(), %s)]`, xpathLiteral(text))),
	).First()
}

// AnyFilterChip is the most recently added chip in the filter bar.
func AnyFilterChip() Chain {
	return New("filters.anyChip", CSS(`//div[@class="row-alike"]//`+ChipTag)).Last()
}

func ApplyButton(label string) Chain {
	return New("filters.apply",
		Role("button", label),
		CSS(`//div[@class="dropdown__footer"] >> button`).WithText(label),
	).First()
}

func ClearAllButton(label string) Chain {
	return New("filters.clearAll",
		Role("button", label),
		CSS(`//div[@class="dropdown__footer"] >> button`).WithText(label),
	).First()
}

func ClearAllFiltersButton(label string) Chain {
	return New("filters.clearAllFilters",
		Role("button", label),
		CSS(fmt.Sprintf(`//button[contains(., %s)]`, xpathLiteral(label))),
	).First()
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	switch {
	case !strings.ContainsRune(s, '"'):
		return `"` + s + `"`
	case !strings.ContainsRune(s, '\''):
		return `'` + s + `'`
	default:
		out := "concat("
		part := ""
		for _, r := range s {
			if r == '"' {
				if part != "" {
					out += `"` + part + `",`
				}
				out += `'"',`
				part = ""
				continue
			}
			part += string(r)
		}
		if part != "" {
			out += `"` + part + `",`
		}
		return out[:len(out)-1] + ")"
	}
}
