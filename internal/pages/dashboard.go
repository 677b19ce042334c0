package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/filter"
	"github.com/kuitang/gridcheck/internal/grid"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ui"
	"github.com/kuitang/gridcheck/internal/verify"
)

// Dashboard titles of the two reviewer portals.
const (
	TranslationReviewTitle = "Dashboard"
	EnglishReviewTitle     = "English Source Review"
)

// Context menu entries and dialog buttons.
const (
	MenuEditDetails     = "Edit Details"
	MenuPublishDocument = "Publish Document"
	DialogCancel        = "Cancel"
	DialogPublish       = "Publish"
	DialogLogout        = "Logout"
)

// Dashboard is the document listing.
type Dashboard struct {
	surface   ui.Surface
	title     string
	data      *config.TestData
	extractor *grid.Extractor
	verifier  *verify.Verifier
	panels    map[string]*filter.Panel
}

// NewDashboard builds the listing page object. Every filter category in data
// gets its own panel.
func NewDashboard(surface ui.Surface, title string, data *config.TestData) *Dashboard {
	ex := grid.NewExtractor(grid.NewBrowser(surface), surface)
	newStatus := verify.NewSuffix
	if status, ok := data.Category(config.CategoryStatus); ok {
		if opt, ok := status.Option("New"); ok {
			newStatus = opt.Tile
		}
	}
	d := &Dashboard{
		surface:   surface,
		title:     title,
		data:      data,
		extractor: ex,
		verifier:  verify.New(ex, newStatus),
		panels:    make(map[string]*filter.Panel, len(data.Filters)),
	}
	for _, c := range data.Filters {
		d.panels[c.Key] = filter.NewPanel(surface, c, data.ButtonText, filter.DefaultTimeouts())
	}
	return d
}

func (d *Dashboard) Extractor() *grid.Extractor { return d.extractor }

func (d *Dashboard) Verifier() *verify.Verifier { return d.verifier }

// SearchInput is the chain the edit page waits for when it returns here.
func (d *Dashboard) SearchInput() locator.Chain { return locator.SearchInput() }

// WaitForDashboard waits for the title and returns its text.
func (d *Dashboard) WaitForDashboard(ctx context.Context) (string, error) {
	title := locator.DashboardTitle(d.title)
	if err := d.surface.WaitVisible(ctx, title, DashboardTimeout); err != nil {
		return "", err
	}
	d.surface.Settle(ctx)
	text, err := d.surface.Text(ctx, title, OptionalTimeout)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	obs.From(ctx).Info("dashboard loaded", "event", "verify", "title", text)
	return text, nil
}

// Search types term into the search field, submits and waits for the grid.
func (d *Dashboard) Search(ctx context.Context, term string) error {
	logger := obs.From(ctx)
	if err := d.surface.WaitVisible(ctx, locator.SearchInput(), ActionTimeout); err != nil {
		return err
	}
	if err := d.surface.Fill(ctx, locator.SearchInput(), term, ActionTimeout); err != nil {
		return err
	}
	logger.Info("search query entered", "event", "action", "term", term)
	if err := d.surface.Click(ctx, locator.SearchButton(), ActionTimeout); err != nil {
		return err
	}
	logger.Info("search submitted", "event", "action")
	if err := d.surface.WaitVisible(ctx, locator.AnyGridCell(), LoadTimeout); err != nil {
		return err
	}
	d.surface.Settle(ctx)
	logger.Info("grid loaded", "event", "verify")
	return nil
}

// FindDocument locates name in the grid.
func (d *Dashboard) FindDocument(ctx context.Context, name string) (grid.RowHandle, bool, error) {
	return d.extractor.FindDocument(ctx, name)
}

// SearchAndFind searches for the configured document and locates name.
func (d *Dashboard) SearchAndFind(ctx context.Context, name string) (grid.RowHandle, bool, error) {
	if err := d.Search(ctx, d.data.SearchTerms.DocName); err != nil {
		return grid.Row(-1), false, err
	}
	return d.FindDocument(ctx, name)
}

// ExtractRow reads the allow-listed columns of row.
func (d *Dashboard) ExtractRow(ctx context.Context, row grid.RowHandle) (grid.RowData, error) {
	return d.extractor.ExtractRow(ctx, row)
}

// OpenContextMenu opens the kebab menu of row.
func (d *Dashboard) OpenContextMenu(ctx context.Context, row grid.RowHandle) error {
	menu := locator.RowMenuButton(row.Index)
	if err := d.surface.WaitVisible(ctx, menu, ActionTimeout); err != nil {
		return err
	}
	if err := d.surface.ScrollIntoView(ctx, menu, ActionTimeout); err != nil {
		return err
	}
	if err := d.surface.Click(ctx, menu, ActionTimeout); err != nil {
		return err
	}
	d.surface.Settle(ctx)
	obs.From(ctx).Info("context menu opened", "event", "action", "row", row.Index)
	return nil
}

func (d *Dashboard) selectMenuItem(ctx context.Context, text string) error {
	item := locator.MenuItem(text)
	if err := d.surface.WaitVisible(ctx, item, ActionTimeout); err != nil {
		return err
	}
	if err := d.surface.Click(ctx, item, ActionTimeout); err != nil {
		return err
	}
	d.surface.Settle(ctx)
	obs.From(ctx).Info("menu option selected", "event", "action", "option", text)
	return nil
}

// SelectEditDetails picks "Edit Details" from an open context menu.
func (d *Dashboard) SelectEditDetails(ctx context.Context) error {
	return d.selectMenuItem(ctx, MenuEditDetails)
}

// SelectPublish picks "Publish Document" from an open context menu.
func (d *Dashboard) SelectPublish(ctx context.Context) error {
	return d.selectMenuItem(ctx, MenuPublishDocument)
}

// OpenEditDetails opens the row's menu and chooses Edit Details.
func (d *Dashboard) OpenEditDetails(ctx context.Context, row grid.RowHandle) error {
	if err := d.OpenContextMenu(ctx, row); err != nil {
		return err
	}
	return d.SelectEditDetails(ctx)
}

func (d *Dashboard) confirm(ctx context.Context, button string) error {
	target := locator.DialogGroupButton(button)
	if err := d.surface.WaitVisible(ctx, target, ActionTimeout); err != nil {
		return err
	}
	if err := d.surface.Click(ctx, target, ActionTimeout); err != nil {
		return err
	}
	d.surface.Settle(ctx)
	return nil
}

// PublishWithCancel opens the publish dialog, cancels it, then publishes
// for real.
func (d *Dashboard) PublishWithCancel(ctx context.Context, row grid.RowHandle) error {
	logger := obs.From(ctx)
	if err := d.OpenContextMenu(ctx, row); err != nil {
		return err
	}
	if err := d.SelectPublish(ctx); err != nil {
		return err
	}
	if err := d.confirm(ctx, DialogCancel); err != nil {
		return fmt.Errorf("cancel publish: %w", err)
	}
	logger.Info("publish cancelled", "event", "action")

	if err := d.OpenContextMenu(ctx, row); err != nil {
		return err
	}
	if err := d.SelectPublish(ctx); err != nil {
		return err
	}
	if err := d.confirm(ctx, DialogPublish); err != nil {
		return fmt.Errorf("confirm publish: %w", err)
	}
	if err := d.surface.WaitNetworkIdle(ctx, LoadTimeout); err != nil {
		logger.Info("network idle timeout, continuing", "event", "info", "error", err)
	}
	d.surface.Settle(ctx)
	logger.Info("document published", "event", "pass", "row", row.Index)
	return nil
}

// PublishStatus reads the status cell of row, preferring the chip text.
func (d *Dashboard) PublishStatus(ctx context.Context, row grid.RowHandle) (string, error) {
	if err := d.surface.WaitVisible(ctx, locator.StatusCell(row.Index), OptionalTimeout); err != nil {
		return "", err
	}
	cell, ok, err := d.extractor.Reader().CellByColID(ctx, row, grid.KeyStatus)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.New(errs.NotFound, fmt.Sprintf("%s has no status cell", row))
	}
	status := cell.Display()
	obs.From(ctx).Info("status after publish", "event", "verify", "status", status)
	return status, nil
}

// Logout opens the logout dialog, cancels it, then logs out for real.
func (d *Dashboard) Logout(ctx context.Context) error {
	logger := obs.From(ctx)
	click := func() error {
		if err := d.surface.WaitVisible(ctx, locator.LogoutButton(), ActionTimeout); err != nil {
			return err
		}
		if err := d.surface.Click(ctx, locator.LogoutButton(), ActionTimeout); err != nil {
			return err
		}
		d.surface.Settle(ctx)
		return nil
	}
	if err := click(); err != nil {
		return err
	}
	if err := d.confirm(ctx, DialogCancel); err != nil {
		return fmt.Errorf("cancel logout: %w", err)
	}
	logger.Info("logout cancelled", "event", "action")
	if err := click(); err != nil {
		return err
	}
	if err := d.confirm(ctx, DialogLogout); err != nil {
		return fmt.Errorf("confirm logout: %w", err)
	}
	logger.Info("logout confirmed", "event", "action")
	return nil
}

// Panel returns the filter dropdown of a category key.
func (d *Dashboard) Panel(key string) (*filter.Panel, error) {
	p, ok := d.panels[key]
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "unknown filter category: "+key)
	}
	return p, nil
}

// ClearAllFilters clicks the toolbar reset and marks every dropdown closed.
func (d *Dashboard) ClearAllFilters(ctx context.Context) error {
	panels := make([]*filter.Panel, 0, len(d.panels))
	for _, c := range d.data.Filters {
		panels = append(panels, d.panels[c.Key])
	}
	return filter.ClearAllFilters(ctx, d.surface, d.data.ButtonText.ClearAllFilters, ActionTimeout, panels...)
}
