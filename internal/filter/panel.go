package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ui"
)

// State is the dropdown lifecycle of a Panel.
type State int

const (
	Closed State = iota
	Open
	Toggled
	Applied
	SettledVisible
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Toggled:
		return "toggled"
	case Applied:
		return "applied"
	case SettledVisible:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timeouts bound the panel's waits.
type Timeouts struct {
	// Primary bounds required waits: triggers, checkboxes, buttons, tiles.
	Primary time.Duration
	// Fallback bounds the any-chip wait after a missing status tile.
	Fallback time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{Primary: 10 * time.Second, Fallback: 5 * time.Second}
}

// Tile identifies the toolbar tile that proves an applied filter.
type Tile struct {
	Text string
	// Partial matches tiles whose text only contains Text, like the New
	// status tile that carries a badge count.
	Partial bool
}

// ExactTile is a tile whose text equals text.
func ExactTile(text string) Tile { return Tile{Text: text} }

// PartialTile is a tile whose text contains text.
func PartialTile(text string) Tile { return Tile{Text: text, Partial: true} }

func (t Tile) chain() locator.Chain {
	if t.Partial {
		return locator.NewFilterTile(t.Text)
	}
	return locator.FilterTile(t.Text)
}

// Panel is one category dropdown. It tracks only the dropdown lifecycle;
// which values are checked is threaded by callers as a Selection.
type Panel struct {
	surface  ui.Surface
	category config.FilterCategory
	buttons  config.ButtonText
	timeouts Timeouts
	state    State
}

func NewPanel(surface ui.Surface, category config.FilterCategory, buttons config.ButtonText, timeouts Timeouts) *Panel {
	return &Panel{surface: surface, category: category, buttons: buttons, timeouts: timeouts}
}

func (p *Panel) State() State { return p.state }

func (p *Panel) Category() config.FilterCategory { return p.category }

func (p *Panel) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if p.state == s {
			return nil
		}
	}
	return errs.New(errs.FailedPrecondition,
		fmt.Sprintf("filter %s: cannot %s while %s", p.category.Label, op, p.state))
}

// Open clicks the category trigger and waits for it to stay visible.
func (p *Panel) Open(ctx context.Context) error {
	if err := p.require("open", Closed, SettledVisible); err != nil {
		return err
	}
	trigger := locator.FilterDropdown(p.category.Label)
	if err := p.surface.WaitVisible(ctx, trigger, p.timeouts.Primary); err != nil {
		return err
	}
	if err := p.surface.Click(ctx, trigger, p.timeouts.Primary); err != nil {
		return err
	}
	if err := p.surface.WaitVisible(ctx, trigger, p.timeouts.Primary); err != nil {
		return err
	}
	obs.From(ctx).Info("filter dropdown opened", "event", "action", "filter", p.category.Label)
	p.state = Open
	return nil
}

// Toggle clicks the checkbox for value and returns sel with value flipped.
func (p *Panel) Toggle(ctx context.Context, sel Selection, value string) (Selection, error) {
	if err := p.require("toggle", Open, Toggled); err != nil {
		return sel, err
	}
	box := locator.FilterCheckbox(value)
	if err := p.surface.WaitVisible(ctx, box, p.timeouts.Primary); err != nil {
		return sel, err
	}
	if err := p.surface.Click(ctx, box, p.timeouts.Primary); err != nil {
		return sel, err
	}
	next := sel.Toggle(value)
	obs.From(ctx).Info("filter value toggled", "event", "action", "filter", p.category.Label,
		"value", value, "checked", next.Has(value))
	p.state = Toggled
	return next, nil
}

// Apply clicks the visible Apply button.
func (p *Panel) Apply(ctx context.Context) error {
	if err := p.require("apply", Open, Toggled); err != nil {
		return err
	}
	apply := locator.ApplyButton(p.buttons.Apply)
	if err := p.surface.WaitVisible(ctx, apply, p.timeouts.Primary); err != nil {
		return err
	}
	if err := p.surface.Click(ctx, apply, p.timeouts.Primary); err != nil {
		return err
	}
	obs.From(ctx).Info("filter applied", "event", "action", "filter", p.category.Label)
	p.state = Applied
	return nil
}

// WaitSettled waits for tile. Categories with chip fallback accept any chip
// in the filter bar when the tile never shows.
func (p *Panel) WaitSettled(ctx context.Context, tile Tile) error {
	if err := p.require("wait for tile", Applied); err != nil {
		return err
	}
	logger := obs.From(ctx)
	err := p.surface.WaitVisible(ctx, tile.chain(), p.timeouts.Primary)
	if err != nil {
		if !p.category.ChipFallback {
			return err
		}
		logger.Info("filter tile not found, checking for any filter chip",
			"event", "info", "filter", p.category.Label, "tile", tile.Text)
		if ferr := p.surface.WaitVisible(ctx, locator.AnyFilterChip(), p.timeouts.Fallback); ferr != nil {
			return errs.Wrap(errs.Timeout, fmt.Sprintf("filter %s: no tile %q and no chip", p.category.Label, tile.Text), ferr)
		}
		logger.Info("filter applied (chip detected in filter bar)", "event", "verify", "filter", p.category.Label)
	} else {
		logger.Info("filter tile visible", "event", "verify", "filter", p.category.Label, "tile", tile.Text)
	}
	p.surface.Settle(ctx)
	p.state = SettledVisible
	return nil
}

// ClearAll opens the dropdown, clicks every known value and then the
// dropdown's Clear All button. Clicking flips each checkbox, so previously
// checked values end up unchecked before Clear All resets the rest.
func (p *Panel) ClearAll(ctx context.Context) error {
	if err := p.Open(ctx); err != nil {
		return err
	}
	sel := Selection{}
	for _, v := range p.category.Values() {
		var err error
		if sel, err = p.Toggle(ctx, sel, v); err != nil {
			return err
		}
	}
	button := locator.ClearAllButton(p.buttons.ClearAll)
	if err := p.surface.WaitVisible(ctx, button, p.timeouts.Primary); err != nil {
		return err
	}
	if err := p.surface.Click(ctx, button, p.timeouts.Primary); err != nil {
		return err
	}
	obs.From(ctx).Info("all filter values cleared", "event", "action", "filter", p.category.Label)
	p.surface.Settle(ctx)
	p.state = Closed
	return nil
}

// Select moves the dropdown from current to target in one session and
// returns target once its tile is visible.
func (p *Panel) Select(ctx context.Context, current, target Selection, tile Tile) (Selection, error) {
	if err := p.Open(ctx); err != nil {
		return current, err
	}
	sel := current
	for _, v := range current.Diff(target) {
		var err error
		if sel, err = p.Toggle(ctx, sel, v); err != nil {
			return sel, err
		}
	}
	if err := p.Apply(ctx); err != nil {
		return sel, err
	}
	if err := p.WaitSettled(ctx, tile); err != nil {
		return sel, err
	}
	return sel, nil
}

// Reset marks the dropdown closed without touching the page, for use after
// a toolbar-wide clear.
func (p *Panel) Reset() { p.state = Closed }

// ClearAllFilters clicks the toolbar "Clear all filters" button and resets
// every given panel.
func ClearAllFilters(ctx context.Context, surface ui.Surface, label string, timeout time.Duration, panels ...*Panel) error {
	button := locator.ClearAllFiltersButton(label)
	if err := surface.WaitVisible(ctx, button, timeout); err != nil {
		return err
	}
	if err := surface.Click(ctx, button, timeout); err != nil {
		return err
	}
	obs.From(ctx).Info("clear all filters clicked", "event", "action")
	surface.Settle(ctx)
	for _, p := range panels {
		p.Reset()
	}
	return nil
}
