package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/logutil"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ui"
)

// Edit page buttons.
const (
	ButtonSaveChanges = "Save Changes"
	ButtonCancel      = "Cancel"
	ButtonSaveAndExit = "Save & Exit"
	ButtonPrevious    = "Previous"
	ButtonNext        = "Next"
)

// Score dimensions as the radio groups name them.
const (
	DimensionFluency    = "fluency"
	DimensionAdequacy   = "adequacy"
	DimensionCompliance = "compliance"
)

// EditDetails is the document editor with its sub-document stepper and
// optional scoring panel.
type EditDetails struct {
	surface ui.Surface
	waits   config.WaitTimes
}

func NewEditDetails(surface ui.Surface, waits config.WaitTimes) *EditDetails {
	return &EditDetails{surface: surface, waits: waits}
}

func (p *EditDetails) WaitForEditor(ctx context.Context) error {
	if err := p.surface.WaitVisible(ctx, locator.EditorTextarea(), LoadTimeout); err != nil {
		return err
	}
	p.surface.Settle(ctx)
	obs.From(ctx).Info("editor visible", "event", "verify")
	return nil
}

// FillTextarea replaces the editor content.
func (p *EditDetails) FillTextarea(ctx context.Context, content string) error {
	area := locator.EditorTextarea()
	if err := p.surface.Click(ctx, area, ActionTimeout); err != nil {
		return err
	}
	if err := p.surface.Pause(ctx, p.waits.TextareaFill()); err != nil {
		return err
	}
	if err := p.surface.Clear(ctx, area, ActionTimeout); err != nil {
		return err
	}
	if err := p.surface.Fill(ctx, area, content, ActionTimeout); err != nil {
		return err
	}
	p.surface.Settle(ctx)
	obs.From(ctx).Info("content updated", "event", "action", "content", logutil.Truncate(content, 50))
	return nil
}

// TextareaValue returns the editor's current value.
func (p *EditDetails) TextareaValue(ctx context.Context) (string, error) {
	return p.surface.InputValue(ctx, locator.EditorTextarea(), ActionTimeout)
}

func (p *EditDetails) clickFooter(ctx context.Context, text string) error {
	button := locator.FooterButton(text)
	if err := p.surface.WaitVisible(ctx, button, ActionTimeout); err != nil {
		return err
	}
	return p.surface.Click(ctx, button, ActionTimeout)
}

// returnToListing waits for the listing's search field after leaving the editor.
func (p *EditDetails) returnToListing(ctx context.Context, listing locator.Chain) error {
	if err := p.surface.WaitVisible(ctx, listing, LoadTimeout); err != nil {
		return fmt.Errorf("listing after save: %w", err)
	}
	p.surface.Settle(ctx)
	return nil
}

// SaveChanges saves and waits until listing is visible again.
func (p *EditDetails) SaveChanges(ctx context.Context, listing locator.Chain) error {
	if err := p.clickFooter(ctx, ButtonSaveChanges); err != nil {
		return err
	}
	obs.From(ctx).Info("save changes clicked", "event", "action")
	if err := p.returnToListing(ctx, listing); err != nil {
		return err
	}
	obs.From(ctx).Info("changes saved, back on listing", "event", "pass")
	return nil
}

// CancelChanges clicks Cancel and then the dialog's Cancel, which discards
// the edits and stays on the editor.
func (p *EditDetails) CancelChanges(ctx context.Context) error {
	if err := p.clickFooter(ctx, ButtonCancel); err != nil {
		return err
	}
	p.surface.Settle(ctx)
	// The dialog repeats the Cancel label; the second one discards.
	discard := locator.DialogButton(ButtonCancel).Nth(1)
	if err := p.surface.WaitVisible(ctx, discard, ActionTimeout); err != nil {
		return err
	}
	if err := p.surface.Click(ctx, discard, ActionTimeout); err != nil {
		return err
	}
	p.surface.Settle(ctx)
	obs.From(ctx).Info("discard confirmation handled", "event", "verify")
	return nil
}

// SaveAndExit clicks Cancel, confirms "Save & Exit" and waits for listing.
func (p *EditDetails) SaveAndExit(ctx context.Context, listing locator.Chain) error {
	if err := p.clickFooter(ctx, ButtonCancel); err != nil {
		return err
	}
	p.surface.Settle(ctx)
	confirm := locator.DialogButton(ButtonSaveAndExit).First()
	if err := p.surface.WaitVisible(ctx, confirm, ActionTimeout); err != nil {
		return err
	}
	if err := p.surface.Click(ctx, confirm, ActionTimeout); err != nil {
		return err
	}
	obs.From(ctx).Info("save and exit confirmed", "event", "action")
	return p.returnToListing(ctx, listing)
}

// NavigateSteppers clicks every sub-document in order and reports whether
// the last one was reached.
func (p *EditDetails) NavigateSteppers(ctx context.Context) (bool, error) {
	logger := obs.From(ctx)
	n, err := p.surface.Count(ctx, locator.StepperItems())
	if err != nil {
		return false, err
	}
	logger.Info("sub-documents in stepper", "event", "info", "count", n)
	for i := 0; i < n; i++ {
		item := locator.StepperItem(i)
		if err := p.surface.ScrollIntoView(ctx, item, ActionTimeout); err != nil {
			return false, err
		}
		label, err := p.surface.Text(ctx, locator.StepperLabel(i), OptionalTimeout)
		if err != nil {
			return false, err
		}
		logger.Info("sub-document", "event", "action", "position", fmt.Sprintf("%d/%d", i+1, n),
			"label", strings.TrimSpace(label))
		if err := p.surface.Click(ctx, item, ActionTimeout); err != nil {
			return false, err
		}
		p.surface.Settle(ctx)
		if i == n-1 {
			return true, nil
		}
	}
	return false, nil
}

// PreviousNext clicks Previous then Next. With scoring the scoring panel
// must be visible afterwards.
func (p *EditDetails) PreviousNext(ctx context.Context, hasScoring bool) error {
	logger := obs.From(ctx)
	for _, text := range []string{ButtonPrevious, ButtonNext} {
		button := locator.NavButton(text)
		if err := p.surface.WaitVisible(ctx, button, OptionalTimeout); err != nil {
			return err
		}
		if err := p.surface.Click(ctx, button, ActionTimeout); err != nil {
			return err
		}
		p.surface.Settle(ctx)
		logger.Info("navigation button clicked", "event", "action", "button", text)
	}
	if hasScoring {
		section := locator.ScoringSection()
		if err := p.surface.WaitVisible(ctx, section, ActionTimeout); err != nil {
			return err
		}
		if err := p.surface.ScrollIntoView(ctx, section, ActionTimeout); err != nil {
			return err
		}
		p.surface.Settle(ctx)
	}
	return nil
}

// EditScores selects new fluency and adequacy scores. Compliance is left
// as is and only logged.
func (p *EditDetails) EditScores(ctx context.Context, fluency, adequacy, compliance float64) error {
	logger := obs.From(ctx)
	for _, s := range []struct {
		dim   string
		value float64
	}{{DimensionFluency, fluency}, {DimensionAdequacy, adequacy}} {
		radio := locator.ScoreRadio(s.dim, s.value)
		if err := p.surface.WaitVisible(ctx, radio, OptionalTimeout); err != nil {
			return err
		}
		if err := p.surface.Click(ctx, radio, ActionTimeout); err != nil {
			return err
		}
		logger.Info("score modified", "event", "action", "dimension", s.dim, "value", locator.FormatScore(s.value))
	}
	logger.Info("score unchanged", "event", "info", "dimension", DimensionCompliance, "value", locator.FormatScore(compliance))
	return nil
}
