// Package flows holds the end-to-end scenarios of the review application:
// the filter walk-through and the review edit flow in its scored
// (translation review) and unscored (English source review) variants.
//
// A flow only registers steps on a scenario.Runner; the runner decides
// whether later steps run after a failure.
package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/grid"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/pages"
	"github.com/kuitang/gridcheck/internal/scenario"
	"github.com/kuitang/gridcheck/internal/ui"
)

// Flow names as they appear in results and artifact keys.
const (
	FiltersName      = "filters"
	EditScoredName   = "edit-translation-review"
	EditUnscoredName = "edit-english-review"
)

// Names lists every flow Run accepts.
func Names() []string {
	return []string{FiltersName, EditScoredName, EditUnscoredName}
}

// Run executes the named flow on r.
func Run(ctx context.Context, name string, r *scenario.Runner, surface ui.Surface) error {
	switch name {
	case FiltersName:
		return Filters(ctx, r, surface)
	case EditScoredName:
		return Edit(ctx, r, surface, TranslationReview)
	case EditUnscoredName:
		return Edit(ctx, r, surface, EnglishReview)
	}
	return fmt.Errorf("unknown flow %q", name)
}

// loginStep logs in with creds and waits for the dashboard titled title.
// It records the unfiltered row count for later comparison.
func loginStep(surface ui.Surface, dash *pages.Dashboard, creds func(config.Environment) config.Credentials) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		obs.From(ctx).Info("logging in", "event", "info", "environment", sc.Env.Name, "base_url", sc.Env.BaseURL)
		login := pages.NewLogin(surface, sc.Env.BaseURL, creds(sc.Env))
		if err := login.Goto(ctx); err != nil {
			return sc, err
		}
		if err := login.Login(ctx); err != nil {
			return sc, err
		}
		if _, err := dash.WaitForDashboard(ctx); err != nil {
			return sc, err
		}
		n, err := dash.Extractor().Reader().RowCount(ctx)
		if err != nil {
			return sc, err
		}
		sc.UnfilteredRows = n
		return sc, nil
	}
}

func translationCreds(env config.Environment) config.Credentials { return env.Translation }

func englishCreds(env config.Environment) config.Credentials { return env.English }

// findStep searches for the scenario document and records its row. With
// hard set a miss ends the step.
func findStep(dash *pages.Dashboard, hard bool) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		row, found, err := dash.SearchAndFind(ctx, sc.Document)
		if err != nil {
			return sc, err
		}
		msg := fmt.Sprintf("document %q not found in grid", sc.Document)
		if hard && !found {
			t.Fatalf("%s", msg)
		}
		assert.True(t, found, msg)
		return sc.WithRow(row, found), nil
	}
}

// baseName strips the transient New badge from a document name cell.
func baseName(data grid.RowData) string {
	return strings.TrimSpace(strings.TrimSuffix(data.DocumentName(), "New"))
}
