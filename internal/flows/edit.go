package flows

import (
	"context"
	"strconv"
	"strings"

	"github.com/stretchr/testify/assert"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/grid"
	"github.com/kuitang/gridcheck/internal/pages"
	"github.com/kuitang/gridcheck/internal/scenario"
	"github.com/kuitang/gridcheck/internal/ui"
)

// EditVariant describes one reviewer portal.
type EditVariant struct {
	Name string
	// Title is the dashboard heading.
	Title string
	// Suffix is appended to the search term to name the edited document.
	Suffix string
	// Scored portals show per-dimension scores in the grid and editor.
	Scored bool
	creds  func(config.Environment) config.Credentials
}

var (
	TranslationReview = EditVariant{
		Name:   EditScoredName,
		Title:  pages.TranslationReviewTitle,
		Suffix: "_de",
		Scored: true,
		creds:  translationCreds,
	}
	EnglishReview = EditVariant{
		Name:   EditUnscoredName,
		Title:  pages.EnglishReviewTitle,
		Suffix: "_en",
		creds:  englishCreds,
	}
)

func parseScore(data grid.RowData, key string) float64 {
	v, _ := strconv.ParseFloat(data[key], 64)
	return v
}

func statusTile(data *config.TestData, key string) string {
	c, _ := data.Category(config.CategoryStatus)
	return option(c, key).Tile
}

// Edit runs the review edit flow: baseline check, text edit, discard or
// persistence check, sub-document navigation, scoring (scored portals),
// status transition, publish and logout.
func Edit(ctx context.Context, r *scenario.Runner, surface ui.Surface, v EditVariant) error {
	data := r.State().Data
	dash := pages.NewDashboard(surface, v.Title, data)
	editor := pages.NewEditDetails(surface, data.WaitTimes)
	awaitingReview := statusTile(data, "awaitingReview")
	awaitingPublication := statusTile(data, "awaitingPublication")
	published := statusTile(data, "published")
	hard := v.Scored

	login := loginStep(surface, dash, v.creds)
	r.Step(ctx, "Step 1: Login and verify dashboard loads", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		sc.Document = data.SearchTerms.DocName + v.Suffix
		return login(ctx, t, sc)
	})

	r.Step(ctx, "Step 2: Search and find document in grid", findStep(dash, true))

	r.Step(ctx, "Step 3: Verify baseline document data", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		row, err := dash.ExtractRow(ctx, sc.Row)
		if err != nil {
			return sc, err
		}
		assert.Equal(t, sc.Document, baseName(row), "document name")
		assert.NotEmpty(t, row[grid.KeyVersion], "version")
		assert.Equal(t, awaitingReview, row.Status(), "status")
		if v.Scored {
			for _, key := range []string{grid.KeyAvgFluency, grid.KeyAvgAdequacy, grid.KeyAvgCompliance} {
				assert.Equal(t, data.Scores.Initial, parseScore(row, key), key)
			}
		}
		sc.Baseline = row
		return sc, nil
	})

	r.Step(ctx, "Step 4: Edit document with simple text", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		if err := dash.OpenEditDetails(ctx, sc.Row); err != nil {
			return sc, err
		}
		if err := editor.WaitForEditor(ctx); err != nil {
			return sc, err
		}
		if err := editor.FillTextarea(ctx, data.TestContent.SimpleText); err != nil {
			return sc, err
		}
		if err := verifyTextarea(ctx, t, editor, data.TestContent.SimpleText); err != nil {
			return sc, err
		}
		return sc, editor.SaveChanges(ctx, dash.SearchInput())
	})

	reopen := func(ctx context.Context, t *scenario.StepT, sc scenario.Context, hard bool) (scenario.Context, grid.RowData, error) {
		sc, err := findStep(dash, hard)(ctx, t, sc)
		if err != nil || !sc.Found {
			return sc, nil, err
		}
		row, err := dash.ExtractRow(ctx, sc.Row)
		if err != nil {
			return sc, nil, err
		}
		if err := dash.OpenEditDetails(ctx, sc.Row); err != nil {
			return sc, row, err
		}
		return sc, row, editor.WaitForEditor(ctx)
	}

	if v.Scored {
		r.Step(ctx, "Step 5: Edit with markdown content and test cancel flow", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
			sc, _, err := reopen(ctx, t, sc, true)
			if err != nil {
				return sc, err
			}
			if err := editor.FillTextarea(ctx, data.TestContent.MarkdownTable); err != nil {
				return sc, err
			}
			if err := verifyTextarea(ctx, t, editor, data.TestContent.MarkdownTable); err != nil {
				return sc, err
			}
			return sc, editor.CancelChanges(ctx)
		})
	} else {
		r.Step(ctx, "Step 5: Verify edited content persists", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
			sc, row, err := reopen(ctx, t, sc, false)
			if err != nil {
				return sc, err
			}
			if !sc.Found {
				t.Fatalf("document %q not found in grid", sc.Document)
			}
			assert.Equal(t, sc.Document, baseName(row), "document name")
			assert.Equal(t, awaitingReview, row.Status(), "status before the last sub-document is visited")
			if err := verifyTextarea(ctx, t, editor, data.TestContent.SimpleText); err != nil {
				return sc, err
			}
			return sc, editor.FillTextarea(ctx, data.TestContent.MarkdownTable)
		})
	}

	r.Step(ctx, "Step 6: Navigate through document sub-files", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		last, err := editor.NavigateSteppers(ctx)
		if err != nil {
			return sc, err
		}
		if hard && !last {
			t.Fatalf("last sub-document not reached")
		}
		assert.True(t, last, "last sub-document reached")
		sc.LastStep = last
		return sc, nil
	})

	r.Step(ctx, "Step 7: Previous and Next buttons, then Save & Exit", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		if err := editor.PreviousNext(ctx, v.Scored); err != nil {
			return sc, err
		}
		return sc, editor.SaveAndExit(ctx, dash.SearchInput())
	})

	if v.Scored {
		// Save & Exit returned to the listing, so the document is reopened
		// before the scores are changed.
		r.Step(ctx, "Step 8: Edit document scores", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
			sc, _, err := reopen(ctx, t, sc, true)
			if err != nil {
				return sc, err
			}
			if err := editor.EditScores(ctx, data.Scores.FluencyUpdated, data.Scores.AdequacyUpdated, data.Scores.Initial); err != nil {
				return sc, err
			}
			return sc, editor.SaveAndExit(ctx, dash.SearchInput())
		})
	}

	r.Step(ctx, "Step 9: Verify updated document in listing", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		sc, err := findStep(dash, hard)(ctx, t, sc)
		if err != nil || !sc.Found {
			return sc, err
		}
		row, err := dash.ExtractRow(ctx, sc.Row)
		if err != nil {
			return sc, err
		}
		if v.Scored {
			fluency, adequacy := parseScore(row, grid.KeyAvgFluency), parseScore(row, grid.KeyAvgAdequacy)
			assert.Less(t, fluency, 4.0, "fluency")
			assert.Greater(t, fluency, 0.0, "fluency")
			assert.Less(t, adequacy, 4.0, "adequacy")
			assert.Greater(t, adequacy, 0.0, "adequacy")
			assert.GreaterOrEqual(t, parseScore(row, grid.KeyAvgCompliance), data.Scores.ComplianceFloor, "compliance")
		} else {
			assert.Equal(t, sc.Document, baseName(row), "document name")
		}
		assert.Equal(t, awaitingPublication, row.Status(), "status")
		return sc, nil
	})

	r.Step(ctx, "Step 10: Publish document with cancel flow", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		if err := dash.PublishWithCancel(ctx, sc.Row); err != nil {
			return sc, err
		}
		status, err := dash.PublishStatus(ctx, sc.Row)
		if err != nil {
			return sc, err
		}
		assert.Equal(t, published, status, "status after publish")
		return sc, nil
	})

	r.Step(ctx, "Step 11: Logout and verify session termination", func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		if err := dash.Logout(ctx); err != nil {
			return sc, err
		}
		url, err := pages.WaitForLoggedOut(ctx, surface)
		if err != nil {
			return sc, err
		}
		if hard && !strings.Contains(url, pages.LoginPath) {
			t.Fatalf("expected %s in %q", pages.LoginPath, url)
		}
		assert.Contains(t, url, pages.LoginPath)
		return sc, nil
	})
	return nil
}

func verifyTextarea(ctx context.Context, t assert.TestingT, editor *pages.EditDetails, expected string) error {
	got, err := editor.TextareaValue(ctx)
	if err != nil {
		return err
	}
	assert.Equal(t, expected, got, "editor content")
	return nil
}
