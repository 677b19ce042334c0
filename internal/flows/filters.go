package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/filter"
	"github.com/kuitang/gridcheck/internal/pages"
	"github.com/kuitang/gridcheck/internal/scenario"
	"github.com/kuitang/gridcheck/internal/ui"
	"github.com/kuitang/gridcheck/internal/verify"
)

// filterPlan resolves option keys of the test data once, before any step runs.
type filterPlan struct {
	metrics  config.FilterCategory
	language config.FilterCategory
	status   config.FilterCategory
}

func newFilterPlan(data *config.TestData) (*filterPlan, error) {
	p := &filterPlan{}
	for key, dst := range map[string]*config.FilterCategory{
		config.CategoryMetricsScore: &p.metrics,
		config.CategoryLanguage:     &p.language,
		config.CategoryStatus:       &p.status,
	} {
		c, ok := data.Category(key)
		if !ok {
			return nil, fmt.Errorf("test data has no %s filter", key)
		}
		*dst = c
	}
	return p, nil
}

func option(c config.FilterCategory, key string) config.FilterOption {
	o, _ := c.Option(key)
	return o
}

// values maps option keys to checkbox values.
func values(c config.FilterCategory, keys ...string) filter.Selection {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = option(c, k).Value
	}
	return filter.NewSelection(out...)
}

// selectStep moves category c from the selection recorded in the context to
// target and waits for tile.
func selectStep(dash *pages.Dashboard, c config.FilterCategory, target filter.Selection, tile filter.Tile) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		panel, err := dash.Panel(c.Key)
		if err != nil {
			return sc, err
		}
		sel, err := panel.Select(ctx, sc.Selections.Get(c.Key), target, tile)
		sc.Selections = sc.Selections.With(c.Key, sel)
		return sc, err
	}
}

func clearAllFiltersStep(dash *pages.Dashboard, c config.FilterCategory) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		if err := dash.ClearAllFilters(ctx); err != nil {
			return sc, err
		}
		sc.Selections = scenario.Selections{}
		n, err := dash.Extractor().Reader().RowCount(ctx)
		if err != nil {
			return sc, err
		}
		assert.Equal(t, sc.UnfilteredRows, n, "clearing %s filters restores the unfiltered grid", c.Label)
		return sc, nil
	}
}

func clearDropdownStep(dash *pages.Dashboard, c config.FilterCategory) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		panel, err := dash.Panel(c.Key)
		if err != nil {
			return sc, err
		}
		if err := panel.ClearAll(ctx); err != nil {
			return sc, err
		}
		sc.Selections = sc.Selections.With(c.Key, filter.Selection{})
		return sc, nil
	}
}

func metricsCheck(v *verify.Verifier, o config.FilterOption) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		_, err := v.MetricsScores(ctx, t, o.Lower, o.Upper)
		return sc, err
	}
}

func languageCheck(v *verify.Verifier, o config.FilterOption) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		_, err := v.Languages(ctx, t, o.Suffix)
		return sc, err
	}
}

func statusCheck(v *verify.Verifier, o config.FilterOption) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		_, err := v.Statuses(ctx, t, o.Tile)
		return sc, err
	}
}

func statusWithNewCheck(v *verify.Verifier, o config.FilterOption, suffix string) scenario.StepFunc {
	return func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
		_, err := v.StatusesWithSuffix(ctx, t, o.Tile, suffix)
		return sc, err
	}
}

// Filters walks the metrics score, language and status filters of the
// translation review dashboard, verifying every visible row after each
// single-value selection and clearing each category at the end.
func Filters(ctx context.Context, r *scenario.Runner, surface ui.Surface) error {
	data := r.State().Data
	plan, err := newFilterPlan(data)
	if err != nil {
		return err
	}
	dash := pages.NewDashboard(surface, pages.TranslationReviewTitle, data)
	v := dash.Verifier()
	m, l, s := plan.metrics, plan.language, plan.status

	type step struct {
		name string
		fn   scenario.StepFunc
	}
	metricTile := func(key string) filter.Tile { return filter.ExactTile(option(m, key).Tile) }
	langTile := func(key string) filter.Tile { return filter.ExactTile(option(l, key).Tile) }
	statusTile := func(key string) filter.Tile { return filter.ExactTile(option(s, key).Tile) }
	newTile := filter.PartialTile(option(s, "New").Tile)
	newSuffix := option(s, "New").Tile

	steps := []step{
		{"Step 1: Login and verify dashboard loads", loginStep(surface, dash, translationCreds)},

		{"Step 2: Apply Metrics Score 4.0", selectStep(dash, m, values(m, "fourPointZero"), metricTile("fourPointZero"))},
		{"Step 2.5: Verify average scores within 4.0 - 4.0", metricsCheck(v, option(m, "fourPointZero"))},
		{"Step 3: Apply Metrics Score 0.0 - 2.9 only", selectStep(dash, m, values(m, "zeroToTwoPointNine"), metricTile("zeroToTwoPointNine"))},
		{"Step 3.5: Verify average scores within 0.0 - 2.9", metricsCheck(v, option(m, "zeroToTwoPointNine"))},
		{"Step 4: Apply Metrics Score 3.0 - 3.4 only", selectStep(dash, m, values(m, "threeToThreePointFour"), metricTile("threeToThreePointFour"))},
		{"Step 4.5: Verify average scores within 3.0 - 3.49", metricsCheck(v, option(m, "threeToThreePointFour"))},
		{"Step 5: Apply Metrics Score 3.5 - 3.9 only", selectStep(dash, m, values(m, "threePointFiveToThreePointNine"), metricTile("threePointFiveToThreePointNine"))},
		{"Step 5.5: Verify average scores within 3.5 - 3.9", metricsCheck(v, option(m, "threePointFiveToThreePointNine"))},
		{"Step 6: Apply Metrics Score 3.5 - 3.9 and 4.0", selectStep(dash, m,
			values(m, "threePointFiveToThreePointNine", "fourPointZero"), metricTile("fourPointZero"))},
		{"Step 7: Apply Metrics Score 0.0 - 2.9, 3.5 - 3.9 and 4.0", selectStep(dash, m,
			values(m, "threePointFiveToThreePointNine", "fourPointZero", "zeroToTwoPointNine"), metricTile("zeroToTwoPointNine"))},
		{"Step 8: Apply every Metrics Score bucket", selectStep(dash, m,
			values(m, "threePointFiveToThreePointNine", "fourPointZero", "zeroToTwoPointNine", "threeToThreePointFour"), metricTile("threeToThreePointFour"))},
		{"Step 9: Clear all applied filters", clearAllFiltersStep(dash, m)},
		{"Step 10: Clear all Metrics Score filters from dropdown", clearDropdownStep(dash, m)},
	}

	// Language: each single language replaces the previous one.
	langs := []string{"English", "Spanish", "Japanese", "German", "Korean"}
	n := 11
	for _, key := range langs {
		steps = append(steps,
			step{fmt.Sprintf("Step %d: Apply Language %s only", n, key), selectStep(dash, l, values(l, key), langTile(key))},
			step{fmt.Sprintf("Step %d.5: Verify document names end with %s code", n, key), languageCheck(v, option(l, key))},
		)
		n++
	}
	steps = append(steps,
		step{fmt.Sprintf("Step %d: Apply Language %s", n, strings.Join(langs, ", ")), selectStep(dash, l,
			values(l, "Korean", "English", "Spanish", "Japanese", "German"), langTile("English"))},
		step{fmt.Sprintf("Step %d: Clear all applied language filters", n+1), clearAllFiltersStep(dash, l)},
		step{fmt.Sprintf("Step %d: Clear all Language filters from dropdown", n+2), clearDropdownStep(dash, l)},
	)
	n += 3

	awaitingReview := option(s, "awaitingReview")
	awaitingPublication := option(s, "awaitingPublication")
	published := option(s, "published")
	steps = append(steps,
		step{fmt.Sprintf("Step %d: Apply Status New", n), selectStep(dash, s, values(s, "New"), newTile)},
		step{fmt.Sprintf("Step %d.5: Verify New status filter", n), func(ctx context.Context, t *scenario.StepT, sc scenario.Context) (scenario.Context, error) {
			_, err := v.NewFilterRows(ctx, t)
			return sc, err
		}},
		step{fmt.Sprintf("Step %d: Apply Status Awaiting Review only", n+1), selectStep(dash, s, values(s, "awaitingReview"), statusTile("awaitingReview"))},
		step{fmt.Sprintf("Step %d.5: Verify status is Awaiting Review", n+1), statusCheck(v, awaitingReview)},
		step{fmt.Sprintf("Step %d: Apply Status Awaiting Publication only", n+2), selectStep(dash, s, values(s, "awaitingPublication"), statusTile("awaitingPublication"))},
		step{fmt.Sprintf("Step %d.5: Verify status is Awaiting Publication", n+2), statusCheck(v, awaitingPublication)},
		step{fmt.Sprintf("Step %d: Apply Status Published only", n+3), selectStep(dash, s, values(s, "published"), statusTile("published"))},
		step{fmt.Sprintf("Step %d.5: Verify status is Published", n+3), statusCheck(v, published)},
		step{fmt.Sprintf("Step %d: Apply Status New and Awaiting Review", n+4), selectStep(dash, s, values(s, "New", "awaitingReview"), newTile)},
		step{fmt.Sprintf("Step %d.5: Verify Awaiting Review documents are New", n+4), statusWithNewCheck(v, awaitingReview, newSuffix)},
		step{fmt.Sprintf("Step %d: Apply Status New and Awaiting Publication", n+5), selectStep(dash, s, values(s, "New", "awaitingPublication"), newTile)},
		step{fmt.Sprintf("Step %d.5: Verify Awaiting Publication documents are New", n+5), statusWithNewCheck(v, awaitingPublication, newSuffix)},
		step{fmt.Sprintf("Step %d: Apply Status New and Published", n+6), selectStep(dash, s, values(s, "New", "published"), newTile)},
		step{fmt.Sprintf("Step %d.5: Verify Published documents are New", n+6), statusWithNewCheck(v, published, newSuffix)},
		// Clicking New, Awaiting Review and Awaiting Publication from
		// {New, Published} unchecks New, so the New tile never shows and
		// the chip fallback settles the step.
		step{fmt.Sprintf("Step %d: Toggle New, Awaiting Review and Awaiting Publication", n+7), selectStep(dash, s,
			values(s, "published", "awaitingReview", "awaitingPublication"), newTile)},
		step{fmt.Sprintf("Step %d: Clear all applied status filters", n+8), clearAllFiltersStep(dash, s)},
		step{fmt.Sprintf("Step %d: Clear all Status filters from dropdown", n+9), clearDropdownStep(dash, s)},
	)

	for _, st := range steps {
		r.Step(ctx, st.name, st.fn)
	}
	return nil
}
