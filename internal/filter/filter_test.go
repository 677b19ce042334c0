package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/ui/uitest"
)

func newPanel(t *testing.T, key string) (*Panel, *uitest.Surface) {
	t.Helper()
	data := config.DefaultTestData()
	surface := uitest.New()
	return NewPanel(surface, data.MustCategory(key), data.ButtonText, DefaultTimeouts()), surface
}

func TestSelection_ToggleIsCheckboxFlip(t *testing.T) {
	s := NewSelection()
	s = s.Toggle("4.0")
	assert.True(t, s.Has("4.0"))
	s = s.Toggle("0.0 - 2.9")
	assert.Equal(t, []string{"4.0", "0.0 - 2.9"}, s.Values())
	s = s.Toggle("4.0")
	assert.Equal(t, []string{"0.0 - 2.9"}, s.Values())
	assert.Equal(t, "{0.0 - 2.9}", s.String())
}

func TestSelection_NewDropsDuplicates(t *testing.T) {
	assert.Equal(t, 2, NewSelection("a", "b", "a").Len())
	assert.True(t, NewSelection("a", "b").Equal(NewSelection("b", "a")))
	assert.False(t, NewSelection("a").Equal(NewSelection("b")))
}

func TestSelection_DiffUnchecksThenChecks(t *testing.T) {
	current := NewSelection("English")
	target := NewSelection("Spanish")
	assert.Equal(t, []string{"English", "Spanish"}, current.Diff(target))
	assert.Empty(t, target.Diff(target))
}

func testSelection_DiffReachesTarget(t *rapid.T) {
	universe := []string{"NEW", "AWAITING_REVIEW", "AWAITING_PUBLICATION", "PUBLISHED"}
	current := NewSelection(rapid.SliceOf(rapid.SampledFrom(universe)).Draw(t, "current")...)
	target := NewSelection(rapid.SliceOf(rapid.SampledFrom(universe)).Draw(t, "target")...)

	got := current
	for _, v := range current.Diff(target) {
		got = got.Toggle(v)
	}
	if !got.Equal(target) {
		t.Fatalf("applying %v to %v gave %v, want %v", current.Diff(target), current, got, target)
	}
	original := current.Values()
	_ = current.Toggle("NEW")
	if len(current.Values()) != len(original) {
		t.Fatalf("Toggle mutated the receiver")
	}
}

func TestSelection_DiffReachesTarget(t *testing.T) {
	rapid.Check(t, testSelection_DiffReachesTarget)
}

func TestPanel_SelectSingleValue(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryMetricsScore)

	sel, err := p.Select(ctx, NewSelection(), NewSelection("4.0"), ExactTile("4.0"))
	require.NoError(t, err)
	assert.Equal(t, []string{"4.0"}, sel.Values())
	assert.Equal(t, SettledVisible, p.State())
	assert.Equal(t, []string{
		"click filters.dropdown[Metrics Score]",
		"click filters.checkbox[4.0]",
		"click filters.apply",
	}, surface.Ops("click"))
	assert.Equal(t, 1, surface.Settles)
}

func TestPanel_SelectSwitchesBuckets(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryMetricsScore)

	sel, err := p.Select(ctx, NewSelection(), NewSelection("4.0"), ExactTile("4.0"))
	require.NoError(t, err)
	sel, err = p.Select(ctx, sel, NewSelection("0.0 - 2.9"), ExactTile("0.0 - 2.9"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0.0 - 2.9"}, sel.Values())

	clicks := surface.Ops("click")
	assert.Equal(t, []string{
		"click filters.dropdown[Metrics Score]",
		"click filters.checkbox[4.0]",
		"click filters.checkbox[0.0 - 2.9]",
		"click filters.apply",
	}, clicks[3:])
}

func TestPanel_IllegalTransitions(t *testing.T) {
	ctx := context.Background()
	p, _ := newPanel(t, config.CategoryLanguage)

	_, err := p.Toggle(ctx, NewSelection(), "en")
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
	assert.True(t, errs.Is(p.Apply(ctx), errs.FailedPrecondition))
	assert.True(t, errs.Is(p.WaitSettled(ctx, ExactTile("English")), errs.FailedPrecondition))

	require.NoError(t, p.Open(ctx))
	assert.True(t, errs.Is(p.Open(ctx), errs.FailedPrecondition), "open twice")
	require.NoError(t, p.Apply(ctx))
	assert.True(t, errs.Is(p.Open(ctx), errs.FailedPrecondition), "open before tile")
}

func TestPanel_MissingTileFailsHard(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryLanguage)
	surface.SetMissing(false, locator.FilterTile("Spanish").Name)

	_, err := p.Select(ctx, NewSelection(), NewSelection("es"), ExactTile("Spanish"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))
	assert.Equal(t, Applied, p.State())
	assert.NotContains(t, surface.Ops("wait", "wait-miss"), "wait filters.anyChip")
}

func TestPanel_StatusTileFallsBackToAnyChip(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryStatus)
	surface.SetMissing(false, locator.NewFilterTile("New").Name)

	_, err := p.Select(ctx, NewSelection(), NewSelection("NEW", "AWAITING_REVIEW"), PartialTile("New"))
	require.NoError(t, err)
	assert.Contains(t, surface.Ops("wait"), "wait filters.anyChip")
	assert.Equal(t, SettledVisible, p.State())
}

func TestPanel_StatusFallbackAlsoMissing(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryStatus)
	surface.SetMissing(false, locator.FilterTile("Published").Name, locator.AnyFilterChip().Name)

	_, err := p.Select(ctx, NewSelection(), NewSelection("PUBLISHED"), ExactTile("Published"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))
	assert.Contains(t, err.Error(), `no tile "Published"`)
}

func TestPanel_ClearAllTogglesEveryValue(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryStatus)

	require.NoError(t, p.ClearAll(ctx))
	assert.Equal(t, Closed, p.State())
	assert.Equal(t, []string{
		"click filters.dropdown[Status]",
		"click filters.checkbox[NEW]",
		"click filters.checkbox[AWAITING_REVIEW]",
		"click filters.checkbox[AWAITING_PUBLICATION]",
		"click filters.checkbox[PUBLISHED]",
		"click filters.clearAll",
	}, surface.Ops("click"))
}

func TestClearAllFilters_ResetsPanels(t *testing.T) {
	ctx := context.Background()
	p, surface := newPanel(t, config.CategoryLanguage)
	_, err := p.Select(ctx, NewSelection(), NewSelection("en"), ExactTile("English"))
	require.NoError(t, err)

	require.NoError(t, ClearAllFilters(ctx, surface, "Clear all filters", DefaultTimeouts().Primary, p))
	assert.Equal(t, Closed, p.State())
	assert.Contains(t, surface.Ops("click"), "click filters.clearAllFilters")
}
