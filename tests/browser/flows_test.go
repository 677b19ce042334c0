package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/flows"
	"github.com/kuitang/gridcheck/internal/reviewapp"
	"github.com/kuitang/gridcheck/internal/s3store"
	"github.com/kuitang/gridcheck/internal/scenario"
)

func runFlow(t *testing.T, env *BrowserTestEnv, name string, opts ...scenario.Option) *scenario.Runner {
	t.Helper()
	opts = append(opts, scenario.WithSink(scenario.TestSink{T: t}))
	r := scenario.NewRunner(name, scenario.NewContext(env.Env, env.Data), opts...)
	require.NoError(t, flows.Run(context.Background(), name, r, env.Session.Surface))
	return r
}

func TestFiltersFlow(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	r := runFlow(t, env, flows.FiltersName)
	assert.False(t, r.Failed())
	assert.NotEmpty(t, r.Results())
}

func TestEditFlow_TranslationReview(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	r := runFlow(t, env, flows.EditScoredName)
	require.False(t, r.Failed())

	d, err := env.App.Store().FindByName("QA_Automation_Doc_de")
	require.NoError(t, err)
	assert.Equal(t, reviewapp.StatusPublished, d.Status)
	assert.True(t, d.Edited)
}

func TestEditFlow_EnglishReview(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	r := runFlow(t, env, flows.EditUnscoredName)
	require.False(t, r.Failed())

	d, err := env.App.Store().FindByName("QA_Automation_Doc_en")
	require.NoError(t, err)
	assert.Equal(t, reviewapp.StatusPublished, d.Status)
}

// TestFailureScreenshotUploaded points the flow at a missing document so
// the search step fails and its screenshot lands in the bucket.
func TestFailureScreenshotUploaded(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	store := s3store.TestStore(t, "artifacts")
	env.Data.SearchTerms.DocName = "No_Such_Document"

	r := scenario.NewRunner(flows.EditScoredName, scenario.NewContext(env.Env, env.Data),
		scenario.WithFailureScreenshots(env.Session.Surface, store, "runs"))
	require.NoError(t, flows.Run(context.Background(), flows.EditScoredName, r, env.Session.Surface))
	require.True(t, r.Failed())

	var key string
	for _, res := range r.Results() {
		if res.Status == scenario.Failed && res.Artifact != "" {
			key = res.Artifact
			break
		}
	}
	require.NotEmpty(t, key, "a failed step should carry its screenshot key")
	ok, err := store.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}
