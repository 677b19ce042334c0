package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/reviewapp"
)

func TestReviewWorkflow_BothPortals(t *testing.T) {
	tests := []struct {
		name     string
		user     reviewapp.SeedUser
		document string
	}{
		{"translation review", reviewer(), "QA_Automation_Doc_de"},
		{"english review", englishReviewer(), "QA_Automation_Doc_en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, reviewapp.Options{})
			wf := api.ReviewWorkflow{
				Email:           tt.user.Email,
				Password:        tt.user.Password,
				DocumentName:    tt.document,
				ExpectedSubDocs: reviewapp.SubDocumentsPerDocument,
			}
			st, err := wf.Run(context.Background(), f.client(api.Options{}))
			require.NoError(t, err)
			assert.Equal(t, api.StatusPublished, st.Document.Status)
			for _, sd := range st.Document.SubDocs {
				assert.Equal(t, api.StatusPublished, sd.Status, sd.ID)
			}

			// A rerun finds the document already published.
			_, err = wf.Run(context.Background(), f.client(api.Options{}))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.FailedPrecondition), "%v", err)
		})
	}
}

// TestEditsShowInDashboard checks that API edits reach the HTML grid the
// browser flows read.
func TestEditsShowInDashboard(t *testing.T) {
	f := newFixture(t, reviewapp.Options{})
	ctx := context.Background()
	c := f.client(api.Options{})
	_, err := c.Login(ctx, reviewer().Email, reviewer().Password)
	require.NoError(t, err)

	d, err := f.App.Store().FindByName("Product_Guide_es")
	require.NoError(t, err)
	var ids []string
	for _, sd := range d.SubDocs {
		ids = append(ids, sd.ID)
	}
	out, err := c.EditDocument(ctx, d.ID, api.EditDocumentPayload(ids, []api.MetricPayload{api.HumanScores(2, 2, 2)}))
	require.NoError(t, err)
	require.NotNil(t, out[0].Scores)
	assert.Equal(t, 2.0, out[0].Scores.Fluency)
	assert.True(t, out[0].Edited)
	assert.Equal(t, d.Version+1, out[0].Version)

	list, err := c.Listing(ctx, 1)
	require.NoError(t, err)
	listed, ok := list.Find("Product_Guide_es")
	require.True(t, ok)
	require.NotNil(t, listed.Scores)
	assert.Equal(t, 2.0, listed.Scores.Compliance)
	assert.Empty(t, listed.SubDocs, "listing omits sub-documents")
}

func TestPortalsSeeDisjointListings(t *testing.T) {
	f := newFixture(t, reviewapp.Options{})
	ctx := context.Background()

	trp := f.client(api.Options{})
	_, err := trp.Login(ctx, reviewer().Email, reviewer().Password)
	require.NoError(t, err)
	erp := f.client(api.Options{})
	_, err = erp.Login(ctx, englishReviewer().Email, englishReviewer().Password)
	require.NoError(t, err)

	a, err := trp.Listing(ctx, 1)
	require.NoError(t, err)
	b, err := erp.Listing(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, f.App.Store().Len(), a.Count+b.Count)
	for _, d := range a.Results {
		_, dup := b.Find(d.Name)
		assert.False(t, dup, d.Name)
		assert.NotEqual(t, reviewapp.LanguageEnglish, d.Language)
	}
}
