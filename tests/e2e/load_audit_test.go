package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/loadgen"
	"github.com/kuitang/gridcheck/internal/reviewapp"
	"github.com/kuitang/gridcheck/internal/s3store"
)

func TestLoadReplay_PacedAgainstFixture(t *testing.T) {
	f := newFixture(t, reviewapp.Options{})
	wf := api.ReviewWorkflow{
		Email:        reviewer().Email,
		Password:     reviewer().Password,
		DocumentName: "QA_Automation_Doc_de",
		ReadOnly:     true,
	}
	cfg := loadgen.Config{VUs: 3, Iterations: 2, RequestsPerSecond: 200, Burst: 10}

	s, err := loadgen.Run(context.Background(), cfg, wf, f.client)
	require.NoError(t, err)
	assert.True(t, s.OK(), "errors: %v", s.Errors)
	assert.Equal(t, 6, s.Iterations)

	d, err := f.App.Store().FindByName("QA_Automation_Doc_de")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Version, "read-only replay must not edit")
}

// TestLoadReplay_OnlyOneWriterPublishes runs the full workflow from several
// users on one document: exactly one publishes, the rest see it published.
func TestLoadReplay_OnlyOneWriterPublishes(t *testing.T) {
	f := newFixture(t, reviewapp.Options{})
	wf := api.ReviewWorkflow{
		Email:        reviewer().Email,
		Password:     reviewer().Password,
		DocumentName: "Product_Guide_ko",
	}

	s, err := loadgen.Run(context.Background(), loadgen.Config{VUs: 3, Iterations: 1}, wf, f.client)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Iterations)
	assert.GreaterOrEqual(t, s.Failed, 2)

	d, err := f.App.Store().FindByName("Product_Guide_ko")
	require.NoError(t, err)
	assert.Equal(t, reviewapp.StatusPublished, d.Status)
}

// TestFailureArtifactsAndAudit stores exports the way the pipeline lays them
// out and audits them.
func TestFailureArtifactsAndAudit(t *testing.T) {
	store := s3store.TestStore(t, "review-exports")
	ctx := context.Background()

	for _, name := range []string{"QA_Automation_Doc_de", "Product_Guide_es", "Legal_Notice_jp"} {
		require.NoError(t, store.Put(ctx, "markdown/"+name+"/"+name+".md", []byte("# "+name), "text/markdown"))
		if name != "Legal_Notice_jp" {
			require.NoError(t, store.Put(ctx, s3store.XMLKey("markdown/"+name+"/"), []byte("<doc/>"), "application/xml"))
		}
	}

	report, err := store.AuditMarkdownFolders(ctx, "markdown")
	require.NoError(t, err)
	require.Len(t, report.Folders, 3)
	missing := report.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, "markdown/Legal_Notice_jp/Legal_Notice_jp.xml", missing[0].XMLKey)
}
