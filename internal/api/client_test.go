package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/ratelimit"
	"github.com/kuitang/gridcheck/internal/reviewapp"
)

const trpDocument = "QA_Automation_Doc_de"

func newFixture(t *testing.T) (*reviewapp.Server, *httptest.Server) {
	t.Helper()
	unlimited := ratelimit.Config{RPS: 10000, Burst: 10000, CleanupInterval: time.Minute}
	app, err := reviewapp.New(reviewapp.Options{
		Hasher:         auth.FakeInsecureHasher{},
		LoginRateLimit: &unlimited,
		APIRateLimit:   &unlimited,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})
	return app, ts
}

func newLoggedInClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})
	_, err := c.Login(context.Background(), reviewapp.DefaultUsers[0].Email, reviewapp.DefaultUsers[0].Password)
	require.NoError(t, err)
	return c
}

// TestReviewSequence walks the translation review calls one by one and
// checks each answer the way a reviewer's API session would.
func TestReviewSequence(t *testing.T) {
	_, ts := newFixture(t)
	ctx := context.Background()
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})

	resp, err := c.Login(ctx, reviewapp.DefaultUsers[0].Email, reviewapp.DefaultUsers[0].Password)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Access)
	assert.Equal(t, resp.Access, c.Token())
	assert.Equal(t, "translation", resp.User.Portal)

	list, err := c.Listing(ctx, 1)
	require.NoError(t, err)
	doc, ok := list.Find(trpDocument)
	require.True(t, ok, "listing should hold %s", trpDocument)

	details, err := c.DocumentDetails(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, details.Status)
	require.Len(t, details.SubDocs, reviewapp.SubDocumentsPerDocument)
	var subIDs []string
	for _, sd := range details.SubDocs {
		subIDs = append(subIDs, sd.ID)
	}

	_, err = c.EditDocument(ctx, doc.ID, EditDocumentPayload(subIDs, []MetricPayload{HumanContent(ReviewContent)}))
	require.NoError(t, err)

	out, err := c.EditDocument(ctx, doc.ID,
		EditDocumentPayload(subIDs, []MetricPayload{HumanScores(ReviewFluency, ReviewAdequacy, ReviewCompliance)}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	first := out[0].SubDocs[0].Metrics[0]
	assert.Equal(t, VendorHuman, first.Vendor)
	assert.Equal(t, 1.5, first.Fluency)
	assert.Equal(t, 2.5, first.Adequacy)
	assert.Equal(t, 4.0, first.Compliance)
	assert.Equal(t, ReviewContent, first.Content)

	for i := 0; i < len(subIDs)-1; i++ {
		out, err := c.EditDocument(ctx, doc.ID, NextPagePayload(subIDs[i]))
		require.NoError(t, err)
		assert.Equal(t, StatusAwaitingPublication, out[0].SubDocs[i].Status)
		assert.Equal(t, StatusAwaitingReview, out[0].Status, "last file still unreviewed")
	}

	out, err = c.PublishDocument(ctx, doc.ID, PublishPayload(subIDs[len(subIDs)-1]))
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, out[0].Status)

	_, err = c.PublishDocument(ctx, doc.ID, PublishPayload(subIDs[len(subIDs)-1]))
	assert.True(t, errs.Is(err, errs.FailedPrecondition), "second publish: %v", err)
}

func TestReviewWorkflow_Run(t *testing.T) {
	app, ts := newFixture(t)
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})
	w := ReviewWorkflow{
		Email:           reviewapp.DefaultUsers[0].Email,
		Password:        reviewapp.DefaultUsers[0].Password,
		DocumentName:    trpDocument,
		ExpectedSubDocs: reviewapp.SubDocumentsPerDocument,
	}

	st, err := w.Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, st.Document.Status)

	stored, err := app.Store().FindByName(trpDocument)
	require.NoError(t, err)
	assert.Equal(t, reviewapp.StatusPublished, stored.Status)
	sc, ok := stored.Scores()
	require.True(t, ok)
	assert.InDelta(t, 1.5, sc.Fluency, 1e-9)
}

func TestReviewWorkflow_UnscoredDocument(t *testing.T) {
	app, ts := newFixture(t)
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})
	w := ReviewWorkflow{
		Email:        reviewapp.DefaultUsers[1].Email,
		Password:     reviewapp.DefaultUsers[1].Password,
		DocumentName: "QA_Automation_Doc_en",
	}

	_, err := w.Run(context.Background(), c)
	require.NoError(t, err)

	stored, err := app.Store().FindByName("QA_Automation_Doc_en")
	require.NoError(t, err)
	assert.Equal(t, reviewapp.StatusPublished, stored.Status)
	assert.Equal(t, ReviewContent, stored.SubDocs[0].EnglishContent)
}

func TestReviewWorkflow_ReadOnlyLeavesDocumentAlone(t *testing.T) {
	app, ts := newFixture(t)
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})
	w := ReviewWorkflow{
		Email:        reviewapp.DefaultUsers[0].Email,
		Password:     reviewapp.DefaultUsers[0].Password,
		DocumentName: "Release_Notes_de",
		ReadOnly:     true,
	}
	assert.Len(t, w.Steps(), 4)

	_, err := w.Run(context.Background(), c)
	require.NoError(t, err)

	stored, err := app.Store().FindByName("Release_Notes_de")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestReviewWorkflow_WrongSubDocumentCount(t *testing.T) {
	_, ts := newFixture(t)
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})
	w := ReviewWorkflow{
		Email:           reviewapp.DefaultUsers[0].Email,
		Password:        reviewapp.DefaultUsers[0].Password,
		DocumentName:    trpDocument,
		ExpectedSubDocs: 5,
	}
	_, err := w.Run(context.Background(), c)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
	assert.Contains(t, err.Error(), "document details")
}

func TestLogin_WrongPassword(t *testing.T) {
	_, ts := newFixture(t)
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})

	_, err := c.Login(context.Background(), reviewapp.DefaultUsers[0].Email, "nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.PermissionDenied))
	assert.Empty(t, c.Token())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "invalid email or password", se.Detail)
}

func TestCallsBeforeLogin(t *testing.T) {
	c := New("http://127.0.0.1:1/api", Options{})
	_, err := c.Listing(context.Background(), 1)
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
}

func TestBadTokenIsRejected(t *testing.T) {
	_, ts := newFixture(t)
	c := New(ts.URL+"/api", Options{HTTPClient: ts.Client()})
	c.SetToken("forged")
	_, err := c.Listing(context.Background(), 1)
	assert.True(t, errs.Is(err, errs.PermissionDenied), "%v", err)
}

func TestDocumentDetails_OtherPortalIsNotFound(t *testing.T) {
	app, ts := newFixture(t)
	c := newLoggedInClient(t, ts)
	en, err := app.Store().FindByName("QA_Automation_Doc_en")
	require.NoError(t, err)

	_, err = c.DocumentDetails(context.Background(), en.ID)
	assert.True(t, errs.Is(err, errs.NotFound), "%v", err)
}

func TestEditDocument_InvalidScore(t *testing.T) {
	app, ts := newFixture(t)
	c := newLoggedInClient(t, ts)
	d, err := app.Store().FindByName(trpDocument)
	require.NoError(t, err)

	_, err = c.EditDocument(context.Background(), d.ID,
		EditDocumentPayload([]string{d.SubDocs[0].ID}, []MetricPayload{HumanScores(1.25, 2, 2)}))
	assert.True(t, errs.Is(err, errs.InvalidArgument), "%v", err)
}

func TestPublishDocument_RequiresPublishStatus(t *testing.T) {
	c := New("http://127.0.0.1:1/api", Options{})
	_, err := c.PublishDocument(context.Background(), "x", NextPagePayload("y"))
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestContentCheck(t *testing.T) {
	_, ts := newFixture(t)
	c := newLoggedInClient(t, ts)
	ctx := context.Background()
	list, err := c.Listing(ctx, 1)
	require.NoError(t, err)
	doc, ok := list.Find(trpDocument)
	require.True(t, ok)
	details, err := c.DocumentDetails(ctx, doc.ID)
	require.NoError(t, err)

	ai, ok := details.SubDocs[0].Metric(VendorAI)
	require.True(t, ok)
	require.NotEmpty(t, ai.TranslatedFileURL)

	got, err := c.FetchContent(ctx, ai.TranslatedFileURL)
	require.NoError(t, err)
	assert.True(t, got.OK())
	assert.Contains(t, string(got.Body), "machine translation")

	missing, err := c.FetchContent(ctx, ts.URL+"/content/nope/nope.md")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.False(t, missing.OK())
}

func TestPacing(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, Options{HTTPClient: ts.Client(), RequestsPerSecond: 20, Burst: 1})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchContent(context.Background(), ts.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		code   errs.Code
	}{
		{http.StatusBadRequest, errs.InvalidArgument},
		{http.StatusUnauthorized, errs.PermissionDenied},
		{http.StatusForbidden, errs.PermissionDenied},
		{http.StatusNotFound, errs.NotFound},
		{http.StatusConflict, errs.FailedPrecondition},
		{http.StatusTooManyRequests, errs.Unavailable},
		{http.StatusBadGateway, errs.Unavailable},
		{http.StatusGatewayTimeout, errs.Timeout},
		{http.StatusTeapot, errs.Internal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"detail": "boom", "code": "x"})
			err := statusError(http.MethodGet, "/x/", tt.status, body)
			assert.Equal(t, tt.code, errs.CodeOf(err))
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestPayloadShapes(t *testing.T) {
	raw, err := json.Marshal(PublishPayload("s3"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"subdocs":[{"id":"s3"}],"status":"PUBLISHED"}`, string(raw))

	raw, err = json.Marshal(NextPagePayload("s1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"subdocs":[{"id":"s1","status":"AWAITING_PUBLICATION"}]}`, string(raw))

	raw, err = json.Marshal(EditDocumentPayload([]string{"a", "b"}, []MetricPayload{HumanContent("QA Testing")}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"edited":true,"subdocs":[
		{"id":"a","metrics":[{"vendor":"HUMAN_REVIEW","content":"QA Testing"}]},
		{"id":"b","metrics":[{"vendor":"HUMAN_REVIEW","content":"QA Testing"}]}]}`, string(raw))
}
