package reviewapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/grid"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Options{Hasher: auth.FakeInsecureHasher{}})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func login(t *testing.T, s *Server, email, password string) *http.Cookie {
	t.Helper()
	rec := serve(s, formRequest(http.MethodPost, "/login", url.Values{"email": {email}, "password": {password}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func reviewerCookie(t *testing.T, s *Server) *http.Cookie {
	return login(t, s, DefaultUsers[0].Email, DefaultUsers[0].Password)
}

func englishCookie(t *testing.T, s *Server) *http.Cookie {
	return login(t, s, DefaultUsers[1].Email, DefaultUsers[1].Password)
}

func get(t *testing.T, s *Server, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return serve(s, req)
}

func snapshot(t *testing.T, body string) *grid.Extractor {
	t.Helper()
	snap, err := grid.NewSnapshot(body)
	require.NoError(t, err)
	return grid.NewExtractor(snap, nil)
}

func rowCount(t *testing.T, ex *grid.Extractor) int {
	t.Helper()
	n, err := ex.Reader().RowCount(context.Background())
	require.NoError(t, err)
	return n
}

// ---- Auth ----

func TestLogin_WrongPasswordRerendersForm(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, formRequest(http.MethodPost, "/login", url.Values{"email": {"reviewer@example.com"}, "password": {"nope-nope"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.Contains(t, rec.Body.String(), `value="reviewer@example.com"`)
}

func TestDashboard_RequiresSession(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))
}

func TestLogout_EndsSession(t *testing.T) {
	s := newTestServer(t)
	cookie := reviewerCookie(t, s)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := serve(s, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))

	assert.Equal(t, http.StatusSeeOther, get(t, s, "/", cookie).Code)
}

// ---- Dashboard ----

func TestDashboard_GridMatchesStore(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/", reviewerCookie(t, s))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<h1 class="heading">Dashboard</h1>`)

	ex := snapshot(t, body)
	assert.Equal(t, s.Store().Len(), rowCount(t, ex))

	ctx := context.Background()
	row, found, err := ex.FindDocument(ctx, "QA_Automation_Doc_de")
	require.NoError(t, err)
	require.True(t, found)

	data, err := ex.ExtractRow(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, "QA_Automation_Doc_deNew", data.DocumentName())
	assert.Equal(t, "1", data[grid.KeyVersion])
	assert.Equal(t, "Awaiting Review", data.Status())
	assert.Equal(t, "4", data[grid.KeyAvgFluency])
	assert.Equal(t, "4", data[grid.KeyAvgCompliance])
}

func TestDashboard_FiltersAndTiles(t *testing.T) {
	s := newTestServer(t)
	cookie := reviewerCookie(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		rows  int
		tiles []string
		check func(t *testing.T, data grid.RowData)
	}{
		{
			name: "spanish", query: "language=es", rows: 3, tiles: []string{"Spanish"},
			check: func(t *testing.T, data grid.RowData) {
				name := strings.TrimSuffix(data.DocumentName(), "New")
				assert.True(t, strings.HasSuffix(name, "_es"), name)
			},
		},
		{
			name: "perfect scores", query: "metrics=4.0", rows: 3, tiles: []string{"4.0"},
			check: func(t *testing.T, data grid.RowData) {
				assert.Equal(t, "4", data[grid.KeyAvgAdequacy])
			},
		},
		{
			name: "new with awaiting review", query: "status=NEW&status=AWAITING_REVIEW", rows: 4,
			tiles: []string{"New (4)", "Awaiting Review"},
			check: func(t *testing.T, data grid.RowData) {
				assert.Equal(t, "Awaiting Review", data.Status())
				assert.True(t, strings.HasSuffix(data.DocumentName(), "New"))
			},
		},
		{
			name: "new alone", query: "status=NEW", rows: 11, tiles: []string{"New (11)"},
			check: func(t *testing.T, data grid.RowData) {
				assert.NotEqual(t, "New", data.Status())
			},
		},
		{
			name: "clear drops the category", query: "status=PUBLISHED&clear=status", rows: 16,
		},
		{
			name: "search keeps filters", query: "q=product&language=jp&language=ko", rows: 2,
			tiles: []string{"Japanese", "Korean"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, "/?"+tt.query, cookie)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			for _, tile := range tt.tiles {
				assert.Contains(t, body, "<span>"+tile+"</span>")
			}
			ex := snapshot(t, body)
			n := rowCount(t, ex)
			assert.Equal(t, tt.rows, n)
			if tt.check == nil {
				return
			}
			for i := 0; i < n; i++ {
				data, err := ex.ExtractRow(ctx, grid.Row(i))
				require.NoError(t, err)
				tt.check(t, data)
			}
		})
	}
}

func TestDashboard_EnglishPortal(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/", englishCookie(t, s))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, TitleEnglish)
	assert.NotContains(t, body, "Metrics Score")
	assert.NotContains(t, body, `col-id="avgFluency"`)

	ex := snapshot(t, body)
	n := rowCount(t, ex)
	assert.Equal(t, 4, n)
	for i := 0; i < n; i++ {
		data, err := ex.ExtractRow(context.Background(), grid.Row(i))
		require.NoError(t, err)
		assert.Contains(t, data.DocumentName(), "_en")
	}
}

func TestDashboard_EveryTestDataOptionExists(t *testing.T) {
	data := config.DefaultTestData()
	for _, fc := range data.Filters {
		var cat *Category
		for i := range Categories {
			if Categories[i].Label == fc.Label {
				cat = &Categories[i]
			}
		}
		require.NotNil(t, cat, "no dropdown labelled %q", fc.Label)
		for _, o := range fc.Options {
			idx := slices.IndexFunc(cat.Options, func(opt Option) bool { return opt.Value == o.Value })
			if assert.GreaterOrEqual(t, idx, 0, "%s has no value %q", fc.Label, o.Value) {
				assert.Equal(t, o.Tile, cat.Options[idx].Label)
			}
		}
	}
}

// ---- Editor ----

func editState(t *testing.T, s *Server, name string) (Document, EditorState) {
	t.Helper()
	d, err := s.Store().FindByName(name)
	require.NoError(t, err)
	page, err := buildEditPage(auth.User{}, d)
	require.NoError(t, err)
	var st EditorState
	require.NoError(t, json.Unmarshal([]byte(page.State), &st))
	return d, st
}

func postEdit(t *testing.T, s *Server, cookie *http.Cookie, id string, st EditorState) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	req := formRequest(http.MethodPost, "/documents/"+id+"/edit", url.Values{"state": {string(raw)}})
	req.AddCookie(cookie)
	return serve(s, req)
}

func TestEditPage_RendersStepperAndScoring(t *testing.T) {
	s := newTestServer(t)
	d, err := s.Store().FindByName("QA_Automation_Doc_de")
	require.NoError(t, err)

	rec := get(t, s, "/documents/"+d.ID+"/edit", reviewerCookie(t, s))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, SubDocumentsPerDocument, strings.Count(body, `class="stepper-label"`))
	assert.Contains(t, body, `class="comment-metrics-container"`)
	assert.Contains(t, body, `name="fluency" value="4" checked`)
	assert.Contains(t, body, `name="adequacy" value="0.5"`)
	assert.Contains(t, body, "Section 1 machine translation.")
}

func TestEditPage_HiddenFromOtherPortal(t *testing.T) {
	s := newTestServer(t)
	d, err := s.Store().FindByName("QA_Automation_Doc_de")
	require.NoError(t, err)
	rec := get(t, s, "/documents/"+d.ID+"/edit", englishCookie(t, s))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEdit_ScoredFlow(t *testing.T) {
	s := newTestServer(t)
	cookie := reviewerCookie(t, s)
	d, st := editState(t, s, "QA_Automation_Doc_de")

	// Save one visited section with new content.
	st.Visited = []int{0}
	st.SubDocs[0].Content = "QA automation edit"
	rec := postEdit(t, s, cookie, d.ID, st)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	got, err := s.Store().Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, got.Status)
	assert.Equal(t, 2, got.Version)
	assert.True(t, got.Edited)
	assert.Equal(t, StatusAwaitingPublication, got.SubDocs[0].Status)
	assert.Equal(t, StatusAwaitingReview, got.SubDocs[1].Status)
	assert.Equal(t, "QA automation edit", got.SubDocs[0].Content(true))

	// Visit every section and lower two scores on the first.
	_, st = editState(t, s, "QA_Automation_Doc_de")
	st.Visited = []int{0, 1, 2}
	st.SubDocs[0].Scores.Fluency = 2
	st.SubDocs[0].Scores.Adequacy = 3
	require.Equal(t, http.StatusSeeOther, postEdit(t, s, cookie, d.ID, st).Code)

	got, err = s.Store().Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPublication, got.Status)
	scores, ok := got.Scores()
	require.True(t, ok)
	assert.Equal(t, 3.33, scores.Fluency)
	assert.Equal(t, 3.67, scores.Adequacy)
	assert.Equal(t, 4.0, scores.Compliance)
	assert.Equal(t, "QA automation edit", got.SubDocs[0].Content(true), "content survives a score-only save")
}

func TestEdit_UnscoredContent(t *testing.T) {
	s := newTestServer(t)
	cookie := englishCookie(t, s)
	d, st := editState(t, s, "QA_Automation_Doc_en")

	st.Visited = []int{0, 1, 2}
	st.SubDocs[2].Content = "| a | b |\n| --- | --- |"
	require.Equal(t, http.StatusSeeOther, postEdit(t, s, cookie, d.ID, st).Code)

	got, err := s.Store().Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPublication, got.Status)
	assert.Equal(t, "| a | b |\n| --- | --- |", got.SubDocs[2].EnglishContent)
	assert.Empty(t, got.SubDocs[2].Metrics)
}

func TestEditorUpdate_NoChangesIsEmpty(t *testing.T) {
	s := newTestServer(t)
	d, st := editState(t, s, "Contract_Terms_de")
	u, err := EditorUpdate(d, st)
	require.NoError(t, err)
	assert.Empty(t, u.SubDocs)
	assert.False(t, u.Edited)
}

func TestEditorUpdate_UnknownSubDocument(t *testing.T) {
	s := newTestServer(t)
	d, st := editState(t, s, "Contract_Terms_de")
	st.SubDocs[0].ID = "bogus"
	_, err := EditorUpdate(d, st)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestPublish_RedirectsToReturnPath(t *testing.T) {
	s := newTestServer(t)
	cookie := reviewerCookie(t, s)
	d, err := s.Store().FindByName("Contract_Terms_de")
	require.NoError(t, err)

	req := formRequest(http.MethodPost, "/documents/"+d.ID+"/publish", url.Values{"return": {"/?q=Contract"}})
	req.AddCookie(cookie)
	rec := serve(s, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?q=Contract", rec.Header().Get("Location"))

	got, err := s.Store().Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, got.Status)
	for _, sd := range got.SubDocs {
		assert.Equal(t, StatusPublished, sd.Status)
	}

	req = formRequest(http.MethodPost, "/documents/"+d.ID+"/publish", url.Values{"return": {"//evil.example"}})
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusConflict, serve(s, req).Code)
}


// ---- Store ----

func TestStoreApply_Rules(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name string
		doc  string
		u    func(d Document) Update
		code errs.Code
	}{
		{"unknown sub-document", "QA_Automation_Doc_de", func(Document) Update {
			return Update{SubDocs: []SubDocumentUpdate{{ID: "nope"}}}
		}, errs.InvalidArgument},
		{"off-grid score", "QA_Automation_Doc_de", func(d Document) Update {
			return Update{SubDocs: []SubDocumentUpdate{{ID: d.SubDocs[0].ID, Metrics: []MetricUpdate{{Vendor: VendorHuman, Fluency: f(2.25)}}}}}
		}, errs.InvalidArgument},
		{"machine metric", "QA_Automation_Doc_de", func(d Document) Update {
			return Update{SubDocs: []SubDocumentUpdate{{ID: d.SubDocs[0].ID, Metrics: []MetricUpdate{{Vendor: VendorAI, Fluency: f(2)}}}}}
		}, errs.InvalidArgument},
		{"direct status", "QA_Automation_Doc_de", func(Document) Update {
			return Update{Status: StatusAwaitingPublication}
		}, errs.InvalidArgument},
		{"sub-document published alone", "QA_Automation_Doc_de", func(d Document) Update {
			return Update{SubDocs: []SubDocumentUpdate{{ID: d.SubDocs[0].ID, Status: StatusPublished}}}
		}, errs.InvalidArgument},
		{"already published", "Release_Notes_de", func(d Document) Update {
			return PublishUpdate(d)
		}, errs.FailedPrecondition},
		{"publish a new document", "Pricing_Page_de", func(d Document) Update {
			return PublishUpdate(d)
		}, errs.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			Seed(s)
			d, err := s.FindByName(tt.doc)
			require.NoError(t, err)
			_, err = s.Apply(d.ID, tt.u(d))
			require.Error(t, err)
			assert.Equal(t, tt.code, errs.CodeOf(err))

			after, err := s.Get(d.ID)
			require.NoError(t, err)
			assert.Equal(t, d, after, "rejected update must not change the document")
		})
	}
}

func TestStoreApply_HumanMetricSeededFromMachine(t *testing.T) {
	s := NewStore()
	Seed(s)
	d, err := s.FindByName("Product_Guide_es")
	require.NoError(t, err)
	fl := 1.5
	got, err := s.Apply(d.ID, Update{SubDocs: []SubDocumentUpdate{{
		ID:      d.SubDocs[1].ID,
		Metrics: []MetricUpdate{{Vendor: VendorHuman, Fluency: &fl}},
	}}})
	require.NoError(t, err)

	human, ok := got.SubDocs[1].metric(VendorHuman)
	require.True(t, ok)
	assert.Equal(t, 1.5, human.Fluency)
	assert.Equal(t, 3.5, human.Adequacy)
	assert.Equal(t, 4.0, human.Compliance)
	assert.Equal(t, 2, got.Version)
}

// Property: a status selection matches exactly the documents its
// definition names.
func TestQuery_StatusSemantics(t *testing.T) {
	workflow := []Status{StatusNew, StatusAwaitingReview, StatusAwaitingPublication, StatusPublished}
	rapid.Check(t, func(t *rapid.T) {
		d := Document{
			Name:     "Doc_de",
			Language: LanguageGerman,
			Status:   rapid.SampledFrom(workflow).Draw(t, "status"),
			IsNew:    rapid.Bool().Draw(t, "isNew"),
		}
		picked := rapid.SliceOfDistinct(rapid.SampledFrom(workflow), func(s Status) Status { return s }).Draw(t, "picked")
		q := Query{}
		var rest []string
		wantNew := false
		for _, p := range picked {
			q.Statuses = append(q.Statuses, string(p))
			if p == StatusNew {
				wantNew = true
			} else {
				rest = append(rest, string(p))
			}
		}

		want := true
		if wantNew && !d.IsNew {
			want = false
		}
		if len(rest) > 0 && !slices.Contains(rest, string(d.Status)) {
			want = false
		}
		if got := q.Match(&d); got != want {
			t.Fatalf("statuses %v on %s (new=%t): got %t want %t", q.Statuses, d.Status, d.IsNew, got, want)
		}
	})
}

// Property: an average lands in a bucket exactly when the bucket's closed
// range holds it, and no average lands in two.
func TestBucket_Bounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		avg := float64(rapid.IntRange(0, 400).Draw(t, "centi")) / 100
		b := Bucket(avg)
		switch {
		case avg <= 2.9:
			assert.Equal(t, BucketLow, b)
		case avg >= 3.0 && avg <= 3.49:
			assert.Equal(t, BucketMid, b)
		case avg >= 3.5 && avg <= 3.9:
			assert.Equal(t, BucketHigh, b)
		case avg >= 4.0:
			assert.Equal(t, BucketPerfect, b)
		default:
			assert.Empty(t, b, "%v", avg)
		}
	})
}

func TestBucket_GapsMatchNoFilter(t *testing.T) {
	assert.Empty(t, Bucket(2.95))
	assert.Empty(t, Bucket(3.95))
	assert.Equal(t, BucketMid, Bucket(3.49))
	assert.Equal(t, BucketHigh, Bucket(3.9))

	all := []string{BucketLow, BucketMid, BucketHigh, BucketPerfect}
	d := Document{
		Name:     "Gap_de",
		Language: "de",
		Status:   StatusAwaitingReview,
		SubDocs: []SubDocument{
			{ID: "s1", Metrics: []Metric{{Vendor: VendorHuman, Fluency: 3, Adequacy: 3, Compliance: 3}}},
			{ID: "s2", Metrics: []Metric{{Vendor: VendorHuman, Fluency: 3, Adequacy: 3, Compliance: 2.5}}},
		},
	}
	scores, ok := d.Scores()
	require.True(t, ok)
	require.InDelta(t, 8.75/3, scores.Average(), 1e-9)
	assert.False(t, Query{Metrics: all}.Match(&d), "an average between buckets matches no metrics filter")
}

func TestParseQuery_CommaSeparatedAndPaging(t *testing.T) {
	q := ParseQuery(url.Values{
		"status":    {"NEW,PUBLISHED", "NEW"},
		"language":  {"es"},
		"page":      {"2"},
		"page_size": {"-3"},
	})
	assert.Equal(t, []string{"NEW", "PUBLISHED"}, q.Statuses)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
	assert.True(t, q.Filtered())
	assert.False(t, q.Without(ParamStatus).Without(ParamLanguage).Filtered())
}

func TestRenderMarkdown_Sanitizes(t *testing.T) {
	out := string(RenderMarkdown("# Title\n\n<script>alert(1)</script>\n\n| a | b |\n| --- | --- |\n| 1 | 2 |"))
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "<script>")
}
