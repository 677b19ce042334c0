package reviewapp

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/urlutil"
)

// Page titles per portal.
const (
	TitleTranslation = "Dashboard"
	TitleEnglish     = "English Source Review"
)

// PortalTitle is the dashboard heading a portal shows.
func PortalTitle(p auth.Portal) string {
	if p == auth.PortalEnglish {
		return TitleEnglish
	}
	return TitleTranslation
}

type loginPage struct {
	Email string
	Error string
}

type field struct {
	Name  string
	Value string
}

type optionView struct {
	Option
	Checked bool
}

type filterView struct {
	Param   string
	Label   string
	Options []optionView
	// Hidden carries the search and the other categories through the form.
	Hidden []field
}

type rowView struct {
	Index     int
	ID        string
	Name      string
	IsNew     bool
	Version   int
	Status    string
	Published bool

	Fluency, Adequacy, Compliance string
}

type dashboardPage struct {
	Title        string
	Email        string
	Scored       bool
	Search       string
	SearchHidden []field
	Filters      []filterView
	Tiles        []string
	Rows         []rowView
	Total        int
}

type dimension struct {
	Name  string
	Label string
}

// Value picks the dimension's score out of s.
func (d dimension) Value(s Scores) float64 {
	switch d.Name {
	case "fluency":
		return s.Fluency
	case "adequacy":
		return s.Adequacy
	default:
		return s.Compliance
	}
}

var dimensions = []dimension{
	{Name: "fluency", Label: "Fluency"},
	{Name: "adequacy", Label: "Adequacy"},
	{Name: "compliance", Label: "Compliance"},
}

type editSub struct {
	Index   int
	ID      string
	Title   string
	Content string
	Preview template.HTML
	Scores  Scores
}

type editPage struct {
	Email      string
	Doc        Document
	Scored     bool
	SubDocs    []editSub
	Initial    editSub
	Dimensions []dimension
	// State is the editor's initial JSON state.
	State string
}

// EditorSub is one sub-document of the editor state. The page sends it
// down in data-state and posts it back on save.
type EditorSub struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Scores  *Scores `json:"scores,omitempty"`
}

// EditorState is the editor page's JSON model.
type EditorState struct {
	Scored  bool        `json:"scored,omitempty"`
	Visited []int       `json:"visited,omitempty"`
	SubDocs []EditorSub `json:"subdocs"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := s.renderer.Render(w, status, name, data); err != nil {
		obs.From(r.Context()).With("pkg", "reviewapp").Error("render failed", "template", name, "error", err)
	}
}

func (s *Server) httpError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	if code == errs.Internal {
		obs.From(r.Context()).With("pkg", "reviewapp").Error("request failed", "error", err)
	}
	http.Error(w, errs.MessageOf(err), errs.HTTPStatus(code))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	user, err := s.users.Authenticate(email, r.PostFormValue("password"))
	if err != nil {
		obs.From(r.Context()).With("pkg", "reviewapp").Info("login rejected", "email", email)
		s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{Email: email, Error: "Invalid email or password"})
		return
	}
	id, err := s.sessions.Create(user.ID)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	auth.SetCookie(w, id, s.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id, err := auth.GetFromRequest(r); err == nil {
		s.sessions.Delete(id)
	}
	auth.ClearCookie(w, s.secure)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func currentUser(r *http.Request) auth.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := ParseQuery(r.URL.Query())
	q.Page, q.PageSize = 1, s.store.Len()+1
	docs, total := s.store.List(user.Portal, q)
	s.render(w, r, http.StatusOK, "dashboard.html", buildDashboard(user, q, docs, total))
}

func buildDashboard(user auth.User, q Query, docs []Document, total int) dashboardPage {
	scored := user.Portal.Scored()
	page := dashboardPage{
		Title:  PortalTitle(user.Portal),
		Email:  user.Email,
		Scored: scored,
		Search: q.Search,
		Total:  total,
	}
	page.SearchHidden = hiddenFields(q.Encode(), ParamSearch)

	badged := 0
	for i, d := range docs {
		if d.IsNew {
			badged++
		}
		row := rowView{
			Index:     i,
			ID:        d.ID,
			Name:      d.Name,
			IsNew:     d.IsNew,
			Version:   d.Version,
			Status:    d.Status.Label(),
			Published: d.Status == StatusPublished,
		}
		if sc, ok := d.Scores(); ok {
			row.Fluency, row.Adequacy, row.Compliance = FormatScore(sc.Fluency), FormatScore(sc.Adequacy), FormatScore(sc.Compliance)
		}
		page.Rows = append(page.Rows, row)
	}

	for _, c := range Categories {
		if c.Scored && !scored {
			continue
		}
		selected := q.Values(c.Param)
		fv := filterView{Param: c.Param, Label: c.Label, Hidden: hiddenFields(q.Encode(), c.Param)}
		for _, o := range c.Options {
			checked := slices.Contains(selected, o.Value)
			fv.Options = append(fv.Options, optionView{Option: o, Checked: checked})
			if !checked {
				continue
			}
			tile := o.Label
			if c.Param == ParamStatus && o.Value == string(StatusNew) {
				tile = fmt.Sprintf("%s (%d)", o.Label, badged)
			}
			page.Tiles = append(page.Tiles, tile)
		}
		page.Filters = append(page.Filters, fv)
	}
	return page
}

// hiddenFields flattens v into form fields, leaving out skip.
func hiddenFields(v url.Values, skip string) []field {
	var out []field
	if search := v.Get(ParamSearch); search != "" && skip != ParamSearch {
		out = append(out, field{Name: ParamSearch, Value: search})
	}
	for _, c := range Categories {
		if c.Param == skip {
			continue
		}
		for _, val := range v[c.Param] {
			out = append(out, field{Name: c.Param, Value: val})
		}
	}
	return out
}

// document loads the path's document and checks the reviewer may see it.
func (s *Server) document(r *http.Request) (Document, error) {
	d, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		return Document{}, err
	}
	if !d.VisibleTo(currentUser(r).Portal) {
		return Document{}, errs.New(errs.NotFound, "document not found")
	}
	return d, nil
}

func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	d, err := s.document(r)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	page, err := buildEditPage(currentUser(r), d)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "edit.html", page)
}

func buildEditPage(user auth.User, d Document) (editPage, error) {
	scored := d.Scored()
	page := editPage{Email: user.Email, Doc: d, Scored: scored, Dimensions: dimensions}
	state := EditorState{Scored: scored}
	for i := range d.SubDocs {
		sd := &d.SubDocs[i]
		sub := editSub{Index: i, ID: sd.ID, Title: sd.Title, Content: sd.Content(scored)}
		sub.Preview = RenderMarkdown(sub.Content)
		es := EditorSub{ID: sd.ID, Title: sd.Title, Content: sub.Content}
		if m, ok := sd.effective(); ok && scored {
			sub.Scores = Scores{Fluency: m.Fluency, Adequacy: m.Adequacy, Compliance: m.Compliance}
			sc := sub.Scores
			es.Scores = &sc
		}
		page.SubDocs = append(page.SubDocs, sub)
		state.SubDocs = append(state.SubDocs, es)
	}
	if len(page.SubDocs) > 0 {
		page.Initial = page.SubDocs[0]
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return editPage{}, fmt.Errorf("encode editor state: %w", err)
	}
	page.State = string(raw)
	return page, nil
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	d, err := s.document(r)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	var st EditorState
	if err := json.Unmarshal([]byte(r.PostFormValue("state")), &st); err != nil {
		s.httpError(w, r, errs.Wrap(errs.InvalidArgument, "invalid editor state", err))
		return
	}
	u, err := EditorUpdate(d, st)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if len(u.SubDocs) > 0 {
		if _, err := s.store.Apply(d.ID, u); err != nil {
			s.httpError(w, r, err)
			return
		}
		obs.From(r.Context()).With("pkg", "reviewapp").Info("document saved", "document", d.Name, "subdocs", len(u.SubDocs))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// EditorUpdate turns a posted editor state into a store update. Visited
// sub-documents are marked awaiting publication; changed content and
// scores are recorded as the human review.
func EditorUpdate(d Document, st EditorState) (Update, error) {
	scored := d.Scored()
	var u Update
	for i, es := range st.SubDocs {
		idx := slices.IndexFunc(d.SubDocs, func(sd SubDocument) bool { return sd.ID == es.ID })
		if idx < 0 {
			return Update{}, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown sub-document %q", es.ID))
		}
		sd := &d.SubDocs[idx]
		su := SubDocumentUpdate{ID: sd.ID}
		touched := false
		if slices.Contains(st.Visited, i) && sd.Status == StatusAwaitingReview {
			su.Status = StatusAwaitingPublication
			touched = true
		}

		contentChanged := es.Content != sd.Content(scored)
		var mu MetricUpdate
		if scored {
			mu.Vendor = VendorHuman
			if contentChanged {
				c := es.Content
				mu.Content = &c
			}
			if cur, ok := sd.effective(); ok && es.Scores != nil {
				if es.Scores.Fluency != cur.Fluency {
					mu.Fluency = &es.Scores.Fluency
				}
				if es.Scores.Adequacy != cur.Adequacy {
					mu.Adequacy = &es.Scores.Adequacy
				}
				if es.Scores.Compliance != cur.Compliance {
					mu.Compliance = &es.Scores.Compliance
				}
			}
			if mu.Content != nil || mu.Fluency != nil || mu.Adequacy != nil || mu.Compliance != nil {
				su.Metrics = []MetricUpdate{mu}
				touched = true
				u.Edited = true
			}
		} else if contentChanged {
			c := es.Content
			su.EnglishContent = &c
			touched = true
			u.Edited = true
		}
		if touched {
			u.SubDocs = append(u.SubDocs, su)
		}
	}
	return u, nil
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	d, err := s.document(r)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if _, err := s.store.Apply(d.ID, PublishUpdate(d)); err != nil {
		s.httpError(w, r, err)
		return
	}
	obs.From(r.Context()).With("pkg", "reviewapp").Info("document published", "document", d.Name)
	http.Redirect(w, r, urlutil.LocalRedirect(r.PostFormValue("return")), http.StatusSeeOther)
}

// PublishUpdate publishes d through its last sub-document, the way the
// portal's publish action does.
func PublishUpdate(d Document) Update {
	u := Update{Status: StatusPublished}
	if n := len(d.SubDocs); n > 0 {
		u.SubDocs = []SubDocumentUpdate{{ID: d.SubDocs[n-1].ID}}
	}
	return u
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(RenderMarkdown(r.PostFormValue("content"))))
}

// handleContent serves a machine translation file. Like the product's
// storage links it needs no session.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	subID, ok := strings.CutSuffix(file, ".md")
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, sd, err := s.store.SubDocumentByPath(r.PathValue("doc"), subID)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	m, ok := sd.metric(VendorAI)
	if !ok {
		s.httpError(w, r, errs.New(errs.NotFound, "no translation file"))
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(RenderMarkdown(m.Content)))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(m.Content))
}
