package reviewapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/urlutil"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type apiUser struct {
	ID     string      `json:"id"`
	Email  string      `json:"email"`
	Portal auth.Portal `json:"portal"`
}

type loginResponse struct {
	Access    string  `json:"access"`
	ExpiresIn int     `json:"expires_in"`
	User      apiUser `json:"user"`
}

type apiMetric struct {
	Metric
	TranslatedFileURL string `json:"translatedFileUrl,omitempty"`
}

type apiSubDocument struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Status         Status      `json:"status"`
	EnglishContent string      `json:"englishContent"`
	Metrics        []apiMetric `json:"metrics"`
}

type apiDocument struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Language  string           `json:"language"`
	Version   int              `json:"version"`
	Status    Status           `json:"status"`
	IsNew     bool             `json:"isNew"`
	Edited    bool             `json:"edited"`
	Scores    *Scores          `json:"scores,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
	SubDocs   []apiSubDocument `json:"subdocs,omitempty"`
}

type listResponse struct {
	Count   int           `json:"count"`
	Page    int           `json:"page"`
	Results []apiDocument `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	if code == errs.Internal {
		obs.From(r.Context()).With("pkg", "reviewapp").Error("api request failed", "error", err)
	}
	writeJSON(w, errs.HTTPStatus(code), map[string]string{"detail": errs.MessageOf(err), "code": string(code)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid JSON body", err)
	}
	return nil
}

func toAPIDocument(d Document, base string, withSubDocs bool) apiDocument {
	out := apiDocument{
		ID:        d.ID,
		Name:      d.Name,
		Language:  d.Language,
		Version:   d.Version,
		Status:    d.Status,
		IsNew:     d.IsNew,
		Edited:    d.Edited,
		UpdatedAt: d.UpdatedAt,
	}
	if sc, ok := d.Scores(); ok {
		out.Scores = &sc
	}
	if !withSubDocs {
		return out
	}
	for _, sd := range d.SubDocs {
		as := apiSubDocument{ID: sd.ID, Title: sd.Title, Status: sd.Status, EnglishContent: sd.EnglishContent, Metrics: []apiMetric{}}
		for _, m := range sd.Metrics {
			am := apiMetric{Metric: m}
			if m.TranslatedFilePath != "" {
				am.TranslatedFileURL = urlutil.Absolute(base, m.TranslatedFilePath)
			}
			as.Metrics = append(as.Metrics, am)
		}
		out.SubDocs = append(out.SubDocs, as)
	}
	return out
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeAPIError(w, r, errs.New(errs.PermissionDenied, "invalid email or password"))
			return
		}
		s.writeAPIError(w, r, err)
		return
	}
	token, err := s.tokens.Create(user.ID)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	obs.From(r.Context()).With("pkg", "reviewapp").Info("api token issued", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		Access:    token,
		ExpiresIn: int(auth.TokenDuration / time.Second),
		User:      apiUser{ID: user.ID, Email: user.Email, Portal: user.Portal},
	})
}

func (s *Server) apiListDocuments(w http.ResponseWriter, r *http.Request) {
	q := ParseQuery(r.URL.Query())
	docs, total := s.store.List(currentUser(r).Portal, q)
	resp := listResponse{Count: total, Page: q.Page, Results: make([]apiDocument, 0, len(docs))}
	base := urlutil.Origin(r, "")
	for _, d := range docs {
		resp.Results = append(resp.Results, toAPIDocument(d, base, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) apiGetDocument(w http.ResponseWriter, r *http.Request) {
	d, err := s.document(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIDocument(d, urlutil.Origin(r, ""), true))
}

// apiUpdateDocument applies a PUT body and answers with a one-element array
// holding the updated document.
func (s *Server) apiUpdateDocument(w http.ResponseWriter, r *http.Request) {
	d, err := s.document(r)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	var u Update
	if err := decodeJSON(w, r, &u); err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	updated, err := s.store.Apply(d.ID, u)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	obs.From(r.Context()).With("pkg", "reviewapp").Info("document updated via api",
		"document", updated.Name, "version", updated.Version, "status", string(updated.Status))
	writeJSON(w, http.StatusOK, []apiDocument{toAPIDocument(updated, urlutil.Origin(r, ""), true)})
}
