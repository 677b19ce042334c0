package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/gridcheck/internal/errs"
)

// Workflow states as the API spells them.
const (
	StatusNew                 = "NEW"
	StatusAwaitingReview      = "AWAITING_REVIEW"
	StatusAwaitingPublication = "AWAITING_PUBLICATION"
	StatusPublished           = "PUBLISHED"
)

// Metric vendors.
const (
	VendorAI    = "AI_GENERATED"
	VendorHuman = "HUMAN_REVIEW"
)

type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Portal string `json:"portal"`
}

type LoginResponse struct {
	Access    string `json:"access"`
	ExpiresIn int    `json:"expires_in"`
	User      User   `json:"user"`
}

type Metric struct {
	Vendor            string  `json:"vendor"`
	Content           string  `json:"content,omitempty"`
	Fluency           float64 `json:"fluency"`
	Adequacy          float64 `json:"adequacy"`
	Compliance        float64 `json:"compliance"`
	TranslatedFileURL string  `json:"translatedFileUrl,omitempty"`
}

type SubDocument struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	EnglishContent string   `json:"englishContent"`
	Metrics        []Metric `json:"metrics"`
}

// Metric returns the entry from vendor.
func (s SubDocument) Metric(vendor string) (Metric, bool) {
	for _, m := range s.Metrics {
		if m.Vendor == vendor {
			return m, true
		}
	}
	return Metric{}, false
}

type Scores struct {
	Fluency    float64 `json:"fluency"`
	Adequacy   float64 `json:"adequacy"`
	Compliance float64 `json:"compliance"`
}

type Document struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Language  string        `json:"language"`
	Version   int           `json:"version"`
	Status    string        `json:"status"`
	IsNew     bool          `json:"isNew"`
	Edited    bool          `json:"edited"`
	Scores    *Scores       `json:"scores,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
	SubDocs   []SubDocument `json:"subdocs,omitempty"`
}

// LastSubDocument is the final sub-document, the one a publish names.
func (d Document) LastSubDocument() (SubDocument, bool) {
	if len(d.SubDocs) == 0 {
		return SubDocument{}, false
	}
	return d.SubDocs[len(d.SubDocs)-1], true
}

type DocumentList struct {
	Count   int        `json:"count"`
	Page    int        `json:"page"`
	Results []Document `json:"results"`
}

// Find returns the listed document named name.
func (l DocumentList) Find(name string) (Document, bool) {
	for _, d := range l.Results {
		if d.Name == name {
			return d, true
		}
	}
	return Document{}, false
}

// ContentCheck is what an unauthenticated GET of a file link returned.
type ContentCheck struct {
	StatusCode  int
	ContentType string
	Bytes       int
	Body        []byte
}

// OK reports a 2xx answer with a non-empty body.
func (p ContentCheck) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode <= 299 && p.Bytes > 0
}

// StatusError is a non-2xx API answer.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
	Code       string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func statusError(method, path string, status int, body []byte) error {
	se := &StatusError{Method: method, Path: path, StatusCode: status}
	var payload struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Detail = payload.Detail
		se.Code = payload.Code
	}
	return errs.Wrap(errs.FromHTTPStatus(status), "api "+method+" "+path, se)
}
