package reviewapp

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Languages the fixture knows, by code.
const (
	LanguageEnglish  = "en"
	LanguageSpanish  = "es"
	LanguageJapanese = "jp"
	LanguageGerman   = "de"
	LanguageKorean   = "ko"
)

// Filter parameter names, shared by the HTML listing and the JSON API.
const (
	ParamSearch   = "q"
	ParamMetrics  = "metrics"
	ParamLanguage = "language"
	ParamStatus   = "status"
	ParamPage     = "page"
	ParamPageSize = "page_size"
	// ParamClear names a category whose values are dropped before filtering.
	ParamClear = "clear"
)

// Metrics score buckets over the average of the three score columns.
const (
	BucketLow     = "0.0 - 2.9"
	BucketMid     = "3.0 - 3.4"
	BucketHigh    = "3.5 - 3.9"
	BucketPerfect = "4.0"
)

// DefaultPageSize applies when a request names none.
const DefaultPageSize = 50

// Option is one checkbox of a filter dropdown.
type Option struct {
	Value string
	Label string
}

// Category is one filter dropdown.
type Category struct {
	Param   string
	Label   string
	Options []Option
	// Scored categories are hidden on the unscored portal.
	Scored bool
}

// Categories is the filter catalog in toolbar order.
var Categories = []Category{
	{Param: ParamMetrics, Label: "Metrics Score", Scored: true, Options: []Option{
		{BucketLow, BucketLow}, {BucketMid, BucketMid}, {BucketHigh, BucketHigh}, {BucketPerfect, BucketPerfect},
	}},
	{Param: ParamLanguage, Label: "Language", Options: []Option{
		{LanguageEnglish, "English"}, {LanguageSpanish, "Spanish"}, {LanguageJapanese, "Japanese"},
		{LanguageGerman, "German"}, {LanguageKorean, "Korean"},
	}},
	{Param: ParamStatus, Label: "Status", Options: []Option{
		{string(StatusNew), StatusNew.Label()},
		{string(StatusAwaitingReview), StatusAwaitingReview.Label()},
		{string(StatusAwaitingPublication), StatusAwaitingPublication.Label()},
		{string(StatusPublished), StatusPublished.Label()},
	}},
}

// bucketBounds are closed ranges matching what the dashboard check accepts
// for each tile. Averages between two ranges, like 2.95, belong to no bucket.
var bucketBounds = []struct {
	bucket string
	lo, hi float64
}{
	{BucketLow, 0, 2.9},
	{BucketMid, 3.0, 3.49},
	{BucketHigh, 3.5, 3.9},
	{BucketPerfect, 4.0, MaxScore},
}

// Bucket returns the metrics bucket of a score average, or "" when the
// average falls between buckets.
func Bucket(avg float64) string {
	for _, b := range bucketBounds {
		if avg >= b.lo && avg <= b.hi {
			return b.bucket
		}
	}
	return ""
}

// Query selects listing rows. Values within a category are OR-ed and
// categories are AND-ed.
type Query struct {
	Search    string
	Metrics   []string
	Languages []string
	// Statuses may hold NEW, which selects documents with the New badge.
	// Combined with workflow statuses it narrows them to badged documents.
	Statuses []string
	Page     int
	PageSize int
}

// ParseQuery reads a Query from URL parameters. Repeated and
// comma-separated values are both accepted.
func ParseQuery(v url.Values) Query {
	q := Query{
		Search:    strings.TrimSpace(v.Get(ParamSearch)),
		Metrics:   multi(v, ParamMetrics),
		Languages: multi(v, ParamLanguage),
		Statuses:  multi(v, ParamStatus),
		Page:      positive(v.Get(ParamPage), 1),
		PageSize:  positive(v.Get(ParamPageSize), DefaultPageSize),
	}
	for _, clear := range v[ParamClear] {
		q = q.Without(clear)
	}
	return q
}

func multi(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" && !slices.Contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}

func positive(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Values returns the selected values of the category with param.
func (q Query) Values(param string) []string {
	switch param {
	case ParamMetrics:
		return q.Metrics
	case ParamLanguage:
		return q.Languages
	case ParamStatus:
		return q.Statuses
	}
	return nil
}

// Without drops every value of the category with param.
func (q Query) Without(param string) Query {
	switch param {
	case ParamMetrics:
		q.Metrics = nil
	case ParamLanguage:
		q.Languages = nil
	case ParamStatus:
		q.Statuses = nil
	}
	return q
}

// Filtered reports whether any category has a selection.
func (q Query) Filtered() bool {
	return len(q.Metrics)+len(q.Languages)+len(q.Statuses) > 0
}

// Encode renders the filters and search as URL parameters, without paging.
func (q Query) Encode() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set(ParamSearch, q.Search)
	}
	for _, c := range Categories {
		for _, val := range q.Values(c.Param) {
			v.Add(c.Param, val)
		}
	}
	return v
}

// Match reports whether d satisfies every category of q.
func (q Query) Match(d *Document) bool {
	if q.Search != "" && !strings.Contains(trimmedName(d.Name), strings.ToLower(q.Search)) {
		return false
	}
	if len(q.Languages) > 0 && !slices.Contains(q.Languages, d.Language) {
		return false
	}
	if len(q.Metrics) > 0 {
		scores, ok := d.Scores()
		if !ok || !slices.Contains(q.Metrics, Bucket(scores.Average())) {
			return false
		}
	}
	return q.matchStatus(d)
}

func (q Query) matchStatus(d *Document) bool {
	if len(q.Statuses) == 0 {
		return true
	}
	wantNew := false
	var workflow []string
	for _, s := range q.Statuses {
		if s == string(StatusNew) {
			wantNew = true
			continue
		}
		workflow = append(workflow, s)
	}
	if wantNew && !d.IsNew {
		return false
	}
	return len(workflow) == 0 || slices.Contains(workflow, string(d.Status))
}

func (q Query) page(docs []Document) []Document {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(docs) {
		return nil
	}
	end := min(start+size, len(docs))
	return docs[start:end]
}
