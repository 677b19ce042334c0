package reviewapp

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/errs"
)

// Status is a document or sub-document workflow state.
type Status string

const (
	StatusNew                 Status = "NEW"
	StatusAwaitingReview      Status = "AWAITING_REVIEW"
	StatusAwaitingPublication Status = "AWAITING_PUBLICATION"
	StatusPublished           Status = "PUBLISHED"
)

// Label is the text the grid chip shows.
func (s Status) Label() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusAwaitingReview:
		return "Awaiting Review"
	case StatusAwaitingPublication:
		return "Awaiting Publication"
	case StatusPublished:
		return "Published"
	default:
		return string(s)
	}
}

// Vendor tags who produced a metric entry.
type Vendor string

const (
	VendorAI    Vendor = "AI_GENERATED"
	VendorHuman Vendor = "HUMAN_REVIEW"
)

// Metric is one vendor's translation and scores for a sub-document.
type Metric struct {
	Vendor     Vendor  `json:"vendor"`
	Content    string  `json:"content,omitempty"`
	Fluency    float64 `json:"fluency"`
	Adequacy   float64 `json:"adequacy"`
	Compliance float64 `json:"compliance"`
	// TranslatedFilePath is served unauthenticated under /content.
	TranslatedFilePath string `json:"-"`
}

// SubDocument is one file of a document.
type SubDocument struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Status         Status   `json:"status"`
	EnglishContent string   `json:"englishContent"`
	Metrics        []Metric `json:"metrics"`
}

// metric returns the entry for vendor.
func (s *SubDocument) metric(v Vendor) (*Metric, bool) {
	for i := range s.Metrics {
		if s.Metrics[i].Vendor == v {
			return &s.Metrics[i], true
		}
	}
	return nil, false
}

// effective is the human review when present, else the machine entry.
func (s *SubDocument) effective() (Metric, bool) {
	if m, ok := s.metric(VendorHuman); ok {
		return *m, true
	}
	if m, ok := s.metric(VendorAI); ok {
		return *m, true
	}
	return Metric{}, false
}

// Content is the text the editor shows: the English source for unscored
// documents, the reviewed translation otherwise.
func (s *SubDocument) Content(scored bool) string {
	if !scored {
		return s.EnglishContent
	}
	if m, ok := s.metric(VendorHuman); ok && m.Content != "" {
		return m.Content
	}
	if m, ok := s.metric(VendorAI); ok {
		return m.Content
	}
	return ""
}

// Scores are per-dimension averages over a document's sub-documents,
// rounded to two decimals the way the grid prints them.
type Scores struct {
	Fluency    float64 `json:"fluency"`
	Adequacy   float64 `json:"adequacy"`
	Compliance float64 `json:"compliance"`
}

// Average is the mean of the three dimensions.
func (s Scores) Average() float64 {
	return (s.Fluency + s.Adequacy + s.Compliance) / 3
}

// Document is a reviewable item of the listing.
type Document struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Version  int    `json:"version"`
	Status   Status `json:"status"`
	// IsNew drives the grid's New badge.
	IsNew     bool          `json:"isNew"`
	Edited    bool          `json:"edited"`
	SubDocs   []SubDocument `json:"subdocs"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Scored reports whether the document carries review scores.
func (d *Document) Scored() bool { return d.Language != LanguageEnglish }

// Scores averages the effective metrics of every sub-document.
func (d *Document) Scores() (Scores, bool) {
	if !d.Scored() || len(d.SubDocs) == 0 {
		return Scores{}, false
	}
	var sum Scores
	n := 0
	for i := range d.SubDocs {
		m, ok := d.SubDocs[i].effective()
		if !ok {
			continue
		}
		sum.Fluency += m.Fluency
		sum.Adequacy += m.Adequacy
		sum.Compliance += m.Compliance
		n++
	}
	if n == 0 {
		return Scores{}, false
	}
	round := func(v float64) float64 { return math.Round(v/float64(n)*100) / 100 }
	return Scores{Fluency: round(sum.Fluency), Adequacy: round(sum.Adequacy), Compliance: round(sum.Compliance)}, true
}

// VisibleTo reports whether the portal lists the document.
func (d *Document) VisibleTo(p auth.Portal) bool {
	if p == auth.PortalEnglish {
		return d.Language == LanguageEnglish
	}
	return true
}

func (d *Document) clone() Document {
	out := *d
	out.SubDocs = make([]SubDocument, len(d.SubDocs))
	for i, s := range d.SubDocs {
		s.Metrics = slices.Clone(s.Metrics)
		out.SubDocs[i] = s
	}
	return out
}

// MetricUpdate changes one vendor entry; nil fields are left alone.
type MetricUpdate struct {
	Vendor     Vendor   `json:"vendor"`
	Content    *string  `json:"content,omitempty"`
	Fluency    *float64 `json:"fluency,omitempty"`
	Adequacy   *float64 `json:"adequacy,omitempty"`
	Compliance *float64 `json:"compliance,omitempty"`
}

// SubDocumentUpdate changes one sub-document.
type SubDocumentUpdate struct {
	ID             string         `json:"id"`
	EnglishContent *string        `json:"englishContent,omitempty"`
	Status         Status         `json:"status,omitempty"`
	Metrics        []MetricUpdate `json:"metrics,omitempty"`
}

// Update is the body of a document PUT. A Status of PUBLISHED publishes.
type Update struct {
	SubDocs []SubDocumentUpdate `json:"subdocs"`
	Edited  bool                `json:"edited,omitempty"`
	Status  Status              `json:"status,omitempty"`
}

// ValidScore reports whether v is on the 0.5 grid between 0 and 4.
func ValidScore(v float64) bool {
	return v >= 0 && v <= MaxScore && math.Mod(v*2, 1) == 0
}

// MaxScore is the top of every score scale.
const MaxScore = 4.0

// Store is the in-memory document repository.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*Document), now: time.Now}
}

// DocumentID derives a stable identifier from a document name.
func DocumentID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("gridcheck:document:"+name)).String()
}

func subDocumentID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("gridcheck:subdoc:%s:%d", docID, index))).String()
}

// Put inserts or replaces d.
func (s *Store) Put(d Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := d.clone()
	s.docs[d.ID] = &c
}

// Get returns a copy of the document with id.
func (s *Store) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, errs.New(errs.NotFound, "document not found")
	}
	return d.clone(), nil
}

// FindByName returns the document called name.
func (s *Store) FindByName(name string) (Document, error) {
	return s.Get(DocumentID(name))
}

// Len returns the number of documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// List returns the documents visible to portal that match q, sorted by
// name, with the total before paging.
func (s *Store) List(portal auth.Portal, q Query) ([]Document, int) {
	s.mu.RLock()
	matched := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		if d.VisibleTo(portal) && q.Match(d) {
			matched = append(matched, d.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	return q.page(matched), total
}

// Apply validates and applies u to the document with id and returns the
// updated document. A document moves from Awaiting Review to Awaiting
// Publication once every sub-document is awaiting publication.
func (s *Store) Apply(id string, u Update) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return Document{}, errs.New(errs.NotFound, "document not found")
	}
	if d.Status == StatusPublished {
		return Document{}, errs.New(errs.FailedPrecondition, "document is already published")
	}
	if u.Status != "" && u.Status != StatusPublished {
		return Document{}, errs.New(errs.InvalidArgument, fmt.Sprintf("document status %q cannot be set directly", u.Status))
	}
	if u.Status == StatusPublished && d.Status != StatusAwaitingReview && d.Status != StatusAwaitingPublication {
		return Document{}, errs.New(errs.FailedPrecondition, fmt.Sprintf("cannot publish a document in %s", d.Status.Label()))
	}

	// Validate everything before mutating so a rejected update changes nothing.
	next := d.clone()
	for _, su := range u.SubDocs {
		idx := slices.IndexFunc(next.SubDocs, func(sd SubDocument) bool { return sd.ID == su.ID })
		if idx < 0 {
			return Document{}, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown sub-document %q", su.ID))
		}
		if err := applySubDocument(&next.SubDocs[idx], su, u.Status == StatusPublished); err != nil {
			return Document{}, err
		}
	}

	if u.Edited {
		next.Edited = true
	}
	if len(u.SubDocs) > 0 || u.Edited {
		next.Version++
	}
	switch {
	case u.Status == StatusPublished:
		next.Status = StatusPublished
		for i := range next.SubDocs {
			next.SubDocs[i].Status = StatusPublished
		}
	case next.Status == StatusAwaitingReview && allAwaitingPublication(next.SubDocs):
		next.Status = StatusAwaitingPublication
	}
	next.UpdatedAt = s.now()
	*d = next
	return next.clone(), nil
}

func applySubDocument(sd *SubDocument, su SubDocumentUpdate, publishing bool) error {
	switch su.Status {
	case "":
	case StatusAwaitingReview, StatusAwaitingPublication:
		sd.Status = su.Status
	case StatusPublished:
		if !publishing {
			return errs.New(errs.InvalidArgument, "sub-documents are published with their document")
		}
	default:
		return errs.New(errs.InvalidArgument, fmt.Sprintf("invalid sub-document status %q", su.Status))
	}
	if publishing {
		sd.Status = StatusPublished
	}
	if su.EnglishContent != nil {
		sd.EnglishContent = *su.EnglishContent
	}
	for _, mu := range su.Metrics {
		if mu.Vendor != VendorHuman {
			return errs.New(errs.InvalidArgument, fmt.Sprintf("only %s metrics can be edited", VendorHuman))
		}
		m, ok := sd.metric(VendorHuman)
		if !ok {
			base, _ := sd.metric(VendorAI)
			seed := Metric{Vendor: VendorHuman}
			if base != nil {
				seed.Fluency, seed.Adequacy, seed.Compliance = base.Fluency, base.Adequacy, base.Compliance
			}
			// The human review is listed first.
			sd.Metrics = append([]Metric{seed}, sd.Metrics...)
			m = &sd.Metrics[0]
		}
		for _, f := range []struct {
			name string
			v    *float64
			dst  *float64
		}{{"fluency", mu.Fluency, &m.Fluency}, {"adequacy", mu.Adequacy, &m.Adequacy}, {"compliance", mu.Compliance, &m.Compliance}} {
			if f.v == nil {
				continue
			}
			if !ValidScore(*f.v) {
				return errs.New(errs.InvalidArgument, fmt.Sprintf("%s score %v is not a half step between 0 and %v", f.name, *f.v, MaxScore))
			}
			*f.dst = *f.v
		}
		if mu.Content != nil {
			m.Content = *mu.Content
		}
	}
	return nil
}

func allAwaitingPublication(subs []SubDocument) bool {
	if len(subs) == 0 {
		return false
	}
	for _, sd := range subs {
		if sd.Status != StatusAwaitingPublication {
			return false
		}
	}
	return true
}

// SubDocumentByPath resolves a content path "<doc>/<sub>".
func (s *Store) SubDocumentByPath(docID, subID string) (Document, SubDocument, error) {
	d, err := s.Get(docID)
	if err != nil {
		return Document{}, SubDocument{}, err
	}
	for _, sd := range d.SubDocs {
		if sd.ID == subID {
			return d, sd, nil
		}
	}
	return Document{}, SubDocument{}, errs.New(errs.NotFound, "sub-document not found")
}

// trimmedName drops surrounding space for search comparisons.
func trimmedName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
