package reviewapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/gridcheck/internal/auth"
)

// SeedUser is a reviewer account created at startup.
type SeedUser struct {
	Email    string
	Password string
	Portal   auth.Portal
}

// DefaultUsers match the dev environment credentials.
var DefaultUsers = []SeedUser{
	{Email: "reviewer@example.com", Password: "reviewer-pass", Portal: auth.PortalTranslation},
	{Email: "english@example.com", Password: "english-pass", Portal: auth.PortalEnglish},
}

// SubDocumentsPerDocument is the stepper length of every seeded document.
const SubDocumentsPerDocument = 3

type seedDoc struct {
	name   string
	status Status
	isNew  bool
	// scores are fluency, adequacy, compliance on every sub-document.
	scores [3]float64
}

// Every filter value matches at least two seeded documents, so each filtered
// grid has more than one row for the row walk to verify.
var seedDocs = []seedDoc{
	{"QA_Automation_Doc_de", StatusAwaitingReview, true, [3]float64{4, 4, 4}},
	{"QA_Automation_Doc_en", StatusAwaitingReview, true, [3]float64{}},
	{"Contract_Terms_de", StatusAwaitingPublication, true, [3]float64{2, 2, 2}},
	{"Release_Notes_de", StatusPublished, true, [3]float64{3, 3, 4}},
	{"Pricing_Page_de", StatusNew, false, [3]float64{3, 3, 4}},
	{"Product_Guide_en", StatusAwaitingReview, true, [3]float64{}},
	{"Support_Macros_en", StatusPublished, true, [3]float64{}},
	{"Onboarding_Email_en", StatusNew, false, [3]float64{}},
	{"Product_Guide_es", StatusAwaitingReview, true, [3]float64{3.5, 3.5, 4}},
	{"Pricing_Page_es", StatusAwaitingPublication, true, [3]float64{3, 3, 4}},
	{"Help_Center_es", StatusNew, false, [3]float64{4, 4, 4}},
	{"Product_Guide_jp", StatusAwaitingPublication, true, [3]float64{3.5, 3.5, 4}},
	{"Legal_Notice_jp", StatusPublished, true, [3]float64{2, 2, 2}},
	{"Product_Guide_ko", StatusAwaitingReview, false, [3]float64{3, 3, 4}},
	{"Legal_Notice_ko", StatusAwaitingPublication, false, [3]float64{4, 4, 4}},
	{"Release_Notes_ko", StatusPublished, true, [3]float64{3.5, 3.5, 4}},
}

// LanguageOf returns the code after the last underscore of name.
func LanguageOf(name string) string {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

func subDocStatus(doc Status) Status {
	switch doc {
	case StatusAwaitingPublication:
		return StatusAwaitingPublication
	case StatusPublished:
		return StatusPublished
	default:
		return StatusAwaitingReview
	}
}

// Seed fills s with the fixture documents.
func Seed(s *Store) {
	created := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	for _, sd := range seedDocs {
		d := Document{
			ID:        DocumentID(sd.name),
			Name:      sd.name,
			Language:  LanguageOf(sd.name),
			Version:   1,
			Status:    sd.status,
			IsNew:     sd.isNew,
			UpdatedAt: created,
		}
		for i := 0; i < SubDocumentsPerDocument; i++ {
			sub := SubDocument{
				ID:     subDocumentID(d.ID, i),
				Title:  fmt.Sprintf("Section %d", i+1),
				Status: subDocStatus(sd.status),
			}
			source := fmt.Sprintf("# %s\n\nSection %d source text.", sd.name, i+1)
			if d.Scored() {
				sub.Metrics = []Metric{{
					Vendor:             VendorAI,
					Content:            fmt.Sprintf("# %s\n\nSection %d machine translation.", sd.name, i+1),
					Fluency:            sd.scores[0],
					Adequacy:           sd.scores[1],
					Compliance:         sd.scores[2],
					TranslatedFilePath: fmt.Sprintf("/content/%s/%s.md", d.ID, sub.ID),
				}}
			} else {
				sub.EnglishContent = source
			}
			d.SubDocs = append(d.SubDocs, sub)
		}
		s.Put(d)
	}
}
