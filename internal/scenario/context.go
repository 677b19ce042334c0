package scenario

import (
	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/filter"
	"github.com/kuitang/gridcheck/internal/grid"
)

// Selections are the checked values of each filter category.
type Selections struct {
	Metrics  filter.Selection
	Language filter.Selection
	Status   filter.Selection
}

// Get returns the selection of a filter category key.
func (s Selections) Get(key string) filter.Selection {
	switch key {
	case config.CategoryMetricsScore:
		return s.Metrics
	case config.CategoryLanguage:
		return s.Language
	case config.CategoryStatus:
		return s.Status
	}
	return filter.Selection{}
}

// With returns s with the selection of key replaced.
func (s Selections) With(key string, sel filter.Selection) Selections {
	switch key {
	case config.CategoryMetricsScore:
		s.Metrics = sel
	case config.CategoryLanguage:
		s.Language = sel
	case config.CategoryStatus:
		s.Status = sel
	}
	return s
}

// Context is the state threaded from step to step. Steps receive a copy and
// return the next value; nothing is shared between scenarios.
type Context struct {
	Env  config.Environment
	Data *config.TestData

	// Document is the name searched for; Row is where it was last found.
	Document string
	Row      grid.RowHandle
	Found    bool

	// Baseline is the row read before any edits.
	Baseline grid.RowData
	// UnfilteredRows is the grid row count before any filter was applied.
	UnfilteredRows int

	Selections Selections

	// LastStep is set once stepper navigation reaches the final sub-file.
	LastStep bool
}

// NewContext seeds a context for env and data.
func NewContext(env config.Environment, data *config.TestData) Context {
	return Context{Env: env, Data: data, Document: data.SearchTerms.DocName, Row: grid.Row(-1)}
}

// WithRow records where the document was found.
func (c Context) WithRow(row grid.RowHandle, found bool) Context {
	c.Row = row
	c.Found = found
	return c
}
