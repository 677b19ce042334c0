package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_testdata.yaml
var defaultTestData []byte

// Filter category keys the flows depend on.
const (
	CategoryMetricsScore = "metricsScore"
	CategoryLanguage     = "language"
	CategoryStatus       = "status"
)

// WaitTimes are the scenario pauses in milliseconds.
type WaitTimes struct {
	ShortMS        int `yaml:"short" json:"short" validate:"gte=0"`
	MediumMS       int `yaml:"medium" json:"medium" validate:"gte=0"`
	LongMS         int `yaml:"long" json:"long" validate:"gte=0"`
	VeryLongMS     int `yaml:"veryLong" json:"veryLong" validate:"gte=0"`
	ExtraLongMS    int `yaml:"extraLong" json:"extraLong" validate:"gte=0"`
	TextareaFillMS int `yaml:"textareaFill" json:"textareaFill" validate:"gte=0"`
}

func (w WaitTimes) Short() time.Duration        { return ms(w.ShortMS) }
func (w WaitTimes) Medium() time.Duration       { return ms(w.MediumMS) }
func (w WaitTimes) Long() time.Duration         { return ms(w.LongMS) }
func (w WaitTimes) VeryLong() time.Duration     { return ms(w.VeryLongMS) }
func (w WaitTimes) ExtraLong() time.Duration    { return ms(w.ExtraLongMS) }
func (w WaitTimes) TextareaFill() time.Duration { return ms(w.TextareaFillMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

type SearchTerms struct {
	DocName string `yaml:"docName" json:"docName" validate:"required"`
}

type ButtonText struct {
	Apply           string `yaml:"apply" json:"apply" validate:"required"`
	ClearAll        string `yaml:"clearAll" json:"clearAll" validate:"required"`
	ClearAllFilters string `yaml:"clearAllFilters" json:"clearAllFilters" validate:"required"`
}

// FilterOption is one checkbox in a filter dropdown.
type FilterOption struct {
	Key string `yaml:"key" json:"key" validate:"required"`
	// Value is the checkbox input's value attribute.
	Value string `yaml:"value" json:"value" validate:"required"`
	// Tile is the toolbar tile text shown once the option is applied.
	Tile string `yaml:"tile" json:"tile" validate:"required"`
	// Suffix is the document-name language suffix (language options only).
	Suffix string `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	// Lower and Upper bound the score average (metrics options only).
	Lower float64 `yaml:"lower,omitempty" json:"lower,omitempty" validate:"gte=0,lte=4"`
	Upper float64 `yaml:"upper,omitempty" json:"upper,omitempty" validate:"gte=0,lte=4,gtefield=Lower"`
}

// FilterCategory is one toolbar dropdown.
type FilterCategory struct {
	Key   string `yaml:"key" json:"key" validate:"required"`
	Label string `yaml:"label" json:"label" validate:"required"`
	// ChipFallback accepts any applied-filter chip when the expected tile never shows.
	ChipFallback bool           `yaml:"chipFallback" json:"chipFallback"`
	Options      []FilterOption `yaml:"options" json:"options" validate:"required,min=1,dive"`
}

// Option returns the option with the given key.
func (c FilterCategory) Option(key string) (FilterOption, bool) {
	for _, o := range c.Options {
		if o.Key == key {
			return o, true
		}
	}
	return FilterOption{}, false
}

// Values returns every checkbox value in declaration order.
func (c FilterCategory) Values() []string {
	out := make([]string, len(c.Options))
	for i, o := range c.Options {
		out[i] = o.Value
	}
	return out
}

type Scores struct {
	Initial         float64 `yaml:"initial" json:"initial" validate:"gte=0,lte=4"`
	FluencyUpdated  float64 `yaml:"fluencyUpdated" json:"fluencyUpdated" validate:"gt=0,lte=4"`
	AdequacyUpdated float64 `yaml:"adequacyUpdated" json:"adequacyUpdated" validate:"gt=0,lte=4"`
	ComplianceFloor float64 `yaml:"complianceFloor" json:"complianceFloor" validate:"gte=0,lte=4"`
}

type TestContent struct {
	SimpleText    string `yaml:"simpleText" json:"simpleText" validate:"required"`
	MarkdownTable string `yaml:"markdownTable" json:"markdownTable" validate:"required"`
}

// TestData is the structured scenario document: filter labels, checkbox values,
// tile texts, boundaries, suffixes, wait times, edit content and scores.
type TestData struct {
	WaitTimes   WaitTimes        `yaml:"waitTimes" json:"waitTimes"`
	SearchTerms SearchTerms      `yaml:"searchTerms" json:"searchTerms"`
	ButtonText  ButtonText       `yaml:"buttonText" json:"buttonText"`
	Filters     []FilterCategory `yaml:"filters" json:"filters" validate:"required,min=1,dive"`
	Scores      Scores           `yaml:"scores" json:"scores"`
	TestContent TestContent      `yaml:"testContent" json:"testContent"`
}

// requiredOptions are the option keys the built-in flows reference.
var requiredOptions = map[string][]string{
	CategoryMetricsScore: {"zeroToTwoPointNine", "threeToThreePointFour", "threePointFiveToThreePointNine", "fourPointZero"},
	CategoryLanguage:     {"English", "Spanish", "Japanese", "German", "Korean"},
	CategoryStatus:       {"New", "awaitingReview", "awaitingPublication", "published"},
}

// Category returns the filter category with the given key.
func (d *TestData) Category(key string) (FilterCategory, bool) {
	for _, c := range d.Filters {
		if c.Key == key {
			return c, true
		}
	}
	return FilterCategory{}, false
}

// MustCategory is Category for keys that Validate already guaranteed.
func (d *TestData) MustCategory(key string) FilterCategory {
	c, ok := d.Category(key)
	if !ok {
		panic(fmt.Sprintf("config: filter category %q missing from test data", key))
	}
	return c
}

// Validate checks struct tags and the cross-field rules the flows rely on.
func (d *TestData) Validate() error {
	var issues []string

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			issues = append(issues, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	for key, options := range requiredOptions {
		category, ok := d.Category(key)
		if !ok {
			issues = append(issues, fmt.Sprintf("filters: category %q is required", key))
			continue
		}
		for _, opt := range options {
			if _, ok := category.Option(opt); !ok {
				issues = append(issues, fmt.Sprintf("filters.%s: option %q is required", key, opt))
			}
		}
	}
	if lang, ok := d.Category(CategoryLanguage); ok {
		for _, o := range lang.Options {
			if o.Suffix == "" {
				issues = append(issues, fmt.Sprintf("filters.language.%s: suffix is required", o.Key))
			}
		}
	}

	seen := make(map[string]bool, len(d.Filters))
	for _, c := range d.Filters {
		if seen[c.Key] {
			issues = append(issues, fmt.Sprintf("filters: duplicate category %q", c.Key))
		}
		seen[c.Key] = true
	}

	if len(issues) > 0 {
		return &ValidationError{Errors: issues}
	}
	return nil
}

// ParseTestData decodes a YAML (or JSON) test data document and validates it.
func ParseTestData(data []byte) (*TestData, error) {
	var d TestData
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode test data: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadTestData reads the document at path, or the embedded default when path is empty.
func LoadTestData(path string) (*TestData, error) {
	if strings.TrimSpace(path) == "" {
		return ParseTestData(defaultTestData)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test data %s: %w", path, err)
	}
	return ParseTestData(data)
}

// DefaultTestData returns a fresh copy of the embedded document.
func DefaultTestData() *TestData {
	d, err := ParseTestData(defaultTestData)
	if err != nil {
		panic(fmt.Sprintf("config: embedded test data invalid: %v", err))
	}
	return d
}
