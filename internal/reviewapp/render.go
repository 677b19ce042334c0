package reviewapp

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Renderer executes the page templates, each parsed together with base.html.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses every page template of fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	base, err := fs.ReadFile(fsys, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("read base template: %w", err)
	}
	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{templates: make(map[string]*template.Template)}
	for _, path := range pages {
		name := strings.TrimPrefix(path, "templates/")
		if name == "base.html" {
			continue
		}
		page, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		tmpl, err := template.New("base").Funcs(funcMap()).Parse(string(base))
		if err != nil {
			return nil, fmt.Errorf("parse base template for %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(page)); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	if len(r.templates) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return r, nil
}

// Render executes the named page with data.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("execute template %q: %w", name, err)
	}
	return nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"markdown":    RenderMarkdown,
		"formatScore": FormatScore,
		"scoreSteps":  scoreSteps,
	}
}

// RenderMarkdown converts markdown to sanitized HTML.
func RenderMarkdown(s string) template.HTML {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	doc := parser.NewWithExtensions(extensions).Parse([]byte(s))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(doc, renderer)

	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(out))
}

// FormatScore prints a score the way the grid and the radio values do:
// "4", "3.5", "3.33".
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// scoreSteps are the radio values of a score scale.
func scoreSteps() []float64 {
	steps := make([]float64, 0, int(MaxScore*2))
	for v := 0.5; v <= MaxScore; v += 0.5 {
		steps = append(steps, v)
	}
	return steps
}
