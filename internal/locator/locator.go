// Package locator describes how to find UI targets without touching a browser.
//
// A Candidate is one way to address an element (CSS/XPath, ARIA role, text,
// attribute). A Chain lists candidates in priority order plus a pick rule.
// Building a chain never fails; resolution and its errors happen in package ui
// when an action runs.
package locator

import (
	"fmt"
	"strings"
)

// Kind selects the matching strategy of a candidate.
type Kind int

const (
	// ByCSS matches a raw selector. Selectors starting with "//" are XPath;
	// " >> " chains nested selectors.
	ByCSS Kind = iota
	// ByRole matches an ARIA role with an accessible name.
	ByRole
	// ByText matches visible text.
	ByText
	// ByAttr matches an attribute value, optionally scoped to a tag.
	ByAttr
)

func (k Kind) String() string {
	switch k {
	case ByCSS:
		return "css"
	case ByRole:
		return "role"
	case ByText:
		return "text"
	case ByAttr:
		return "attr"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Candidate is one predicate from the capability set.
type Candidate struct {
	Kind Kind
	// Selector is the raw selector for ByCSS, or the tag scope for ByAttr.
	Selector string
	// Role and Name drive ByRole; Name doubles as the text for ByText.
	Role  string
	Name  string
	Exact bool
	// Attr and Value drive ByAttr.
	Attr  string
	Value string
	// HasText narrows any kind to elements containing the text.
	HasText string
}

// CSS returns a raw-selector candidate.
func CSS(selector string) Candidate {
	return Candidate{Kind: ByCSS, Selector: selector}
}

// Role returns a role candidate with an exact accessible name.
func Role(role, name string) Candidate {
	return Candidate{Kind: ByRole, Role: role, Name: name, Exact: true}
}

// Text returns a visible-text candidate.
func Text(text string, exact bool) Candidate {
	return Candidate{Kind: ByText, Name: text, Exact: exact}
}

// Attr returns an attribute candidate scoped to tag ("" for any element).
func Attr(tag, attr, value string) Candidate {
	return Candidate{Kind: ByAttr, Selector: tag, Attr: attr, Value: value}
}

// WithText narrows the candidate to elements containing text.
func (c Candidate) WithText(text string) Candidate {
	c.HasText = text
	return c
}

// SelectorString renders the candidate in Playwright selector syntax.
// Role candidates render with the role engine so they can be logged and
// compared; package ui resolves them through GetByRole instead.
func (c Candidate) SelectorString() string {
	var sel string
	switch c.Kind {
	case ByCSS:
		sel = c.Selector
	case ByRole:
		suffix := ""
		if c.Exact {
			suffix = "s"
		}
		sel = fmt.Sprintf("internal:role=%s[name=%s%s]", c.Role, Quote(c.Name), suffix)
	case ByText:
		if c.Exact {
			sel = "text=" + Quote(c.Name)
		} else {
			sel = "text=" + c.Name
		}
	case ByAttr:
		sel = fmt.Sprintf("%s[%s=%s]", c.Selector, c.Attr, Quote(c.Value))
	}
	if c.HasText != "" {
		sel += fmt.Sprintf(" >> internal:has-text=%s", Quote(c.HasText))
	}
	return sel
}

func (c Candidate) String() string {
	return c.Kind.String() + ":" + c.SelectorString()
}

// PickKind is the element picked from a resolved match set.
type PickKind int

const (
	PickAll PickKind = iota
	PickFirst
	PickLast
	PickNth
)

// Pick chooses one element (or all) from the matches.
type Pick struct {
	Kind  PickKind
	Index int
}

// Chain is an ordered list of candidates plus the pick rule.
type Chain struct {
	Name       string
	Candidates []Candidate
	Pick       Pick
}

// New builds a chain named after the logical target it addresses.
func New(name string, candidates ...Candidate) Chain {
	return Chain{Name: name, Candidates: candidates}
}

// First picks the first match.
func (c Chain) First() Chain {
	c.Pick = Pick{Kind: PickFirst}
	return c
}

// Last picks the last match.
func (c Chain) Last() Chain {
	c.Pick = Pick{Kind: PickLast}
	return c
}

// Nth picks the match at index (0-based).
func (c Chain) Nth(index int) Chain {
	c.Pick = Pick{Kind: PickNth, Index: index}
	return c
}

// All drops the pick rule, addressing every match.
func (c Chain) All() Chain {
	c.Pick = Pick{Kind: PickAll}
	return c
}

// Or appends lower-priority candidates.
func (c Chain) Or(candidates ...Candidate) Chain {
	out := make([]Candidate, 0, len(c.Candidates)+len(candidates))
	out = append(out, c.Candidates...)
	out = append(out, candidates...)
	c.Candidates = out
	return c
}

// Within scopes every candidate under the parent selector. Role and text
// candidates are rewritten to their selector form.
func (c Chain) Within(parent string) Chain {
	out := make([]Candidate, len(c.Candidates))
	for i, cand := range c.Candidates {
		out[i] = CSS(parent + " >> " + cand.SelectorString())
	}
	c.Candidates = out
	return c
}

func (c Chain) String() string {
	parts := make([]string, len(c.Candidates))
	for i, cand := range c.Candidates {
		parts[i] = cand.String()
	}
	s := c.Name + "{" + strings.Join(parts, " | ") + "}"
	switch c.Pick.Kind {
	case PickFirst:
		s += ".first"
	case PickLast:
		s += ".last"
	case PickNth:
		s += fmt.Sprintf(".nth(%d)", c.Pick.Index)
	}
	return s
}

// Quote wraps s in double quotes for selector and XPath literals.
func Quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
