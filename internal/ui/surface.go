// Package ui resolves locator chains against a live playwright page.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/obs"
)

// Surface is the browser capability page objects, grid readers and filter
// panels act through. Every blocking call takes the timeout for that call.
type Surface interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL() string
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)

	Click(ctx context.Context, c locator.Chain, timeout time.Duration) error
	Fill(ctx context.Context, c locator.Chain, value string, timeout time.Duration) error
	Clear(ctx context.Context, c locator.Chain, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, c locator.Chain, timeout time.Duration) error
	WaitVisible(ctx context.Context, c locator.Chain, timeout time.Duration) error

	Count(ctx context.Context, c locator.Chain) (int, error)
	Text(ctx context.Context, c locator.Chain, timeout time.Duration) (string, error)
	Texts(ctx context.Context, c locator.Chain) ([]string, error)
	InputValue(ctx context.Context, c locator.Chain, timeout time.Duration) (string, error)
	Attribute(ctx context.Context, c locator.Chain, name string, timeout time.Duration) (string, error)
	EvaluateAll(ctx context.Context, c locator.Chain, expression string, arg any) (any, error)

	// Settle blocks until the page stops changing or the stabilizer gives up.
	Settle(ctx context.Context)
	// WaitNetworkIdle reports the error; callers treat it as best effort.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	Pause(ctx context.Context, d time.Duration) error
}

// PageSurface implements Surface on a playwright page.
type PageSurface struct {
	page playwright.Page
	stab *Stabilizer
}

// NewPageSurface wraps page. A nil stabilizer uses DefaultStabilizerOptions.
func NewPageSurface(page playwright.Page, stab *Stabilizer) *PageSurface {
	if stab == nil {
		stab = NewStabilizer(page, DefaultStabilizerOptions())
	}
	return &PageSurface{page: page, stab: stab}
}

// Page exposes the underlying page for harness code (viewport, close).
func (s *PageSurface) Page() playwright.Page { return s.page }

// Resolve turns a chain into a playwright locator. The first candidate with a
// live match wins; when none matches yet, the union of all candidates is used
// so a subsequent wait succeeds on whichever appears first. Single-element
// actions resolve again after that wait so candidate priority still holds.
func (s *PageSurface) Resolve(c locator.Chain) playwright.Locator {
	return resolve(s.page, c)
}

// locatorSource is the part of playwright.Page that resolution needs.
type locatorSource interface {
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
	GetByRole(role playwright.AriaRole, options ...playwright.PageGetByRoleOptions) playwright.Locator
	GetByText(text interface{}, options ...playwright.PageGetByTextOptions) playwright.Locator
}

func resolve(src locatorSource, c locator.Chain) playwright.Locator {
	l, _ := resolveLive(src, c)
	return l
}

// resolveLive is resolve that also reports whether a candidate matched. A
// chain with at most one candidate always counts as matched.
func resolveLive(src locatorSource, c locator.Chain) (playwright.Locator, bool) {
	if len(c.Candidates) == 0 {
		// An empty chain never matches; the failure surfaces at action time.
		return applyPick(src.Locator("gridcheck-empty-chain"), c.Pick), true
	}

	locs := make([]playwright.Locator, len(c.Candidates))
	for i, cand := range c.Candidates {
		locs[i] = candidateLocator(src, cand)
	}
	if len(locs) == 1 {
		return applyPick(locs[0], c.Pick), true
	}
	for _, l := range locs {
		if n, err := l.Count(); err == nil && n > 0 {
			return applyPick(l, c.Pick), true
		}
	}
	union := locs[0]
	for _, l := range locs[1:] {
		union = union.Or(l)
	}
	return applyPick(union, c.Pick), false
}

// target resolves c for a single-element action. When no candidate matches
// yet it waits for the union to attach and resolves again, so the highest
// priority candidate on the page wins over whichever comes first in the DOM.
// It returns the action timeout left after the wait.
func target(src locatorSource, c locator.Chain, ms *float64) (playwright.Locator, *float64, error) {
	l, live := resolveLive(src, c)
	if live {
		return l, ms, nil
	}
	start := time.Now()
	if err := l.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms,
	}); err != nil {
		return nil, nil, err
	}
	left := max(*ms-float64(time.Since(start).Milliseconds()), 1)
	return resolve(src, c), &left, nil
}

func candidateLocator(src locatorSource, cand locator.Candidate) playwright.Locator {
	var l playwright.Locator
	switch cand.Kind {
	case locator.ByRole:
		l = src.GetByRole(playwright.AriaRole(cand.Role), playwright.PageGetByRoleOptions{
			Name:  cand.Name,
			Exact: playwright.Bool(cand.Exact),
		})
	case locator.ByText:
		l = src.GetByText(cand.Name, playwright.PageGetByTextOptions{Exact: playwright.Bool(cand.Exact)})
	default:
		without := cand
		without.HasText = ""
		l = src.Locator(without.SelectorString())
	}
	if cand.HasText != "" {
		l = l.Filter(playwright.LocatorFilterOptions{HasText: cand.HasText})
	}
	return l
}

func applyPick(l playwright.Locator, p locator.Pick) playwright.Locator {
	switch p.Kind {
	case locator.PickFirst:
		return l.First()
	case locator.PickLast:
		return l.Last()
	case locator.PickNth:
		return l.Nth(p.Index)
	default:
		return l
	}
}

// single narrows PickAll chains to their first match for actions that need
// exactly one element.
func single(c locator.Chain) locator.Chain {
	if c.Pick.Kind == locator.PickAll {
		return c.First()
	}
	return c
}

// budget clamps timeout to the context deadline and reports ctx errors early.
func budget(ctx context.Context, timeout time.Duration) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.Timeout, "context done", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return playwright.Float(float64(timeout.Milliseconds())), nil
}

func actionErr(action string, c locator.Chain, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return errs.Wrap(errs.Timeout, "target not found: "+c.Name, err)
	}
	return errs.Wrap(errs.Unavailable, fmt.Sprintf("%s %s", action, c.Name), err)
}

func (s *PageSurface) Goto(ctx context.Context, url string, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	obs.From(ctx).Debug("navigate", "event", "action", "url", url)
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms,
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return errs.Wrap(errs.Timeout, "navigate "+url, err)
		}
		return errs.Wrap(errs.Unavailable, "navigate "+url, err)
	}
	return nil
}

func (s *PageSurface) URL() string { return s.page.URL() }

func (s *PageSurface) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *PageSurface) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Content()
}

func (s *PageSurface) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
}

func (s *PageSurface) Click(ctx context.Context, c locator.Chain, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	c = single(c)
	obs.From(ctx).Debug("click", "event", "action", "target", c.Name)
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return actionErr("click", c, err)
	}
	return actionErr("click", c, l.Click(playwright.LocatorClickOptions{Timeout: ms}))
}

func (s *PageSurface) Fill(ctx context.Context, c locator.Chain, value string, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	c = single(c)
	obs.From(ctx).Debug("fill", "event", "action", "target", c.Name, "chars", len(value))
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return actionErr("fill", c, err)
	}
	return actionErr("fill", c, l.Fill(value, playwright.LocatorFillOptions{Timeout: ms}))
}

func (s *PageSurface) Clear(ctx context.Context, c locator.Chain, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	c = single(c)
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return actionErr("clear", c, err)
	}
	return actionErr("clear", c, l.Clear(playwright.LocatorClearOptions{Timeout: ms}))
}

func (s *PageSurface) ScrollIntoView(ctx context.Context, c locator.Chain, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	c = single(c)
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return actionErr("scroll", c, err)
	}
	return actionErr("scroll", c, l.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: ms}))
}

func (s *PageSurface) WaitVisible(ctx context.Context, c locator.Chain, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	c = single(c)
	return actionErr("wait", c, s.Resolve(c).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms,
	}))
}

func (s *PageSurface) Count(ctx context.Context, c locator.Chain) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.Resolve(c).Count()
	return n, actionErr("count", c, err)
}

func (s *PageSurface) Text(ctx context.Context, c locator.Chain, timeout time.Duration) (string, error) {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return "", err
	}
	c = single(c)
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return "", actionErr("text", c, err)
	}
	text, err := l.TextContent(playwright.LocatorTextContentOptions{Timeout: ms})
	return text, actionErr("text", c, err)
}

func (s *PageSurface) Texts(ctx context.Context, c locator.Chain) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texts, err := s.Resolve(c).AllTextContents()
	return texts, actionErr("texts", c, err)
}

func (s *PageSurface) InputValue(ctx context.Context, c locator.Chain, timeout time.Duration) (string, error) {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return "", err
	}
	c = single(c)
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return "", actionErr("input value", c, err)
	}
	v, err := l.InputValue(playwright.LocatorInputValueOptions{Timeout: ms})
	return v, actionErr("input value", c, err)
}

func (s *PageSurface) Attribute(ctx context.Context, c locator.Chain, name string, timeout time.Duration) (string, error) {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return "", err
	}
	c = single(c)
	l, ms, err := target(s.page, c, ms)
	if err != nil {
		return "", actionErr("attribute", c, err)
	}
	v, err := l.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: ms})
	return v, actionErr("attribute", c, err)
}

func (s *PageSurface) EvaluateAll(ctx context.Context, c locator.Chain, expression string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		out any
		err error
	)
	if arg == nil {
		out, err = s.Resolve(c).EvaluateAll(expression)
	} else {
		out, err = s.Resolve(c).EvaluateAll(expression, arg)
	}
	return out, actionErr("evaluate", c, err)
}

func (s *PageSurface) Settle(ctx context.Context) {
	s.stab.Settle(ctx)
}

func (s *PageSurface) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return s.stab.NetworkIdle(ctx, timeout)
}

func (s *PageSurface) Pause(ctx context.Context, d time.Duration) error {
	return s.stab.Pause(ctx, d)
}
