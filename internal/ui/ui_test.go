package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/obs"
)

// fakeLocator records the operations applied to it. Methods the tests never
// reach fall through to the nil embedded interface and panic.
type fakeLocator struct {
	playwright.Locator
	desc  string
	count int
	// wait runs on WaitFor with the locator's description.
	wait func(desc string) error
}

func (l *fakeLocator) derive(desc string, count int) *fakeLocator {
	return &fakeLocator{desc: desc, count: count, wait: l.wait}
}

func (l *fakeLocator) Count() (int, error) { return l.count, nil }
func (l *fakeLocator) First() playwright.Locator {
	return l.derive(l.desc+".first", min(l.count, 1))
}
func (l *fakeLocator) Last() playwright.Locator {
	return l.derive(l.desc+".last", min(l.count, 1))
}
func (l *fakeLocator) Nth(i int) playwright.Locator {
	return l.derive(fmt.Sprintf("%s.nth(%d)", l.desc, i), 0)
}
func (l *fakeLocator) Or(other playwright.Locator) playwright.Locator {
	o := other.(*fakeLocator)
	return l.derive(l.desc+"|"+o.desc, l.count+o.count)
}
func (l *fakeLocator) Filter(opts ...playwright.LocatorFilterOptions) playwright.Locator {
	return l.derive(fmt.Sprintf("%s[has=%v]", l.desc, opts[0].HasText), l.count)
}
func (l *fakeLocator) WaitFor(...playwright.LocatorWaitForOptions) error {
	if l.wait == nil {
		return nil
	}
	return l.wait(l.desc)
}

type fakeSource struct {
	counts map[string]int
	wait   func(desc string) error
}

func (s fakeSource) Locator(selector string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	return &fakeLocator{desc: selector, count: s.counts[selector], wait: s.wait}
}

func (s fakeSource) GetByRole(role playwright.AriaRole, opts ...playwright.PageGetByRoleOptions) playwright.Locator {
	desc := fmt.Sprintf("role:%s:%v", role, opts[0].Name)
	return &fakeLocator{desc: desc, count: s.counts[desc], wait: s.wait}
}

func (s fakeSource) GetByText(text interface{}, _ ...playwright.PageGetByTextOptions) playwright.Locator {
	desc := fmt.Sprintf("text:%v", text)
	return &fakeLocator{desc: desc, count: s.counts[desc], wait: s.wait}
}

func descOf(l playwright.Locator) string { return l.(*fakeLocator).desc }

func TestResolve_PrefersFirstLiveCandidate(t *testing.T) {
	src := fakeSource{counts: map[string]int{"button.fallback": 2, "role:button:Apply": 1}}
	chain := locator.New("apply", locator.Role("button", "Apply"), locator.CSS("button.fallback")).First()

	assert.Equal(t, "role:button:Apply.first", descOf(resolve(src, chain)))
}

func TestResolve_SkipsEmptyHigherPriorityCandidates(t *testing.T) {
	src := fakeSource{counts: map[string]int{"button.fallback": 2}}
	chain := locator.New("apply", locator.Role("button", "Apply"), locator.CSS("button.fallback")).Last()

	assert.Equal(t, "button.fallback.last", descOf(resolve(src, chain)))
}

func TestResolve_UnionWhenNothingMatchesYet(t *testing.T) {
	src := fakeSource{counts: map[string]int{}}
	chain := locator.New("title", locator.CSS("h1.heading"), locator.CSS("h1").WithText("Dashboard")).First()

	assert.Equal(t, "h1.heading|h1[has=Dashboard].first", descOf(resolve(src, chain)))
}

func TestResolve_PicksAndText(t *testing.T) {
	src := fakeSource{counts: map[string]int{}}
	assert.Equal(t, "text:Clear All.nth(1)", descOf(resolve(src, locator.New("x", locator.Text("Clear All", true)).Nth(1))))
	assert.Equal(t, "gridcheck-empty-chain", descOf(resolve(src, locator.New("empty"))))
	assert.Equal(t, `input[value="NEW"]`, descOf(resolve(src, locator.New("x", locator.Attr("input", "value", "NEW")).All())))
}

func TestTarget_ResolvesByPriorityAfterWait(t *testing.T) {
	counts := map[string]int{}
	var waited []string
	src := fakeSource{counts: counts, wait: func(desc string) error {
		waited = append(waited, desc)
		// The fallback renders first in the DOM; both are present after the wait.
		counts["button.fallback"] = 1
		counts["role:button:Apply"] = 1
		return nil
	}}
	chain := locator.New("apply", locator.Role("button", "Apply"), locator.CSS("button.fallback")).First()

	l, left, err := target(src, chain, playwright.Float(5000))
	require.NoError(t, err)
	assert.Equal(t, []string{"role:button:Apply|button.fallback.first"}, waited)
	assert.Equal(t, "role:button:Apply.first", descOf(l))
	assert.LessOrEqual(t, *left, 5000.0)
	assert.Positive(t, *left)
}

func TestTarget_LiveMatchSkipsWait(t *testing.T) {
	src := fakeSource{
		counts: map[string]int{"button.fallback": 1},
		wait: func(string) error {
			t.Error("no wait expected when a candidate matches")
			return nil
		},
	}
	chain := locator.New("apply", locator.Role("button", "Apply"), locator.CSS("button.fallback")).First()

	l, left, err := target(src, chain, playwright.Float(5000))
	require.NoError(t, err)
	assert.Equal(t, "button.fallback.first", descOf(l))
	assert.Equal(t, 5000.0, *left)

	single := locator.New("title", locator.CSS("h1")).First()
	l, _, err = target(src, single, playwright.Float(5000))
	require.NoError(t, err)
	assert.Equal(t, "h1.first", descOf(l))
}

func TestTarget_WaitErrorIsReturned(t *testing.T) {
	src := fakeSource{counts: map[string]int{}, wait: func(string) error { return playwright.ErrTimeout }}
	chain := locator.New("apply", locator.Role("button", "Apply"), locator.CSS("button.fallback")).First()

	_, _, err := target(src, chain, playwright.Float(10))
	require.Error(t, err)
	assert.True(t, errs.Is(actionErr("click", chain, err), errs.Timeout))
}

func TestActionErr_MapsPlaywrightTimeout(t *testing.T) {
	chain := locator.New("filters.apply")
	err := actionErr("click", chain, fmt.Errorf("locator.click: %w", playwright.ErrTimeout))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))
	assert.Contains(t, err.Error(), "target not found: filters.apply")

	other := actionErr("click", chain, errors.New("target closed"))
	assert.Equal(t, errs.Unavailable, errs.CodeOf(other))
	assert.NoError(t, actionErr("click", chain, nil))
}

func TestBudget_ClampsToDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ms, err := budget(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, *ms, 200.0)

	cancel()
	_, err = budget(ctx, time.Second)
	assert.True(t, errs.Is(err, errs.Timeout))
}

type fakeSettler struct {
	functionErr  error
	loadStateErr error
	calls        []string
	quietArg     any
}

func (f *fakeSettler) WaitForFunction(expression string, arg interface{}, _ ...playwright.PageWaitForFunctionOptions) (playwright.JSHandle, error) {
	f.calls = append(f.calls, "function")
	f.quietArg = arg
	return nil, f.functionErr
}

func (f *fakeSettler) WaitForLoadState(opts ...playwright.PageWaitForLoadStateOptions) error {
	f.calls = append(f.calls, "load:"+string(*opts[0].State))
	return f.loadStateErr
}

func TestStabilizer_QuiescenceSkipsFallback(t *testing.T) {
	page := &fakeSettler{}
	s := NewStabilizer(page, StabilizerOptions{
		Quiet:              250 * time.Millisecond,
		QuiescenceTimeout:  time.Second,
		NetworkIdleTimeout: time.Second,
		Fallback:           time.Hour,
	})

	done := make(chan struct{})
	go func() {
		s.Settle(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Settle slept the fallback although the page was quiet")
	}
	assert.Equal(t, []string{"load:networkidle", "function"}, page.calls)
	assert.Equal(t, 250.0, page.quietArg)
}

func TestStabilizer_FallbackOnQuiescenceTimeoutIsLogged(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()

	page := &fakeSettler{functionErr: playwright.ErrTimeout, loadStateErr: playwright.ErrTimeout}
	s := NewStabilizer(page, StabilizerOptions{
		Quiet:              10 * time.Millisecond,
		QuiescenceTimeout:  10 * time.Millisecond,
		NetworkIdleTimeout: 10 * time.Millisecond,
		Fallback:           30 * time.Millisecond,
	})

	start := time.Now()
	s.Settle(context.Background())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	out := buf.String()
	assert.Contains(t, out, "network idle not reached")
	assert.Contains(t, out, "using fallback delay")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestStabilizer_PauseHonorsContext(t *testing.T) {
	s := NewStabilizer(&fakeSettler{}, DefaultStabilizerOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Pause(ctx, time.Hour), context.Canceled)
	assert.NoError(t, s.Pause(context.Background(), time.Millisecond))
}
