package ui

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/gridcheck/internal/obs"
)

// quiescenceJS resolves once the document has gone quietMs without a DOM
// mutation. The first evaluation installs the observer and never succeeds,
// so a quiet window is always measured rather than assumed.
const quiescenceJS = `(quietMs) => {
	const w = window;
	if (!w.__gridcheckObserver) {
		w.__gridcheckLastMutation = performance.now();
		w.__gridcheckObserver = new MutationObserver(() => {
			w.__gridcheckLastMutation = performance.now();
		});
		w.__gridcheckObserver.observe(document.documentElement, {
			subtree: true, childList: true, attributes: true, characterData: true,
		});
		return false;
	}
	return performance.now() - w.__gridcheckLastMutation >= quietMs;
}`

// settler is the subset of playwright.Page the stabilizer drives.
type settler interface {
	WaitForFunction(expression string, arg interface{}, options ...playwright.PageWaitForFunctionOptions) (playwright.JSHandle, error)
	WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error
}

// StabilizerOptions bound each phase of Settle.
type StabilizerOptions struct {
	// Quiet is the mutation-free window that counts as settled.
	Quiet time.Duration
	// QuiescenceTimeout caps the wait for a quiet window.
	QuiescenceTimeout time.Duration
	// NetworkIdleTimeout caps the best-effort network idle wait.
	NetworkIdleTimeout time.Duration
	// Fallback is slept when quiescence could not be observed.
	Fallback time.Duration
}

func DefaultStabilizerOptions() StabilizerOptions {
	return StabilizerOptions{
		Quiet:              300 * time.Millisecond,
		QuiescenceTimeout:  5 * time.Second,
		NetworkIdleTimeout: 3 * time.Second,
		Fallback:           time.Second,
	}
}

// Stabilizer replaces fixed sleeps after grid-mutating actions.
type Stabilizer struct {
	page settler
	opts StabilizerOptions
}

func NewStabilizer(page settler, opts StabilizerOptions) *Stabilizer {
	return &Stabilizer{page: page, opts: opts}
}

// Settle waits for network idle (best effort) and then for DOM quiescence.
// When quiescence times out it sleeps the fallback delay instead. Settle
// never fails; every miss is logged.
func (s *Stabilizer) Settle(ctx context.Context) {
	logger := obs.From(ctx)
	start := time.Now()

	if err := s.NetworkIdle(ctx, s.opts.NetworkIdleTimeout); err != nil {
		logger.Debug("network idle not reached", "event", "info", "error", err)
	}

	ms, err := budget(ctx, s.opts.QuiescenceTimeout)
	if err != nil {
		return
	}
	_, err = s.page.WaitForFunction(quiescenceJS, float64(s.opts.Quiet.Milliseconds()), playwright.PageWaitForFunctionOptions{
		Timeout: ms,
	})
	if err != nil {
		logger.Debug("dom quiescence not reached, using fallback delay",
			"event", "info", "error", err, "fallback_ms", s.opts.Fallback.Milliseconds())
		_ = s.Pause(ctx, s.opts.Fallback)
	}
	logger.Debug("settled", "event", "info", "elapsed_ms", time.Since(start).Milliseconds())
}

// NetworkIdle waits for the network idle load state.
func (s *Stabilizer) NetworkIdle(ctx context.Context, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	return s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms,
	})
}

// Pause sleeps d or until ctx is done.
func (s *Stabilizer) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
