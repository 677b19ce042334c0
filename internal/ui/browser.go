package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultActionTimeout is the page-level timeout for actions and navigation.
const DefaultActionTimeout = 15 * time.Second

// LaunchOptions configure a browser session.
type LaunchOptions struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// Timeout defaults to DefaultActionTimeout.
	Timeout time.Duration
	// Stabilizer defaults to DefaultStabilizerOptions.
	Stabilizer *StabilizerOptions
}

// Session owns a Playwright driver, one Chromium instance and one page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	Page    playwright.Page
	Surface *PageSurface
}

// Launch starts Chromium and opens a page. Callers must Close the session.
func Launch(opts LaunchOptions) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	s := &Session{pw: pw, browser: browser}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	s.context, err = browser.NewContext(ctxOpts)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	ms := float64(timeout.Milliseconds())
	s.context.SetDefaultTimeout(ms)
	s.context.SetDefaultNavigationTimeout(ms)

	s.Page, err = s.context.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	stabOpts := DefaultStabilizerOptions()
	if opts.Stabilizer != nil {
		stabOpts = *opts.Stabilizer
	}
	s.Surface = NewPageSurface(s.Page, NewStabilizer(s.Page, stabOpts))
	return s, nil
}

// Close shuts the page, browser and driver down, returning every failure.
func (s *Session) Close() error {
	var errList []error
	if s.context != nil {
		errList = append(errList, s.context.Close())
	}
	if s.browser != nil {
		errList = append(errList, s.browser.Close())
	}
	if s.pw != nil {
		errList = append(errList, s.pw.Stop())
	}
	return errors.Join(errList...)
}
