// Package pages holds the page objects of the review application: login,
// dashboard (search, grid, context menu, filters, logout) and the edit
// details screen. Page objects drive a ui.Surface and never cache elements.
package pages

import (
	"context"
	"strings"
	"time"

	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ui"
)

const (
	// OptionalTimeout bounds checks that may legitimately be absent.
	OptionalTimeout = 5 * time.Second
	// ActionTimeout bounds ordinary clicks and waits.
	ActionTimeout = 10 * time.Second
	// LoadTimeout bounds page transitions (editor, search results, listing).
	LoadTimeout = 15 * time.Second
	// DashboardTimeout bounds the first dashboard render after login.
	DashboardTimeout = 20 * time.Second
)

// LoginPath is where unauthenticated sessions land.
const LoginPath = "/login"

type Login struct {
	surface ui.Surface
	baseURL string
	creds   config.Credentials
}

func NewLogin(surface ui.Surface, baseURL string, creds config.Credentials) *Login {
	return &Login{surface: surface, baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

// Goto opens the login page.
func (p *Login) Goto(ctx context.Context) error {
	if err := p.surface.Goto(ctx, p.baseURL+LoginPath, LoadTimeout); err != nil {
		return err
	}
	return p.surface.WaitVisible(ctx, locator.LoginEmail(), LoadTimeout)
}

// Login submits the credentials. The caller waits for the landing page.
func (p *Login) Login(ctx context.Context) error {
	if err := p.surface.Fill(ctx, locator.LoginEmail(), p.creds.Email, ActionTimeout); err != nil {
		return err
	}
	if err := p.surface.Fill(ctx, locator.LoginPassword(), p.creds.Password, ActionTimeout); err != nil {
		return err
	}
	if err := p.surface.Click(ctx, locator.LoginSubmit(), ActionTimeout); err != nil {
		return err
	}
	obs.From(ctx).Info("credentials submitted", "event", "action", "email", p.creds.Email)
	return nil
}

// WaitForLoggedOut waits for the login form and reports the current URL.
func WaitForLoggedOut(ctx context.Context, surface ui.Surface) (string, error) {
	if err := surface.WaitVisible(ctx, locator.LoginEmail(), LoadTimeout); err != nil {
		return "", err
	}
	surface.Settle(ctx)
	return surface.URL(), nil
}
