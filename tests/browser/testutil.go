// Package browser runs the flows in a real Chromium page against the bundled
// review application. The tests skip under -short or when Playwright cannot
// start a browser.
package browser

import (
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/config"
	"github.com/kuitang/gridcheck/internal/ratelimit"
	"github.com/kuitang/gridcheck/internal/reviewapp"
	"github.com/kuitang/gridcheck/internal/ui"
)

// BrowserTestEnv is a seeded review app plus a browser page pointed at it.
type BrowserTestEnv struct {
	App     *reviewapp.Server
	Server  *httptest.Server
	Env     config.Environment
	Data    *config.TestData
	Session *ui.Session
}

var (
	launchMu      sync.Mutex
	launchFailure error
)

// SetupBrowserTestEnv starts a fresh app and a fresh browser session for one
// test. Each test gets its own seed so flows that publish do not interfere.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in -short mode")
	}
	if os.Getenv("GRIDCHECK_SKIP_BROWSER") != "" {
		t.Skip("GRIDCHECK_SKIP_BROWSER is set")
	}

	launchMu.Lock()
	failed := launchFailure
	launchMu.Unlock()
	if failed != nil {
		t.Skip("Playwright not available:", failed)
	}

	open := ratelimit.Config{RPS: 1000, Burst: 1000, CleanupInterval: time.Hour}
	app, err := reviewapp.New(reviewapp.Options{Hasher: auth.FakeInsecureHasher{}, LoginRateLimit: &open, APIRateLimit: &open})
	require.NoError(t, err)
	ts := httptest.NewServer(app.Handler())

	session, err := ui.Launch(ui.LaunchOptions{
		Headless:       os.Getenv("HEADLESS") != "false",
		ViewportWidth:  1466,
		ViewportHeight: 768,
		Timeout:        browserMaxTimeout,
	})
	if err != nil {
		ts.Close()
		app.Close()
		launchMu.Lock()
		launchFailure = err
		launchMu.Unlock()
		t.Skip("Could not launch browser:", err)
	}

	env := &BrowserTestEnv{
		App:     app,
		Server:  ts,
		Session: session,
		Data:    config.DefaultTestData(),
		Env: config.Environment{
			Name:        "fixture",
			BaseURL:     ts.URL,
			APIBaseURL:  ts.URL + "/api",
			Translation: config.Credentials{Email: reviewapp.DefaultUsers[0].Email, Password: reviewapp.DefaultUsers[0].Password},
			English:     config.Credentials{Email: reviewapp.DefaultUsers[1].Email, Password: reviewapp.DefaultUsers[1].Password},
		},
	}
	t.Cleanup(func() {
		_ = session.Close()
		ts.Close()
		app.Close()
	})
	return env
}

const browserMaxTimeout = 10 * time.Second
