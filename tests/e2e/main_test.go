// Package e2e drives the bundled review application over real HTTP: the REST
// workflow, rate limiting, request logging, the load replay and the S3
// markdown audit.
package e2e

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ratelimit"
	"github.com/kuitang/gridcheck/internal/reviewapp"
)

// Keep e2e output quiet by default; opt in with E2E_TEST_DEBUG_LOGS=1.
func TestMain(m *testing.M) {
	if os.Getenv("E2E_TEST_DEBUG_LOGS") == "" {
		obs.InitWithLevel(io.Discard, slog.LevelError)
	}
	os.Exit(m.Run())
}

var openLimits = ratelimit.Config{RPS: 10000, Burst: 10000, CleanupInterval: time.Hour}

type fixture struct {
	App    *reviewapp.Server
	Server *httptest.Server
}

// newFixture serves a freshly seeded review app. opts may tighten limits.
func newFixture(t *testing.T, opts reviewapp.Options) *fixture {
	t.Helper()
	opts.Hasher = auth.FakeInsecureHasher{}
	if opts.LoginRateLimit == nil {
		opts.LoginRateLimit = &openLimits
	}
	if opts.APIRateLimit == nil {
		opts.APIRateLimit = &openLimits
	}
	app, err := reviewapp.New(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})
	return &fixture{App: app, Server: ts}
}

func (f *fixture) client(opts api.Options) *api.Client {
	opts.HTTPClient = f.Server.Client()
	return api.New(f.Server.URL+"/api", opts)
}

func reviewer() reviewapp.SeedUser { return reviewapp.DefaultUsers[0] }

func englishReviewer() reviewapp.SeedUser { return reviewapp.DefaultUsers[1] }
