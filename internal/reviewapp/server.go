// Package reviewapp is a self-contained document review portal: a listing
// grid with search and filter dropdowns, an editor with sub-document
// stepper and scoring, and the JSON API behind them. Browser and API tests
// run the scenarios against it, and `gridcheck fixture` serves it locally.
package reviewapp

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/kuitang/gridcheck/internal/auth"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ratelimit"
)

// Options tune a Server. Zero values pick production defaults.
type Options struct {
	// Hasher verifies passwords; nil means Argon2id.
	Hasher auth.PasswordHasher
	// Secure marks cookies Secure.
	Secure bool
	Clock  auth.Clock
	// Users are the accounts to create; nil means DefaultUsers.
	Users []SeedUser
	// Empty disables document seeding.
	Empty bool

	LoginRateLimit *ratelimit.Config
	APIRateLimit   *ratelimit.Config
}

// Server is the review portal. Close releases its background goroutines.
type Server struct {
	store    *Store
	users    *auth.Users
	sessions *auth.Sessions
	tokens   *auth.Sessions
	mw       *auth.Middleware
	renderer *Renderer
	secure   bool
	logger   *slog.Logger

	loginLimiter *ratelimit.RateLimiter
	apiLimiter   *ratelimit.RateLimiter

	handler http.Handler
}

// New builds a seeded Server.
func New(opts Options) (*Server, error) {
	renderer, err := NewRenderer(templateFS)
	if err != nil {
		return nil, err
	}

	users := auth.NewUsers(opts.Hasher)
	seedUsers := opts.Users
	if seedUsers == nil {
		seedUsers = DefaultUsers
	}
	for _, u := range seedUsers {
		if _, err := users.Add(u.Email, u.Password, u.Portal); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}

	loginCfg := ratelimit.LoginConfig
	if opts.LoginRateLimit != nil {
		loginCfg = *opts.LoginRateLimit
	}
	apiCfg := ratelimit.DefaultConfig
	if opts.APIRateLimit != nil {
		apiCfg = *opts.APIRateLimit
	}

	s := &Server{
		store:        NewStore(),
		users:        users,
		sessions:     auth.NewSessions(auth.SessionDuration, opts.Clock),
		tokens:       auth.NewSessions(auth.TokenDuration, opts.Clock),
		renderer:     renderer,
		secure:       opts.Secure,
		logger:       obs.Pkg("reviewapp"),
		loginLimiter: ratelimit.NewRateLimiter(loginCfg),
		apiLimiter:   ratelimit.NewRateLimiter(apiCfg),
	}
	s.mw = auth.NewMiddleware(s.users, s.sessions, s.tokens)
	if !opts.Empty {
		Seed(s.store)
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", ratelimit.Middleware(s.loginLimiter, ratelimit.ClientIP)(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /content/{doc}/{file}", s.handleContent)

	page := func(h http.HandlerFunc) http.Handler { return s.mw.RequireSession(h) }
	mux.Handle("GET /{$}", page(s.handleDashboard))
	mux.Handle("GET /documents/{id}/edit", page(s.handleEditPage))
	mux.Handle("POST /documents/{id}/edit", page(s.handleEdit))
	mux.Handle("POST /documents/{id}/publish", page(s.handlePublish))
	mux.Handle("POST /documents/preview", page(s.handlePreview))

	mux.Handle("POST /api/auth/login/", ratelimit.Middleware(s.loginLimiter, ratelimit.ClientIP)(http.HandlerFunc(s.apiLogin)))
	api := func(h http.HandlerFunc) http.Handler {
		return s.mw.RequireBearer(ratelimit.Middleware(s.apiLimiter, userKey)(h))
	}
	mux.Handle("GET /api/documents/", api(s.apiListDocuments))
	mux.Handle("GET /api/documents/{id}/", api(s.apiGetDocument))
	mux.Handle("PUT /api/documents/{id}/", api(s.apiUpdateDocument))

	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("reviewapp", mux))
}

// userKey rate-limits API calls per reviewer.
func userKey(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

func (s *Server) Handler() http.Handler { return s.handler }

// Store exposes the documents for tests and the CLI.
func (s *Server) Store() *Store { return s.store }

// Close stops the rate limiter cleanup loops.
func (s *Server) Close() {
	s.loginLimiter.Stop()
	s.apiLimiter.Stop()
}
