package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userKey contextKey = "user"

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// Middleware resolves the signed-in reviewer from a session cookie or a
// bearer token.
type Middleware struct {
	users    *Users
	sessions *Sessions
	tokens   *Sessions
}

func NewMiddleware(users *Users, sessions, tokens *Sessions) *Middleware {
	return &Middleware{users: users, sessions: sessions, tokens: tokens}
}

// RequireSession redirects to the login page when no valid session cookie
// is present.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.fromCookie(r)
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireBearer answers 401 unless the Authorization header carries a live
// token.
func (m *Middleware) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		userID, err := m.tokens.Validate(token)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}
		user, err := m.users.ByID(userID)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (m *Middleware) fromCookie(r *http.Request) (User, bool) {
	id, err := GetFromRequest(r)
	if err != nil {
		return User{}, false
	}
	userID, err := m.sessions.Validate(id)
	if err != nil {
		return User{}, false
	}
	user, err := m.users.ByID(userID)
	if err != nil {
		return User{}, false
	}
	return user, true
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="review"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the reviewer stored by the middleware.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey).(User)
	return user, ok
}
