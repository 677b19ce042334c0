// Package api is the REST client for the review application: login, the
// document listing, document details, edits and publishing, plus the
// unauthenticated fetch of translated file links.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/logutil"
	"github.com/kuitang/gridcheck/internal/obs"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 4 << 20
	previewBytes    = 512
)

// Options tune a Client. Zero values give an unpaced client with a 30s
// timeout.
type Options struct {
	HTTPClient *http.Client
	// RequestsPerSecond paces every call; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
	// Limiter, when set, is shared with other clients and wins over
	// RequestsPerSecond.
	Limiter *rate.Limiter
}

// Client talks to one API root, for example "http://host/api".
type Client struct {
	baseURL string
	plain   *http.Client
	limiter *rate.Limiter

	mu     sync.RWMutex
	authed *http.Client
	token  string
}

// New returns a client for baseURL.
func New(baseURL string, opts Options) *Client {
	plain := opts.HTTPClient
	if plain == nil {
		plain = &http.Client{Timeout: defaultTimeout}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		plain:   plain,
	}
	switch {
	case opts.Limiter != nil:
		c.limiter = opts.Limiter
	case opts.RequestsPerSecond > 0:
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Token is the bearer token from the last successful Login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(token string) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.plain)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	authed := oauth2.NewClient(ctx, src)
	authed.Timeout = c.plain.Timeout

	c.mu.Lock()
	c.token = token
	c.authed = authed
	c.mu.Unlock()
}

// Login exchanges credentials for a bearer token that later calls carry.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, c.plain, http.MethodPost, "/auth/login/", LoginPayload(email, password), &out); err != nil {
		return nil, err
	}
	if out.Access == "" {
		return nil, errs.New(errs.Internal, "login response carried no access token")
	}
	c.SetToken(out.Access)
	return &out, nil
}

// Listing returns one page of the document listing.
func (c *Client) Listing(ctx context.Context, page int) (*DocumentList, error) {
	if page < 1 {
		page = 1
	}
	var out DocumentList
	if err := c.authedDo(ctx, http.MethodGet, "/documents/?page="+strconv.Itoa(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DocumentDetails returns a document with its sub-documents.
func (c *Client) DocumentDetails(ctx context.Context, id string) (*Document, error) {
	var out Document
	if err := c.authedDo(ctx, http.MethodGet, documentPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditDocument sends an update and returns the server's answer, a
// one-element array holding the updated document.
func (c *Client) EditDocument(ctx context.Context, id string, body UpdateRequest) ([]Document, error) {
	var out []Document
	if err := c.authedDo(ctx, http.MethodPut, documentPath(id), body, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errs.New(errs.Internal, "edit response was an empty array")
	}
	return out, nil
}

// PublishDocument is EditDocument with a publish body.
func (c *Client) PublishDocument(ctx context.Context, id string, body UpdateRequest) ([]Document, error) {
	if body.Status != StatusPublished {
		return nil, errs.New(errs.InvalidArgument, "publish body must carry status PUBLISHED")
	}
	return c.EditDocument(ctx, id, body)
}

// FetchContent fetches url without credentials and reports what came back.
// Only transport failures are errors; the status is for the caller to judge.
func (c *Client) FetchContent(ctx context.Context, url string) (*ContentCheck, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "bad content url", err)
	}
	start := time.Now()
	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "read content body", err)
	}
	obs.From(ctx).With("pkg", "api").Debug("content check",
		"url", url, "status", resp.StatusCode, "bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	return &ContentCheck{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       len(body),
		Body:        body,
	}, nil
}

func documentPath(id string) string {
	return "/documents/" + id + "/"
}

func (c *Client) authedDo(ctx context.Context, method, path string, in, out any) error {
	c.mu.RLock()
	hc := c.authed
	c.mu.RUnlock()
	if hc == nil {
		return errs.New(errs.FailedPrecondition, "not logged in")
	}
	return c.do(ctx, hc, method, path, in, out)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.Timeout, "waiting for request budget", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	var raw []byte
	if in != nil {
		var err error
		raw, err = json.Marshal(in)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "encode request", err)
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := obs.From(ctx).With("pkg", "api")
	logger.Debug("api request", "method", method, "path", path,
		"body", logutil.Truncate(logutil.RedactJSON(raw), previewBytes))

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return errs.Wrap(errs.Unavailable, "read response", err)
	}

	attrs := []any{"method", method, "path", path, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds()}
	attrs = append(attrs, logutil.HeaderAttrs(resp.Header)...)
	attrs = append(attrs, "body", logutil.BodyPreview(resp.Header.Get("Content-Type"), body, previewBytes))
	logger.Debug("api response", attrs...)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.Wrap(errs.Internal, fmt.Sprintf("decode %s %s response", method, path), err)
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.Timeout, "request cancelled", err)
	}
	return errs.Wrap(errs.Unavailable, "request failed", err)
}
