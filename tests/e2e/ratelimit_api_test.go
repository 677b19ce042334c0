package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/ratelimit"
	"github.com/kuitang/gridcheck/internal/reviewapp"
)

func TestAPIRateLimit_ExceedBurstIsUnavailable(t *testing.T) {
	tight := ratelimit.Config{RPS: 0.001, Burst: 3, CleanupInterval: time.Hour}
	f := newFixture(t, reviewapp.Options{APIRateLimit: &tight})
	ctx := context.Background()
	c := f.client(api.Options{})
	_, err := c.Login(ctx, reviewer().Email, reviewer().Password)
	require.NoError(t, err)

	for i := 0; i < tight.Burst; i++ {
		_, err := c.Listing(ctx, 1)
		require.NoError(t, err, "request %d", i)
	}
	_, err = c.Listing(ctx, 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Unavailable), "%v", err)
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestAPIRateLimit_IsPerReviewer(t *testing.T) {
	tight := ratelimit.Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour}
	f := newFixture(t, reviewapp.Options{APIRateLimit: &tight})
	ctx := context.Background()

	a := f.client(api.Options{})
	_, err := a.Login(ctx, reviewer().Email, reviewer().Password)
	require.NoError(t, err)
	b := f.client(api.Options{})
	_, err = b.Login(ctx, englishReviewer().Email, englishReviewer().Password)
	require.NoError(t, err)

	for i := 0; i < tight.Burst; i++ {
		_, err := a.Listing(ctx, 1)
		require.NoError(t, err)
	}
	_, err = a.Listing(ctx, 1)
	assert.True(t, errs.Is(err, errs.Unavailable))

	_, err = b.Listing(ctx, 1)
	assert.NoError(t, err, "another reviewer keeps their own budget")
}

func TestLoginRateLimit(t *testing.T) {
	tight := ratelimit.Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour}
	f := newFixture(t, reviewapp.Options{LoginRateLimit: &tight})
	ctx := context.Background()
	c := f.client(api.Options{})

	for i := 0; i < tight.Burst; i++ {
		_, err := c.Login(ctx, reviewer().Email, "wrong")
		assert.True(t, errs.Is(err, errs.PermissionDenied))
	}
	_, err := c.Login(ctx, reviewer().Email, reviewer().Password)
	assert.True(t, errs.Is(err, errs.Unavailable), "%v", err)
}
