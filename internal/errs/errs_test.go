package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var allCodes = []Code{
	InvalidArgument,
	NotFound,
	FailedPrecondition,
	PermissionDenied,
	Unavailable,
	Timeout,
	Internal,
}

// Property: a code and message survive any number of %w wrappers.
func TestCodeSurvivesWrapping(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		code := rapid.SampledFrom(allCodes).Draw(t, "code")
		message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,60}`).Draw(t, "message")
		depth := rapid.IntRange(0, 4).Draw(t, "depth")
		cause := errors.New("root cause")

		err := Wrap(code, message, cause)
		for i := 0; i < depth; i++ {
			err = fmt.Errorf("layer %d: %w", i, err)
		}
		if CodeOf(err) != code || !Is(err, code) {
			t.Fatalf("code lost at depth %d: %q", depth, CodeOf(err))
		}
		if MessageOf(err) != message {
			t.Fatalf("MessageOf = %q, want %q", MessageOf(err), message)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("cause lost")
		}
	})
}

// Property: a server's status for a code classifies back to that code.
func TestStatusRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		code := rapid.SampledFrom(allCodes).Draw(t, "code")
		got := FromHTTPStatus(HTTPStatus(code))
		if code == Internal {
			// 500 is a server fault the client sees as unavailable.
			if got != Unavailable {
				t.Fatalf("500 classified as %q", got)
			}
			return
		}
		if got != code {
			t.Fatalf("%q -> %d -> %q", code, HTTPStatus(code), got)
		}
	})
}

func TestUntypedAndNil(t *testing.T) {
	t.Parallel()
	untyped := errors.New("disk on fire")
	assert.Equal(t, Internal, CodeOf(untyped))
	assert.Equal(t, "internal error", MessageOf(untyped))
	assert.Equal(t, Internal, CodeOf(nil))
	assert.False(t, Is(nil, Internal))
	assert.Equal(t, Internal, CodeOf(&Error{Message: "no code"}))
}

func TestErrorText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "target not found: Apply: waiting for locator",
		Wrap(Timeout, "target not found: Apply", errors.New("waiting for locator")).Error())
	assert.Equal(t, "row 3 missing", Newf(NotFound, "row %d missing", 3).Error())
	assert.Equal(t, "cause only", (&Error{Err: errors.New("cause only")}).Error())
	assert.Equal(t, "timeout", (&Error{Code: Timeout}).Error())
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(PermissionDenied))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(Timeout))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Code("unknown")))
}

func TestFromHTTPStatus(t *testing.T) {
	t.Parallel()
	cases := map[int]Code{
		http.StatusUnprocessableEntity: InvalidArgument,
		http.StatusForbidden:           PermissionDenied,
		http.StatusRequestTimeout:      Timeout,
		http.StatusTooManyRequests:     Unavailable,
		http.StatusBadGateway:          Unavailable,
		http.StatusTeapot:              Internal,
	}
	for status, want := range cases {
		assert.Equal(t, want, FromHTTPStatus(status), "status %d", status)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()
	assert.True(t, Retryable(New(Unavailable, "429")))
	assert.True(t, Retryable(fmt.Errorf("listing: %w", New(Timeout, "slow"))))
	assert.False(t, Retryable(New(PermissionDenied, "bad password")))
	assert.False(t, Retryable(errors.New("untyped")))
	assert.False(t, Retryable(nil))
}
