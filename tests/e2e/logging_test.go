package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/reviewapp"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestLogs_CarryRequestIDAndRedactSecrets(t *testing.T) {
	buf := &syncBuffer{}
	restore := obs.SetOutputForTests(buf)
	defer restore()

	f := newFixture(t, reviewapp.Options{})
	c := f.client(api.Options{})
	_, err := c.Login(context.Background(), reviewer().Email, reviewer().Password)
	require.NoError(t, err)

	lines := buf.lines(t)
	require.NotEmpty(t, lines)
	raw := buf.buf.String()
	assert.NotContains(t, raw, reviewer().Password, "password must never be logged")
	assert.NotContains(t, raw, c.Token(), "token must never be logged")

	var access map[string]any
	for _, l := range lines {
		if l["pkg"] == "reviewapp" && l["msg"] == "http_access" && l["path"] == "/api/auth/login/" {
			access = l
		}
	}
	require.NotNil(t, access, "access log line for the login")
	assert.NotEmpty(t, access["request_id"])
	assert.EqualValues(t, http.StatusOK, access["status"])
}
