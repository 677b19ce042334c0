// Package obs is the structured logging layer: one global JSON slog logger
// plus correlation fields (request, run, scenario, step, virtual user)
// carried in context and stamped on every record logged with that context.
package obs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type correlationKey struct{}

// Correlation ties log lines of one request or one scenario run together.
type Correlation struct {
	RequestID   string
	TraceID     string
	Traceparent string
	RunID       string
	Scenario    string
	Step        string
	VU          string
}

// fields lists the log key and a pointer to each correlation value, in the
// order they appear on a record.
func (c *Correlation) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{"request_id", &c.RequestID},
		{"trace_id", &c.TraceID},
		{"traceparent", &c.Traceparent},
		{"run_id", &c.RunID},
		{"scenario", &c.Scenario},
		{"step", &c.Step},
		{"vu", &c.VU},
	}
}

// merge overwrites c with the non-empty fields of other.
func (c Correlation) merge(other Correlation) Correlation {
	dst, src := c.fields(), other.fields()
	for i := range dst {
		if v := strings.TrimSpace(*src[i].val); v != "" {
			*dst[i].val = v
		}
	}
	return c
}

func (c Correlation) attrs() []slog.Attr {
	var out []slog.Attr
	for _, f := range c.fields() {
		if *f.val != "" {
			out = append(out, slog.String(f.key, *f.val))
		}
	}
	return out
}

// contextHandler adds the context's correlation fields to each record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		r.AddAttrs(CorrelationFromContext(ctx).attrs()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

var (
	mu     sync.RWMutex
	global *slog.Logger
)

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	})
	return slog.New(contextHandler{h})
}

func install(l *slog.Logger) {
	global = l
	slog.SetDefault(l)
}

// Init installs a debug-level logger on stderr unless one is already set.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		install(newLogger(os.Stderr, slog.LevelDebug))
	}
}

// InitWithLevel replaces the global logger.
func InitWithLevel(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	install(newLogger(w, level))
}

// SetOutputForTests sends debug-level logs to w until the returned func runs.
func SetOutputForTests(w io.Writer) func() {
	mu.Lock()
	prev := global
	install(newLogger(w, slog.LevelDebug))
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if prev == nil {
			prev = newLogger(os.Stderr, slog.LevelDebug)
		}
		install(prev)
	}
}

func current() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		Init()
		mu.RLock()
		l = global
		mu.RUnlock()
	}
	return l
}

// Pkg returns the global logger tagged with a package name.
func Pkg(pkg string) *slog.Logger {
	return current().With("pkg", pkg)
}

// From returns the global logger carrying ctx's correlation fields, for
// call sites that log without passing ctx along.
func From(ctx context.Context) *slog.Logger {
	l := current()
	if ctx == nil {
		return l
	}
	var args []any
	for _, a := range CorrelationFromContext(ctx).attrs() {
		args = append(args, a)
	}
	if len(args) == 0 {
		return l
	}
	// Drop the handler-side stamping so fields are not written twice.
	if ch, ok := l.Handler().(contextHandler); ok {
		l = slog.New(ch.Handler)
	}
	return l.With(args...)
}

// NewRunID returns a fresh scenario run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WithRun starts the correlation of one scenario run.
func WithRun(ctx context.Context, runID, scenario string) context.Context {
	return WithCorrelation(ctx, Correlation{RunID: runID, Scenario: scenario})
}

// WithStep records the step being executed.
func WithStep(ctx context.Context, step string) context.Context {
	return WithCorrelation(ctx, Correlation{Step: step})
}

// WithVU records the load replay's virtual user.
func WithVU(ctx context.Context, vu string) context.Context {
	return WithCorrelation(ctx, Correlation{VU: vu})
}

// WithCorrelation merges the non-empty fields of corr into ctx.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, CorrelationFromContext(ctx).merge(corr))
}

func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, _ := ctx.Value(correlationKey{}).(Correlation)
	return corr
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "req-" + uuid.NewString()
	}
	return "req-" + hex.EncodeToString(buf)
}
