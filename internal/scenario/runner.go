package scenario

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/kuitang/gridcheck/internal/grid"
	"github.com/kuitang/gridcheck/internal/obs"
	"github.com/kuitang/gridcheck/internal/ui"
)

// StepFunc is one step. It returns the context for the next step; a non-nil
// error ends the step as fatal.
type StepFunc func(ctx context.Context, t *StepT, sc Context) (Context, error)

// Sink receives every finished step.
type Sink interface {
	StepFinished(ctx context.Context, r StepResult)
}

// ArtifactStore keeps failure artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Runner executes steps in order.
type Runner struct {
	name   string
	runID  string
	sinks  []Sink
	state  Context
	halted bool

	screens   ui.Surface
	artifacts ArtifactStore
	prefix    string

	results []StepResult
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, s) }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithFailureScreenshots uploads a screenshot of surface to store under
// prefix/<run id>/<step>.png whenever a step fails, plus the grid rows as
// <step>.html when the page shows a grid.
func WithFailureScreenshots(surface ui.Surface, store ArtifactStore, prefix string) Option {
	return func(r *Runner) {
		r.screens = surface
		r.artifacts = store
		r.prefix = prefix
	}
}

// NewRunner returns a runner for the named scenario starting from initial.
func NewRunner(name string, initial Context, opts ...Option) *Runner {
	r := &Runner{name: name, state: initial, runID: obs.NewRunID()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) RunID() string { return r.runID }

// State returns the context as left by the last step.
func (r *Runner) State() Context { return r.state }

// Results returns every finished step in order.
func (r *Runner) Results() []StepResult {
	return append([]StepResult(nil), r.results...)
}

// Failed reports whether any step failed.
func (r *Runner) Failed() bool {
	for _, res := range r.results {
		if res.Status == Failed {
			return true
		}
	}
	return false
}

// Step runs fn unless an earlier step failed fatally. It reports whether the
// step passed.
func (r *Runner) Step(ctx context.Context, name string, fn StepFunc) bool {
	ctx = obs.WithStep(obs.WithRun(ctx, r.runID, r.name), name)
	logger := obs.From(ctx)

	if r.halted {
		res := StepResult{Scenario: r.name, Name: name, Status: Skipped}
		r.finish(ctx, res)
		return false
	}

	logger.Info("step started", "event", "action")
	start := time.Now()
	t := newStepT(ctx, name)

	next := r.state
	var stepErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				t.mu.Lock()
				t.fatal = fmt.Sprintf("panic: %v", p)
				t.mu.Unlock()
			}
		}()
		out, err := fn(ctx, t, r.state)
		next = out
		stepErr = err
	}()
	<-done

	soft, fatal := t.snapshot()
	if fatal == "" && stepErr != nil {
		fatal = stepErr.Error()
	}
	res := StepResult{
		Scenario:     r.name,
		Name:         name,
		Status:       Passed,
		SoftFailures: soft,
		Fatal:        fatal,
		Duration:     time.Since(start),
	}
	if fatal != "" || len(soft) > 0 {
		res.Status = Failed
		res.Artifact = r.captureFailure(ctx, name)
	}
	if fatal != "" {
		r.halted = true
	} else {
		r.state = next
	}
	r.finish(ctx, res)
	return res.Status == Passed
}

func (r *Runner) finish(ctx context.Context, res StepResult) {
	logger := obs.From(ctx)
	switch res.Status {
	case Passed:
		logger.Info("step passed", "event", "pass", "duration_ms", res.Duration.Milliseconds())
	case Skipped:
		logger.Warn("step skipped after earlier fatal failure", "event", "info")
	default:
		logger.Error("step failed", "event", "verify",
			"fatal", res.Fatal, "soft_failures", res.SoftFailures, "artifact", res.Artifact,
			"duration_ms", res.Duration.Milliseconds())
	}
	r.results = append(r.results, res)
	for _, s := range r.sinks {
		s.StepFinished(ctx, res)
	}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactKey is the object key a failure screenshot is stored under.
func ArtifactKey(prefix, runID, step string) string {
	slug := strings.Trim(unsafeKeyChars.ReplaceAllString(step, "-"), "-")
	if slug == "" {
		slug = "step"
	}
	return path.Join(prefix, runID, slug+".png")
}

// GridArtifactKey is the object key the grid markup of a failed step is
// stored under, next to its screenshot.
func GridArtifactKey(prefix, runID, step string) string {
	return strings.TrimSuffix(ArtifactKey(prefix, runID, step), ".png") + ".html"
}

// captureFailure uploads a screenshot and the grid markup of the failed step
// and returns the screenshot key. Capture problems are logged, never fatal.
func (r *Runner) captureFailure(ctx context.Context, step string) string {
	if r.screens == nil || r.artifacts == nil {
		return ""
	}
	r.captureGrid(ctx, step)

	logger := obs.From(ctx)
	png, err := r.screens.Screenshot(ctx)
	if err != nil {
		logger.Warn("failure screenshot not taken", "error", err)
		return ""
	}
	key := ArtifactKey(r.prefix, r.runID, step)
	if err := r.artifacts.Put(ctx, key, png, "image/png"); err != nil {
		logger.Warn("failure screenshot not uploaded", "error", err, "key", key)
		return ""
	}
	return key
}

func (r *Runner) captureGrid(ctx context.Context, step string) {
	logger := obs.From(ctx)
	snap, err := grid.Capture(ctx, r.screens)
	if err != nil {
		logger.Warn("failure grid not captured", "error", err)
		return
	}
	markup, err := snap.Markup()
	if err != nil {
		logger.Warn("failure grid not captured", "error", err)
		return
	}
	if markup == "" {
		return
	}
	rows, _ := snap.RowCount(ctx)
	key := GridArtifactKey(r.prefix, r.runID, step)
	if err := r.artifacts.Put(ctx, key, []byte(markup), "text/html; charset=utf-8"); err != nil {
		logger.Warn("failure grid not uploaded", "error", err, "key", key)
		return
	}
	logger.Info("failure grid uploaded", "event", "info", "key", key, "rows", rows)
}
