// Package scenario runs ordered steps with soft-assertion checkpoints.
//
// A step receives a StepT, which satisfies testify's require.TestingT:
// assert.* calls record soft failures and the step continues; require.*
// calls end the step immediately. Soft failures are flushed to the sink when
// the step ends. A failed step (fatal or soft) does not stop the run, but a
// fatal one makes every later step skip.
package scenario

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Status is the outcome of one step.
type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

// StepResult is what a sink receives for each step.
type StepResult struct {
	Scenario string
	Name     string
	Status   Status
	// SoftFailures are assertion messages recorded while the step continued.
	SoftFailures []string
	// Fatal is the message that ended the step early, if any.
	Fatal    string
	Duration time.Duration
	// Artifact is the object key of the failure screenshot, if uploaded.
	Artifact string
}

// IsFatal reports whether the step ended early.
func (r StepResult) IsFatal() bool { return r.Fatal != "" }

// StepT collects assertion failures for one step.
type StepT struct {
	ctx  context.Context
	name string

	mu     sync.Mutex
	errors []string
	fatal  string
}

func newStepT(ctx context.Context, name string) *StepT {
	return &StepT{ctx: ctx, name: name}
}

// Context returns the step context.
func (t *StepT) Context() context.Context { return t.ctx }

// Name returns the step name.
func (t *StepT) Name() string { return t.name }

// Errorf records a soft failure.
func (t *StepT) Errorf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// FailNow ends the step. It must be called from the step's goroutine.
func (t *StepT) FailNow() {
	t.mu.Lock()
	if t.fatal == "" {
		if n := len(t.errors); n > 0 {
			// require.* records its message through Errorf before FailNow.
			t.fatal = t.errors[n-1]
			t.errors = t.errors[:n-1]
		} else {
			t.fatal = "step failed"
		}
	}
	t.mu.Unlock()
	runtime.Goexit()
}

// Fatalf records msg as the fatal failure and ends the step.
func (t *StepT) Fatalf(format string, args ...interface{}) {
	t.mu.Lock()
	t.fatal = strings.TrimSpace(fmt.Sprintf(format, args...))
	t.mu.Unlock()
	runtime.Goexit()
}

// Helper exists for testify's tHelper check.
func (t *StepT) Helper() {}

// Failed reports whether anything was recorded so far.
func (t *StepT) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errors) > 0 || t.fatal != ""
}

func (t *StepT) snapshot() ([]string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.errors...), t.fatal
}
