package scenario

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestSink reports steps to a go test. Soft failures and fatal failures
// become t.Errorf so the test fails while later steps still report.
type TestSink struct {
	T testing.TB
}

func (s TestSink) StepFinished(_ context.Context, r StepResult) {
	s.T.Helper()
	switch r.Status {
	case Passed:
		s.T.Logf("[PASS] %s (%s)", r.Name, r.Duration.Round(time.Millisecond))
	case Skipped:
		s.T.Logf("[SKIP] %s", r.Name)
	default:
		for _, msg := range r.SoftFailures {
			s.T.Errorf("[SOFT] %s: %s", r.Name, msg)
		}
		if r.Fatal != "" {
			s.T.Errorf("[FAIL] %s: %s", r.Name, r.Fatal)
		}
		if r.Artifact != "" {
			s.T.Logf("[ARTIFACT] %s: %s", r.Name, r.Artifact)
		}
	}
}

// Summary collects results and renders a plain-text report.
type Summary struct {
	mu      sync.Mutex
	results []StepResult
}

func (s *Summary) StepFinished(_ context.Context, r StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// Counts returns passed, failed and skipped totals.
func (s *Summary) Counts() (passed, failed, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		switch r.Status {
		case Passed:
			passed++
		case Failed:
			failed++
		case Skipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// Write renders one line per step plus failure details.
func (s *Summary) Write(w io.Writer) error {
	s.mu.Lock()
	results := append([]StepResult(nil), s.results...)
	s.mu.Unlock()

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%-8s %s / %s\n", strings.ToUpper(string(r.Status)), r.Scenario, r.Name)
		for _, msg := range r.SoftFailures {
			fmt.Fprintf(&b, "         soft: %s\n", oneLine(msg))
		}
		if r.Fatal != "" {
			fmt.Fprintf(&b, "         fatal: %s\n", oneLine(r.Fatal))
		}
		if r.Artifact != "" {
			fmt.Fprintf(&b, "         artifact: %s\n", r.Artifact)
		}
	}
	passed, failed, skipped := s.Counts()
	fmt.Fprintf(&b, "%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	_, err := io.WriteString(w, b.String())
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
