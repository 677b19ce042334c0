// Package uitest provides a scriptable ui.Surface for unit tests.
package uitest

import (
	"context"
	"sync"
	"time"

	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/locator"
	"github.com/kuitang/gridcheck/internal/ui"
)

var _ ui.Surface = (*Surface)(nil)

// Call is one recorded surface interaction.
type Call struct {
	Op     string
	Target string
	Value  string
}

// Surface records interactions keyed by chain name. Targets listed in
// Missing time out on every blocking call; everything else is present.
type Surface struct {
	mu sync.Mutex

	Calls   []Call
	Missing map[string]bool
	Counts  map[string]int
	TextOf  map[string]string
	TextsOf map[string][]string
	Values  map[string]string
	Attrs   map[string]string
	Page    string
	Current string

	// OnClick runs after a click is recorded, for tests that model state.
	OnClick func(target string)
	// Evaluate answers EvaluateAll.
	Evaluate func(c locator.Chain, expression string, arg any) (any, error)

	Settles int
	Paused  time.Duration
}

// New returns an empty fake.
func New() *Surface {
	return &Surface{
		Missing: map[string]bool{},
		Counts:  map[string]int{},
		TextOf:  map[string]string{},
		TextsOf: map[string][]string{},
		Values:  map[string]string{},
		Attrs:   map[string]string{},
	}
}

// SetMissing marks targets as never appearing.
func (s *Surface) SetMissing(present bool, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.Missing[n] = !present
	}
}

func (s *Surface) record(op, target, value string) {
	s.Calls = append(s.Calls, Call{Op: op, Target: target, Value: value})
}

func (s *Surface) missing(c locator.Chain) error {
	if s.Missing[c.Name] {
		return errs.New(errs.Timeout, "target not found: "+c.Name)
	}
	return nil
}

// Ops returns "op target" strings, optionally filtered by op.
func (s *Surface) Ops(filter ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.Calls {
		if len(filter) > 0 && !contains(filter, c.Op) {
			continue
		}
		out = append(out, c.Op+" "+c.Target)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Surface) Goto(_ context.Context, url string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("goto", url, "")
	s.Current = url
	return nil
}

func (s *Surface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Current
}

func (s *Surface) Title(context.Context) (string, error) { return "gridcheck fixture", nil }

func (s *Surface) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Page, nil
}

func (s *Surface) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

func (s *Surface) Click(_ context.Context, c locator.Chain, _ time.Duration) error {
	s.mu.Lock()
	if err := s.missing(c); err != nil {
		s.record("click-miss", c.Name, "")
		s.mu.Unlock()
		return err
	}
	s.record("click", c.Name, "")
	hook := s.OnClick
	s.mu.Unlock()
	if hook != nil {
		hook(c.Name)
	}
	return nil
}

func (s *Surface) Fill(_ context.Context, c locator.Chain, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		return err
	}
	s.record("fill", c.Name, value)
	s.Values[c.Name] = value
	return nil
}

func (s *Surface) Clear(_ context.Context, c locator.Chain, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		return err
	}
	s.record("clear", c.Name, "")
	s.Values[c.Name] = ""
	return nil
}

func (s *Surface) ScrollIntoView(_ context.Context, c locator.Chain, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		return err
	}
	s.record("scroll", c.Name, "")
	return nil
}

func (s *Surface) WaitVisible(_ context.Context, c locator.Chain, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		s.record("wait-miss", c.Name, "")
		return err
	}
	s.record("wait", c.Name, "")
	return nil
}

func (s *Surface) Count(_ context.Context, c locator.Chain) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.Counts[c.Name]; ok {
		return n, nil
	}
	if s.Missing[c.Name] {
		return 0, nil
	}
	return 1, nil
}

func (s *Surface) Text(_ context.Context, c locator.Chain, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		return "", err
	}
	return s.TextOf[c.Name], nil
}

func (s *Surface) Texts(_ context.Context, c locator.Chain) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.TextsOf[c.Name]...), nil
}

func (s *Surface) InputValue(_ context.Context, c locator.Chain, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		return "", err
	}
	return s.Values[c.Name], nil
}

func (s *Surface) Attribute(_ context.Context, c locator.Chain, name string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.missing(c); err != nil {
		return "", err
	}
	return s.Attrs[c.Name+"@"+name], nil
}

func (s *Surface) EvaluateAll(_ context.Context, c locator.Chain, expression string, arg any) (any, error) {
	s.mu.Lock()
	eval := s.Evaluate
	s.mu.Unlock()
	if eval == nil {
		return []any{}, nil
	}
	return eval(c, expression, arg)
}

func (s *Surface) Settle(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Settles++
}

func (s *Surface) WaitNetworkIdle(context.Context, time.Duration) error { return nil }

func (s *Surface) Pause(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Paused += d
	return ctx.Err()
}
