// Package loadgen replays the review workflow from many virtual users at
// once and summarizes step timings.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kuitang/gridcheck/internal/api"
	"github.com/kuitang/gridcheck/internal/errs"
	"github.com/kuitang/gridcheck/internal/obs"
)

// Config sizes a replay.
type Config struct {
	VUs        int
	Iterations int
	// ThinkTime pauses between steps of one iteration.
	ThinkTime time.Duration
	// RequestsPerSecond caps the combined request rate; 0 leaves it open.
	RequestsPerSecond float64
	Burst             int
}

func (c Config) validate() error {
	if c.VUs < 1 {
		return errs.New(errs.InvalidArgument, "at least one virtual user is required")
	}
	if c.Iterations < 1 {
		return errs.New(errs.InvalidArgument, "at least one iteration is required")
	}
	if c.ThinkTime < 0 {
		return errs.New(errs.InvalidArgument, "think time cannot be negative")
	}
	return nil
}

// ClientFactory builds the API client of one virtual user.
type ClientFactory func(opts api.Options) *api.Client

// StepStats aggregates one workflow step across every iteration.
type StepStats struct {
	Name     string
	Count    int
	Failures int
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	P95      time.Duration
}

// Summary is the outcome of a replay.
type Summary struct {
	VUs        int
	Iterations int
	Failed     int
	// Transient counts failed iterations that ended on a retryable error,
	// typically 429s or timeouts under load.
	Transient int
	Elapsed   time.Duration
	Steps     []StepStats
	// Errors holds one message per failed iteration, capped at maxErrors.
	Errors []string
}

const maxErrors = 20

// OK reports a replay with no failed iteration.
func (s Summary) OK() bool { return s.Iterations > 0 && s.Failed == 0 }

// String renders a per-step table.
func (s Summary) String() string {
	out := fmt.Sprintf("%d VUs, %d iterations, %d failed (%d transient), %s\n",
		s.VUs, s.Iterations, s.Failed, s.Transient, s.Elapsed.Round(time.Millisecond))
	out += fmt.Sprintf("%-18s %6s %6s %10s %10s %10s %10s\n", "step", "count", "fail", "min", "mean", "p95", "max")
	for _, st := range s.Steps {
		out += fmt.Sprintf("%-18s %6d %6d %10s %10s %10s %10s\n", st.Name, st.Count, st.Failures,
			st.Min.Round(time.Millisecond), st.Mean.Round(time.Millisecond),
			st.P95.Round(time.Millisecond), st.Max.Round(time.Millisecond))
	}
	return out
}

type sample struct {
	step string
	dur  time.Duration
	ok   bool
}

type recorder struct {
	mu        sync.Mutex
	order     []string
	samples   map[string][]sample
	failed    int
	transient int
	total     int
	errors    []string
}

func (r *recorder) record(s sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.samples[s.step]; !seen {
		r.order = append(r.order, s.step)
	}
	r.samples[s.step] = append(r.samples[s.step], s)
}

func (r *recorder) iteration(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if err == nil {
		return
	}
	r.failed++
	if errs.Retryable(err) {
		r.transient++
	}
	if len(r.errors) < maxErrors {
		r.errors = append(r.errors, err.Error())
	}
}

// Run replays workflow cfg.Iterations times on each of cfg.VUs concurrent
// virtual users. Failed iterations are counted, not returned; the error is
// only for bad configuration or a cancelled context.
func Run(ctx context.Context, cfg Config, workflow api.ReviewWorkflow, newClient ClientFactory) (Summary, error) {
	if err := cfg.validate(); err != nil {
		return Summary{}, err
	}
	var shared *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		shared = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	rec := &recorder{samples: map[string][]sample{}}
	start := time.Now()
	logger := obs.From(ctx).With("pkg", "loadgen")
	logger.Info("load replay started", "vus", cfg.VUs, "iterations", cfg.Iterations, "think_time", cfg.ThinkTime.String())

	g, gctx := errgroup.WithContext(ctx)
	for vu := 1; vu <= cfg.VUs; vu++ {
		g.Go(func() error {
			vctx := obs.WithVU(gctx, strconv.Itoa(vu))
			client := newClient(api.Options{Limiter: shared})
			for i := 0; i < cfg.Iterations; i++ {
				if err := vctx.Err(); err != nil {
					return err
				}
				err := runIteration(vctx, client, workflow, cfg.ThinkTime, rec)
				if err != nil && vctx.Err() != nil {
					return vctx.Err()
				}
				rec.iteration(err)
			}
			return nil
		})
	}
	err := g.Wait()

	summary := rec.summary(cfg, time.Since(start))
	logger.Info("load replay finished", "iterations", summary.Iterations, "failed", summary.Failed,
		"elapsed_ms", summary.Elapsed.Milliseconds())
	switch {
	case err == nil:
		return summary, nil
	case errors.Is(err, context.DeadlineExceeded):
		return summary, errs.Wrap(errs.Timeout, "load replay ran out of time", err)
	default:
		return summary, fmt.Errorf("load replay cancelled: %w", err)
	}
}

func runIteration(ctx context.Context, c *api.Client, workflow api.ReviewWorkflow, think time.Duration, rec *recorder) error {
	st := &api.ReviewState{}
	steps := workflow.Steps()
	for i, step := range steps {
		sctx := obs.WithStep(ctx, step.Name)
		began := time.Now()
		err := step.Run(sctx, c, st)
		rec.record(sample{step: step.Name, dur: time.Since(began), ok: err == nil})
		if err != nil {
			obs.From(sctx).Warn("load step failed", "error", err)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		if think > 0 && i < len(steps)-1 {
			t := time.NewTimer(think)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return nil
}

func (r *recorder) summary(cfg Config, elapsed time.Duration) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Summary{VUs: cfg.VUs, Iterations: r.total, Failed: r.failed, Transient: r.transient, Elapsed: elapsed, Errors: slices.Clone(r.errors)}
	for _, name := range r.order {
		s.Steps = append(s.Steps, stats(name, r.samples[name]))
	}
	return s
}

func stats(name string, samples []sample) StepStats {
	st := StepStats{Name: name, Count: len(samples)}
	if len(samples) == 0 {
		return st
	}
	durs := make([]time.Duration, 0, len(samples))
	var total time.Duration
	for _, s := range samples {
		if !s.ok {
			st.Failures++
		}
		durs = append(durs, s.dur)
		total += s.dur
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })
	st.Min = durs[0]
	st.Max = durs[len(durs)-1]
	st.Mean = total / time.Duration(len(durs))
	st.P95 = percentile(durs, 0.95)
	return st
}

// percentile uses nearest rank on sorted durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = min(max(rank, 0), len(sorted)-1)
	return sorted[rank]
}
