// Package verify checks grid rows against the filter that produced them.
//
// Every Verifier check first looks for an empty grid (the header alone) and
// succeeds without extracting when no data rows are present. Single-row
// methods check one handle; the plural methods walk every data row in grid
// order. Failures are reported through a testify TestingT: score bounds are
// soft (recorded, step continues), every other mismatch is hard (FailNow).
// The returned error is reserved for reader failures.
package verify

import (
	"context"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/grid"
	"github.com/kuitang/gridcheck/internal/obs"
)

// NewSuffix is the badge text the grid appends to document names.
const NewSuffix = "New"

// InRange reports lo <= v <= hi.
func InRange(v, lo, hi float64) bool { return v >= lo && v <= hi }

// HasSuffix reports whether name ends with suffix.
func HasSuffix(name, suffix string) bool { return strings.HasSuffix(name, suffix) }

// HasLanguageSuffix accepts the suffix with or without the trailing New badge.
func HasLanguageSuffix(name, suffix string) bool {
	return strings.HasSuffix(name, suffix) || strings.HasSuffix(name, suffix+NewSuffix)
}

// StatusEquals compares trimmed status text.
func StatusEquals(got, expected string) bool {
	return strings.TrimSpace(got) == strings.TrimSpace(expected)
}

// Verifier runs row checks over an extractor.
type Verifier struct {
	ex *grid.Extractor
	// newStatus is the status text the New filter must never show.
	newStatus string
}

// New returns a Verifier; newStatus is the tile text of the New status.
func New(ex *grid.Extractor, newStatus string) *Verifier {
	return &Verifier{ex: ex, newStatus: newStatus}
}

// rowCheck verifies one data row.
type rowCheck func(ctx context.Context, t require.TestingT, row grid.RowHandle) error

func logEmpty(ctx context.Context) {
	obs.From(ctx).Info("filter applied successfully, grid is empty (no documents match this filter)", "event", "info")
}

// one runs check on row unless the grid is empty, and reports whether the
// row was checked.
func (v *Verifier) one(ctx context.Context, t require.TestingT, row grid.RowHandle, check rowCheck) (bool, error) {
	has, err := v.ex.HasData(ctx)
	if err != nil {
		return false, err
	}
	if !has {
		logEmpty(ctx)
		return false, nil
	}
	if err := check(ctx, t, row); err != nil {
		return false, err
	}
	return true, nil
}

// every runs check on each data row in grid order and returns how many rows
// were checked. A hard failure stops at the offending row.
func (v *Verifier) every(ctx context.Context, t require.TestingT, check rowCheck) (int, error) {
	n, err := v.ex.Reader().RowCount(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		logEmpty(ctx)
		return 0, nil
	}
	for i := 0; i < n; i++ {
		if err := check(ctx, t, grid.Row(i)); err != nil {
			return i, err
		}
	}
	obs.From(ctx).Info("rows checked", "event", "pass", "rows", n)
	return n, nil
}

// MetricsScore soft-checks that the row's score average is within [lo, hi].
// It reports whether a row was checked.
func (v *Verifier) MetricsScore(ctx context.Context, t require.TestingT, row grid.RowHandle, lo, hi float64) (bool, error) {
	return v.one(ctx, t, row, v.metricsScore(lo, hi))
}

// MetricsScores runs MetricsScore on every data row.
func (v *Verifier) MetricsScores(ctx context.Context, t require.TestingT, lo, hi float64) (int, error) {
	return v.every(ctx, t, v.metricsScore(lo, hi))
}

func (v *Verifier) metricsScore(lo, hi float64) rowCheck {
	return func(ctx context.Context, t require.TestingT, row grid.RowHandle) error {
		_, b, err := v.ex.ExtractForMetricsScores(ctx, row)
		if err != nil {
			return err
		}
		assert.GreaterOrEqualf(t, b.Average, lo, "score average of %s below bucket", row)
		assert.LessOrEqualf(t, b.Average, hi, "score average of %s above bucket", row)
		obs.From(ctx).Info("metrics score checked", "event", "pass",
			"row", row.Index,
			"avg_fluency", b.Fluency,
			"avg_adequacy", b.Adequacy,
			"avg_compliance", b.Compliance,
			"score_average", b.Average,
			"raw", b.Raw,
			"unparsed", b.Unparsed,
			"lower", lo,
			"upper", hi,
			"in_range", InRange(b.Average, lo, hi))
		return nil
	}
}

// Language requires the document name to end with suffix or suffix+"New".
func (v *Verifier) Language(ctx context.Context, t require.TestingT, row grid.RowHandle, suffix string) (bool, error) {
	return v.one(ctx, t, row, v.language(suffix))
}

// Languages runs Language on every data row.
func (v *Verifier) Languages(ctx context.Context, t require.TestingT, suffix string) (int, error) {
	return v.every(ctx, t, v.language(suffix))
}

func (v *Verifier) language(suffix string) rowCheck {
	return func(ctx context.Context, t require.TestingT, row grid.RowHandle) error {
		data, err := v.ex.ExtractForLanguage(ctx, row)
		if err != nil {
			return err
		}
		name := data.DocumentName()
		require.Truef(t, HasLanguageSuffix(name, suffix), "document name %q does not end with %q or %q", name, suffix, suffix+NewSuffix)
		obs.From(ctx).Info("language checked", "event", "pass", "row", row.Index, "document", name, "suffix", suffix)
		return nil
	}
}

// Status requires the status chip text to equal expected.
func (v *Verifier) Status(ctx context.Context, t require.TestingT, row grid.RowHandle, expected string) (bool, error) {
	return v.one(ctx, t, row, v.status(expected))
}

// Statuses runs Status on every data row.
func (v *Verifier) Statuses(ctx context.Context, t require.TestingT, expected string) (int, error) {
	return v.every(ctx, t, v.status(expected))
}

func (v *Verifier) status(expected string) rowCheck {
	return func(ctx context.Context, t require.TestingT, row grid.RowHandle) error {
		data, err := v.ex.ExtractForStatus(ctx, row)
		if err != nil {
			return err
		}
		require.Equal(t, strings.TrimSpace(expected), strings.TrimSpace(data.Status()), "status of %s", row)
		obs.From(ctx).Info("status checked", "event", "pass", "row", row.Index, "status", data.Status())
		return nil
	}
}

// StatusWithSuffix requires the status to equal expected and the document
// name to end with suffix.
func (v *Verifier) StatusWithSuffix(ctx context.Context, t require.TestingT, row grid.RowHandle, expected, suffix string) (bool, error) {
	return v.one(ctx, t, row, v.statusWithSuffix(expected, suffix))
}

// StatusesWithSuffix runs StatusWithSuffix on every data row.
func (v *Verifier) StatusesWithSuffix(ctx context.Context, t require.TestingT, expected, suffix string) (int, error) {
	return v.every(ctx, t, v.statusWithSuffix(expected, suffix))
}

func (v *Verifier) statusWithSuffix(expected, suffix string) rowCheck {
	return func(ctx context.Context, t require.TestingT, row grid.RowHandle) error {
		data, err := v.ex.ExtractForStatus(ctx, row)
		if err != nil {
			return err
		}
		name := data.DocumentName()
		require.Equal(t, strings.TrimSpace(expected), strings.TrimSpace(data.Status()), "status of %s", row)
		require.Truef(t, HasSuffix(name, suffix), "document name %q does not end with %q", name, suffix)
		obs.From(ctx).Info("status and suffix checked", "event", "pass",
			"row", row.Index, "status", data.Status(), "document", name, "suffix", suffix)
		return nil
	}
}

// NewFilter checks a row under the New status filter: a status is shown, it
// is not the New status itself, and the name carries the New badge.
func (v *Verifier) NewFilter(ctx context.Context, t require.TestingT, row grid.RowHandle) (bool, error) {
	return v.one(ctx, t, row, v.newFilter())
}

// NewFilterRows runs NewFilter on every data row.
func (v *Verifier) NewFilterRows(ctx context.Context, t require.TestingT) (int, error) {
	return v.every(ctx, t, v.newFilter())
}

func (v *Verifier) newFilter() rowCheck {
	return func(ctx context.Context, t require.TestingT, row grid.RowHandle) error {
		data, err := v.ex.ExtractForStatus(ctx, row)
		if err != nil {
			return err
		}
		status := strings.TrimSpace(data.Status())
		name := data.DocumentName()
		require.NotEmpty(t, status, "status of %s", row)
		require.NotEqual(t, v.newStatus, status, "status of %s", row)
		require.Truef(t, HasSuffix(name, NewSuffix), "document name %q does not end with %q", name, NewSuffix)
		obs.From(ctx).Info("new filter checked", "event", "pass", "row", row.Index, "status", status, "document", name)
		return nil
	}
}
