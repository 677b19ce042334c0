package grid

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/kuitang/gridcheck/internal/obs"
)

// rowAllowList is the fixed column set ExtractRow reads.
var rowAllowList = []string{KeyDocumentName, KeyVersion, KeyStatus, KeyAvgFluency, KeyAvgAdequacy, KeyAvgCompliance}

// maxFindColumn bounds the positional columns FindDocument scans.
const maxFindColumn = 10

// Settler waits for the grid to stop changing after a read.
type Settler interface {
	Settle(ctx context.Context)
}

// Extractor turns grid cells into RowData.
type Extractor struct {
	reader Reader
	settle Settler
}

// NewExtractor reads through r and settles through s after every extraction.
// A nil settler skips stabilization, which suits snapshots.
func NewExtractor(r Reader, s Settler) *Extractor {
	return &Extractor{reader: r, settle: s}
}

// Reader returns the underlying reader.
func (e *Extractor) Reader() Reader { return e.reader }

func (e *Extractor) settled(ctx context.Context) {
	if e.settle != nil {
		e.settle.Settle(ctx)
	}
}

// HasData reports whether the grid holds at least one data row, that is
// anything besides the header.
func (e *Extractor) HasData(ctx context.Context) (bool, error) {
	n, err := e.reader.RowCount(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExtractRow reads the allow-listed columns, preferring chip text.
func (e *Extractor) ExtractRow(ctx context.Context, row RowHandle) (RowData, error) {
	logger := obs.From(ctx)
	cells, err := e.reader.Cells(ctx, row)
	if err != nil {
		return nil, err
	}
	data := RowData{}
	for _, col := range rowAllowList {
		c, ok := findCell(cells, col)
		if !ok {
			continue
		}
		data[col] = c.Display()
		if data[col] != "" {
			logger.Debug("cell", "event", "data", "row", row.Index, "col", col, "value", data[col])
		}
	}
	e.settled(ctx)
	return data, nil
}

// ExtractForMetricsScores reads every cell (chip preferred) and derives the
// score average.
func (e *Extractor) ExtractForMetricsScores(ctx context.Context, row RowHandle) (RowData, ScoreBreakdown, error) {
	logger := obs.From(ctx)
	cells, err := e.reader.Cells(ctx, row)
	if err != nil {
		return nil, ScoreBreakdown{}, err
	}
	data := make(RowData, len(cells)+1)
	for _, c := range cells {
		data[c.Key()] = c.Display()
		logger.Debug("cell", "event", "data", "row", row.Index, "col", c.Key(), "value", c.Display())
	}
	breakdown := ScoreAverage(data)
	data[KeyScoreAverage] = breakdown.AverageString()
	logger.Debug("cell", "event", "data", "row", row.Index, "col", KeyScoreAverage, "value", data[KeyScoreAverage])
	e.settled(ctx)
	return data, breakdown, nil
}

// ExtractForLanguage reads raw cell text without chip preference and records
// the first cell as the document name.
func (e *Extractor) ExtractForLanguage(ctx context.Context, row RowHandle) (RowData, error) {
	cells, err := e.reader.Cells(ctx, row)
	if err != nil {
		return nil, err
	}
	data := make(RowData, len(cells)+1)
	for i, c := range cells {
		data[c.Key()] = c.Text
		if i == 0 {
			data[KeyDocumentNameForLanguage] = c.Text
		}
	}
	e.settled(ctx)
	return data, nil
}

// ExtractForStatus reads every cell, preferring chip text.
func (e *Extractor) ExtractForStatus(ctx context.Context, row RowHandle) (RowData, error) {
	cells, err := e.reader.Cells(ctx, row)
	if err != nil {
		return nil, err
	}
	data := make(RowData, len(cells))
	for _, c := range cells {
		data[c.Key()] = c.Display()
		if c.Key() == KeyStatus {
			obs.From(ctx).Info("status value from grid", "event", "data", "row", row.Index, "status", c.Display())
		}
	}
	e.settled(ctx)
	return data, nil
}

// FindDocument scans positional columns 0..10 for a cell containing name.
// Column positions count the header cell, so a hit at position i is row i-1.
// The scan stops at the first column with no cells.
func (e *Extractor) FindDocument(ctx context.Context, name string) (RowHandle, bool, error) {
	logger := obs.From(ctx)
	for col := 0; col <= maxFindColumn; col++ {
		texts, err := e.reader.ColumnTexts(ctx, strconv.Itoa(col))
		if err != nil {
			return RowHandle{}, false, err
		}
		if len(texts) == 0 {
			logger.Debug("end of grid reached", "event", "info", "col", col)
			break
		}
		logger.Debug("searching column", "event", "scan", "col", col, "cells", len(texts))
		for i, text := range texts {
			if strings.Contains(text, name) {
				logger.Info("document found", "event", "found", "document", name, "col", col, "position", i)
				return Row(i - 1), true, nil
			}
		}
	}
	return Row(-1), false, nil
}

// ScoreBreakdown is the derived average with its inputs, for logging.
type ScoreBreakdown struct {
	Fluency    float64
	Adequacy   float64
	Compliance float64
	Average    float64
	// Raw holds the source strings; a missing cell is absent.
	Raw map[string]string
	// Unparsed lists keys whose value was missing or not a number and was
	// counted as 0.
	Unparsed []string
}

// AverageString renders the average the way it is stored in RowData.
func (b ScoreBreakdown) AverageString() string {
	return strconv.FormatFloat(b.Average, 'f', -1, 64)
}

// ScoreAverage is (avgFluency + avgAdequacy + avgCompliance) / 3 with
// unparseable or missing values counted as 0.
func ScoreAverage(row RowData) ScoreBreakdown {
	b := ScoreBreakdown{Raw: map[string]string{}}
	parse := func(key string) float64 {
		raw, ok := row[key]
		if ok {
			b.Raw[key] = raw
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if !ok || err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			b.Unparsed = append(b.Unparsed, key)
			return 0
		}
		return v
	}
	b.Fluency = parse(KeyAvgFluency)
	b.Adequacy = parse(KeyAvgAdequacy)
	b.Compliance = parse(KeyAvgCompliance)
	b.Average = (b.Fluency + b.Adequacy + b.Compliance) / 3
	return b
}
