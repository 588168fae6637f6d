// Package curve holds the numeric work shared by every figure: resampling
// irregular trials onto a common grid and averaging them across trials.
package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoSamples      = errors.New("no samples")
	ErrLengthMismatch = errors.New("length mismatch")
)

// Deviation selects the standard deviation estimator.
type Deviation int

const (
	// Population divides by n.
	Population Deviation = iota
	// Sample divides by n-1. A single trial has deviation 0.
	Sample
)

// Series is an aggregate curve: a grid and, at every grid point, the mean
// and standard deviation across trials.
type Series struct {
	X    []float64
	Mean []float64
	Std  []float64
}

func (s Series) Len() int {
	return len(s.X)
}

// Last returns the final grid point and its mean. It panics on an empty series.
func (s Series) Last() (x, mean float64) {
	n := len(s.X) - 1
	return s.X[n], s.Mean[n]
}

// Lower is Mean - Std.
func (s Series) Lower() []float64 {
	out := make([]float64, len(s.Mean))
	floats.SubTo(out, s.Mean, s.Std)
	return out
}

// Upper is Mean + Std.
func (s Series) Upper() []float64 {
	out := make([]float64, len(s.Mean))
	floats.AddTo(out, s.Mean, s.Std)
	return out
}

func (s Series) slice(i, j int) Series {
	return Series{
		X:    append([]float64(nil), s.X[i:j]...),
		Mean: append([]float64(nil), s.Mean[i:j]...),
		Std:  append([]float64(nil), s.Std[i:j]...),
	}
}

// TruncateAt cuts the series at the first point whose mean reaches
// threshold. That point is pinned to threshold with zero deviation.
func (s Series) TruncateAt(threshold float64) Series {
	for i, m := range s.Mean {
		if m >= threshold {
			out := s.slice(0, i+1)
			out.Mean[i] = threshold
			out.Std[i] = 0
			return out
		}
	}
	return s.slice(0, len(s.X))
}

// CapMean limits the mean to max and shrinks the deviation so the band
// never passes max.
func (s Series) CapMean(max float64) Series {
	out := s.slice(0, len(s.X))
	for i := range out.Mean {
		out.Mean[i] = math.Min(out.Mean[i], max)
		out.Std[i] = math.Min(out.Std[i], max-out.Mean[i])
	}
	return out
}

// ClipX keeps the points with X <= max.
func (s Series) ClipX(max float64) Series {
	out := Series{}
	for i, x := range s.X {
		if x <= max {
			out.X = append(out.X, x)
			out.Mean = append(out.Mean, s.Mean[i])
			out.Std = append(out.Std, s.Std[i])
		}
	}
	return out
}

// Scale multiplies mean and deviation by f.
func (s Series) Scale(f float64) Series {
	out := s.slice(0, len(s.X))
	floats.Scale(f, out.Mean)
	floats.Scale(f, out.Std)
	return out
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Interp evaluates the piecewise linear function through (xs, ys) at every
// grid point. Points left of the first sample or right of the last one take
// that sample's value. When several samples share an x the last one wins.
func Interp(grid, xs, ys []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrLengthMismatch, len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, ErrNoSamples
	}

	px, py := dedupe(xs, ys)
	out := make([]float64, len(grid))
	if len(px) == 1 {
		for i := range out {
			out[i] = py[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(px, py); err != nil {
		return nil, fmt.Errorf("while fitting samples: %w", err)
	}
	last := len(px) - 1
	for i, g := range grid {
		switch {
		case g <= px[0]:
			out[i] = py[0]
		case g >= px[last]:
			out[i] = py[last]
		default:
			out[i] = pl.Predict(g)
		}
	}
	return out, nil
}

// dedupe stable-sorts the samples by x and keeps the last sample for each x.
func dedupe(xs, ys []float64) ([]float64, []float64) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	px := make([]float64, 0, len(xs))
	py := make([]float64, 0, len(xs))
	for _, i := range idx {
		if n := len(px); n > 0 && px[n-1] == xs[i] {
			py[n-1] = ys[i]
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	return px, py
}

// MeanStd returns the mean and deviation of values.
func MeanStd(values []float64, dev Deviation) (mean, std float64) {
	switch len(values) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return values[0], 0
	}
	if dev == Sample {
		return stat.MeanStdDev(values, nil)
	}
	return stat.PopMeanStdDev(values, nil)
}

// Aggregate averages rows (one per trial, each sampled on x) point by point.
func Aggregate(x []float64, rows [][]float64, dev Deviation) (Series, error) {
	if len(rows) == 0 {
		return Series{}, ErrNoSamples
	}
	for i, r := range rows {
		if len(r) != len(x) {
			return Series{}, fmt.Errorf("%w: trial %d has %d points, grid has %d", ErrLengthMismatch, i, len(r), len(x))
		}
	}

	s := Series{
		X:    append([]float64(nil), x...),
		Mean: make([]float64, len(x)),
		Std:  make([]float64, len(x)),
	}
	column := make([]float64, len(rows))
	for j := range x {
		for i, r := range rows {
			column[i] = r[j]
		}
		s.Mean[j], s.Std[j] = MeanStd(column, dev)
	}
	return s, nil
}

// Mean is the arithmetic mean; NaN for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}
