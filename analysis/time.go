// Package analysis turns loaded trial groups into the curves, bars and
// statistics behind each paper figure.
package analysis

import (
	"fmt"
	"math"

	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

// GroupCurve is the aggregate curve of one condition plus its termination
// statistics.
type GroupCurve struct {
	Label  string
	Series curve.Series

	// TerminationTimes holds each trial's final time in trial order.
	TerminationTimes []float64
	MeanTermination  float64
	// TerminationValue is the curve's value where it ends.
	TerminationValue float64
}

type TimeOptions struct {
	// Points is the number of grid points between 0 and the mean
	// termination time.
	Points int
	// CoverageCap bounds the termination coverage the curve is cut at.
	CoverageCap float64
}

func DefaultTimeOptions() TimeOptions {
	return TimeOptions{Points: 100, CoverageCap: 90}
}

// TerminationTimes returns each trial's largest logged time.
func TerminationTimes(trials []dataset.Trial) []float64 {
	out := make([]float64, len(trials))
	for i, tr := range trials {
		out[i] = tr.MaxTime()
	}
	return out
}

// FinalValues returns each trial's last logged value.
func FinalValues(trials []dataset.Trial) []float64 {
	out := make([]float64, len(trials))
	for i, tr := range trials {
		out[i] = tr.Last().Value
	}
	return out
}

// TimeCoverage resamples every trial of g onto an even grid from 0 to the
// mean termination time, averages across trials and ends the curve where the
// mean first reaches the (capped) mean final coverage.
func TimeCoverage(g dataset.Group, opts TimeOptions) (GroupCurve, error) {
	if len(g.Trials) == 0 {
		return GroupCurve{}, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
	}
	terms := TerminationTimes(g.Trials)
	meanTerm := curve.Mean(terms)
	termCoverage := math.Min(curve.Mean(FinalValues(g.Trials)), opts.CoverageCap)

	grid := curve.Linspace(0, meanTerm, opts.Points)
	rows := make([][]float64, len(g.Trials))
	for i, tr := range g.Trials {
		row, err := curve.Interp(grid, tr.Times(), tr.Values())
		if err != nil {
			return GroupCurve{}, fmt.Errorf("%s: %w", tr.Name, err)
		}
		rows[i] = row
	}
	s, err := curve.Aggregate(grid, rows, curve.Population)
	if err != nil {
		return GroupCurve{}, fmt.Errorf("%s: %w", g.Label, err)
	}

	return GroupCurve{
		Label:            g.Label,
		Series:           s.TruncateAt(termCoverage),
		TerminationTimes: terms,
		MeanTermination:  meanTerm,
		TerminationValue: termCoverage,
	}, nil
}

// Comparison relates the termination times of two conditions, pairing
// trials in order.
type Comparison struct {
	Reference string
	Other     string
	Pairs     int

	// ReferenceEarlier is the mean of (other-ref)/other in percent.
	ReferenceEarlier float64
	// OtherEarlier is the mean of (ref-other)/ref in percent.
	OtherEarlier float64
	// Speedup is the mean of other/ref.
	Speedup float64
}

// CompareTermination pairs the i-th trial of ref with the i-th trial of other.
func CompareTermination(ref, other GroupCurve) (Comparison, error) {
	n := len(ref.TerminationTimes)
	if len(other.TerminationTimes) < n {
		n = len(other.TerminationTimes)
	}
	if n == 0 {
		return Comparison{}, fmt.Errorf("comparing %s with %s: %w", ref.Label, other.Label, curve.ErrNoSamples)
	}

	refEarlier := make([]float64, n)
	otherEarlier := make([]float64, n)
	speedup := make([]float64, n)
	for i := 0; i < n; i++ {
		r, o := ref.TerminationTimes[i], other.TerminationTimes[i]
		refEarlier[i] = (o - r) / o * 100
		otherEarlier[i] = (r - o) / r * 100
		speedup[i] = o / r
	}
	return Comparison{
		Reference:        ref.Label,
		Other:            other.Label,
		Pairs:            n,
		ReferenceEarlier: curve.Mean(refEarlier),
		OtherEarlier:     curve.Mean(otherEarlier),
		Speedup:          curve.Mean(speedup),
	}, nil
}
