package analysis

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

type OverlapOptions struct {
	Points int
	// Floor replaces logged overlap values at or below zero.
	Floor float64
	// Cap bounds the mean overlap and its band.
	Cap float64
}

func DefaultOverlapOptions() OverlapOptions {
	return OverlapOptions{Points: 100, Floor: 5, Cap: 100}
}

// PrepareCoverage rounds both time and coverage of every trial.
func PrepareCoverage(trials []dataset.Trial) []dataset.Trial {
	out := make([]dataset.Trial, len(trials))
	for i, tr := range trials {
		out[i] = dataset.Trial{Name: tr.Name, Samples: curve.RoundSamples(tr.Samples, true)}
	}
	return out
}

// PrepareOverlap rounds time and lifts non-positive overlap to floor.
func PrepareOverlap(trials []dataset.Trial, floor float64) []dataset.Trial {
	out := make([]dataset.Trial, len(trials))
	for i, tr := range trials {
		samples := curve.RoundSamples(tr.Samples, false)
		for j := range samples {
			if samples[j].Value <= 0 {
				samples[j].Value = floor
			}
		}
		out[i] = dataset.Trial{Name: tr.Name, Samples: samples}
	}
	return out
}

// runNumbers indexes trials by the run number ending their log name. ok is
// false when a name carries no number or two trials share one.
func runNumbers(trials []dataset.Trial) (byRun map[int]int, ok bool) {
	byRun = make(map[int]int, len(trials))
	for i, tr := range trials {
		n, ok := dataset.TrailingNumber(tr.Name)
		if !ok {
			return nil, false
		}
		if _, dup := byRun[n]; dup {
			return nil, false
		}
		byRun[n] = i
	}
	return byRun, true
}

// pairRuns matches coverage and overlap logs of the same run. Numbered logs
// are matched by run number, runs missing on either side being skipped.
// Unnumbered logs pair in order and must come in equal counts.
func pairRuns(label string, coverage, overlap []dataset.Trial) (cov, ov []dataset.Trial, err error) {
	covRuns, okCov := runNumbers(coverage)
	ovRuns, okOv := runNumbers(overlap)
	if !okCov || !okOv {
		if len(coverage) != len(overlap) {
			return nil, nil, fmt.Errorf("%s: %d coverage logs but %d overlap logs and no run numbers to pair them by",
				label, len(coverage), len(overlap))
		}
		return coverage, overlap, nil
	}

	for i, tr := range coverage {
		n, _ := dataset.TrailingNumber(tr.Name)
		j, ok := ovRuns[n]
		if !ok {
			log.Warnf("%s: run %d has no overlap log, skipping %s", label, n, tr.Name)
			continue
		}
		cov = append(cov, coverage[i])
		ov = append(ov, overlap[j])
	}
	for n, j := range ovRuns {
		if _, ok := covRuns[n]; !ok {
			log.Warnf("%s: run %d has no coverage log, skipping %s", label, n, overlap[j].Name)
		}
	}
	return cov, ov, nil
}

// Overlap resamples coverage and overlap of every run onto a common time
// grid and returns mean overlap against mean coverage. Logs are paired by
// run number, or in order when unnumbered.
func Overlap(label string, coverage, overlap []dataset.Trial, opts OverlapOptions) (GroupCurve, error) {
	coverage, overlap, err := pairRuns(label, PrepareCoverage(coverage), PrepareOverlap(overlap, opts.Floor))
	if err != nil {
		return GroupCurve{}, err
	}
	n := len(coverage)
	if n == 0 {
		return GroupCurve{}, fmt.Errorf("%s: %w", label, curve.ErrNoSamples)
	}

	terms := TerminationTimes(coverage)
	grid := curve.Linspace(0, maxOf(terms), opts.Points)
	covRows := make([][]float64, n)
	ovRows := make([][]float64, n)
	for i := 0; i < n; i++ {
		var err error
		covRows[i], err = curve.Interp(grid, coverage[i].Times(), coverage[i].Values())
		if err != nil {
			return GroupCurve{}, fmt.Errorf("%s: %w", coverage[i].Name, err)
		}
		ovRows[i], err = curve.Interp(grid, overlap[i].Times(), overlap[i].Values())
		if err != nil {
			return GroupCurve{}, fmt.Errorf("%s: %w", overlap[i].Name, err)
		}
	}

	cov, err := curve.Aggregate(grid, covRows, curve.Population)
	if err != nil {
		return GroupCurve{}, err
	}
	ov, err := curve.Aggregate(grid, ovRows, curve.Population)
	if err != nil {
		return GroupCurve{}, err
	}
	s := curve.Series{X: cov.Mean, Mean: ov.Mean, Std: ov.Std}.CapMean(opts.Cap)
	_, last := s.Last()

	return GroupCurve{
		Label:            label,
		Series:           s,
		TerminationTimes: terms,
		MeanTermination:  curve.Mean(terms),
		TerminationValue: last,
	}, nil
}

// Difference is reference minus other at termination.
type Difference struct {
	Reference string
	Other     string
	Value     float64
}

// TerminationDifferences subtracts every other curve's final mean from the
// reference curve's final mean.
func TerminationDifferences(ref GroupCurve, others []GroupCurve) []Difference {
	_, r := ref.Series.Last()
	var out []Difference
	for _, o := range others {
		if o.Label == ref.Label || o.Series.Len() == 0 {
			continue
		}
		_, v := o.Series.Last()
		out = append(out, Difference{Reference: ref.Label, Other: o.Label, Value: r - v})
	}
	return out
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}
