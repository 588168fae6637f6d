package analysis

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

type FailureOptions struct {
	// Column holds the coverage at which a robot failed. Empty means the
	// first column ending in dataset.FailureColumnSuffix.
	Column string
	// Robots whose failure rows count; the first matching row is used.
	Robots []string
	// Cutoff excludes logged times at or after it.
	Cutoff float64
}

func DefaultFailureOptions() FailureOptions {
	return FailureOptions{Robots: []string{"tb3_1", "tb3_2", "tb3_3"}, Cutoff: 650}
}

// FailureResult is the coverage curve of a team recovering from one robot
// failing mid-run.
type FailureResult struct {
	GroupCurve
	// FailureCoverage is the mean coverage at which the robot failed.
	FailureCoverage float64
	// FailureTime is the mean time the team first reached FailureCoverage.
	FailureTime float64
	// TerminatingMerged is the mean final merged coverage of the survivors.
	TerminatingMerged float64
}

// failureRun is one main log reduced to the columns the recovery curve uses.
type failureRun struct {
	name     string
	times    []float64
	coverage []float64
	merged   []float64
}

func newFailureRun(t *dataset.Table) (failureRun, error) {
	r := failureRun{name: t.Name}
	var err error
	if r.times, err = t.Floats(dataset.ColTimeElapsed); err != nil {
		return r, err
	}
	if r.coverage, err = t.Floats(dataset.ColCoveragePercent); err != nil {
		return r, err
	}
	if r.merged, err = t.Floats(dataset.ColMergedCoverage); err != nil {
		return r, err
	}
	if len(r.times) == 0 {
		return r, fmt.Errorf("%s: %w", t.Name, curve.ErrNoSamples)
	}
	return r, nil
}

// valueAt returns the last row, in file order, logged at or before t; the
// first row when none was.
func valueAt(times, values []float64, t float64) float64 {
	v := values[0]
	for i, ts := range times {
		if ts <= t {
			v = values[i]
		}
	}
	return v
}

// failureCoverage reads the coverage at which the first listed robot of f
// failed.
func failureCoverage(f *dataset.Table, opts FailureOptions) (float64, error) {
	col := opts.Column
	if col == "" {
		var ok bool
		if col, ok = f.FindSuffix(dataset.FailureColumnSuffix); !ok {
			return 0, fmt.Errorf("%s: %w %q", f.Name, dataset.ErrMissingColumn, "*"+dataset.FailureColumnSuffix)
		}
	}
	robots, err := f.Strings(dataset.ColRobot)
	if err != nil {
		return 0, err
	}
	values, err := f.Floats(col)
	if err != nil {
		return 0, err
	}
	for i, r := range robots {
		for _, want := range opts.Robots {
			if r == want {
				return values[i], nil
			}
		}
	}
	return 0, fmt.Errorf("%s: no failure row for robots %v", f.Name, opts.Robots)
}

// FailureRecovery pairs the main logs with the failure logs in order. Up to
// the mean failure time the curve follows the whole team's coverage, after
// it the coverage merged by the surviving robots.
func FailureRecovery(label string, logs, failures []*dataset.Table, opts FailureOptions) (FailureResult, error) {
	n := min(len(logs), len(failures))
	if len(logs) != len(failures) {
		log.Warnf("%s: %d main logs but %d failure logs, pairing the first %d", label, len(logs), len(failures), n)
	}
	if n == 0 {
		return FailureResult{}, fmt.Errorf("%s: %w", label, curve.ErrNoSamples)
	}

	runs := make([]failureRun, n)
	failCov := make([]float64, n)
	for i := 0; i < n; i++ {
		var err error
		if runs[i], err = newFailureRun(logs[i]); err != nil {
			return FailureResult{}, err
		}
		if failCov[i], err = failureCoverage(failures[i], opts); err != nil {
			return FailureResult{}, err
		}
	}
	avgFailCov := curve.Mean(failCov)

	failTimes := make([]float64, n)
	totals := make([]float64, n)
	merged := make([]float64, n)
	for i, r := range runs {
		last := len(r.times) - 1
		j := 0
		for j < len(r.coverage) && r.coverage[j] < avgFailCov {
			j++
		}
		if j == len(r.coverage) {
			log.Warnf("%s never reached %.2f%% coverage, using its last time", r.name, avgFailCov)
			j = last
		}
		failTimes[i] = r.times[j]
		totals[i] = maxOf(r.times)
		merged[i] = r.merged[last]
	}
	avgFailTime := curve.Mean(failTimes)
	avgTotal := curve.Mean(totals)

	seen := make(map[float64]bool)
	var grid []float64
	for _, r := range runs {
		for _, t := range r.times {
			if t < opts.Cutoff && !seen[t] {
				seen[t] = true
				grid = append(grid, t)
			}
		}
	}
	sort.Float64s(grid)

	rows := make([][]float64, n)
	for i, r := range runs {
		rows[i] = make([]float64, len(grid))
		for j, t := range grid {
			if t <= avgFailTime {
				rows[i][j] = valueAt(r.times, r.coverage, t)
			} else {
				rows[i][j] = valueAt(r.times, r.merged, t)
			}
		}
	}
	s, err := curve.Aggregate(grid, rows, curve.Population)
	if err != nil {
		return FailureResult{}, fmt.Errorf("%s: %w", label, err)
	}
	s = s.ClipX(avgTotal)

	gc := GroupCurve{
		Label:            label,
		Series:           s,
		TerminationTimes: totals,
		MeanTermination:  avgTotal,
	}
	if s.Len() > 0 {
		_, gc.TerminationValue = s.Last()
	}
	return FailureResult{
		GroupCurve:        gc,
		FailureCoverage:   avgFailCov,
		FailureTime:       avgFailTime,
		TerminatingMerged: curve.Mean(merged),
	}, nil
}
