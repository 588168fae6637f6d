package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

// Bar is one bar of a bar chart: a mean with its deviation.
type Bar struct {
	Label string
	Value float64
	Err   float64
}

// positive drops samples with non-positive coverage; the loggers write 0
// before the merged map exists.
func positive(tr dataset.Trial) dataset.Trial {
	return dataset.Trial{
		Name:    tr.Name,
		Samples: curve.FilterValues(tr.Samples, func(v float64) bool { return v > 0 }),
	}
}

// meanLastTime is the mean of every trial's final logged time.
func meanLastTime(trials []dataset.Trial) float64 {
	last := make([]float64, len(trials))
	for i, tr := range trials {
		last[i] = tr.Last().Time
	}
	return curve.Mean(last)
}

// spanning averages coverage interpolated at t over the trials whose samples
// span t. It returns zeros when no trial does.
func spanning(trials []dataset.Trial, t float64) (mean, std float64, err error) {
	var values []float64
	for _, tr := range trials {
		if len(tr.Samples) == 0 || t < tr.Samples[0].Time || t > tr.MaxTime() {
			continue
		}
		v, err := curve.Interp([]float64{t}, tr.Times(), tr.Values())
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", tr.Name, err)
		}
		values = append(values, v[0])
	}
	if len(values) == 0 {
		return 0, 0, nil
	}
	mean, std = curve.MeanStd(values, curve.Population)
	return mean, std, nil
}

func positives(trials []dataset.Trial) []dataset.Trial {
	var out []dataset.Trial
	for _, tr := range trials {
		if p := positive(tr); len(p.Samples) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// NoiseCurve averages positive coverage at every whole second before the
// mean termination time. A trial contributes at t only while t lies within
// its positive samples; seconds nobody covers are 0.
func NoiseCurve(g dataset.Group) (GroupCurve, error) {
	if len(g.Trials) == 0 {
		return GroupCurve{}, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
	}
	meanTerm := meanLastTime(g.Trials)
	trials := positives(g.Trials)

	var s curve.Series
	for t := 0.0; t < meanTerm; t++ {
		mean, std, err := spanning(trials, t)
		if err != nil {
			return GroupCurve{}, err
		}
		s.X = append(s.X, t)
		s.Mean = append(s.Mean, mean)
		s.Std = append(s.Std, std)
	}

	gc := GroupCurve{
		Label:            g.Label,
		Series:           s,
		TerminationTimes: TerminationTimes(g.Trials),
		MeanTermination:  meanTerm,
	}
	if s.Len() > 0 {
		_, gc.TerminationValue = s.Last()
	}
	return gc, nil
}

// CoverageAt is the noise curve of trials evaluated at t: the mean and
// deviation of positive coverage over the trials still running at t. Trials
// that ended earlier do not count.
func CoverageAt(trials []dataset.Trial, t float64) (mean, std float64, err error) {
	return spanning(positives(trials), t)
}

// NoiseBars reports each group's coverage at the whole second its mean
// termination time falls in, highest first.
func NoiseBars(groups []dataset.Group) ([]Bar, error) {
	bars := make([]Bar, 0, len(groups))
	for _, g := range groups {
		if len(g.Trials) == 0 {
			return nil, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
		}
		mean, std, err := CoverageAt(g.Trials, math.Floor(meanLastTime(g.Trials)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.Label, err)
		}
		bars = append(bars, Bar{Label: g.Label, Value: mean, Err: std})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Value > bars[j].Value })
	return bars, nil
}

// Metric selects what TerminationBars reports.
type Metric string

const (
	MetricTime     Metric = "time"
	MetricCoverage Metric = "coverage"
)

// TerminationBars reports, per group in the given order, the mean
// termination time or the mean final coverage.
func TerminationBars(groups []dataset.Group, m Metric) ([]Bar, error) {
	bars := make([]Bar, 0, len(groups))
	for _, g := range groups {
		if len(g.Trials) == 0 {
			return nil, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
		}
		var values []float64
		switch m {
		case MetricTime:
			values = TerminationTimes(g.Trials)
		case MetricCoverage:
			values = FinalValues(g.Trials)
		default:
			return nil, fmt.Errorf("unknown metric %q", m)
		}
		mean, std := curve.MeanStd(values, curve.Population)
		if math.IsNaN(std) {
			std = 0
		}
		bars = append(bars, Bar{Label: g.Label, Value: mean, Err: std})
	}
	return bars, nil
}
