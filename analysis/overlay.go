package analysis

import (
	"fmt"
	"math"

	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

// Overlay is every trial of a group drawn on its own plus their average.
type Overlay struct {
	Label string
	// Trials hold the logs with time rounded to whole seconds.
	Trials  []dataset.Trial
	Average curve.Series
}

// TrialOverlay rounds every trial's time to whole seconds and averages, at
// each second up to the mean termination time, the trials logged exactly at
// that second. A trial logging a second twice contributes its first row.
// Seconds no trial logged average to 0.
func TrialOverlay(g dataset.Group) (Overlay, error) {
	if len(g.Trials) == 0 {
		return Overlay{}, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
	}
	rounded := make([]dataset.Trial, len(g.Trials))
	firsts := make([]map[float64]float64, len(g.Trials))
	for i, tr := range g.Trials {
		rounded[i] = dataset.Trial{Name: tr.Name, Samples: curve.RoundSamples(tr.Samples, false)}
		firsts[i] = make(map[float64]float64, len(tr.Samples))
		for _, s := range rounded[i].Samples {
			if _, ok := firsts[i][s.Time]; !ok {
				firsts[i][s.Time] = s.Value
			}
		}
	}

	end := int(math.Trunc(curve.Mean(TerminationTimes(rounded))))
	avg := curve.Series{
		X:    curve.IntegerGrid(end),
		Mean: make([]float64, end+1),
		Std:  make([]float64, end+1),
	}
	for i, t := range avg.X {
		var values []float64
		for _, f := range firsts {
			if v, ok := f[t]; ok {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			avg.Mean[i], avg.Std[i] = curve.MeanStd(values, curve.Population)
		}
	}
	return Overlay{Label: g.Label, Trials: rounded, Average: avg}, nil
}

// TrialSeries views a single trial as a series with no deviation.
func TrialSeries(tr dataset.Trial) curve.Series {
	return curve.Series{X: tr.Times(), Mean: tr.Values(), Std: make([]float64, len(tr.Samples))}
}
