package analysis

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

type SlowOptions struct {
	// Threshold drops collapsed samples above it; runs end at the last
	// sample still at or below it.
	Threshold float64
	// ScaleMax, when positive, rescales the divide-and-conquer curve so its
	// highest mean equals ScaleMax.
	ScaleMax float64
}

func DefaultSlowOptions() SlowOptions {
	return SlowOptions{Threshold: 99, ScaleMax: 91}
}

// SlowResult is a slow-robot curve plus the coverage each run ended at.
type SlowResult struct {
	GroupCurve
	TerminationCoverages []float64
	// TerminationCoverageStd is the population deviation of
	// TerminationCoverages.
	TerminationCoverageStd float64
}

// collapse rounds time, keeps the best coverage logged per second and
// divides it by div.
func collapse(tr dataset.Trial, div float64) []dataset.Sample {
	samples := curve.CollapseMax(curve.RoundSamples(tr.Samples, false))
	for i := range samples {
		samples[i].Value /= div
	}
	return samples
}

// stepCurve forward fills every run over 0..int(mean termination) and
// aggregates with sample deviation.
func stepCurve(label string, runs [][]dataset.Sample, terms []float64) (GroupCurve, error) {
	end := int(math.Trunc(curve.Mean(terms)))
	rows := make([][]float64, len(runs))
	for i, r := range runs {
		rows[i] = curve.FillIndex(r, end, 0)
	}
	s, err := curve.Aggregate(curve.IntegerGrid(end), rows, curve.Sample)
	if err != nil {
		return GroupCurve{}, fmt.Errorf("%s: %w", label, err)
	}
	gc := GroupCurve{
		Label:            label,
		Series:           s,
		TerminationTimes: terms,
		MeanTermination:  float64(end),
	}
	if s.Len() > 0 {
		_, gc.TerminationValue = s.Last()
	}
	return gc, nil
}

// SlowExplorer aggregates a team exploring together while one robot is
// slowed down.
func SlowExplorer(g dataset.Group, opts SlowOptions) (SlowResult, error) {
	if len(g.Trials) == 0 {
		return SlowResult{}, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
	}
	runs := make([][]dataset.Sample, 0, len(g.Trials))
	var terms, finals []float64
	for _, tr := range g.Trials {
		kept := curve.FilterValues(collapse(tr, 1), func(v float64) bool { return v <= opts.Threshold })
		if len(kept) == 0 {
			log.Warnf("%s: no coverage at or below %.0f%%, skipping", tr.Name, opts.Threshold)
			continue
		}
		last := kept[len(kept)-1]
		runs = append(runs, kept)
		terms = append(terms, last.Time)
		finals = append(finals, last.Value)
	}
	if len(runs) == 0 {
		return SlowResult{}, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
	}

	gc, err := stepCurve(g.Label, runs, terms)
	if err != nil {
		return SlowResult{}, err
	}
	_, std := curve.MeanStd(finals, curve.Population)
	return SlowResult{GroupCurve: gc, TerminationCoverages: finals, TerminationCoverageStd: std}, nil
}

// DivideAndConquer aggregates runs in which every robot explores its own
// region. Run i is made of the i-th log of every region; a region's
// coverage counts 1/len(regions) towards the map and the run's total is
// only defined once every region has started logging.
func DivideAndConquer(label string, regions []dataset.Group, opts SlowOptions) (GroupCurve, error) {
	if len(regions) == 0 {
		return GroupCurve{}, fmt.Errorf("%s: no regions: %w", label, curve.ErrNoSamples)
	}
	n := len(regions[0].Trials)
	for _, r := range regions[1:] {
		if len(r.Trials) != n {
			log.Warnf("%s: region %s has %d runs, %s has %d", label, r.Label, len(r.Trials), regions[0].Label, n)
		}
		n = min(n, len(r.Trials))
	}
	if n == 0 {
		return GroupCurve{}, fmt.Errorf("%s: %w", label, curve.ErrNoSamples)
	}

	div := float64(len(regions))
	runs := make([][]dataset.Sample, 0, n)
	terms := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		parts := make([][]dataset.Sample, len(regions))
		end := math.Inf(-1)
		for j, r := range regions {
			parts[j] = collapse(r.Trials[i], div)
			if len(parts[j]) == 0 {
				return GroupCurve{}, fmt.Errorf("%s: %w", r.Trials[i].Name, curve.ErrNoSamples)
			}
			end = math.Max(end, parts[j][len(parts[j])-1].Time)
		}
		last := int(end)

		total := make([]float64, last+1)
		for _, p := range parts {
			for t, v := range curve.FillIndex(p, last, math.NaN()) {
				total[t] += v
			}
		}
		var kept []dataset.Sample
		for t, v := range total {
			// NaN marks seconds before some region started.
			if v <= opts.Threshold {
				kept = append(kept, dataset.Sample{Time: float64(t), Value: v})
			}
		}
		runs = append(runs, kept)
		terms = append(terms, float64(last))
	}

	gc, err := stepCurve(label, runs, terms)
	if err != nil {
		return GroupCurve{}, err
	}
	if opts.ScaleMax > 0 && gc.Series.Len() > 0 {
		if peak := maxOf(gc.Series.Mean); peak > 0 {
			gc.Series = gc.Series.Scale(opts.ScaleMax / peak)
			_, gc.TerminationValue = gc.Series.Last()
		}
	}
	return gc, nil
}
