package analysis

import (
	"fmt"

	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

// BinRange limits binned curves to the middle of the coverage range, where
// every trial still contributes.
type BinRange struct {
	Lo, Hi float64
}

func DefaultBinRange() BinRange {
	return BinRange{Lo: 10, Hi: 90}
}

// TimeBinned pools the rounded samples of all trials, averages coverage per
// rounded time and keeps the times whose mean coverage lies in r.
func TimeBinned(g dataset.Group, r BinRange) (GroupCurve, error) {
	var pooled []dataset.Sample
	for _, tr := range PrepareCoverage(g.Trials) {
		pooled = append(pooled, tr.Samples...)
	}
	if len(pooled) == 0 {
		return GroupCurve{}, fmt.Errorf("%s: %w", g.Label, curve.ErrNoSamples)
	}
	s := curve.Bin(pooled, curve.Sample).KeepMeanWithin(r.Lo, r.Hi)
	return newBinnedCurve(g.Label, s, TerminationTimes(g.Trials)), nil
}

// OverlapBinned joins pooled overlap rows with pooled coverage rows on
// rounded time, every matching pair counting once, and averages overlap per
// rounded coverage value within r.
func OverlapBinned(label string, coverage, overlap []dataset.Trial, floor float64, r BinRange) (GroupCurve, error) {
	byTime := make(map[float64][]float64)
	for _, tr := range PrepareCoverage(coverage) {
		for _, s := range tr.Samples {
			byTime[s.Time] = append(byTime[s.Time], s.Value)
		}
	}

	var joined []dataset.Sample
	for _, tr := range PrepareOverlap(overlap, floor) {
		for _, s := range tr.Samples {
			for _, cov := range byTime[s.Time] {
				joined = append(joined, dataset.Sample{Time: cov, Value: s.Value})
			}
		}
	}
	if len(joined) == 0 {
		return GroupCurve{}, fmt.Errorf("%s: no overlap rows share a time with coverage rows: %w", label, curve.ErrNoSamples)
	}
	s := curve.Bin(joined, curve.Sample).KeepXWithin(r.Lo, r.Hi)
	return newBinnedCurve(label, s, TerminationTimes(coverage)), nil
}

func newBinnedCurve(label string, s curve.Series, terms []float64) GroupCurve {
	gc := GroupCurve{
		Label:            label,
		Series:           s,
		TerminationTimes: terms,
		MeanTermination:  curve.Mean(terms),
	}
	if s.Len() > 0 {
		_, gc.TerminationValue = s.Last()
	}
	return gc
}
