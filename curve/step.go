package curve

import (
	"math"
	"sort"

	"github.com/wiser-x/exploration-plots/dataset"
)

// Round rounds half to even, the way the loggers' consumers always have.
func Round(v float64) float64 {
	return math.RoundToEven(v)
}

// RoundSamples rounds time and, if values is set, value of every sample.
func RoundSamples(samples []dataset.Sample, values bool) []dataset.Sample {
	out := make([]dataset.Sample, len(samples))
	for i, s := range samples {
		out[i].Time = Round(s.Time)
		out[i].Value = s.Value
		if values {
			out[i].Value = Round(s.Value)
		}
	}
	return out
}

// CollapseMax merges samples sharing a time, keeping the largest value.
// The result is sorted by time.
func CollapseMax(samples []dataset.Sample) []dataset.Sample {
	best := make(map[float64]float64, len(samples))
	for _, s := range samples {
		if v, ok := best[s.Time]; !ok || s.Value > v {
			best[s.Time] = s.Value
		}
	}
	out := make([]dataset.Sample, 0, len(best))
	for t, v := range best {
		out = append(out, dataset.Sample{Time: t, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// FilterValues keeps the samples whose value satisfies keep.
func FilterValues(samples []dataset.Sample, keep func(float64) bool) []dataset.Sample {
	var out []dataset.Sample
	for _, s := range samples {
		if keep(s.Value) {
			out = append(out, s)
		}
	}
	return out
}

// FillIndex samples a time-sorted step trace at integer times 0..n. Each
// time takes the value of the last sample at or before it; times before the
// first sample take before.
func FillIndex(samples []dataset.Sample, n int, before float64) []float64 {
	if n < 0 {
		return nil
	}
	out := make([]float64, n+1)
	j := -1
	for t := 0; t <= n; t++ {
		for j+1 < len(samples) && samples[j+1].Time <= float64(t) {
			j++
		}
		if j < 0 {
			out[t] = before
		} else {
			out[t] = samples[j].Value
		}
	}
	return out
}

// IntegerGrid returns 0, 1, ..., n.
func IntegerGrid(n int) []float64 {
	if n < 0 {
		return nil
	}
	out := make([]float64, n+1)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// Bin groups pooled samples by time and reports mean and deviation of the
// values at every distinct time, in increasing time order.
func Bin(samples []dataset.Sample, dev Deviation) Series {
	byTime := make(map[float64][]float64)
	for _, s := range samples {
		byTime[s.Time] = append(byTime[s.Time], s.Value)
	}
	times := make([]float64, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Float64s(times)

	s := Series{
		X:    times,
		Mean: make([]float64, len(times)),
		Std:  make([]float64, len(times)),
	}
	for i, t := range times {
		s.Mean[i], s.Std[i] = MeanStd(byTime[t], dev)
	}
	return s
}

// KeepMeanWithin keeps the points whose mean lies in [lo, hi].
func (s Series) KeepMeanWithin(lo, hi float64) Series {
	out := Series{}
	for i, m := range s.Mean {
		if m >= lo && m <= hi {
			out.X = append(out.X, s.X[i])
			out.Mean = append(out.Mean, m)
			out.Std = append(out.Std, s.Std[i])
		}
	}
	return out
}

// KeepXWithin keeps the points whose X lies in [lo, hi].
func (s Series) KeepXWithin(lo, hi float64) Series {
	out := Series{}
	for i, x := range s.X {
		if x >= lo && x <= hi {
			out.X = append(out.X, x)
			out.Mean = append(out.Mean, s.Mean[i])
			out.Std = append(out.Std, s.Std[i])
		}
	}
	return out
}
