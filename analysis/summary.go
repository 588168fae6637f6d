package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

// Stats summarises one per-trial quantity.
type Stats struct {
	Count int
	Mean  float64
	// Std is the population deviation.
	Std                          float64
	P0, P50, P90, P95, P99, P100 float64
}

func percentileFloat64(sorted []float64, p float64) float64 {
	if p < 0 || p > 100 {
		panic("percentile must be between 0 and 100")
	}
	index := int(p / 100 * float64(len(sorted)))
	if index == len(sorted) {
		index--
	}
	return sorted[index]
}

// NewStats computes Stats of values. values is not modified.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mean, std := curve.MeanStd(sorted, curve.Population)
	return Stats{
		Count: len(sorted),
		Mean:  mean,
		Std:   std,
		P0:    percentileFloat64(sorted, 0),
		P50:   percentileFloat64(sorted, 50),
		P90:   percentileFloat64(sorted, 90),
		P95:   percentileFloat64(sorted, 95),
		P99:   percentileFloat64(sorted, 99),
		P100:  percentileFloat64(sorted, 100),
	}
}

// Summary holds the termination statistics of one group.
type Summary struct {
	Label    string
	Time     Stats
	Coverage Stats
}

func Summarize(g dataset.Group) Summary {
	return Summary{
		Label:    g.Label,
		Time:     NewStats(TerminationTimes(g.Trials)),
		Coverage: NewStats(FinalValues(g.Trials)),
	}
}

// Print writes s the way the other commands print their statistics.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n******* Termination summary: %s *******\n", s.Label)
	for _, m := range []struct {
		name string
		st   Stats
	}{{"time (s)", s.Time}, {"coverage (%)", s.Coverage}} {
		fmt.Fprintf(w, "%s: count %d, mean %.2f, std %.2f, p0 %.2f, p50 %.2f, p90 %.2f, p95 %.2f, p99 %.2f, p100 %.2f\n",
			m.name, m.st.Count, m.st.Mean, m.st.Std, m.st.P0, m.st.P50, m.st.P90, m.st.P95, m.st.P99, m.st.P100)
	}
}

var summaryHeader = []string{
	"label", "metric", "count", "mean", "std", "p0", "p50", "p90", "p95", "p99", "p100",
}

// WriteSummaryCSV writes one row per group and metric.
func WriteSummaryCSV(w io.Writer, summaries []Summary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(summaryHeader); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	for _, s := range summaries {
		for _, m := range []struct {
			name string
			st   Stats
		}{{"time", s.Time}, {"coverage", s.Coverage}} {
			err := writer.Write([]string{
				s.Label, m.name, strconv.Itoa(m.st.Count),
				format(m.st.Mean), format(m.st.Std),
				format(m.st.P0), format(m.st.P50), format(m.st.P90),
				format(m.st.P95), format(m.st.P99), format(m.st.P100),
			})
			if err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
