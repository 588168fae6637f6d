package analysis

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/wiser-x/exploration-plots/curve"
	"github.com/wiser-x/exploration-plots/dataset"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// trial builds a trial from time, value pairs.
func trial(name string, pairs ...float64) dataset.Trial {
	tr := dataset.Trial{Name: name}
	for i := 0; i+1 < len(pairs); i += 2 {
		tr.Samples = append(tr.Samples, dataset.Sample{Time: pairs[i], Value: pairs[i+1]})
	}
	return tr
}

func table(t *testing.T, name, content string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.ReadTable(name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("ReadTable(%s): %v", name, err)
	}
	return tbl
}

func checkSeries(t *testing.T, want, got curve.Series) {
	t.Helper()
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestTimeCoverage(t *testing.T) {
	tr := trial("a", 0, 0, 10, 50, 20, 100)
	g := dataset.Group{Label: "WiSER-X", Trials: []dataset.Trial{tr, tr}}

	gc, err := TimeCoverage(g, TimeOptions{Points: 5, CoverageCap: 90})
	if err != nil {
		t.Fatalf("TimeCoverage: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 5, 10, 15, 20},
		Mean: []float64{0, 25, 50, 75, 90},
		Std:  []float64{0, 0, 0, 0, 0},
	}, gc.Series)
	if gc.MeanTermination != 20 || gc.TerminationValue != 90 {
		t.Errorf("termination = %v s at %v%%, want 20 s at 90%%", gc.MeanTermination, gc.TerminationValue)
	}
}

func TestTimeCoverageEmpty(t *testing.T) {
	if _, err := TimeCoverage(dataset.Group{Label: "x"}, DefaultTimeOptions()); !errors.Is(err, curve.ErrNoSamples) {
		t.Errorf("err = %v, want ErrNoSamples", err)
	}
}

func TestCompareTermination(t *testing.T) {
	ref := GroupCurve{Label: "WiSER-X", TerminationTimes: []float64{10, 20}}
	other := GroupCurve{Label: "Baseline-1", TerminationTimes: []float64{20, 40, 60}}

	got, err := CompareTermination(ref, other)
	if err != nil {
		t.Fatalf("CompareTermination: %v", err)
	}
	want := Comparison{
		Reference:        "WiSER-X",
		Other:            "Baseline-1",
		Pairs:            2,
		ReferenceEarlier: 50,
		OtherEarlier:     -100,
		Speedup:          2,
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("CompareTermination mismatch (-want +got):\n%s", diff)
	}
}

func TestOverlap(t *testing.T) {
	cov := trial("time_1", 0, 0, 10, 50)
	ov := trial("cov_1", 0, 0, 10, 20)
	opts := DefaultOverlapOptions()
	opts.Points = 3

	gc, err := Overlap("WiSER-X", []dataset.Trial{cov, cov}, []dataset.Trial{ov, ov}, opts)
	if err != nil {
		t.Fatalf("Overlap: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 25, 50},
		Mean: []float64{5, 12.5, 20},
		Std:  []float64{0, 0, 0},
	}, gc.Series)
	if gc.TerminationValue != 20 {
		t.Errorf("TerminationValue = %v, want 20", gc.TerminationValue)
	}
}

func TestOverlapPairsByRunNumber(t *testing.T) {
	// run_2's coverage log was empty and dropped at load time.
	cov := []dataset.Trial{
		trial("time/run_1.csv", 0, 0, 10, 50),
		trial("time/run_3.csv", 0, 0, 10, 100),
	}
	ov := []dataset.Trial{
		trial("coverage/run_1.csv", 0, 0, 10, 20),
		trial("coverage/run_2.csv", 0, 0, 10, 80),
		trial("coverage/run_3.csv", 0, 0, 10, 40),
	}
	opts := DefaultOverlapOptions()
	opts.Points = 3

	gc, err := Overlap("WiSER-X", cov, ov, opts)
	if err != nil {
		t.Fatalf("Overlap: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 37.5, 75},
		Mean: []float64{5, 17.5, 30},
		Std:  []float64{0, 5, 10},
	}, gc.Series)
}

func TestOverlapUnnumberedMismatch(t *testing.T) {
	cov := []dataset.Trial{trial("time/a.csv", 0, 0, 10, 50)}
	ov := []dataset.Trial{trial("coverage/a.csv", 0, 0, 10, 20), trial("coverage/b.csv", 0, 0, 10, 20)}
	if _, err := Overlap("x", cov, ov, DefaultOverlapOptions()); err == nil {
		t.Error("Overlap paired unnumbered logs of different counts")
	}
}

func TestTerminationDifferences(t *testing.T) {
	mk := func(label string, last float64) GroupCurve {
		return GroupCurve{Label: label, Series: curve.Series{X: []float64{0, 1}, Mean: []float64{0, last}, Std: []float64{0, 0}}}
	}
	ref := mk("WiSER-X", 20)
	got := TerminationDifferences(ref, []GroupCurve{ref, mk("Baseline-1", 35), {Label: "empty"}})
	want := []Difference{{Reference: "WiSER-X", Other: "Baseline-1", Value: -15}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TerminationDifferences mismatch (-want +got):\n%s", diff)
	}
}

func TestTimeBinned(t *testing.T) {
	g := dataset.Group{Label: "a", Trials: []dataset.Trial{
		trial("1", 0.4, 5.2, 1, 20, 2, 95),
		trial("2", 0, 15, 1.2, 40, 2, 100),
	}}
	gc, err := TimeBinned(g, DefaultBinRange())
	if err != nil {
		t.Fatalf("TimeBinned: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 1},
		Mean: []float64{10, 30},
		Std:  []float64{math.Sqrt(50), math.Sqrt(200)},
	}, gc.Series)
}

func TestOverlapBinned(t *testing.T) {
	cov := []dataset.Trial{trial("time_1", 0, 10, 1, 20, 5, 95)}
	ov := []dataset.Trial{trial("cov_1", 0, 0, 1.2, 30)}
	gc, err := OverlapBinned("a", cov, ov, 5, DefaultBinRange())
	if err != nil {
		t.Fatalf("OverlapBinned: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{10, 20},
		Mean: []float64{5, 30},
		Std:  []float64{0, 0},
	}, gc.Series)

	_, err = OverlapBinned("a", cov, []dataset.Trial{trial("cov_2", 7, 1)}, 5, DefaultBinRange())
	if !errors.Is(err, curve.ErrNoSamples) {
		t.Errorf("disjoint times err = %v, want ErrNoSamples", err)
	}
}

func TestTrialOverlay(t *testing.T) {
	g := dataset.Group{Label: "wsr", Trials: []dataset.Trial{
		trial("1", 0, 0, 1.4, 10, 2, 20, 2.2, 25),
		trial("2", 0, 0, 1, 30, 3, 60),
	}}
	o, err := TrialOverlay(g)
	if err != nil {
		t.Fatalf("TrialOverlay: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 1, 2},
		Mean: []float64{0, 20, 20},
		Std:  []float64{0, 10, 0},
	}, o.Average)
	if got := o.Trials[0].Samples[1].Time; got != 1 {
		t.Errorf("rounded time = %v, want 1", got)
	}
}

func noiseGroups() []dataset.Group {
	return []dataset.Group{
		{Label: "2 deg, 1 cm", Trials: []dataset.Trial{
			trial("1", 0, 0, 2, 20, 4, 40),
			trial("2", 0, 0, 1, 10, 3, 30, 6, 60),
		}},
		{Label: "30 deg, 100 cm", Trials: []dataset.Trial{
			trial("1", 0, 0, 10, 90),
		}},
	}
}

func TestNoiseCurve(t *testing.T) {
	gc, err := NoiseCurve(noiseGroups()[0])
	if err != nil {
		t.Fatalf("NoiseCurve: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 1, 2, 3, 4},
		Mean: []float64{0, 10, 20, 30, 40},
		Std:  []float64{0, 0, 0, 0, 0},
	}, gc.Series)
	if gc.MeanTermination != 5 {
		t.Errorf("MeanTermination = %v, want 5", gc.MeanTermination)
	}
}

func TestNoiseCurveSamplesByTime(t *testing.T) {
	// 0.5 Hz log: rows are 2 s apart.
	g := dataset.Group{Label: "2 deg, 1 cm", Trials: []dataset.Trial{trial("1", 0, 0, 2, 10, 4, 20, 6, 30, 8, 40)}}
	gc, err := NoiseCurve(g)
	if err != nil {
		t.Fatalf("NoiseCurve: %v", err)
	}
	if got := gc.Series.Mean[3]; got != 15 {
		t.Errorf("coverage at 3 s = %v, want 15", got)
	}
}

func TestNoiseBars(t *testing.T) {
	bars, err := NoiseBars(noiseGroups())
	if err != nil {
		t.Fatalf("NoiseBars: %v", err)
	}
	want := []Bar{
		{Label: "30 deg, 100 cm", Value: 90, Err: 0},
		{Label: "2 deg, 1 cm", Value: 50, Err: 0},
	}
	if diff := cmp.Diff(want, bars, approx); diff != "" {
		t.Errorf("NoiseBars mismatch (-want +got):\n%s", diff)
	}
}

func TestNoiseBarsDropEndedRuns(t *testing.T) {
	// 1 Hz logs ending at 11 s and 20 s; the mean termination is 15.5 s.
	ramp := func(name string, end int) dataset.Trial {
		tr := dataset.Trial{Name: name}
		for s := 0; s <= end; s++ {
			tr.Samples = append(tr.Samples, dataset.Sample{Time: float64(s), Value: 4 * float64(s)})
		}
		return tr
	}
	g := dataset.Group{Label: "5 deg, 10 cm", Trials: []dataset.Trial{ramp("1", 11), ramp("2", 20)}}

	bars, err := NoiseBars([]dataset.Group{g})
	if err != nil {
		t.Fatalf("NoiseBars: %v", err)
	}
	if diff := cmp.Diff([]Bar{{Label: g.Label, Value: 60, Err: 0}}, bars, approx); diff != "" {
		t.Errorf("NoiseBars mismatch (-want +got):\n%s", diff)
	}

	gc, err := NoiseCurve(g)
	if err != nil {
		t.Fatalf("NoiseCurve: %v", err)
	}
	if got := gc.Series.Mean[15]; got != bars[0].Value {
		t.Errorf("curve at 15 s = %v, bar = %v", got, bars[0].Value)
	}
}

func TestTerminationBars(t *testing.T) {
	bars, err := TerminationBars(noiseGroups(), MetricTime)
	if err != nil {
		t.Fatalf("TerminationBars: %v", err)
	}
	want := []Bar{
		{Label: "2 deg, 1 cm", Value: 5, Err: 1},
		{Label: "30 deg, 100 cm", Value: 10, Err: 0},
	}
	if diff := cmp.Diff(want, bars, approx); diff != "" {
		t.Errorf("TerminationBars mismatch (-want +got):\n%s", diff)
	}
	if _, err := TerminationBars(noiseGroups(), Metric("speed")); err == nil {
		t.Error("unknown metric succeeded")
	}
}

func TestSlowExplorer(t *testing.T) {
	g := dataset.Group{Label: "WiSER-X", Trials: []dataset.Trial{
		trial("1", 0, 0, 0.4, 5, 1, 20, 2.6, 60, 3, 100),
		trial("2", 0, 10, 1, 30, 2, 50, 3, 70),
	}}
	res, err := SlowExplorer(g, DefaultSlowOptions())
	if err != nil {
		t.Fatalf("SlowExplorer: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 1, 2},
		Mean: []float64{7.5, 25, 35},
		Std:  []float64{math.Sqrt(12.5), math.Sqrt(50), math.Sqrt(450)},
	}, res.Series)
	if diff := cmp.Diff([]float64{20, 70}, res.TerminationCoverages); diff != "" {
		t.Errorf("termination coverages mismatch (-want +got):\n%s", diff)
	}
	if res.TerminationCoverageStd != 25 {
		t.Errorf("TerminationCoverageStd = %v, want 25", res.TerminationCoverageStd)
	}
}

func TestDivideAndConquer(t *testing.T) {
	regions := []dataset.Group{
		{Label: "bottom", Trials: []dataset.Trial{trial("b_1", 0, 0, 2, 100)}},
		{Label: "upper_left", Trials: []dataset.Trial{trial("ul_1", 1, 40, 3, 80)}},
	}
	gc, err := DivideAndConquer("Divide-and-Conquer", regions, SlowOptions{Threshold: 99})
	if err != nil {
		t.Fatalf("DivideAndConquer: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 1, 2, 3},
		Mean: []float64{0, 20, 70, 90},
		Std:  []float64{0, 0, 0, 0},
	}, gc.Series)

	opts := DefaultSlowOptions()
	opts.ScaleMax = 45
	scaled, err := DivideAndConquer("Divide-and-Conquer", regions, opts)
	if err != nil {
		t.Fatalf("DivideAndConquer scaled: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 10, 35, 45}, scaled.Series.Mean, approx); diff != "" {
		t.Errorf("scaled mean mismatch (-want +got):\n%s", diff)
	}
	if scaled.TerminationValue != 45 {
		t.Errorf("TerminationValue = %v, want 45", scaled.TerminationValue)
	}

	byDefault, err := DivideAndConquer("Divide-and-Conquer", regions, DefaultSlowOptions())
	if err != nil {
		t.Fatalf("DivideAndConquer default: %v", err)
	}
	if _, peak := byDefault.Series.Last(); math.Abs(peak-91) > 1e-9 || math.Abs(byDefault.TerminationValue-91) > 1e-9 {
		t.Errorf("default peak = %v, termination %v; want 91", peak, byDefault.TerminationValue)
	}
}

func TestFailureRecovery(t *testing.T) {
	const header = "time_elapsed,coverage_percent,merged_12_coverage\n"
	logs := []*dataset.Table{
		table(t, "main_1.csv", header+"0,0,0\n10,40,30\n20,80,60\n"),
		table(t, "main_2.csv", header+"0,0,0\n10,60,50\n30,90,70\n"),
	}
	failures := []*dataset.Table{
		table(t, "failure_1.csv", "Robot,Failure Coverage (%)\ntb3_0,99\ntb3_2,40\n"),
		table(t, "failure_2.csv", "Robot,Failure Coverage (%)\ntb3_1,60\n"),
	}

	res, err := FailureRecovery("WiSER-X", logs, failures, DefaultFailureOptions())
	if err != nil {
		t.Fatalf("FailureRecovery: %v", err)
	}
	checkSeries(t, curve.Series{
		X:    []float64{0, 10, 20},
		Mean: []float64{0, 50, 55},
		Std:  []float64{0, 10, 5},
	}, res.Series)
	got := []float64{res.FailureCoverage, res.FailureTime, res.MeanTermination, res.TerminatingMerged}
	if diff := cmp.Diff([]float64{50, 15, 25, 65}, got, approx); diff != "" {
		t.Errorf("failure statistics mismatch (-want +got):\n%s", diff)
	}
}

func TestFailureRecoveryMissingColumn(t *testing.T) {
	logs := []*dataset.Table{table(t, "main_1.csv", "time_elapsed,coverage_percent,merged_12_coverage\n0,0,0\n")}
	failures := []*dataset.Table{table(t, "failure_1.csv", "Robot,Coverage\ntb3_1,60\n")}
	if _, err := FailureRecovery("x", logs, failures, DefaultFailureOptions()); !errors.Is(err, dataset.ErrMissingColumn) {
		t.Errorf("err = %v, want ErrMissingColumn", err)
	}
}

func TestNewStats(t *testing.T) {
	got := NewStats([]float64{3, 1, 2, 4})
	want := Stats{Count: 4, Mean: 2.5, Std: math.Sqrt(1.25), P0: 1, P50: 3, P90: 4, P95: 4, P99: 4, P100: 4}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("NewStats mismatch (-want +got):\n%s", diff)
	}
	if got := NewStats(nil); got != (Stats{}) {
		t.Errorf("NewStats(nil) = %+v", got)
	}
}

func TestWriteSummaryCSV(t *testing.T) {
	g := dataset.Group{Label: "WiSER-X", Trials: []dataset.Trial{trial("1", 0, 0, 10, 80), trial("2", 0, 0, 20, 90)}}
	var buf bytes.Buffer
	if err := WriteSummaryCSV(&buf, []Summary{Summarize(g)}); err != nil {
		t.Fatalf("WriteSummaryCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if want := "WiSER-X,time,2,15.000,5.000,10.000,20.000,20.000,20.000,20.000,20.000"; lines[1] != want {
		t.Errorf("time row = %q, want %q", lines[1], want)
	}
}
