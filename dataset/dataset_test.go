package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadTable(t *testing.T) {
	in := "time_elapsed, coverage_percent,Robot\n0,0,tb3_0\n1.5,12.25,tb3_1\n\n3,40,tb3_2\n"
	tbl, err := ReadTable("trial_1.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	if diff := cmp.Diff([]string{ColTimeElapsed, ColCoveragePercent, ColRobot}, tbl.Header()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	cov, err := tbl.Floats(ColCoveragePercent)
	if err != nil {
		t.Fatalf("Floats: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 12.25, 40}, cov); diff != "" {
		t.Errorf("coverage mismatch (-want +got):\n%s", diff)
	}

	robots, err := tbl.Strings(ColRobot)
	if err != nil {
		t.Fatalf("Strings: %v", err)
	}
	if robots[1] != "tb3_1" {
		t.Errorf("robots[1] = %q", robots[1])
	}

	if _, err := tbl.Floats("missing"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Floats(missing) err = %v, want ErrMissingColumn", err)
	}
	if _, err := tbl.Floats(ColRobot); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Floats(Robot) err = %v, want parse error on line 2", err)
	}
}

func TestReadTableEmpty(t *testing.T) {
	if _, err := ReadTable("empty.csv", strings.NewReader("")); err == nil {
		t.Error("ReadTable of empty input succeeded")
	}
}

func TestFindSuffix(t *testing.T) {
	tbl, err := ReadTable("f.csv", strings.NewReader("Robot,Manual Failure Coverage (%)\ntb3_1,30\n"))
	if err != nil {
		t.Fatal(err)
	}
	col, ok := tbl.FindSuffix(FailureColumnSuffix)
	if !ok || col != "Manual Failure Coverage (%)" {
		t.Errorf("FindSuffix = %q, %v", col, ok)
	}
}

func TestSortNatural(t *testing.T) {
	names := []string{"run_10.csv", "notes.csv", "run_2.csv", "run_1.csv", "a_2.csv"}
	SortNatural(names)
	want := []string{"run_1.csv", "a_2.csv", "run_2.csv", "run_10.csv", "notes.csv"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("SortNatural mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderReadTrials(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trial_10.csv", "time_elapsed,coverage_percent\n0,0\n5,50\n")
	writeFile(t, dir, "trial_2.csv", "time_elapsed,coverage_percent\n0,0\n4,40\n8,80\n")
	writeFile(t, dir, "readme.txt", "not a log")
	if err := os.Mkdir(filepath.Join(dir, "nested.csv"), 0755); err != nil {
		t.Fatal(err)
	}

	var files atomic.Int32
	l := &Loader{OnFile: func(context.Context, string) { files.Add(1) }}
	trials, err := l.ReadTrials(context.Background(), dir, ColTimeElapsed, ColCoveragePercent)
	if err != nil {
		t.Fatalf("ReadTrials: %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("got %d trials, want 2", len(trials))
	}
	if filepath.Base(trials[0].Name) != "trial_2.csv" {
		t.Errorf("first trial = %s, want trial_2.csv", trials[0].Name)
	}
	if got := trials[0].MaxTime(); got != 8 {
		t.Errorf("MaxTime() = %v, want 8", got)
	}
	if got := trials[1].Last(); got != (Sample{Time: 5, Value: 50}) {
		t.Errorf("Last() = %+v", got)
	}
	if n := files.Load(); n != 2 {
		t.Errorf("OnFile called %d times, want 2", n)
	}
}

func TestLoaderSkip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"run_10.csv", "run_2.csv", "run_1.csv", "run_3.csv"} {
		writeFile(t, dir, name, "time_elapsed,coverage_percent\n0,0\n5,50\n")
	}

	l := &Loader{Skip: 2}
	names, err := l.List(context.Background(), dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, n := range names {
		got = append(got, filepath.Base(n))
	}
	if diff := cmp.Diff([]string{"run_3.csv", "run_10.csv"}, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	l.Skip = 4
	if _, err := l.ReadTrials(context.Background(), dir, ColTimeElapsed, ColCoveragePercent); !errors.Is(err, ErrNoFiles) {
		t.Errorf("skipping every log: err = %v, want ErrNoFiles", err)
	}
}

func TestLoaderEmptyDir(t *testing.T) {
	l := &Loader{}
	_, err := l.ReadDir(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("err = %v, want ErrNoFiles", err)
	}
}

func TestLoaderRemoteWithoutClient(t *testing.T) {
	l := &Loader{}
	if _, err := l.List(context.Background(), "gs://bucket/logs"); err == nil {
		t.Error("listing gs:// without a client succeeded")
	}
}

func TestJoin(t *testing.T) {
	if got := Join("gs://bucket/exp/", "time"); got != "gs://bucket/exp/time" {
		t.Errorf("Join remote = %q", got)
	}
	if got := Join("exp", "time"); got != filepath.Join("exp", "time") {
		t.Errorf("Join local = %q", got)
	}
}

func TestParseGroupSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    GroupSpec
		wantErr bool
	}{
		{in: "wsr_near_far", want: GroupSpec{Label: "wsr_near_far", Dir: "wsr_near_far"}},
		{in: "data/wsr_near_far/", want: GroupSpec{Label: "wsr_near_far", Dir: "data/wsr_near_far/"}},
		{in: "WiSER-X=wsr_near_far", want: GroupSpec{Label: "WiSER-X", Dir: "wsr_near_far"}},
		{in: "Hardware/WiSER-X=gs://b/hw_wsr", want: GroupSpec{Panel: "Hardware", Label: "WiSER-X", Dir: "gs://b/hw_wsr"}},
		{in: "Label=", wantErr: true},
		{in: "Panel/=dir", wantErr: true},
		{in: " ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseGroupSpec(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseGroupSpec(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseGroupSpec(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseGroupSpec(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestPanels(t *testing.T) {
	specs := []GroupSpec{
		{Panel: "Simulation", Label: "a"},
		{Panel: "Hardware", Label: "a"},
		{Panel: "Simulation", Label: "b"},
	}
	if diff := cmp.Diff([]string{"Simulation", "Hardware"}, Panels(specs)); diff != "" {
		t.Errorf("Panels mismatch (-want +got):\n%s", diff)
	}
	if got := InPanel(specs, "Simulation"); len(got) != 2 {
		t.Errorf("InPanel returned %d specs, want 2", len(got))
	}
}

func TestNoiseLabel(t *testing.T) {
	if got := NoiseLabel("30_100"); got != "30 deg, 100 cm" {
		t.Errorf("NoiseLabel = %q", got)
	}
	if got := NoiseLabel("wsr"); got != "wsr" {
		t.Errorf("NoiseLabel = %q", got)
	}
}
