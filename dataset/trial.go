package dataset

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Sample is one logged (time, value) pair.
type Sample struct {
	Time  float64
	Value float64
}

// Trial is one experiment run read from a single log file, in log order.
type Trial struct {
	Name    string
	Samples []Sample
}

// TrialFromTable pairs timeCol and valueCol of t row by row.
func TrialFromTable(t *Table, timeCol, valueCol string) (Trial, error) {
	times, err := t.Floats(timeCol)
	if err != nil {
		return Trial{}, err
	}
	values, err := t.Floats(valueCol)
	if err != nil {
		return Trial{}, err
	}
	samples := make([]Sample, len(times))
	for i := range times {
		samples[i] = Sample{Time: times[i], Value: values[i]}
	}
	return Trial{Name: t.Name, Samples: samples}, nil
}

// Times returns the sample times.
func (tr Trial) Times() []float64 {
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Time
	}
	return out
}

// Values returns the sample values.
func (tr Trial) Values() []float64 {
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Value
	}
	return out
}

// Last is the final logged sample. It panics on an empty trial.
func (tr Trial) Last() Sample {
	return tr.Samples[len(tr.Samples)-1]
}

// MaxTime is the largest logged time, which is where the run terminated.
func (tr Trial) MaxTime() float64 {
	max := tr.Samples[0].Time
	for _, s := range tr.Samples[1:] {
		if s.Time > max {
			max = s.Time
		}
	}
	return max
}

// Group is every trial of one experimental condition.
type Group struct {
	Panel  string
	Label  string
	Dir    string
	Trials []Trial
}

// GroupSpec names a condition on the command line: "[Panel/]Label=dir" or
// just "dir", in which case the label is the directory's base name.
type GroupSpec struct {
	Panel string
	Label string
	Dir   string
}

func (g GroupSpec) String() string {
	s := g.Label + "=" + g.Dir
	if g.Panel != "" {
		s = g.Panel + "/" + s
	}
	return s
}

// ParseGroupSpec parses a GroupSpec. A panel is only recognised in front of
// an explicit label, so directories containing '/' stay intact.
func ParseGroupSpec(s string) (GroupSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return GroupSpec{}, fmt.Errorf("empty group")
	}
	name, dir, ok := strings.Cut(s, "=")
	if !ok {
		return GroupSpec{Label: path.Base(strings.TrimRight(s, "/")), Dir: s}, nil
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return GroupSpec{}, fmt.Errorf("group %q: empty directory", s)
	}
	spec := GroupSpec{Label: strings.TrimSpace(name), Dir: dir}
	if panel, label, ok := strings.Cut(spec.Label, "/"); ok {
		spec.Panel = strings.TrimSpace(panel)
		spec.Label = strings.TrimSpace(label)
	}
	if spec.Label == "" {
		return GroupSpec{}, fmt.Errorf("group %q: empty label", s)
	}
	return spec, nil
}

// Panels returns the distinct panel names of specs in first-seen order.
func Panels(specs []GroupSpec) []string {
	var panels []string
	seen := make(map[string]bool)
	for _, s := range specs {
		if !seen[s.Panel] {
			seen[s.Panel] = true
			panels = append(panels, s.Panel)
		}
	}
	return panels
}

// InPanel filters specs down to one panel.
func InPanel(specs []GroupSpec, panel string) []GroupSpec {
	var out []GroupSpec
	for _, s := range specs {
		if s.Panel == panel {
			out = append(out, s)
		}
	}
	return out
}

var noiseDirRe = regexp.MustCompile(`^(\d+)_(\d+)$`)

// NoiseLabel turns a noise-level directory name such as "2_1" (angle noise in
// degrees, range noise in centimetres) into "2 deg, 1 cm".
func NoiseLabel(name string) string {
	m := noiseDirRe.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return fmt.Sprintf("%s deg, %s cm", m[1], m[2])
}
