package figure

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Bar is one bar with its error whisker.
type Bar struct {
	Label string
	Value float64
	Err   float64
	// Color defaults to the style colour of Label.
	Color color.Color
}

// BarPanel is a bar chart of one quantity across conditions.
type BarPanel struct {
	Title  string
	XLabel string
	YLabel string
	Bars   []Bar
	// Horizontal lays bars along the y axis, first bar at the top.
	Horizontal bool
	// Decimals of the value printed next to each bar; negative hides it.
	Decimals int
}

type errPoints struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

// Plot builds the bar chart.
func (bp BarPanel) Plot(st Style) (*plot.Plot, error) {
	if len(bp.Bars) == 0 {
		return nil, fmt.Errorf("bar chart %q has no bars", bp.Title)
	}
	registerFonts()
	p := plot.New()
	st.apply(p)
	p.Title.Text = bp.Title
	p.X.Label.Text = bp.XLabel
	p.Y.Label.Text = bp.YLabel

	n := len(bp.Bars)
	names := make([]string, n)
	pts := errPoints{
		XYs:     make(plotter.XYs, n),
		XErrors: make(plotter.XErrors, n),
		YErrors: make(plotter.YErrors, n),
	}
	labels := plotter.XYLabels{XYs: make(plotter.XYs, n), Labels: make([]string, n)}
	width := vg.Points(40)
	for i, b := range bp.Bars {
		// Horizontal charts count positions upwards; keep the first bar on top.
		pos := float64(i)
		if bp.Horizontal {
			pos = float64(n - 1 - i)
		}

		chart, err := plotter.NewBarChart(plotter.Values{b.Value}, width)
		if err != nil {
			return nil, fmt.Errorf("while drawing bar %q: %w", b.Label, err)
		}
		chart.Horizontal = bp.Horizontal
		chart.XMin = pos
		chart.Color = b.Color
		if chart.Color == nil {
			chart.Color = st.Color(b.Label, i)
		}
		chart.LineStyle.Width = 0
		p.Add(chart)

		if bp.Horizontal {
			names[n-1-i] = b.Label
			pts.XYs[i] = plotter.XY{X: b.Value, Y: pos}
			pts.XErrors[i].Low, pts.XErrors[i].High = b.Err, b.Err
			labels.XYs[i] = plotter.XY{X: b.Value + b.Err, Y: pos}
		} else {
			names[i] = b.Label
			pts.XYs[i] = plotter.XY{X: pos, Y: b.Value}
			pts.YErrors[i].Low, pts.YErrors[i].High = b.Err, b.Err
			labels.XYs[i] = plotter.XY{X: pos, Y: b.Value + b.Err}
		}
		if bp.Decimals >= 0 {
			labels.Labels[i] = strconv.FormatFloat(b.Value, 'f', bp.Decimals, 64)
		}
	}

	if bp.Horizontal {
		bars, err := plotter.NewXErrorBars(pts)
		if err != nil {
			return nil, err
		}
		p.Add(bars)
		p.NominalY(names...)
	} else {
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, err
		}
		p.Add(bars)
		p.NominalX(names...)
	}

	if bp.Decimals >= 0 {
		values, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, err
		}
		if bp.Horizontal {
			values.Offset = vg.Point{X: vg.Points(4), Y: -vg.Points(4)}
		} else {
			values.Offset = vg.Point{X: -vg.Points(8), Y: vg.Points(4)}
		}
		p.Add(values)
	}
	return p, nil
}
