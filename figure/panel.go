package figure

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/wiser-x/exploration-plots/curve"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Dashed is the dash pattern of drop lines and secondary curves.
var Dashed = []vg.Length{vg.Points(6), vg.Points(3)}

// Curve is one aggregate curve of a panel.
type Curve struct {
	Label  string
	Color  color.Color
	Series curve.Series
	// Width overrides the style's line width.
	Width  vg.Length
	Dashes []vg.Length
	// Band shades Mean±Std under the line at BandAlpha opacity.
	Band      bool
	BandAlpha float64
	// EndMarker drops a dashed line from the last point to the x axis and
	// marks the point.
	EndMarker bool
}

// VLine is a vertical reference line, such as the mean failure time.
type VLine struct {
	X      float64
	Label  string
	Color  color.Color
	Dashes []vg.Length
}

// Corner places a panel's legend.
type Corner int

const (
	LowerRight Corner = iota
	UpperLeft
	UpperRight
	LowerLeft
	NoLegend
)

// Panel is one set of axes.
type Panel struct {
	Title  string
	XLabel string
	YLabel string
	Curves []Curve
	VLines []VLine
	// Percent fixes the y axis to 0..100 with a tick every 10.
	Percent bool
	// XMin and XMax fix the x axis when XMax > XMin.
	XMin, XMax float64
	Legend     Corner
}

// percentTicks labels 0, 10, ..., 100 whatever the data range.
type percentTicks struct{}

func (percentTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for v := 0; v <= 100; v += 10 {
		ticks = append(ticks, plot.Tick{Value: float64(v), Label: strconv.Itoa(v)})
		if v < 100 {
			ticks = append(ticks, plot.Tick{Value: float64(v + 5)})
		}
	}
	return ticks
}

func points(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}

// band is the closed polygon between the lower and upper deviation bounds.
func band(s curve.Series) plotter.XYs {
	lower := s.Lower()
	upper := s.Upper()
	n := s.Len()
	pts := make(plotter.XYs, 0, 2*n)
	for i := 0; i < n; i++ {
		pts = append(pts, plotter.XY{X: s.X[i], Y: lower[i]})
	}
	for i := n - 1; i >= 0; i-- {
		pts = append(pts, plotter.XY{X: s.X[i], Y: upper[i]})
	}
	return pts
}

func (c Curve) add(p *plot.Plot, st Style, legend bool) error {
	if c.Series.Len() == 0 {
		return fmt.Errorf("curve %q has no points", c.Label)
	}
	width := c.Width
	if width == 0 {
		width = st.lineWidth()
	}

	if c.Band {
		alpha := c.BandAlpha
		if alpha == 0 {
			alpha = 0.4
		}
		poly, err := plotter.NewPolygon(band(c.Series))
		if err != nil {
			return fmt.Errorf("while drawing the band of %q: %w", c.Label, err)
		}
		poly.Color = WithAlpha(c.Color, alpha)
		poly.LineStyle.Width = 0
		p.Add(poly)
	}

	line, err := plotter.NewLine(points(c.Series.X, c.Series.Mean))
	if err != nil {
		return fmt.Errorf("while drawing %q: %w", c.Label, err)
	}
	line.LineStyle.Color = c.Color
	line.LineStyle.Width = width
	line.LineStyle.Dashes = c.Dashes
	p.Add(line)
	if legend && c.Label != "" {
		p.Legend.Add(c.Label, line)
	}

	if !c.EndMarker {
		return nil
	}
	x, y := c.Series.Last()
	drop, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: y}})
	if err != nil {
		return err
	}
	drop.LineStyle.Color = c.Color
	drop.LineStyle.Width = vg.Points(1.5)
	drop.LineStyle.Dashes = Dashed

	dot, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
	if err != nil {
		return err
	}
	dot.GlyphStyle = draw.GlyphStyle{Color: c.Color, Radius: vg.Points(5), Shape: draw.CircleGlyph{}}
	ring, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
	if err != nil {
		return err
	}
	ring.GlyphStyle = draw.GlyphStyle{Color: colornames.Black, Radius: vg.Points(5), Shape: draw.RingGlyph{}}
	p.Add(drop, dot, ring)
	return nil
}

func (v VLine) add(p *plot.Plot, ymax float64, legend bool) error {
	line, err := plotter.NewLine(plotter.XYs{{X: v.X, Y: 0}, {X: v.X, Y: ymax}})
	if err != nil {
		return fmt.Errorf("while drawing %q: %w", v.Label, err)
	}
	line.LineStyle.Color = v.Color
	if line.LineStyle.Color == nil {
		line.LineStyle.Color = FailurePoint
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Dashes = v.Dashes
	p.Add(line)
	if legend && v.Label != "" {
		p.Legend.Add(v.Label, line)
	}
	return nil
}

// Plot builds the panel's plot.
func (pn Panel) Plot(st Style) (*plot.Plot, error) {
	registerFonts()
	p := plot.New()
	st.apply(p)
	p.Title.Text = pn.Title
	p.X.Label.Text = pn.XLabel
	p.Y.Label.Text = pn.YLabel
	legend := pn.Legend != NoLegend

	if pn.Percent {
		grid := plotter.NewGrid()
		grid.Vertical.Color = nil
		p.Add(grid)
	}

	ymax := 0.0
	for _, c := range pn.Curves {
		if err := c.add(p, st, legend); err != nil {
			return nil, err
		}
		for _, v := range c.Series.Upper() {
			ymax = max(ymax, v)
		}
	}
	if pn.Percent {
		ymax = 100
	}
	for _, v := range pn.VLines {
		if err := v.add(p, ymax, legend); err != nil {
			return nil, err
		}
	}

	if pn.Percent {
		p.Y.Min, p.Y.Max = 0, 100
		p.Y.Tick.Marker = percentTicks{}
	}
	if pn.XMax > pn.XMin {
		p.X.Min, p.X.Max = pn.XMin, pn.XMax
	}

	switch pn.Legend {
	case UpperLeft:
		p.Legend.Top, p.Legend.Left = true, true
	case UpperRight:
		p.Legend.Top = true
	case LowerLeft:
		p.Legend.Left = true
	}
	p.Legend.Padding = vg.Points(5)
	return p, nil
}
