// Package figure draws the paper's coverage curves and bar charts with
// gonum/plot and writes them to local files or Cloud Storage.
package figure

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/go-fonts/liberation/liberationmonobold"
	"github.com/go-fonts/liberation/liberationmonoregular"
	"github.com/go-fonts/liberation/liberationsansbold"
	"github.com/go-fonts/liberation/liberationsansregular"
	"github.com/go-fonts/liberation/liberationserifbold"
	"github.com/go-fonts/liberation/liberationserifregular"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Typeface is the family every figure is set in. Its serif variant is
// metric-compatible with Times New Roman.
const Typeface = "Liberation"

var registerOnce sync.Once

// registerFonts adds the regular and bold Liberation faces to the font
// cache and makes the serif face the default.
func registerFonts() {
	registerOnce.Do(func() {
		faces := []struct {
			variant string
			weight  xfont.Weight
			ttf     []byte
		}{
			{"Serif", xfont.WeightNormal, liberationserifregular.TTF},
			{"Serif", xfont.WeightBold, liberationserifbold.TTF},
			{"Sans", xfont.WeightNormal, liberationsansregular.TTF},
			{"Sans", xfont.WeightBold, liberationsansbold.TTF},
			{"Mono", xfont.WeightNormal, liberationmonoregular.TTF},
			{"Mono", xfont.WeightBold, liberationmonobold.TTF},
		}
		var coll font.Collection
		for _, f := range faces {
			ttf, err := opentype.Parse(f.ttf)
			if err != nil {
				panic(fmt.Errorf("parsing Liberation %s: %w", f.variant, err))
			}
			coll = append(coll, font.Face{
				Font: font.Font{Typeface: Typeface, Variant: font.Variant(f.variant), Weight: f.weight},
				Face: ttf,
			})
		}
		font.DefaultCache.Add(coll)

		serif := font.Font{Typeface: Typeface, Variant: "Serif"}
		plot.DefaultFont = serif
		plotter.DefaultFont = serif
	})
}

// Style sets the type and line weights shared by all panels of a figure.
type Style struct {
	// FontSize in points.
	FontSize float64
	// LineWidth of curves in points.
	LineWidth float64
	// Variant of the Liberation family: Serif, Sans or Mono.
	Variant string
	// Colors overrides the colour of the labelled curves and bars.
	Colors map[string]color.Color
}

func DefaultStyle() Style {
	return Style{FontSize: 11, LineWidth: 3, Variant: "Serif"}
}

func (s Style) font(scale float64) font.Font {
	registerFonts()
	v := s.Variant
	if v == "" {
		v = "Serif"
	}
	size := s.FontSize
	if size <= 0 {
		size = 11
	}
	return font.Font{Typeface: Typeface, Variant: font.Variant(v), Size: vg.Points(size * scale)}
}

func (s Style) lineWidth() vg.Length {
	if s.LineWidth <= 0 {
		return vg.Points(3)
	}
	return vg.Points(s.LineWidth)
}

// apply sets the fonts of every text element of p.
func (s Style) apply(p *plot.Plot) {
	p.Title.TextStyle.Font = s.font(1.2)
	p.X.Label.TextStyle.Font = s.font(1)
	p.Y.Label.TextStyle.Font = s.font(1)
	p.X.Tick.Label.Font = s.font(0.9)
	p.Y.Tick.Label.Font = s.font(0.9)
	p.Legend.TextStyle.Font = s.font(0.8)
}

// Color returns the colour of the i-th series labelled label.
func (s Style) Color(label string, i int) color.Color {
	if c, ok := s.Colors[label]; ok {
		return c
	}
	return ColorFor(label, i)
}

// Palette is the paper's colour cycle.
var Palette = []color.Color{
	mustHex("#CD797D"),
	mustHex("#6E954B"),
	mustHex("#5B838F"),
	mustHex("#884E6D"),
	mustHex("#F6B379"),
	mustHex("#A1C185"),
	mustHex("#F5D787"),
}

// FailurePoint marks the mean time a robot failed.
var FailurePoint = mustHex("#F2CC8F")

// conditionColors keeps every condition in the colour the paper uses for it
// whatever order it is plotted in. Keys are normalized label prefixes.
var conditionColors = []struct {
	prefix string
	color  color.Color
}{
	{"baseline1", Palette[0]},
	{"baseline2", Palette[2]},
	{"wiserx", Palette[1]},
	{"wsr", Palette[1]},
	{"ablationnobeta", Palette[0]},
	{"ablationnoviewpoints", Palette[2]},
	{"ablationneither", Palette[1]},
	{"divideandconquer", Palette[0]},
}

func normalize(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', ':', ',':
			return -1
		}
		return r
	}, strings.ToLower(label))
}

// ColorFor returns the paper colour of a known condition and otherwise the
// i-th palette entry.
func ColorFor(label string, i int) color.Color {
	n := normalize(label)
	for _, c := range conditionColors {
		if strings.HasPrefix(n, c.prefix) {
			return c.color
		}
	}
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// ParseHexColor parses #RRGGBB or #RRGGBBAA.
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q, want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func mustHex(s string) color.Color {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// WithAlpha returns c at the given opacity in [0, 1].
func WithAlpha(c color.Color, alpha float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(alpha*255 + 0.5)
	return n
}
