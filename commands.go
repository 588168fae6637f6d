package main

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/wiser-x/exploration-plots/analysis"
	"github.com/wiser-x/exploration-plots/dataset"
	"github.com/wiser-x/exploration-plots/figure"
	"github.com/wiser-x/exploration-plots/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/image/colornames"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

const (
	xTime     = "Time Elapsed (s)"
	yCoverage = "Map Coverage Percent"
	xCoverage = "Total Map Coverage Percent"
	yOverlap  = "Average Coverage Overlap (%)"
	yMerged   = "Merged Map Coverage Percent"
)

func groupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "group",
			Aliases:  []string{"g"},
			Usage:    "Condition as [Panel/]Label=dir or dir; repeat for every condition. Panels are drawn side by side.",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "time-subdir",
			Value: "time",
			Usage: "Sub-directory of every condition holding coverage-over-time logs; empty for the directory itself.",
		},
		&cli.StringFlag{
			Name:  "ext",
			Value: dataset.DefaultExt,
			Usage: "Extension of log files.",
		},
		&cli.IntFlag{
			Name:  "skip",
			Usage: "Drop the first N logs of every directory, in run-number order.",
		},
		&cli.StringFlag{
			Name:  "reference",
			Usage: "Label of the condition the others are compared with.",
		},
	}
}

func overlapFlags() []cli.Flag {
	d := analysis.DefaultOverlapOptions()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "overlap-subdir",
			Value: "coverage",
			Usage: "Sub-directory of every condition holding coverage-overlap logs.",
		},
		&cli.Float64Flag{
			Name:  "floor",
			Value: d.Floor,
			Usage: "Overlap logged at or below zero is raised to this value.",
		},
	}
}

func binFlags() []cli.Flag {
	d := analysis.DefaultBinRange()
	return []cli.Flag{
		&cli.Float64Flag{Name: "lo", Value: d.Lo, Usage: "Lowest coverage kept."},
		&cli.Float64Flag{Name: "hi", Value: d.Hi, Usage: "Highest coverage kept."},
	}
}

func outputFlags(defaultOut string) []cli.Flag {
	st := figure.DefaultStyle()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Value:   defaultOut,
			Usage:   "Figure path, local or gs://bucket/object.",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Figure format (" + strings.Join(figure.Formats, ", ") + "); defaults to the extension of --out.",
		},
		&cli.Float64Flag{Name: "width", Value: 10, Usage: "Width of every panel in inches."},
		&cli.Float64Flag{Name: "height", Value: 6, Usage: "Height of the figure in inches."},
		&cli.Float64Flag{Name: "font-size", Value: st.FontSize, Usage: "Font size in points."},
		&cli.Float64Flag{Name: "line-width", Value: st.LineWidth, Usage: "Curve width in points."},
		&cli.StringFlag{Name: "font-variant", Value: st.Variant, Usage: "Liberation variant: Serif, Sans or Mono."},
		&cli.StringFlag{Name: "title", Usage: "Title of a figure without named panels."},
		&cli.StringFlag{Name: "legend", Value: "upper-left", Usage: "Legend corner: upper-left, upper-right, lower-left, lower-right or none."},
		&cli.StringSliceFlag{Name: "color", Usage: "Colour override as Label=#RRGGBB; repeatable."},
	}
}

func concat(sets ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

func (a *app) commands() []*cli.Command {
	td := analysis.DefaultTimeOptions()
	od := analysis.DefaultOverlapOptions()
	sd := analysis.DefaultSlowOptions()
	fd := analysis.DefaultFailureOptions()
	return []*cli.Command{
		{
			Name:  "time",
			Usage: "Mean coverage over time per condition, cut at the mean termination coverage.",
			Flags: concat(groupFlags(), outputFlags("time.png"), []cli.Flag{
				&cli.IntFlag{Name: "points", Value: td.Points, Usage: "Grid points between 0 and the mean termination time."},
				&cli.Float64Flag{Name: "coverage-cap", Value: td.CoverageCap, Usage: "Highest coverage a curve is cut at."},
			}),
			Action: a.traced("time", a.timeAction),
		},
		{
			Name:  "overlap",
			Usage: "Mean coverage overlap against mean coverage per condition.",
			Flags: concat(groupFlags(), overlapFlags(), outputFlags("overlap.png"), []cli.Flag{
				&cli.IntFlag{Name: "points", Value: od.Points, Usage: "Grid points between 0 and the last logged time."},
				&cli.Float64Flag{Name: "cap", Value: od.Cap, Usage: "Highest overlap drawn."},
			}),
			Action: a.traced("overlap", a.overlapAction),
		},
		{
			Name:   "overlap-binned",
			Usage:  "Overlap pooled over all runs and averaged per rounded coverage.",
			Flags:  concat(groupFlags(), overlapFlags(), binFlags(), outputFlags("overlap_binned.png")),
			Action: a.traced("overlap-binned", a.overlapBinnedAction),
		},
		{
			Name:   "time-binned",
			Usage:  "Coverage pooled over all runs and averaged per rounded second.",
			Flags:  concat(groupFlags(), binFlags(), outputFlags("time_binned.png")),
			Action: a.traced("time-binned", a.timeBinnedAction),
		},
		{
			Name:   "trials",
			Usage:  "Every run of a condition with their average, one panel per condition.",
			Flags:  concat(groupFlags(), outputFlags("trials.png")),
			Action: a.traced("trials", a.trialsAction),
		},
		{
			Name:   "noise",
			Usage:  "Coverage over time and at termination under varying sensor noise.",
			Flags:  concat(groupFlags(), outputFlags("noise.png")),
			Action: a.traced("noise", a.noiseAction),
		},
		{
			Name:  "slow",
			Usage: "Team exploration with one slow robot against divide-and-conquer.",
			Flags: concat(outputFlags("slow.png"), []cli.Flag{
				&cli.StringFlag{Name: "team", Required: true, Usage: "Team condition as Label=dir."},
				&cli.StringSliceFlag{Name: "region", Required: true, Usage: "Divide-and-conquer region as Label=dir; repeat for every region."},
				&cli.StringFlag{Name: "baseline-label", Value: "Divide-and-Conquer", Usage: "Label of the divide-and-conquer curve."},
				&cli.StringFlag{Name: "time-subdir", Value: "time", Usage: "Sub-directory holding the logs."},
				&cli.StringFlag{Name: "ext", Value: dataset.DefaultExt, Usage: "Extension of log files."},
				&cli.IntFlag{Name: "skip", Usage: "Drop the first N logs of every directory, in run-number order."},
				&cli.Float64Flag{Name: "threshold", Value: sd.Threshold, Usage: "Coverage a run ends at."},
				&cli.Float64Flag{Name: "scale-max", Value: sd.ScaleMax, Usage: "Rescale the divide-and-conquer curve to peak here; 0 keeps it."},
			}),
			Action: a.traced("slow", a.slowAction),
		},
		{
			Name:  "failure",
			Usage: "Coverage recovery after one robot fails mid-run.",
			Flags: concat(groupFlags(), outputFlags("failure.png"), []cli.Flag{
				&cli.StringFlag{Name: "main-subdir", Value: "main", Usage: "Sub-directory holding the team logs."},
				&cli.StringFlag{Name: "failure-subdir", Value: "failure", Usage: "Sub-directory holding the failure logs."},
				&cli.StringFlag{Name: "failure-column", Usage: "Failure coverage column; defaults to the column ending in '" + dataset.FailureColumnSuffix + "'."},
				&cli.StringFlag{Name: "robots", Value: strings.Join(fd.Robots, ","), Usage: "Comma separated robots whose failure row counts."},
				&cli.Float64Flag{Name: "cutoff", Value: fd.Cutoff, Usage: "Logged times at or after this are ignored."},
			}),
			Action: a.traced("failure", a.failureAction),
		},
		{
			Name:  "compare",
			Usage: "Bar chart of mean termination time or final coverage per condition.",
			Flags: concat(groupFlags(), outputFlags("compare.png"), []cli.Flag{
				&cli.StringFlag{Name: "metric", Value: string(analysis.MetricTime), Usage: "time or coverage."},
			}),
			Action: a.traced("compare", a.compareAction),
		},
		{
			Name:  "summary",
			Usage: "Print termination statistics per condition.",
			Flags: concat(groupFlags(), []cli.Flag{
				&cli.StringFlag{Name: "csv", Usage: "Also write the statistics as CSV to this path, local or gs://."},
			}),
			Action: a.traced("summary", a.summaryAction),
		},
	}
}

// traced runs action inside a span named after the command.
func (a *app) traced(name string, action cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, span := tracer().Start(c.Context, "covplot "+name)
		defer span.End()
		c.Context = ctx
		a.loader.Ext = c.String("ext")
		a.loader.Skip = c.Int("skip")
		if err := action(c); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		return nil
	}
}

func parseSpecs(values []string) ([]dataset.GroupSpec, error) {
	specs := make([]dataset.GroupSpec, 0, len(values))
	for _, v := range values {
		s, err := dataset.ParseGroupSpec(v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// specs parses --group and connects to Cloud Storage when a condition
// lives there.
func (a *app) specs(c *cli.Context) ([]dataset.GroupSpec, error) {
	specs, err := parseSpecs(c.StringSlice("group"))
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no --group given")
	}
	if err := a.connect(c, specs...); err != nil {
		return nil, err
	}
	return specs, nil
}

func (a *app) connect(c *cli.Context, specs ...dataset.GroupSpec) error {
	for _, s := range specs {
		if dataset.IsRemote(s.Dir) {
			_, err := a.storageClient(c)
			return err
		}
	}
	return nil
}

func subdir(dir, sub string) string {
	if sub == "" {
		return dir
	}
	return dataset.Join(dir, sub)
}

// loadGroups reads the trials of every condition concurrently. Groups come
// back in spec order.
func (a *app) loadGroups(c *cli.Context, specs []dataset.GroupSpec, sub, timeCol, valueCol string) ([]dataset.Group, error) {
	groups := make([]dataset.Group, len(specs))
	eG, ctx := errgroup.WithContext(c.Context)
	for i, s := range specs {
		i, s := i, s
		eG.Go(func() error {
			ctx, span := tracer().Start(ctx, "load "+s.Label)
			defer span.End()
			dir := subdir(s.Dir, sub)
			span.SetAttributes(attribute.String("dir", dir))

			trials, err := a.loader.ReadTrials(ctx, dir, timeCol, valueCol)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("while loading %s: %w", s, err)
			}
			countTrials(ctx, s.Label, len(trials))
			log.Infof("Loaded %d trials of %s from %s", len(trials), s.Label, dir)
			groups[i] = dataset.Group{Panel: s.Panel, Label: s.Label, Dir: s.Dir, Trials: trials}
			return nil
		})
	}
	if err := eG.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// loadTables reads every log of every condition concurrently.
func (a *app) loadTables(c *cli.Context, specs []dataset.GroupSpec, sub string) ([][]*dataset.Table, error) {
	tables := make([][]*dataset.Table, len(specs))
	eG, ctx := errgroup.WithContext(c.Context)
	for i, s := range specs {
		i, s := i, s
		eG.Go(func() error {
			ctx, span := tracer().Start(ctx, "load "+s.Label)
			defer span.End()
			dir := subdir(s.Dir, sub)
			t, err := a.loader.ReadDir(ctx, dir)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("while loading %s: %w", s, err)
			}
			countTrials(ctx, s.Label, len(t))
			tables[i] = t
			return nil
		})
	}
	if err := eG.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

type panelGroups struct {
	name   string
	groups []int
}

// byPanel indexes groups by panel in first-seen order.
func byPanel(groups []dataset.Group) []panelGroups {
	var out []panelGroups
	index := make(map[string]int)
	for i, g := range groups {
		j, ok := index[g.Panel]
		if !ok {
			j = len(out)
			index[g.Panel] = j
			out = append(out, panelGroups{name: g.Panel})
		}
		out[j].groups = append(out[j].groups, i)
	}
	return out
}

// output is where and how a command draws its figure.
type output struct {
	path   string
	format string
	width  vg.Length
	height vg.Length
	title  string
	legend figure.Corner
	style  figure.Style
}

func parseCorner(s string) (figure.Corner, error) {
	switch s {
	case "upper-left":
		return figure.UpperLeft, nil
	case "upper-right":
		return figure.UpperRight, nil
	case "lower-left":
		return figure.LowerLeft, nil
	case "lower-right":
		return figure.LowerRight, nil
	case "none":
		return figure.NoLegend, nil
	}
	return 0, fmt.Errorf("unknown legend corner %q", s)
}

func outputFrom(c *cli.Context) (output, error) {
	o := output{
		path:   c.String("out"),
		format: c.String("format"),
		width:  vg.Length(c.Float64("width")) * vg.Inch,
		height: vg.Length(c.Float64("height")) * vg.Inch,
		title:  c.String("title"),
		style: figure.Style{
			FontSize:  c.Float64("font-size"),
			LineWidth: c.Float64("line-width"),
			Variant:   c.String("font-variant"),
			Colors:    make(map[string]color.Color),
		},
	}
	var err error
	if o.legend, err = parseCorner(c.String("legend")); err != nil {
		return o, err
	}
	for _, v := range c.StringSlice("color") {
		label, hex, ok := strings.Cut(v, "=")
		if !ok {
			return o, fmt.Errorf("colour %q: want Label=#RRGGBB", v)
		}
		col, err := figure.ParseHexColor(hex)
		if err != nil {
			return o, err
		}
		o.style.Colors[strings.TrimSpace(label)] = col
	}
	return o, nil
}

func (o output) panelTitle(panel string) string {
	if panel != "" {
		return panel
	}
	return o.title
}

func (a *app) save(c *cli.Context, o output, plots ...*plot.Plot) error {
	ctx, span := tracer().Start(c.Context, "render")
	defer span.End()
	span.SetAttributes(attribute.String("out", o.path))

	var client *storage.Client
	if dataset.IsRemote(o.path) {
		var err error
		if client, err = a.storageClient(c); err != nil {
			return err
		}
	}
	return figure.Save(ctx, client, o.path, o.format, o.width*vg.Length(len(plots)), o.height, plots...)
}

// curves turns group curves into banded figure curves, skipping empty ones.
func curves(st figure.Style, gcs []analysis.GroupCurve, bandAlpha float64, endMarker bool) []figure.Curve {
	out := make([]figure.Curve, 0, len(gcs))
	for i, gc := range gcs {
		if gc.Series.Len() == 0 {
			log.Warnf("%s: nothing left to draw", gc.Label)
			continue
		}
		out = append(out, figure.Curve{
			Label:     gc.Label,
			Color:     st.Color(gc.Label, i),
			Series:    gc.Series,
			Band:      true,
			BandAlpha: bandAlpha,
			EndMarker: endMarker,
		})
	}
	return out
}

func printComparisons(w io.Writer, reference string, gcs []analysis.GroupCurve) error {
	if reference == "" {
		return nil
	}
	var ref *analysis.GroupCurve
	for i := range gcs {
		if gcs[i].Label == reference {
			ref = &gcs[i]
		}
	}
	if ref == nil {
		log.Warnf("reference %q not among %d conditions, skipping comparison", reference, len(gcs))
		return nil
	}
	for _, gc := range gcs {
		if gc.Label == reference {
			continue
		}
		cmp, err := analysis.CompareTermination(*ref, gc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s terminates %.2f%% earlier than %s (%s is %.2f%% earlier), speedup %.2fx over %d runs\n",
			cmp.Reference, cmp.ReferenceEarlier, cmp.Other, cmp.Other, cmp.OtherEarlier, cmp.Speedup, cmp.Pairs)
	}
	return nil
}

func (a *app) timeAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	groups, err := a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}
	opts := analysis.TimeOptions{Points: c.Int("points"), CoverageCap: c.Float64("coverage-cap")}

	w := c.App.Writer
	var plots []*plot.Plot
	for _, pg := range byPanel(groups) {
		var gcs []analysis.GroupCurve
		for _, i := range pg.groups {
			gc, err := analysis.TimeCoverage(groups[i], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: average termination time %.2f s, termination coverage %.2f%%\n",
				gc.Label, gc.MeanTermination, gc.TerminationValue)
			gcs = append(gcs, gc)
		}
		if err := printComparisons(w, c.String("reference"), gcs); err != nil {
			return err
		}
		p, err := figure.Panel{
			Title:   o.panelTitle(pg.name),
			XLabel:  xTime,
			YLabel:  yCoverage,
			Curves:  curves(o.style, gcs, 0.4, true),
			Percent: true,
			Legend:  o.legend,
		}.Plot(o.style)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	return a.save(c, o, plots...)
}

// loadOverlap loads the time and overlap logs of every condition.
func (a *app) loadOverlap(c *cli.Context, specs []dataset.GroupSpec) (times, overlaps []dataset.Group, err error) {
	times, err = a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return nil, nil, err
	}
	overlaps, err = a.loadGroups(c, specs, c.String("overlap-subdir"), dataset.ColOverlapTime, dataset.ColOverlap)
	if err != nil {
		return nil, nil, err
	}
	return times, overlaps, nil
}

func (a *app) overlapPlots(c *cli.Context, o output, build func(t, ov dataset.Group) (analysis.GroupCurve, error)) ([]*plot.Plot, error) {
	specs, err := a.specs(c)
	if err != nil {
		return nil, err
	}
	times, overlaps, err := a.loadOverlap(c, specs)
	if err != nil {
		return nil, err
	}

	w := c.App.Writer
	var plots []*plot.Plot
	for _, pg := range byPanel(times) {
		var gcs []analysis.GroupCurve
		for _, i := range pg.groups {
			gc, err := build(times[i], overlaps[i])
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(w, "%s: termination overlap %.2f%%\n", gc.Label, gc.TerminationValue)
			gcs = append(gcs, gc)
		}
		if ref := c.String("reference"); ref != "" {
			for _, gc := range gcs {
				if gc.Label != ref {
					continue
				}
				for _, d := range analysis.TerminationDifferences(gc, gcs) {
					fmt.Fprintf(w, "%s - %s termination overlap: %.2f\n", d.Reference, d.Other, d.Value)
				}
			}
		}
		p, err := figure.Panel{
			Title:   o.panelTitle(pg.name),
			XLabel:  xCoverage,
			YLabel:  yOverlap,
			Curves:  curves(o.style, gcs, 0.4, true),
			Percent: true,
			XMin:    0,
			XMax:    100,
			Legend:  o.legend,
		}.Plot(o.style)
		if err != nil {
			return nil, err
		}
		plots = append(plots, p)
	}
	return plots, nil
}

func (a *app) overlapAction(c *cli.Context) error {
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	opts := analysis.OverlapOptions{Points: c.Int("points"), Floor: c.Float64("floor"), Cap: c.Float64("cap")}
	plots, err := a.overlapPlots(c, o, func(t, ov dataset.Group) (analysis.GroupCurve, error) {
		return analysis.Overlap(t.Label, t.Trials, ov.Trials, opts)
	})
	if err != nil {
		return err
	}
	return a.save(c, o, plots...)
}

func (a *app) overlapBinnedAction(c *cli.Context) error {
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	r := analysis.BinRange{Lo: c.Float64("lo"), Hi: c.Float64("hi")}
	floor := c.Float64("floor")
	plots, err := a.overlapPlots(c, o, func(t, ov dataset.Group) (analysis.GroupCurve, error) {
		return analysis.OverlapBinned(t.Label, t.Trials, ov.Trials, floor, r)
	})
	if err != nil {
		return err
	}
	return a.save(c, o, plots...)
}

func (a *app) timeBinnedAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	groups, err := a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}
	r := analysis.BinRange{Lo: c.Float64("lo"), Hi: c.Float64("hi")}

	var plots []*plot.Plot
	for _, pg := range byPanel(groups) {
		var gcs []analysis.GroupCurve
		for _, i := range pg.groups {
			gc, err := analysis.TimeBinned(groups[i], r)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: average termination time %.2f s\n", gc.Label, gc.MeanTermination)
			gcs = append(gcs, gc)
		}
		if err := printComparisons(c.App.Writer, c.String("reference"), gcs); err != nil {
			return err
		}
		p, err := figure.Panel{
			Title:   o.panelTitle(pg.name),
			XLabel:  xTime,
			YLabel:  yCoverage,
			Curves:  curves(o.style, gcs, 0.4, false),
			Percent: true,
			Legend:  o.legend,
		}.Plot(o.style)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	return a.save(c, o, plots...)
}

func (a *app) trialsAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	groups, err := a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}

	var plots []*plot.Plot
	for _, g := range groups {
		ov, err := analysis.TrialOverlay(g)
		if err != nil {
			return err
		}
		var cs []figure.Curve
		for i, tr := range ov.Trials {
			cs = append(cs, figure.Curve{
				Label:  fmt.Sprintf("Trial %d", i+1),
				Color:  figure.WithAlpha(figure.Palette[i%len(figure.Palette)], 0.5),
				Series: analysis.TrialSeries(tr),
				Width:  vg.Points(2),
			})
		}
		cs = append(cs, figure.Curve{
			Label:  "Average",
			Color:  colornames.Black,
			Series: ov.Average,
			Dashes: figure.Dashed,
		})
		title := g.Label + " Map Coverage Percent Over Time"
		if o.title != "" {
			title = o.title
		}
		p, err := figure.Panel{
			Title:   title,
			XLabel:  xTime,
			YLabel:  yCoverage,
			Curves:  cs,
			Percent: true,
			Legend:  o.legend,
		}.Plot(o.style)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	return a.save(c, o, plots...)
}

func toBars(bars []analysis.Bar) []figure.Bar {
	out := make([]figure.Bar, len(bars))
	for i, b := range bars {
		out[i] = figure.Bar{Label: b.Label, Value: b.Value, Err: b.Err}
	}
	return out
}

func (a *app) noiseAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	for i := range specs {
		specs[i].Label = dataset.NoiseLabel(specs[i].Label)
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	groups, err := a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}

	var gcs []analysis.GroupCurve
	for _, g := range groups {
		gc, err := analysis.NoiseCurve(g)
		if err != nil {
			return err
		}
		gcs = append(gcs, gc)
	}
	bars, err := analysis.NoiseBars(groups)
	if err != nil {
		return err
	}
	for _, b := range bars {
		fmt.Fprintf(c.App.Writer, "%s: coverage at termination %.2f%% (std %.2f)\n", b.Label, b.Value, b.Err)
	}

	title := o.title
	if title == "" {
		title = "Coverage Over Time with Varying Noise"
	}
	curvePanel, err := figure.Panel{
		Title:   title,
		XLabel:  xTime,
		YLabel:  yMerged,
		Curves:  curves(o.style, gcs, 0.2, true),
		Percent: true,
		Legend:  o.legend,
	}.Plot(o.style)
	if err != nil {
		return err
	}
	barPanel, err := figure.BarPanel{
		Title:    "Map Coverage at Termination Time",
		XLabel:   "Noise Level",
		YLabel:   yMerged + " at Termination",
		Bars:     toBars(bars),
		Decimals: 1,
	}.Plot(o.style)
	if err != nil {
		return err
	}
	return a.save(c, o, curvePanel, barPanel)
}

func (a *app) slowAction(c *cli.Context) error {
	team, err := dataset.ParseGroupSpec(c.String("team"))
	if err != nil {
		return err
	}
	regions, err := parseSpecs(c.StringSlice("region"))
	if err != nil {
		return err
	}
	if err := a.connect(c, append([]dataset.GroupSpec{team}, regions...)...); err != nil {
		return err
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}

	sub := c.String("time-subdir")
	teams, err := a.loadGroups(c, []dataset.GroupSpec{team}, sub, dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}
	regionGroups, err := a.loadGroups(c, regions, sub, dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}

	opts := analysis.SlowOptions{Threshold: c.Float64("threshold"), ScaleMax: c.Float64("scale-max")}
	res, err := analysis.SlowExplorer(teams[0], opts)
	if err != nil {
		return err
	}
	base, err := analysis.DivideAndConquer(c.String("baseline-label"), regionGroups, opts)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Standard deviation of termination coverage for %s: %.2f\n", res.Label, res.TerminationCoverageStd)
	for _, gc := range []analysis.GroupCurve{base, res.GroupCurve} {
		fmt.Fprintf(w, "%s: average termination time %d s, coverage %.2f%%\n", gc.Label, int(gc.MeanTermination), gc.TerminationValue)
	}

	p, err := figure.Panel{
		Title:   o.title,
		XLabel:  xTime,
		YLabel:  "Coverage Percent",
		Curves:  curves(o.style, []analysis.GroupCurve{base, res.GroupCurve}, 0.4, true),
		Percent: true,
		Legend:  o.legend,
	}.Plot(o.style)
	if err != nil {
		return err
	}
	return a.save(c, o, p)
}

func (a *app) failureAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	logs, err := a.loadTables(c, specs, c.String("main-subdir"))
	if err != nil {
		return err
	}
	failures, err := a.loadTables(c, specs, c.String("failure-subdir"))
	if err != nil {
		return err
	}

	opts := analysis.FailureOptions{
		Column: c.String("failure-column"),
		Cutoff: c.Float64("cutoff"),
	}
	for _, r := range strings.Split(c.String("robots"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			opts.Robots = append(opts.Robots, r)
		}
	}

	w := c.App.Writer
	var gcs []analysis.GroupCurve
	var vlines []figure.VLine
	xmax := 0.0
	for i, s := range specs {
		res, err := analysis.FailureRecovery(s.Label, logs[i], failures[i], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s average terminating merged coverage: %.2f%%\n", s.Label, res.TerminatingMerged)
		fmt.Fprintf(w, "%s average termination time: %.2f s\n", s.Label, res.MeanTermination)
		fmt.Fprintf(w, "%s average failure at %.2f%% coverage after %.2f s\n", s.Label, res.FailureCoverage, res.FailureTime)

		gcs = append(gcs, res.GroupCurve)
		v := figure.VLine{X: res.FailureTime, Label: s.Label + " Average 1 Robot Failure Point", Color: figure.FailurePoint}
		if i > 0 {
			v.Dashes = figure.Dashed
		}
		vlines = append(vlines, v)
		xmax = math.Max(xmax, res.MeanTermination)
	}

	title := o.title
	if title == "" {
		title = "Map Coverage Recovery with Early Failure Points"
	}
	p, err := figure.Panel{
		Title:   title,
		XLabel:  xTime,
		YLabel:  yMerged,
		Curves:  curves(o.style, gcs, 0.1, true),
		VLines:  vlines,
		Percent: true,
		XMin:    0,
		XMax:    xmax + 5,
		Legend:  o.legend,
	}.Plot(o.style)
	if err != nil {
		return err
	}
	return a.save(c, o, p)
}

func (a *app) compareAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	o, err := outputFrom(c)
	if err != nil {
		return err
	}
	groups, err := a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}

	metric := analysis.Metric(c.String("metric"))
	bars, err := analysis.TerminationBars(groups, metric)
	if err != nil {
		return err
	}
	unit := " s"
	xLabel := "Avg Termination Time (s)"
	if metric == analysis.MetricCoverage {
		unit = "%"
		xLabel = "Avg Map Coverage Percent at Termination (%)"
	}
	for _, b := range bars {
		fmt.Fprintf(c.App.Writer, "%s: %.2f%s (std %.2f)\n", b.Label, b.Value, unit, b.Err)
	}

	gcs := make([]analysis.GroupCurve, len(groups))
	for i, g := range groups {
		gcs[i] = analysis.GroupCurve{Label: g.Label, TerminationTimes: analysis.TerminationTimes(g.Trials)}
	}
	if err := printComparisons(c.App.Writer, c.String("reference"), gcs); err != nil {
		return err
	}

	p, err := figure.BarPanel{
		Title:      o.title,
		XLabel:     xLabel,
		Bars:       toBars(bars),
		Horizontal: true,
		Decimals:   1,
	}.Plot(o.style)
	if err != nil {
		return err
	}
	return a.save(c, o, p)
}

func (a *app) summaryAction(c *cli.Context) error {
	specs, err := a.specs(c)
	if err != nil {
		return err
	}
	groups, err := a.loadGroups(c, specs, c.String("time-subdir"), dataset.ColTimeElapsed, dataset.ColCoveragePercent)
	if err != nil {
		return err
	}

	summaries := make([]analysis.Summary, len(groups))
	for i, g := range groups {
		summaries[i] = analysis.Summarize(g)
		summaries[i].Print(c.App.Writer)
	}
	if path := c.String("csv"); path != "" {
		return a.writeSummary(c, path, summaries)
	}
	return nil
}

func (a *app) writeSummary(c *cli.Context, path string, summaries []analysis.Summary) error {
	var buf bytes.Buffer
	if err := analysis.WriteSummaryCSV(&buf, summaries); err != nil {
		return err
	}
	if dataset.IsRemote(path) {
		client, err := a.storageClient(c)
		if err != nil {
			return err
		}
		if err := util.UploadObject(c.Context, client, path, "text/csv", buf.Bytes()); err != nil {
			return err
		}
	} else if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("while writing %s: %w", path, err)
	}
	log.Infof("Summary written to %s", path)
	return nil
}
