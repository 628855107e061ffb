package chart

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/angelmondragon/salespulse/internal/trend"
	"github.com/shopspring/decimal"
)

const (
	RevenueColor = "#FFA240"
	AOVColor     = "#0F2854"

	DefaultTitle  = "Monthly Revenue (Column) vs Average Order Value (Line)"
	DefaultWidth  = 1200
	DefaultHeight = 600

	barWidthDays = 20
	axisTicks    = 6
	maxMonthTick = 12
	markerRadius = 4
)

const (
	marginLeft   = 100
	marginRight  = 100
	marginTop    = 60
	marginBottom = 100
)

type Options struct {
	Width  int
	Height int
	Title  string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if strings.TrimSpace(o.Title) == "" {
		o.Title = DefaultTitle
	}
	return o
}

type plotArea struct {
	left, right, top, bottom int
}

// Render draws total revenue as bars on the left axis and average order value as
// a line with markers on the right axis, over a monthly time axis.
func Render(w io.Writer, points []trend.Point, opts Options) error {
	opts = opts.withDefaults()
	if opts.Width <= marginLeft+marginRight || opts.Height <= marginTop+marginBottom {
		return fmt.Errorf("chart %dx%d is too small", opts.Width, opts.Height)
	}

	canvas := svg.New(w)
	canvas.Start(opts.Width, opts.Height)
	canvas.Title(opts.Title)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:white")
	canvas.Text(opts.Width/2, marginTop/2, opts.Title, "text-anchor:middle;font-family:sans-serif;font-size:18px;font-weight:bold;fill:#222")

	area := plotArea{
		left:   marginLeft,
		right:  opts.Width - marginRight,
		top:    marginTop,
		bottom: opts.Height - marginBottom,
	}

	if len(points) == 0 {
		drawFrame(canvas, area)
		canvas.Text((area.left+area.right)/2, (area.top+area.bottom)/2, "no data",
			`class="empty"`, "text-anchor:middle;font-family:sans-serif;font-size:16px;fill:#888")
		canvas.End()
		return nil
	}

	first, last := points[0].Month, points[len(points)-1].Month
	pad := barWidthDays * 24 * time.Hour
	x := linear{
		d0: float64(first.Add(-pad).Unix()),
		d1: float64(last.Add(pad).Unix()),
		r0: float64(area.left),
		r1: float64(area.right),
	}

	revenue := make([]float64, len(points))
	aov := make([]float64, len(points))
	for i, p := range points {
		revenue[i] = p.TotalRevenue.InexactFloat64()
		aov[i] = p.AvgOrderValue.InexactFloat64()
	}

	revTicks := niceTicks(0, maxOf(revenue), axisTicks)
	yLeft := linear{d0: revTicks[0], d1: revTicks[len(revTicks)-1], r0: float64(area.bottom), r1: float64(area.top)}

	lo, hi := minOf(aov), maxOf(aov)
	margin := (hi - lo) * 0.05
	aovTicks := niceTicks(lo-margin, hi+margin, axisTicks)
	yRight := linear{d0: aovTicks[0], d1: aovTicks[len(aovTicks)-1], r0: float64(area.bottom), r1: float64(area.top)}

	drawGrid(canvas, area, yLeft, revTicks)
	drawBars(canvas, points, revenue, x, yLeft, revTicks[0])
	drawLine(canvas, points, aov, x, yRight)
	drawFrame(canvas, area)
	drawYAxis(canvas, area.left, yLeft, revTicks, RevenueColor, "end", -10)
	drawYAxis(canvas, area.right, yRight, aovTicks, AOVColor, "start", 10)
	drawXAxis(canvas, area, x, monthTicks(first, last, maxMonthTick))
	drawAxisLabels(canvas, area, opts)

	canvas.End()
	return nil
}

func drawFrame(canvas *svg.SVG, area plotArea) {
	canvas.Rect(area.left, area.top, area.right-area.left, area.bottom-area.top, "fill:none;stroke:#333;stroke-width:1")
}

func drawGrid(canvas *svg.SVG, area plotArea, y linear, ticks []float64) {
	canvas.Gstyle("stroke:#d9d9d9;stroke-width:1")
	for _, t := range ticks {
		py := y.px(t)
		canvas.Line(area.left, py, area.right, py)
	}
	canvas.Gend()
}

func drawBars(canvas *svg.SVG, points []trend.Point, revenue []float64, x, y linear, base float64) {
	halfSpan := float64(barWidthDays) * 12 * float64(time.Hour/time.Second)
	canvas.Gstyle("fill:" + RevenueColor)
	for i, p := range points {
		center := float64(p.Month.Unix())
		x0 := x.px(center - halfSpan)
		x1 := x.px(center + halfSpan)
		width := x1 - x0
		if width < 2 {
			width = 2
		}
		top, bottom := y.px(revenue[i]), y.px(base)
		canvas.Rect(x0, top, width, bottom-top, `class="bar"`)
	}
	canvas.Gend()
}

func drawLine(canvas *svg.SVG, points []trend.Point, aov []float64, x, y linear) {
	xs := make([]int, len(points))
	ys := make([]int, len(points))
	for i, p := range points {
		xs[i] = x.px(float64(p.Month.Unix()))
		ys[i] = y.px(aov[i])
	}
	canvas.Polyline(xs, ys, "fill:none;stroke:"+AOVColor+";stroke-width:2")
	for i := range xs {
		canvas.Circle(xs[i], ys[i], markerRadius, `class="marker"`, "fill:"+AOVColor)
	}
}

func drawYAxis(canvas *svg.SVG, at int, y linear, ticks []float64, color, anchor string, offset int) {
	style := fmt.Sprintf("text-anchor:%s;font-family:sans-serif;font-size:12px;fill:%s", anchor, color)
	for _, t := range ticks {
		py := y.px(t)
		canvas.Line(at, py, at+offset/2, py, "stroke:"+color)
		canvas.Text(at+offset, py+4, formatTick(t, ticks), style)
	}
}

func drawXAxis(canvas *svg.SVG, area plotArea, x linear, ticks []time.Time) {
	for _, t := range ticks {
		px := x.px(float64(t.Unix()))
		canvas.Line(px, area.bottom, px, area.bottom+5, "stroke:#333")
		ly := area.bottom + 18
		canvas.Gtransform(fmt.Sprintf("rotate(-30 %d %d)", px, ly))
		canvas.Text(px, ly, t.Format("2006-01"), `class="month"`, "text-anchor:end;font-family:sans-serif;font-size:12px;fill:#333")
		canvas.Gend()
	}
}

func drawAxisLabels(canvas *svg.SVG, area plotArea, opts Options) {
	canvas.Text((area.left+area.right)/2, opts.Height-20, "Month", "text-anchor:middle;font-family:sans-serif;font-size:14px;fill:#333")

	midY := (area.top + area.bottom) / 2
	canvas.TranslateRotate(30, midY, -90)
	canvas.Text(0, 0, "Total Revenue (TOTAL_REVENUE)", "text-anchor:middle;font-family:sans-serif;font-size:14px;fill:"+RevenueColor)
	canvas.Gend()

	canvas.TranslateRotate(opts.Width-30, midY, 90)
	canvas.Text(0, 0, "Average Order Value (AVG_ORDER_VALUE)", "text-anchor:middle;font-family:sans-serif;font-size:14px;fill:"+AOVColor)
	canvas.Gend()
}

// formatTick renders v with as many decimals as the tick step needs.
func formatTick(v float64, ticks []float64) string {
	places := int32(0)
	if len(ticks) > 1 {
		step := math.Abs(ticks[1] - ticks[0])
		if step > 0 && step < 1 {
			places = int32(math.Ceil(-math.Log10(step)))
		}
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}
