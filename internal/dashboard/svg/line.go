// Package svg renders the dashboard line charts as inline SVG.
package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

type point struct {
	x, y float64
}

// Line renders a responsive SVG line chart for the given series and labels.
func Line(width, height int, series []float64, labels []string, opts LineOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(series) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match series")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}
	strokeColor := fallback(opts.StrokeColor, "#007bff")
	fillColor := fallback(opts.FillColor, "rgba(0, 123, 255, 0.1)")
	axisColor := fallback(opts.AxisColor, "#6c757d")
	gridColor := fallback(opts.GridColor, "#dee2e6")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	minVal, maxVal := bounds(series)
	if opts.BeginAtZero {
		minVal = math.Min(minVal, 0)
		maxVal = math.Max(maxVal, 0)
	}
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	scale := chartHeight / (maxVal - minVal)
	top := padding
	bottom := padding + chartHeight

	points := make([]point, len(series))
	step := 0.0
	if len(series) > 1 {
		step = chartWidth / float64(len(series)-1)
	}
	for i, value := range series {
		x := padding + chartWidth/2
		if len(series) > 1 {
			x = padding + float64(i)*step
		}
		points[i] = point{x: x, y: bottom - (value-minVal)*scale}
	}
	path := curve(points, opts.Tension, top, bottom)

	titleID := makeID(opts.Title, "line-title")
	descID := makeID(opts.Title, "line-desc")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Line chart")))
	fmt.Fprintf(&b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Trend data")))

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		y := bottom - ratio*chartHeight
		value := minVal + (maxVal-minVal)*ratio
		if opts.ShowGrid {
			fmt.Fprintf(&b, "<line class=\"grid\" x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" aria-hidden=\"true\"></line>", padding, y, padding+chartWidth, y, gridColor)
		}
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", padding-6, y+4, axisColor, template.HTMLEscapeString(formatTick(value)))
	}

	if opts.Fill {
		first, last := points[0], points[len(points)-1]
		area := fmt.Sprintf("%s L%.2f %.2f L%.2f %.2f Z", path, last.x, bottom, first.x, bottom)
		fmt.Fprintf(&b, "<path class=\"area\" d=\"%s\" fill=\"%s\" stroke=\"none\" aria-hidden=\"true\"></path>", area, fillColor)
	}
	fmt.Fprintf(&b, "<path class=\"line\" d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linejoin=\"round\" stroke-linecap=\"round\"></path>", path, strokeColor)

	if opts.ShowDots {
		for _, p := range points {
			fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"3\" fill=\"%s\"></circle>", p.x, p.y, strokeColor)
		}
	}

	for i, label := range labels {
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", points[i].x, bottom+16, axisColor, template.HTMLEscapeString(label))
	}

	if opts.ShowLegend && opts.Label != "" {
		fmt.Fprintf(&b, "<g class=\"legend\"><rect x=\"%.2f\" y=\"4\" width=\"10\" height=\"10\" fill=\"%s\"></rect><text x=\"%.2f\" y=\"13\" fill=\"%s\" font-size=\"11\">%s</text></g>",
			padding, strokeColor, padding+14, axisColor, template.HTMLEscapeString(opts.Label))
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// curve builds a path through points. With a positive tension each segment
// is a cubic bezier whose control points follow the neighbouring points,
// clamped to the plot area so the curve never dips below the baseline.
func curve(points []point, tension, top, bottom float64) string {
	var path strings.Builder
	fmt.Fprintf(&path, "M%.2f %.2f", points[0].x, points[0].y)
	if tension <= 0 || len(points) < 3 {
		for _, p := range points[1:] {
			fmt.Fprintf(&path, " L%.2f %.2f", p.x, p.y)
		}
		return path.String()
	}
	k := tension / 2
	for i := 0; i < len(points)-1; i++ {
		p0 := points[max(i-1, 0)]
		p1 := points[i]
		p2 := points[i+1]
		p3 := points[min(i+2, len(points)-1)]
		c1 := point{x: p1.x + (p2.x-p0.x)*k, y: clamp(p1.y+(p2.y-p0.y)*k, top, bottom)}
		c2 := point{x: p2.x - (p3.x-p1.x)*k, y: clamp(p2.y-(p3.y-p1.y)*k, top, bottom)}
		fmt.Fprintf(&path, " C%.2f %.2f %.2f %.2f %.2f %.2f", c1.x, c1.y, c2.x, c2.y, p2.x, p2.y)
	}
	return path.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func bounds(series []float64) (float64, float64) {
	minVal := series[0]
	maxVal := series[0]
	for _, v := range series[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
