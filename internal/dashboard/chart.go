package dashboard

import (
	"errors"
	"fmt"
	"html/template"

	"github.com/dojo-planner/dojo/internal/dashboard/svg"
)

// ErrSeriesMismatch rejects chart data whose labels and values differ in length.
var ErrSeriesMismatch = errors.New("dashboard: labels and values differ in length")

// ChartOptions mirrors the display settings shared by both dashboard charts.
type ChartOptions struct {
	Legend      bool    `json:"legend"`
	BeginAtZero bool    `json:"begin_at_zero"`
	Gridlines   bool    `json:"gridlines"`
	Tension     float64 `json:"tension"`
	Fill        bool    `json:"fill"`
}

// DefaultChartOptions hides the legend and gridlines, starts the y axis at
// zero and draws a smoothed, filled line.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{BeginAtZero: true, Tension: 0.4, Fill: true}
}

// Chart is a line chart widget bound to a page anchor.
type Chart struct {
	Anchor          string       `json:"anchor"`
	Label           string       `json:"label"`
	BorderColor     string       `json:"border_color"`
	BackgroundColor string       `json:"background_color"`
	Options         ChartOptions `json:"options"`
	Labels          []string     `json:"labels"`
	Values          []float64    `json:"values"`
	// Redraws counts successful updates.
	Redraws int `json:"redraws"`
}

// NewChart builds an empty chart with the default options.
func NewChart(anchor, label, border, background string) *Chart {
	return &Chart{
		Anchor:          anchor,
		Label:           label,
		BorderColor:     border,
		BackgroundColor: background,
		Options:         DefaultChartOptions(),
		Labels:          []string{},
		Values:          []float64{},
	}
}

// Update replaces the chart data. Mismatched input leaves the chart as it was.
func (c *Chart) Update(labels []string, values []float64) error {
	if len(labels) != len(values) {
		return fmt.Errorf("%w: %d labels, %d values", ErrSeriesMismatch, len(labels), len(values))
	}
	c.Labels = append(make([]string, 0, len(labels)), labels...)
	c.Values = append(make([]float64, 0, len(values)), values...)
	c.Redraws++
	return nil
}

// Empty reports whether the chart has no points yet.
func (c *Chart) Empty() bool {
	return c == nil || len(c.Values) == 0
}

// Clone returns a deep copy, or nil for a nil chart.
func (c *Chart) Clone() *Chart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Labels = append([]string(nil), c.Labels...)
	cp.Values = append([]float64(nil), c.Values...)
	return &cp
}

// SVG renders the chart. Empty charts render nothing.
func (c *Chart) SVG(width, height int) (template.HTML, error) {
	if c.Empty() {
		return "", nil
	}
	return svg.Line(width, height, c.Values, c.Labels, svg.LineOpts{
		Title:       c.Label,
		Description: c.Label + " over the selected period",
		Label:       c.Label,
		StrokeColor: c.BorderColor,
		FillColor:   c.BackgroundColor,
		Tension:     c.Options.Tension,
		Fill:        c.Options.Fill,
		ShowGrid:    c.Options.Gridlines,
		ShowLegend:  c.Options.Legend,
		BeginAtZero: c.Options.BeginAtZero,
	})
}
