package svg

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	// Label names the series in the legend.
	Label       string
	StrokeColor string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	// Tension bends the curve between points; 0 draws straight segments.
	Tension     float64
	Fill        bool
	ShowGrid    bool
	ShowLegend  bool
	ShowDots    bool
	BeginAtZero bool
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 5
)
