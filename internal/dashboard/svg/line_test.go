package svg

import (
	"strings"
	"testing"
)

func TestLineProducesSmoothFilledSVG(t *testing.T) {
	html, err := Line(400, 200, []float64{120, 340, 260, 410}, []string{"01-03-2025", "02-03-2025", "03-03-2025", "04-03-2025"}, LineOpts{
		Title:       "Earnings",
		Description: "Daily earnings",
		Tension:     0.4,
		Fill:        true,
		BeginAtZero: true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if !strings.Contains(output, " C") {
		t.Fatalf("expected bezier segments for a smoothed curve")
	}
	if !strings.Contains(output, "class=\"area\"") {
		t.Fatalf("expected filled area")
	}
	if strings.Contains(output, "class=\"grid\"") {
		t.Fatalf("expected no gridlines")
	}
	if strings.Contains(output, "class=\"legend\"") {
		t.Fatalf("expected no legend")
	}
	if !strings.Contains(output, ">0</text>") {
		t.Fatalf("expected zero-based y axis tick")
	}
	if !strings.Contains(output, "aria-labelledby=\"earnings-line-title earnings-line-desc\"") {
		t.Fatalf("expected accessibility attributes")
	}
}

func TestLineOptionalDecorations(t *testing.T) {
	html, err := Line(400, 200, []float64{450, 460}, []string{"Jan 2025", "Feb 2025"}, LineOpts{
		Label:      "Active Members",
		ShowGrid:   true,
		ShowLegend: true,
		ShowDots:   true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	for _, want := range []string{"class=\"grid\"", "class=\"legend\"", "<circle", "Active Members"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
	if strings.Contains(output, ">0</text>") {
		t.Fatalf("expected axis to start near the data when not zero based")
	}
	if strings.Contains(output, " C") {
		t.Fatalf("expected straight segments without tension")
	}
}

func TestLineValidatesInput(t *testing.T) {
	if _, err := Line(400, 200, nil, nil, LineOpts{}); err == nil {
		t.Fatalf("expected error for empty series")
	}
	if _, err := Line(400, 200, []float64{1, 2}, []string{"a"}, LineOpts{}); err == nil {
		t.Fatalf("expected error for mismatched labels")
	}
	if _, err := Line(40, 40, []float64{1}, []string{"a"}, LineOpts{Padding: 30}); err == nil {
		t.Fatalf("expected error for tiny viewport")
	}
}

func TestLineEscapesLabels(t *testing.T) {
	html, err := Line(0, 0, []float64{1}, []string{"<script>"}, LineOpts{Title: "x"})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("expected label to be escaped")
	}
}
