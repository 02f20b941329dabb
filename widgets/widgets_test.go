package widgets

import (
	"strings"
	"testing"
)

func TestMeterCells(t *testing.T) {
	tests := []struct {
		level float32
		width int
		want  int
	}{
		{0, 10, 0},
		{-1, 10, 0},
		{0.01, 10, 1},
		{0.5, 10, 5},
		{1, 10, 10},
		{3, 10, 10},
		{0.5, 0, 0},
	}
	for _, tt := range tests {
		if got := MeterCells(tt.level, tt.width); got != tt.want {
			t.Errorf("MeterCells(%v, %d) = %d, want %d", tt.level, tt.width, got, tt.want)
		}
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{
		Title: "Transport",
		Keys:  []KeyBinding{{Key: "space", Desc: "play/stop"}},
	}})
	if !strings.Contains(out, "Transport") || !strings.Contains(out, "space") || !strings.Contains(out, "play/stop") {
		t.Errorf("help = %q", out)
	}
}

func TestPadGridShape(t *testing.T) {
	var grid [8][8][3]uint8
	lines := strings.Split(RenderPadGrid(grid), "\n")
	if len(lines) != 8 {
		t.Fatalf("grid has %d lines, want 8", len(lines))
	}
	if n := strings.Count(lines[0], "■"); n != 8 {
		t.Errorf("row has %d pads, want 8", n)
	}
}
