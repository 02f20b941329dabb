// Package widgets renders small reusable terminal pieces with lipgloss.
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderPadGrid renders an 8x8 grid of pads (row 0 at bottom, row 7 at top)
func RenderPadGrid(grid [8][8][3]uint8) string {
	var lines []string
	for row := 7; row >= 0; row-- {
		pads := make([]string, 8)
		for col := range pads {
			pads[col] = RenderPad(grid[row][col])
		}
		lines = append(lines, strings.Join(pads, " "))
	}
	return strings.Join(lines, "\n")
}

// MeterCells is how many cells of a width-wide meter a 0..1 level fills.
// Anything above 1 fills the meter.
func MeterCells(level float32, width int) int {
	if level <= 0 || width <= 0 {
		return 0
	}
	n := int(level*float32(width) + 0.5)
	return min(max(n, 1), width)
}

// RenderMeter draws a horizontal peak meter. Levels above 1 are drawn in
// the clip colour.
func RenderMeter(label string, level float32, width int, on, off, clip lipgloss.Color) string {
	n := MeterCells(level, width)
	fill := on
	if level > 1 {
		fill = clip
	}
	bar := lipgloss.NewStyle().Foreground(fill).Render(strings.Repeat("█", n)) +
		lipgloss.NewStyle().Foreground(off).Render(strings.Repeat("░", width-n))
	return fmt.Sprintf("%-3s %s", label, bar)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
