// Package theme maps engine state to colours and glyphs shared by the
// terminal UI and controller LEDs.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-loopcore/channel"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Solid rune // ■
	Empty rune // □

	// Channel status glyphs
	Off    rune // ·
	Wait   rune // ◌
	Play   rune // ▶
	Ending rune // ◼

	Muted  rune // M
	Soloed rune // S
	Armed  rune // ●
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid:  '■',
			Empty:  '□',
			Off:    '·',
			Wait:   '◌',
			Play:   '▶',
			Ending: '◼',
			Muted:  'M',
			Soloed: 'S',
			Armed:  '●',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.35
	RoleAccent  = 0.45
	RoleActive  = 0.55 // playing
	RoleWaiting = 0.65
	RoleWarning = 0.8 // ending, recording
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// RGB returns raw RGB for any normalized value (for Launchpad)
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

func statusRole(st channel.Status) float64 {
	switch st {
	case channel.Wait:
		return RoleWaiting
	case channel.Play:
		return RoleActive
	case channel.Ending:
		return RoleWarning
	}
	return RoleMuted
}

// StatusRGB is the pad colour of a channel in status st.
func (t *Theme) StatusRGB(st channel.Status) RGB {
	return t.RGB(statusRole(st))
}

// StatusColor is StatusRGB for the terminal.
func (t *Theme) StatusColor(st channel.Status) lipgloss.Color {
	return t.Color(statusRole(st))
}

// StatusGlyph returns the symbol drawn for st.
func (t *Theme) StatusGlyph(st channel.Status) rune {
	switch st {
	case channel.Wait:
		return t.Symbols.Wait
	case channel.Play:
		return t.Symbols.Play
	case channel.Ending:
		return t.Symbols.Ending
	}
	return t.Symbols.Off
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
