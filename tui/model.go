// Package tui is the terminal monitor: transport, meters and the channel
// list, with keys for the common channel actions.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-loopcore/channel"
	"go-loopcore/engine"
	"go-loopcore/midi"
	"go-loopcore/model"
	"go-loopcore/theme"
	"go-loopcore/wavefile"
	"go-loopcore/widgets"
)

const (
	refreshRate  = time.Second / 30
	meterWidth   = 24
	midiFlashFor = 150 * time.Millisecond
	bpmStep      = 1.0
)

type Model struct {
	Engine  *engine.Engine
	Surface *midi.Surface // may be nil
	Theme   *theme.Theme

	// TakesDir receives waves saved with w. Empty disables saving.
	TakesDir string

	channels []engine.ChannelView
	selected int
	midiIn   map[model.ID]time.Time
	devices  []string
	status   string
	notice   string
	quitting bool
}

// NoteMsg carries one engine notification.
type NoteMsg engine.Notification

type tickMsg time.Time

func NewModel(e *engine.Engine, s *midi.Surface, th *theme.Theme) Model {
	m := Model{
		Engine:  e,
		Surface: s,
		Theme:   th,
		midiIn:  make(map[model.ID]time.Time),
	}
	m.channels = e.Channels()
	return m
}

func ListenForNotifications(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		return NoteMsg(<-e.Notifications())
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForNotifications(m.Engine), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			m.Engine.Stop()
			return m, tea.Quit
		}
		m.notice = ""
		if err := m.handleKey(msg.String()); err != nil {
			m.status = err.Error()
		} else {
			m.status = ""
		}
		m.channels = m.Engine.Channels()

	case NoteMsg:
		switch msg.Kind {
		case engine.NoteStructure, engine.NoteChannelStatus:
			m.channels = m.Engine.Channels()
		case engine.NoteMidiIn:
			m.midiIn[msg.Channel] = time.Now()
		}
		return m, ListenForNotifications(m.Engine)

	case tickMsg:
		m.channels = m.Engine.Channels()
		if m.Surface != nil {
			m.devices = m.Surface.Controllers()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) handleKey(key string) error {
	e := m.Engine
	switch key {
	case " ":
		return e.Toggle()
	case "r":
		return e.Rewind()
	case "+", "=":
		return e.SetBpm(e.Bpm() + bpmStep)
	case "-", "_":
		return e.SetBpm(e.Bpm() - bpmStep)
	case "up", "k":
		m.selected = max(m.selected-1, 0)
		return nil
	case "down", "j":
		m.selected = min(m.selected+1, max(len(m.channels)-1, 0))
		return nil
	case "n":
		column := model.ID(1)
		if ch, ok := m.current(); ok {
			column = ch.ColumnID
		}
		_, err := e.AddChannel(model.ChannelSample, column)
		return err
	case "i":
		if e.IsRecordingInput() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := e.StopInputRec(ctx)
			return err
		}
		return e.StartInputRec()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		slot := int(key[0] - '1')
		if slot < len(m.channels) {
			m.selected = slot
			return e.Press(m.channels[slot].ID)
		}
		return nil
	}

	ch, ok := m.current()
	if !ok {
		return nil
	}
	switch key {
	case "enter":
		return e.Press(ch.ID)
	case "x":
		return e.Kill(ch.ID)
	case "m":
		return e.ToggleMute(ch.ID)
	case "s":
		return e.ToggleSolo(ch.ID)
	case "a":
		return e.ToggleArm(ch.ID)
	case "R":
		return e.ToggleReadActions(ch.ID)
	case "[":
		return e.SetVolume(ch.ID, ch.Volume-0.05)
	case "]":
		return e.SetVolume(ch.ID, ch.Volume+0.05)
	case "<", ",":
		return e.SetPan(ch.ID, ch.Pan-0.05)
	case ">", ".":
		return e.SetPan(ch.ID, ch.Pan+0.05)
	case "tab":
		return e.SetSamplePlayerMode(ch.ID, (ch.Mode+1)%(channel.SingleEndless+1))
	case "c":
		_, err := e.CloneChannel(ch.ID)
		return err
	case "w":
		return m.saveWave(ch)
	case "backspace", "delete":
		return e.RemoveChannel(ch.ID)
	}
	return nil
}

func (m *Model) saveWave(ch engine.ChannelView) error {
	if m.TakesDir == "" {
		return nil
	}
	w, err := m.Engine.Wave(ch.ID)
	if err != nil || w == nil {
		return err
	}
	name := fmt.Sprintf("%s-%d.wav", strings.ReplaceAll(ch.Name, " ", "_"), w.ID)
	path := filepath.Join(m.TakesDir, name)
	if err := wavefile.Save(path, w); err != nil {
		return err
	}
	m.notice = "saved " + path
	return nil
}

func (m Model) current() (engine.ChannelView, bool) {
	if m.selected < 0 || m.selected >= len(m.channels) {
		return engine.ChannelView{}, false
	}
	return m.channels[m.selected], true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header()))
	out.WriteString("\n\n")

	meters := m.Engine.Meters()
	off, clip := th.Color(theme.RoleSurface), th.Warning()
	out.WriteString(widgets.RenderMeter("L", meters.OutL, meterWidth, th.Active(), off, clip))
	out.WriteString("   ")
	out.WriteString(widgets.RenderMeter("in", max(meters.InL, meters.InR), meterWidth/2, th.Accent(), off, clip))
	out.WriteString("\n")
	out.WriteString(widgets.RenderMeter("R", meters.OutR, meterWidth, th.Active(), off, clip))
	out.WriteString("\n\n")

	left := m.channelList()
	right := widgets.RenderPadGrid(m.padGrid())
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right))
	out.WriteString("\n\n")

	if m.status != "" {
		out.WriteString(warnStyle.Render(m.status))
		out.WriteString("\n")
	}
	if m.notice != "" {
		out.WriteString(dimStyle.Render(m.notice))
		out.WriteString("\n")
	}
	if len(m.devices) > 0 {
		out.WriteString(dimStyle.Render("devices: " + strings.Join(m.devices, ", ")))
		out.WriteString("\n")
	}
	out.WriteString(dimStyle.Render("space:play/stop r:rewind +/-:bpm 1-9/enter:press x:kill m:mute s:solo a:arm i:rec tab:mode n/c/del:add/clone/remove w:save q:quit"))
	return out.String()
}

func (m Model) header() string {
	e := m.Engine
	state := "STOP"
	if e.IsRunning() {
		state = "PLAY"
	}
	seq := e.Sequencer()
	rec := ""
	if e.IsRecordingInput() {
		rec = "  REC"
	}
	return fmt.Sprintf("go-loopcore  %s  %5.1fbpm  beat %d/%d  q:%d  %s%s",
		state, e.Bpm(), e.CurrentBeat()+1, seq.Beats, seq.Quantize, e.Synchronizer().Mode(), rec)
}

func (m Model) channelList() string {
	th := m.Theme
	var lines []string
	for i, ch := range m.channels {
		glyph := lipgloss.NewStyle().Foreground(th.StatusColor(ch.Play)).Render(string(th.StatusGlyph(ch.Play)))
		flags := []rune{' ', ' ', ' ', ' '}
		if ch.Mute {
			flags[0] = th.Symbols.Muted
		}
		if ch.Solo {
			flags[1] = th.Symbols.Soloed
		}
		if ch.Arm {
			flags[2] = th.Symbols.Armed
		}
		if t, ok := m.midiIn[ch.ID]; ok && time.Since(t) < midiFlashFor {
			flags[3] = '♪'
		}
		mode := ch.Mode.String()
		if ch.Type == model.ChannelMidi {
			mode = fmt.Sprintf("midi ch%d", ch.Midi.Channel+1)
		}
		line := fmt.Sprintf("%d %s %-16s %-14s vol %3.0f%% %s", i+1, glyph, truncate(ch.Name, 16), mode, ch.Volume*100, string(flags))
		if i == m.selected {
			line = lipgloss.NewStyle().Background(th.Color(theme.RoleSurface)).Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, "no channels (n to add)")
	}
	return strings.Join(lines, "\n")
}

// padGrid mirrors what a grid controller shows.
func (m Model) padGrid() [8][8][3]uint8 {
	var grid [8][8][3]uint8
	for i, ch := range m.channels {
		row, col, ok := midi.SlotPad(i + 1)
		if !ok {
			break
		}
		if ch.Type == model.ChannelSample && !ch.HasWave {
			continue
		}
		grid[row][col] = m.Theme.StatusRGB(ch.Play)
	}
	return grid
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
