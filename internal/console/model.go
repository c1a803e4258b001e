// Package console is the terminal dashboard for a running kiosk. It observes
// the push channel and shows update status, download progress, the restart
// countdown and release notes.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/kensar/kiosk/internal/client"
	"github.com/kensar/kiosk/internal/hub"
	"github.com/kensar/kiosk/internal/output"
	"github.com/kensar/kiosk/internal/update"
)

const reconnectDelay = 2 * time.Second

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// Model is the Bubble Tea model for the console.
type Model struct {
	client *client.Client
	stream *client.Stream
	ctx    context.Context

	Width  int
	Height int

	Connected bool
	Err       error
	Snapshot  update.Snapshot
	Zoom      float64
	Notes     string
	notesFor  string
	Focused   time.Time

	spinner  spinner.Model
	progress progress.Model
}

// Messages

// ConnectedMsg carries a freshly opened stream.
type ConnectedMsg struct{ Stream *client.Stream }

// FrameMsg is one push frame.
type FrameMsg client.Frame

// DisconnectedMsg reports a lost or failed connection.
type DisconnectedMsg struct{ Err error }

type reconnectMsg struct{}

// NotesMsg carries release notes rendered for a version.
type NotesMsg struct {
	Version  string
	Rendered string
}

// NewModel returns a console model for the kiosk at c.
func NewModel(ctx context.Context, c *client.Client) Model {
	return Model{
		client:   c,
		ctx:      ctx,
		Zoom:     1,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(alertStyle)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect())
}

func (m Model) connect() tea.Cmd {
	return func() tea.Msg {
		s, err := m.client.Events(m.ctx, true)
		if err != nil {
			return DisconnectedMsg{Err: err}
		}
		return ConnectedMsg{Stream: s}
	}
}

func (m Model) next() tea.Cmd {
	s := m.stream
	return func() tea.Msg {
		f, err := s.Next(m.ctx)
		if err != nil {
			return DisconnectedMsg{Err: err}
		}
		return FrameMsg(f)
	}
}

func renderNotes(info update.Info, width int) tea.Cmd {
	return func() tea.Msg {
		return NotesMsg{Version: info.Version, Rendered: output.ReleaseNotes(&info, width, styles.DarkStyle)}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.stream != nil {
				m.stream.Close()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.progress.Width = min(60, max(10, msg.Width-20))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConnectedMsg:
		m.stream = msg.Stream
		m.Connected = true
		m.Err = nil
		return m, m.next()

	case DisconnectedMsg:
		m.stream = nil
		m.Connected = false
		m.Err = msg.Err
		if m.ctx.Err() != nil {
			return m, tea.Quit
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.connect()

	case FrameMsg:
		cmd := m.apply(client.Frame(msg))
		if m.stream == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.next())

	case NotesMsg:
		if m.Snapshot.Info != nil && m.Snapshot.Info.Version == msg.Version {
			m.Notes = msg.Rendered
		}
		return m, nil
	}
	return m, nil
}

// apply folds one frame into the model.
func (m *Model) apply(f client.Frame) tea.Cmd {
	switch f.Channel {
	case hub.ChannelUpdateStatus:
		var s update.Snapshot
		if err := json.Unmarshal(f.Payload, &s); err != nil {
			m.Err = fmt.Errorf("decode update status: %w", err)
			return nil
		}
		m.Snapshot = s
		if s.Info != nil && s.Info.Version != m.notesFor {
			m.notesFor = s.Info.Version
			m.Notes = ""
			return renderNotes(*s.Info, m.notesWidth())
		}
	case hub.ChannelZoomApply:
		var z hub.ZoomApply
		if json.Unmarshal(f.Payload, &z) == nil {
			m.Zoom = z.Factor
		}
	case hub.ChannelFocus:
		m.Focused = time.Now()
	}
	return nil
}

func (m Model) notesWidth() int {
	if m.Width <= 0 {
		return 76
	}
	return max(20, m.Width-6)
}

// View implements tea.Model
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("kiosk console"))
	sb.WriteString("  ")
	if m.Connected {
		sb.WriteString(dimStyle.Render("connected to " + m.client.BaseURL))
	} else {
		sb.WriteString(m.spinner.View() + dimStyle.Render(" connecting to "+m.client.BaseURL))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.statusView())
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("zoom %s", output.FormatZoom(m.Zoom)))
	if !m.Focused.IsZero() && time.Since(m.Focused) < 10*time.Second {
		sb.WriteString("  " + alertStyle.Render("focus requested"))
	}
	sb.WriteString("\n")

	if m.Notes != "" {
		sb.WriteString("\n" + m.Notes + "\n")
	}
	if m.Err != nil && !m.Connected {
		sb.WriteString("\n" + dimStyle.Render(m.Err.Error()) + "\n")
	}
	sb.WriteString("\n" + dimStyle.Render("q quit"))
	return sb.String()
}

func (m Model) statusView() string {
	s := m.Snapshot
	if s.Status == "" {
		s.Status = update.PhaseIdle
	}
	lines := []string{output.FormatSnapshot(s)}
	switch s.Status {
	case update.PhaseChecking:
		lines[0] = m.spinner.View() + " " + lines[0]
	case update.PhaseDownloading:
		pct := 0.0
		if s.Progress != nil {
			pct = s.Progress.Percent / 100
		}
		lines = append(lines, m.progress.ViewAs(pct))
	case update.PhaseDownloaded:
		if s.CountdownSeconds > 0 {
			bar := m.progress.ViewAs(float64(s.CountdownSeconds) / float64(update.CountdownStart))
			lines = append(lines, alertStyle.Render(fmt.Sprintf("Restarting to install in %ds", s.CountdownSeconds)), bar)
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
