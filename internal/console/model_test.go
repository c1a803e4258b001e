package console

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/kensar/kiosk/internal/client"
	"github.com/kensar/kiosk/internal/hub"
	"github.com/kensar/kiosk/internal/update"
)

func frame(t *testing.T, channel string, payload any) FrameMsg {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return FrameMsg{Channel: channel, Payload: data}
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func TestUpdateStatusFrames(t *testing.T) {
	m := NewModel(context.Background(), client.New("127.0.0.1:1"))
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	info := &update.Info{Version: "v3.0.0", ReleaseNotes: "Nueva pantalla de cobro"}
	m, cmd := step(t, m, frame(t, hub.ChannelUpdateStatus, update.Snapshot{
		Status:   update.PhaseDownloading,
		Info:     info,
		Progress: &update.Progress{Percent: 40},
	}))
	if cmd == nil {
		t.Fatal("a new version must trigger notes rendering")
	}
	notes, ok := cmd().(NotesMsg)
	if !ok || notes.Version != "v3.0.0" {
		t.Fatalf("cmd produced %#v", notes)
	}
	m, _ = step(t, m, notes)

	view := ansi.Strip(m.View())
	for _, want := range []string{"downloading", "v3.0.0", "40%", "pantalla"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	// Same version again: no re-render.
	m, cmd = step(t, m, frame(t, hub.ChannelUpdateStatus, update.Snapshot{
		Status:           update.PhaseDownloaded,
		Info:             info,
		CountdownSeconds: 7,
	}))
	if cmd != nil {
		t.Error("notes re-rendered for the same version")
	}
	if view := ansi.Strip(m.View()); !strings.Contains(view, "Restarting to install in 7s") {
		t.Errorf("countdown missing:\n%s", view)
	}
}

func TestStaleNotesIgnored(t *testing.T) {
	m := NewModel(context.Background(), client.New("127.0.0.1:1"))
	m, _ = step(t, m, frame(t, hub.ChannelUpdateStatus, update.Snapshot{
		Status: update.PhaseAvailable,
		Info:   &update.Info{Version: "v2"},
	}))
	m, _ = step(t, m, NotesMsg{Version: "v1", Rendered: "old notes"})
	if m.Notes != "" {
		t.Errorf("notes for another version applied: %q", m.Notes)
	}
}

func TestZoomAndFocusFrames(t *testing.T) {
	m := NewModel(context.Background(), client.New("127.0.0.1:1"))
	m, _ = step(t, m, frame(t, hub.ChannelZoomApply, hub.ZoomApply{Factor: 0.75}))
	m, _ = step(t, m, FrameMsg{Channel: hub.ChannelFocus})
	if m.Zoom != 0.75 {
		t.Errorf("zoom = %v", m.Zoom)
	}
	view := ansi.Strip(m.View())
	if !strings.Contains(view, "zoom 75%") || !strings.Contains(view, "focus requested") {
		t.Errorf("view:\n%s", view)
	}
}

func TestBadPayloadKeepsSnapshot(t *testing.T) {
	m := NewModel(context.Background(), client.New("127.0.0.1:1"))
	m, _ = step(t, m, frame(t, hub.ChannelUpdateStatus, update.Snapshot{Status: update.PhaseNone}))
	m, _ = step(t, m, FrameMsg{Channel: hub.ChannelUpdateStatus, Payload: json.RawMessage(`"nope"`)})
	if m.Snapshot.Status != update.PhaseNone || m.Err == nil {
		t.Errorf("snapshot = %+v err = %v", m.Snapshot, m.Err)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(context.Background(), client.New("127.0.0.1:1"))
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce QuitMsg")
	}
}

func TestDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewModel(ctx, client.New("127.0.0.1:1"))
	m, _ = step(t, m, ConnectedMsg{})
	if !m.Connected {
		t.Fatal("not connected")
	}

	m, cmd := step(t, m, DisconnectedMsg{Err: errors.New("reset")})
	if m.Connected || cmd == nil {
		t.Fatal("disconnect must schedule a reconnect")
	}
	if view := ansi.Strip(m.View()); !strings.Contains(view, "connecting to") || !strings.Contains(view, "reset") {
		t.Errorf("view:\n%s", view)
	}

	cancel()
	_, cmd = step(t, m, DisconnectedMsg{Err: context.Canceled})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("cancelled context must quit")
	}
}
