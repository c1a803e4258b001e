package output

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/update"
)

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := FormatTimeAgo(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}

	old := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(old); got != "2024-03-09" {
		t.Errorf("old time = %q", got)
	}
}

func TestFormatDocumentMasksPinHash(t *testing.T) {
	doc := store.Document{
		store.KeyDeviceID:     "abc",
		store.KeyAdminPinHash: "deadbeef",
		store.KeyUIZoomFactor: 0.8,
	}
	got := ansi.Strip(FormatDocument(doc))
	if strings.Contains(got, "deadbeef") {
		t.Fatalf("pin hash printed in clear:\n%s", got)
	}
	lines := strings.Split(got, "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], store.KeyAdminPinHash) || !strings.HasPrefix(lines[2], store.KeyUIZoomFactor) {
		t.Errorf("lines not sorted by key:\n%s", got)
	}
	if !strings.Contains(got, "0.8") {
		t.Errorf("zoom missing:\n%s", got)
	}
}

func TestFormatDocumentNil(t *testing.T) {
	if got := ansi.Strip(FormatDocument(nil)); got != "(not configured)" {
		t.Errorf("got %q", got)
	}
}

func TestFormatSnapshot(t *testing.T) {
	s := update.Snapshot{
		Status:           update.PhaseDownloaded,
		Info:             &update.Info{Version: "v1.4.0"},
		CountdownSeconds: 9,
	}
	got := ansi.Strip(FormatSnapshot(s))
	for _, want := range []string{"downloaded", "v1.4.0", "restarting in 9s"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatSnapshot missing %q: %q", want, got)
		}
	}

	failed := ansi.Strip(FormatSnapshot(update.Snapshot{Status: update.PhaseError, Message: "feed unreachable"}))
	if !strings.Contains(failed, "✗ error") || !strings.Contains(failed, "feed unreachable") {
		t.Errorf("error snapshot = %q", failed)
	}
}

func TestPhaseBadgeUnknown(t *testing.T) {
	if got := PhaseBadge("weird"); got != "? weird" {
		t.Errorf("got %q", got)
	}
}

func TestFormatEntryTruncates(t *testing.T) {
	e := journal.Entry{
		Time:   time.Now(),
		Kind:   journal.KindUpdate,
		Detail: strings.Repeat("x", 200),
	}
	got := FormatEntry(e, 60)
	if w := ansi.StringWidth(got); w > 60 {
		t.Errorf("width = %d, want <= 60", w)
	}
	if !strings.HasSuffix(ansi.Strip(got), "…") {
		t.Errorf("missing ellipsis: %q", ansi.Strip(got))
	}
	if full := FormatEntry(e, 0); !strings.HasSuffix(full, e.Detail) {
		t.Error("width 0 must not truncate")
	}
}

func TestFormatZoom(t *testing.T) {
	if got := FormatZoom(0.85); got != "85%" {
		t.Errorf("got %q", got)
	}
}

func TestReleaseNotesWithoutNotes(t *testing.T) {
	if got := ReleaseNotes(nil, 80, ""); got != "" {
		t.Errorf("nil info = %q", got)
	}
	got := ansi.Strip(ReleaseNotes(&update.Info{Version: "v2.0.0"}, 80, ""))
	if got != "v2.0.0" {
		t.Errorf("title only = %q", got)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	got, err := RenderMarkdown("   ", 80, "")
	if err != nil || got != "" {
		t.Errorf("RenderMarkdown(blank) = %q, %v", got, err)
	}
}

func TestReleaseNotesRendersMarkdown(t *testing.T) {
	info := &update.Info{Version: "v2.1.0", ReleaseName: "Spring", ReleaseNotes: "- faster **checkout**"}
	got := ansi.Strip(ReleaseNotes(info, 60, "dark"))
	for _, want := range []string{"Spring", "faster", "checkout"} {
		if !strings.Contains(got, want) {
			t.Errorf("notes missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "**") {
		t.Errorf("markdown not rendered:\n%s", got)
	}
}
