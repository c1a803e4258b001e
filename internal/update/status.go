// Package update drives the self-update lifecycle: periodic checks against a
// release feed, download progress, and a countdown that ends in a forced
// restart into the new version.
package update

import "time"

// Phase is the lifecycle state reported to the UI.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseChecking    Phase = "checking"
	PhaseAvailable   Phase = "available"
	PhaseNone        Phase = "none"
	PhaseDownloading Phase = "downloading"
	PhaseDownloaded  Phase = "downloaded"
	PhaseRestarting  Phase = "restarting"
	PhaseError       Phase = "error"
)

// Busy reports whether a found update is still being processed, in which
// case a new check must not start.
func (p Phase) Busy() bool {
	switch p {
	case PhaseAvailable, PhaseDownloading, PhaseDownloaded, PhaseRestarting:
		return true
	}
	return false
}

// Info describes a release.
type Info struct {
	Version      string    `json:"version"`
	ReleaseName  string    `json:"releaseName,omitempty"`
	ReleaseNotes string    `json:"releaseNotes,omitempty"`
	ReleaseDate  time.Time `json:"releaseDate,omitzero"`
	// Path is the downloaded package, set once the download completes.
	Path string `json:"path,omitempty"`
}

// Progress is a download progress sample.
type Progress struct {
	Percent        float64 `json:"percent"`
	BytesPerSecond int64   `json:"bytesPerSecond"`
	Transferred    int64   `json:"transferred"`
	Total          int64   `json:"total"`
}

// Snapshot is the status payload pushed to the UI after every transition.
type Snapshot struct {
	Status           Phase     `json:"status"`
	Info             *Info     `json:"info,omitempty"`
	Progress         *Progress `json:"progress,omitempty"`
	CountdownSeconds int       `json:"countdownSeconds,omitempty"`
	Message          string    `json:"message,omitempty"`
}

// EventKind identifies a feed event.
type EventKind string

const (
	EventCheckStarted EventKind = "checking-for-update"
	EventFound        EventKind = "update-available"
	EventAbsent       EventKind = "update-not-available"
	EventProgress     EventKind = "download-progress"
	EventDownloaded   EventKind = "update-downloaded"
	EventFailed       EventKind = "error"
)

// Event is a discrete notification from the release feed.
type Event struct {
	Kind     EventKind
	Info     *Info
	Progress *Progress
	Message  string
}

// CheckStarted returns a check-started event.
func CheckStarted() Event { return Event{Kind: EventCheckStarted} }

// Found returns an update-found event.
func Found(info Info) Event { return Event{Kind: EventFound, Info: &info} }

// Absent returns an update-absent event.
func Absent() Event { return Event{Kind: EventAbsent} }

// Downloading returns a download-progress event.
func Downloading(p Progress) Event { return Event{Kind: EventProgress, Progress: &p} }

// Downloaded returns a download-complete event.
func Downloaded(info Info) Event { return Event{Kind: EventDownloaded, Info: &info} }

// Failed returns a failure event carrying msg.
func Failed(msg string) Event { return Event{Kind: EventFailed, Message: msg} }
