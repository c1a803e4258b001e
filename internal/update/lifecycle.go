package update

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CountdownStart is the number of seconds between a completed download and
// the forced restart.
const CountdownStart = 15

const tickInterval = time.Second

// Emitter receives every status snapshot. It must not block and must not
// call back into the Lifecycle.
type Emitter func(Snapshot)

// Restarter quits the application and installs the downloaded package.
type Restarter interface {
	Restart(info Info) error
}

// RestartFunc adapts a function to Restarter.
type RestartFunc func(Info) error

// Restart calls f(info).
func (f RestartFunc) Restart(info Info) error { return f(info) }

// Lifecycle is the update state machine. One instance exists per process.
type Lifecycle struct {
	emit      Emitter
	restarter Restarter
	clock     clockwork.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	current   Snapshot
	timer     clockwork.Timer
	gen       uint64
	remaining int
	info      Info
	closed    bool
}

// NewLifecycle returns a Lifecycle in the idle phase. clock and logger may be nil.
func NewLifecycle(emit Emitter, r Restarter, clock clockwork.Clock, logger *slog.Logger) *Lifecycle {
	if emit == nil {
		emit = func(Snapshot) {}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		emit:      emit,
		restarter: r,
		clock:     clock,
		logger:    logger.With("component", "update"),
		current:   Snapshot{Status: PhaseIdle},
	}
}

// Armed reports whether a restart countdown is running.
func (l *Lifecycle) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timer != nil
}

// Current returns the most recent snapshot.
func (l *Lifecycle) Current() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Handle applies a feed event. Events that are not legal in the current
// phase are logged and dropped.
func (l *Lifecycle) Handle(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	from := l.current.Status
	if !allowed(from, ev.Kind) || (ev.Kind == EventCheckStarted && l.timer != nil) {
		l.logger.Debug("drop update event", "event", ev.Kind, "phase", from)
		return
	}

	switch ev.Kind {
	case EventCheckStarted:
		l.set(Snapshot{Status: PhaseChecking})
	case EventFound:
		l.set(Snapshot{Status: PhaseAvailable, Info: ev.Info})
	case EventAbsent:
		l.set(Snapshot{Status: PhaseNone})
	case EventProgress:
		l.set(Snapshot{Status: PhaseDownloading, Info: l.current.Info, Progress: ev.Progress})
	case EventDownloaded:
		if ev.Info != nil {
			l.info = *ev.Info
		}
		l.arm()
	case EventFailed:
		// An armed countdown keeps running; the restart is not cancellable.
		l.set(Snapshot{Status: PhaseError, Message: ev.Message})
	}
}

// Close stops any armed countdown. Later events are ignored.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.stopTimer()
}

func allowed(from Phase, kind EventKind) bool {
	if from == PhaseRestarting {
		return false
	}
	switch kind {
	case EventCheckStarted:
		return !from.Busy()
	case EventFound, EventAbsent:
		return from == PhaseChecking
	case EventProgress:
		return from == PhaseAvailable || from == PhaseDownloading
	case EventDownloaded:
		return from == PhaseAvailable || from == PhaseDownloading || from == PhaseDownloaded || from == PhaseError
	case EventFailed:
		return from != PhaseIdle
	}
	return false
}

// arm cancels any previous countdown and starts a new one. Callers hold l.mu.
func (l *Lifecycle) arm() {
	l.stopTimer()
	l.gen++
	l.remaining = CountdownStart
	info := l.info
	l.set(Snapshot{Status: PhaseDownloaded, Info: &info, CountdownSeconds: l.remaining})
	l.schedule(l.gen)
}

func (l *Lifecycle) schedule(gen uint64) {
	l.timer = l.clock.AfterFunc(tickInterval, func() { l.tick(gen) })
}

func (l *Lifecycle) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lifecycle) tick(gen uint64) {
	l.mu.Lock()
	if l.closed || gen != l.gen || l.current.Status == PhaseRestarting {
		l.mu.Unlock()
		return
	}
	l.remaining--
	info := l.info
	if l.remaining > 0 {
		l.schedule(gen)
		l.set(Snapshot{Status: PhaseDownloaded, Info: &info, CountdownSeconds: l.remaining})
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.set(Snapshot{Status: PhaseRestarting, Info: &info})
	l.mu.Unlock()

	l.logger.Info("restarting to install update", "version", info.Version)
	if l.restarter == nil {
		return
	}
	if err := l.restarter.Restart(info); err != nil {
		l.logger.Error("restart for update", "version", info.Version, "err", err)
	}
}

// set records and emits s. Callers hold l.mu.
func (l *Lifecycle) set(s Snapshot) {
	l.current = s
	l.emit(s)
}
