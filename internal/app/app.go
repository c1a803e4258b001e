// Package app wires the kiosk components into one explicitly owned
// application context and exposes the operations the UI boundary calls.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/kensar/kiosk/internal/admingate"
	"github.com/kensar/kiosk/internal/config"
	"github.com/kensar/kiosk/internal/device"
	"github.com/kensar/kiosk/internal/hub"
	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/metrics"
	"github.com/kensar/kiosk/internal/power"
	"github.com/kensar/kiosk/internal/stationauth"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/update"
	"github.com/kensar/kiosk/internal/zoom"
)

// Options configures New. Only Config is required.
type Options struct {
	Config  config.Config
	Version string
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	// Journal may be nil; nothing is recorded then.
	Journal *journal.Journal
	Clock   clockwork.Clock
	// Quit stops the running process. It is called at most once.
	Quit func()

	// Overrides for tests.
	Feed      update.Feed
	Station   *stationauth.Client
	Power     *power.Shutdown
	Restarter update.Restarter
}

// App is the application context: it owns every component and the handle
// to the attached UI surface. One App exists per process.
type App struct {
	Config  config.Config
	Version string

	Store   *store.Store
	Device  *device.Identity
	Gate    *admingate.Gate
	Zoom    *zoom.Policy
	Hub     *hub.Hub
	Updates *update.Lifecycle
	Checker *update.Checker
	Journal *journal.Journal
	Station *stationauth.Client
	Power   *power.Shutdown
	Metrics *metrics.Recorder

	logger   *slog.Logger
	limiter  *admingate.Limiter
	quit     func()
	quitOnce sync.Once
}

// New builds the application context. It performs no I/O.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	a := &App{
		Config:  cfg,
		Version: opts.Version,
		Journal: opts.Journal,
		Metrics: opts.Metrics,
		logger:  logger,
		limiter: admingate.NewLimiter(pinAttemptsPerWindow, pinAttemptWindow),
		quit:    opts.Quit,
	}

	a.Store = store.New(cfg.DataDir, logger, opts.Metrics)
	a.Device = device.New(a.Store)
	a.Gate = admingate.New(a.Store, cfg.PinHash)
	a.Hub = hub.New(hub.Options{Logger: logger, Metrics: opts.Metrics, Hello: a.hello, OriginPatterns: cfg.AllowedOrigins})
	a.Zoom = zoom.New(a.Store, func() zoom.Surface { return a.Hub }, logger)

	a.Station = opts.Station
	if a.Station == nil {
		a.Station = stationauth.New(cfg.APIBaseURL)
	}
	a.Power = opts.Power
	if a.Power == nil {
		a.Power = power.New(logger)
	}

	restarter := opts.Restarter
	if restarter == nil {
		restarter = &update.CommandRestarter{Command: cfg.InstallCommand, Quit: a.Quit, Logger: logger}
	}
	a.Updates = update.NewLifecycle(a.publishUpdate, restarter, opts.Clock, logger)

	feed := opts.Feed
	if feed == nil {
		feed = &update.ReleaseFeed{
			URL:            cfg.UpdateFeedURL,
			CurrentVersion: opts.Version,
			Dir:            filepath.Join(cfg.DataDir, "updates"),
		}
	}
	a.Checker = update.NewChecker(feed, a.Updates, update.CheckerOptions{
		Interval: cfg.UpdateInterval,
		Enabled:  cfg.Packaged,
		Clock:    opts.Clock,
		Logger:   logger,
	})
	return a
}

// Start ensures the device identity exists and starts update checks.
func (a *App) Start(ctx context.Context) error {
	if err := a.Config.EnsureDataDir(); err != nil {
		return err
	}
	info, err := a.Device.Info()
	if err != nil {
		return fmt.Errorf("ensure device identity: %w", err)
	}
	a.logger.Info("device ready", "device_id", info.DeviceID, "label", info.DeviceLabel)
	return a.Checker.Start(ctx)
}

// Close stops timers and detaches the UI surface.
func (a *App) Close() {
	if err := a.Checker.Stop(); err != nil {
		a.logger.Warn("stop update checker", "err", err)
	}
	a.Updates.Close()
	a.Hub.Close()
}

// Quit asks the process to exit. Only the first call has an effect.
func (a *App) Quit() {
	a.quitOnce.Do(func() {
		a.logger.Info("quit requested")
		if a.quit != nil {
			a.quit()
		}
	})
}

// publishUpdate fans a lifecycle snapshot out to the surface, metrics and
// journal. It runs under the lifecycle lock and must not block.
func (a *App) publishUpdate(s update.Snapshot) {
	a.Hub.Push(hub.ChannelUpdateStatus, s)
	a.Metrics.UpdateStatus(string(s.Status), s.CountdownSeconds)

	detail := ""
	switch {
	case s.Status == update.PhaseAvailable && s.Info != nil:
		detail = "available " + s.Info.Version
	case s.Status == update.PhaseDownloaded && s.CountdownSeconds == update.CountdownStart && s.Info != nil:
		detail = "downloaded " + s.Info.Version
	case s.Status == update.PhaseRestarting:
		detail = "restarting"
	case s.Status == update.PhaseError:
		detail = "error: " + s.Message
	default:
		return
	}
	go a.record(context.Background(), journal.KindUpdate, detail)
}

// hello is sent to a newly attached surface: the current update status and
// the zoom factor to apply.
func (a *App) hello() []hub.Message {
	return []hub.Message{
		{Channel: hub.ChannelUpdateStatus, Payload: a.Updates.Current()},
		{Channel: hub.ChannelZoomApply, Payload: hub.ZoomApply{Factor: a.Zoom.Get(), VisualZoomMin: 1, VisualZoomMax: 1, SuppressKeys: true}},
	}
}

func (a *App) record(ctx context.Context, kind, detail string) {
	if err := a.Journal.Record(ctx, kind, detail); err != nil {
		a.logger.Warn("journal write failed", "kind", kind, "err", err)
	}
}
