package update

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the period between release checks.
const DefaultInterval = 6 * time.Hour

// CheckerOptions configures a Checker.
type CheckerOptions struct {
	// Interval between checks; DefaultInterval when zero.
	Interval time.Duration
	// Enabled is false for development and unpackaged builds, which never
	// check for updates.
	Enabled bool
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// Checker runs the feed immediately on Start and then on a fixed interval,
// feeding its events into the lifecycle.
type Checker struct {
	feed      Feed
	lifecycle *Lifecycle
	opts      CheckerOptions
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// NewChecker returns a Checker for feed and lc.
func NewChecker(feed Feed, lc *Lifecycle, opts CheckerOptions) *Checker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{feed: feed, lifecycle: lc, opts: opts, logger: logger.With("component", "update-checker")}
}

// Start schedules the periodic check. It does nothing when the checker is
// disabled.
func (c *Checker) Start(ctx context.Context) error {
	if !c.opts.Enabled {
		c.logger.Info("update checks disabled for unpackaged build")
		return nil
	}

	s, err := gocron.NewScheduler(
		gocron.WithClock(c.opts.Clock),
		gocron.WithLogger(c.logger),
	)
	if err != nil {
		return fmt.Errorf("create update scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(c.opts.Interval),
		gocron.NewTask(c.Run),
		gocron.WithName("update-check"),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown() // nothing scheduled yet
		return fmt.Errorf("schedule update check: %w", err)
	}
	c.scheduler = s
	s.Start()
	c.logger.Info("update checks scheduled", "interval", c.opts.Interval)
	return nil
}

// Stop shuts down the scheduler, waiting for a running check to return.
func (c *Checker) Stop() error {
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Shutdown()
}

// Run performs a single check unless an update is already in flight.
func (c *Checker) Run(ctx context.Context) {
	if c.lifecycle.Current().Status.Busy() || c.lifecycle.Armed() {
		c.logger.Debug("skip update check", "phase", c.lifecycle.Current().Status)
		return
	}
	if err := c.feed.Check(ctx, c.lifecycle.Handle); err != nil {
		c.logger.Warn("update check failed", "err", err)
		c.lifecycle.Handle(Failed(err.Error()))
	}
}
