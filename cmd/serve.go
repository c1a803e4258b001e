package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kensar/kiosk/internal/api"
	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/client"
	"github.com/kensar/kiosk/internal/instance"
	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk control plane",
	Long: `Run the control plane: take the single-instance lock, ensure the device
identity, start the periodic update checks (packaged builds only) and serve the
local control API until interrupted.

When another instance already holds the lock, its surface is focused and this
process exits successfully.`,
	GroupID: "core",
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	lock, err := instance.Acquire(cfg.DataDir)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		focusRunning(cmd.Context())
		return nil
	}
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := journal.Open(cfg.DataDir)
	if err != nil {
		logger.Warn("journal unavailable", "err", err)
		j = nil
	}
	defer j.Close()

	a := app.New(app.Options{
		Config:  cfg,
		Version: version,
		Logger:  logger,
		Metrics: metrics.New(),
		Journal: j,
		Quit:    stop,
	})
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(a, cfg.ListenAddr, logger)
	addr, err := srv.Start()
	if err != nil {
		return err
	}
	logger.Info("kiosk started",
		"version", version,
		"addr", addr,
		"data_dir", cfg.DataDir,
		"packaged", cfg.Packaged,
		"login_url", a.LoginURL(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	return nil
}

// focusRunning asks the instance holding the lock to focus its surface.
// Failure is logged only: the second launch still exits quietly.
func focusRunning(ctx context.Context) {
	pid, alive := instance.Holder(cfg.DataDir)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.New(cfg.ListenAddr).Focus(ctx); err != nil {
		logger.Warn("another instance holds the lock but did not answer", "pid", pid, "alive", alive, "err", err)
		return
	}
	logger.Info("another instance is running; focused it", "pid", pid)
}
