package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/client"
	"github.com/kensar/kiosk/internal/device"
	"github.com/kensar/kiosk/internal/instance"
	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/store"
)

// errOwnerUnreachable is returned when another process holds the data
// directory but its control API does not answer, so nothing can be written.
var errOwnerUnreachable = errors.New("data directory is owned by a running kiosk that does not answer")

// openApp builds an application context over the data directory for a
// one-shot command. Update checks are not started. The returned func
// releases the journal. Commands that write the configuration document use
// openOwner instead.
func openApp() (*app.App, func(), error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	j, err := journal.Open(cfg.DataDir)
	if err != nil {
		logger.Warn("journal unavailable", "err", err)
		j = nil
	}
	a := app.New(app.Options{
		Config:  cfg,
		Version: version,
		Logger:  logger,
		Journal: j,
	})
	return a, func() { j.Close() }, nil
}

// runningClient returns a client for the running instance, or nil when no
// instance answers on the configured address.
func runningClient(ctx context.Context) *client.Client {
	c := client.New(cfg.ListenAddr)
	ctx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
	defer cancel()
	if _, err := c.Health(ctx); err != nil {
		return nil
	}
	return c
}

// owner performs document writes for a one-shot command. When an instance
// is running every write goes through its control API; otherwise the
// command takes the single-instance lock and writes locally, so the
// document never has two writers.
type owner struct {
	remote *client.Client
	local  *app.App
	close  func()
}

// openOwner returns the running instance as owner, or takes ownership of
// the data directory itself.
func openOwner(ctx context.Context) (*owner, error) {
	if c := runningClient(ctx); c != nil {
		return &owner{remote: c, close: func() {}}, nil
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	lock, err := instance.Acquire(cfg.DataDir)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		return nil, fmt.Errorf("%w on %s: %v", errOwnerUnreachable, cfg.ListenAddr, err)
	}
	if err != nil {
		return nil, err
	}
	a, done, err := openApp()
	if err != nil {
		lock.Release()
		return nil, err
	}
	return &owner{local: a, close: func() {
		done()
		lock.Release()
	}}, nil
}

// Close releases the lock when the command owned the directory.
func (o *owner) Close() { o.close() }

// Live reports whether writes reach a running instance.
func (o *owner) Live() bool { return o.remote != nil }

func (o *owner) Config(ctx context.Context) (store.Document, error) {
	if o.remote != nil {
		return o.remote.Config(ctx)
	}
	return o.local.GetConfig(), nil
}

func (o *owner) SetConfig(ctx context.Context, partial store.Document) (store.Document, error) {
	if o.remote != nil {
		return o.remote.SetConfig(ctx, partial)
	}
	return o.local.SetConfig(partial)
}

// ClearConfig reports a wrong PIN as app.ErrAdminRequired either way.
func (o *owner) ClearConfig(ctx context.Context, pin string) (store.Document, error) {
	if o.remote != nil {
		doc, err := o.remote.ClearConfig(ctx, pin)
		if errors.Is(err, client.ErrForbidden) {
			return nil, app.ErrAdminRequired
		}
		return doc, err
	}
	return o.local.ClearConfig(ctx, cliPinKey, pin)
}

func (o *owner) HasAdminPin(ctx context.Context) (bool, error) {
	if o.remote != nil {
		return o.remote.HasPin(ctx)
	}
	return o.local.HasAdminPin(), nil
}

func (o *owner) SetAdminPin(ctx context.Context, pin, current string) (app.PinResult, error) {
	if o.remote != nil {
		res, err := o.remote.SetPin(ctx, pin, current)
		return app.PinResult{OK: res.OK, Error: res.Error}, err
	}
	return o.local.SetAdminPin(ctx, cliPinKey, pin, current), nil
}

func (o *owner) DeviceInfo(ctx context.Context) (device.Info, error) {
	if o.remote != nil {
		return o.remote.Device(ctx)
	}
	return o.local.DeviceInfo()
}

func (o *owner) StationLogin(ctx context.Context, email, password string) (store.Document, error) {
	if o.remote != nil {
		return o.remote.StationLogin(ctx, email, password)
	}
	return o.local.StationLogin(ctx, email, password)
}

func (o *owner) LoginURL(ctx context.Context) (string, error) {
	if o.remote != nil {
		return o.remote.StationURL(ctx)
	}
	return o.local.LoginURL(), nil
}

// SetZoom stores the factor. A running instance also applies it to its
// surface.
func (o *owner) SetZoom(ctx context.Context, v float64) (float64, error) {
	if o.remote != nil {
		return o.remote.SetZoom(ctx, v)
	}
	return o.local.SetZoom(v)
}
