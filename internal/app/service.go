package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kensar/kiosk/internal/device"
	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/stationauth"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/update"
	"github.com/kensar/kiosk/internal/zoom"
)

const (
	pinAttemptsPerWindow = 5
	pinAttemptWindow     = time.Minute
)

var (
	// ErrAdminRequired is returned when an administrative action is attempted
	// without a correct PIN. It does not distinguish a missing PIN from a
	// wrong one.
	ErrAdminRequired = errors.New("admin PIN rejected")

	// ErrMissingCredentials is returned by StationLogin when the email or
	// password is blank.
	ErrMissingCredentials = errors.New("station email and password are required")
)

// PinResult is the outcome of SetAdminPin.
type PinResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// protectedKeys cannot be written through SetConfig.
var protectedKeys = []string{store.KeyDeviceID, store.KeyAdminPinHash}

// GetConfig returns the stored document, or nil before first configuration.
func (a *App) GetConfig() store.Document {
	return a.Store.Load()
}

// SetConfig merges partial into the document. Device id and PIN hash keys
// are ignored.
func (a *App) SetConfig(partial store.Document) (store.Document, error) {
	clean := partial.Clone()
	for _, k := range protectedKeys {
		delete(clean, k)
	}
	return a.Store.Merge(clean)
}

// ClearConfig resets the document to its device identity, admin PIN hash and
// zoom factor. pin must match the stored admin PIN; failed attempts count
// against key.
func (a *App) ClearConfig(ctx context.Context, key, pin string) (store.Document, error) {
	if !a.VerifyAdminPin(ctx, key, pin) {
		return nil, ErrAdminRequired
	}
	current, err := a.Device.Ensure()
	if err != nil {
		return nil, err
	}
	info, err := a.Device.Info()
	if err != nil {
		return nil, err
	}
	identity := store.Document{store.KeyDeviceID: info.DeviceID, store.KeyDeviceLabel: info.DeviceLabel}
	doc, err := a.Store.Reset(store.PreserveFrom(identity, current))
	if err != nil {
		return nil, err
	}
	a.record(ctx, journal.KindConfigReset, "station "+current.StationID())
	return doc, nil
}

// HasAdminPin reports whether an admin PIN is configured.
func (a *App) HasAdminPin() bool {
	return a.Gate.HasPin()
}

// SetAdminPin stores a new PIN. Replacing an existing PIN requires the
// current one, checked against key's attempt budget.
func (a *App) SetAdminPin(ctx context.Context, key, pin, current string) PinResult {
	if a.Gate.HasPin() && !a.VerifyAdminPin(ctx, key, current) {
		return PinResult{Error: ErrAdminRequired.Error()}
	}
	if err := a.Gate.SetPin(pin); err != nil {
		return PinResult{Error: err.Error()}
	}
	a.record(ctx, journal.KindPinSet, "")
	return PinResult{OK: true}
}

// VerifyAdminPin checks pin, limiting attempts per caller key.
func (a *App) VerifyAdminPin(ctx context.Context, key, pin string) bool {
	if !a.limiter.Allow(key) {
		a.logger.Warn("admin PIN attempts rate limited", "key", key)
		a.Metrics.PinVerified(false)
		return false
	}
	ok := a.Gate.VerifyPin(pin)
	a.Metrics.PinVerified(ok)
	if ok {
		a.limiter.Reset(key)
		return true
	}
	a.record(ctx, journal.KindPinRejected, key)
	return false
}

// DeviceInfo returns the device identity, creating it on first use.
func (a *App) DeviceInfo() (device.Info, error) {
	return a.Device.Info()
}

// GetZoom returns the effective zoom factor.
func (a *App) GetZoom() float64 {
	return a.Zoom.Get()
}

// SetZoom stores and applies a zoom factor, returning the clamped value.
func (a *App) SetZoom(v float64) (float64, error) {
	return a.Zoom.Set(v)
}

// SurfaceEvent re-applies the zoom factor after a surface event that may
// have changed it.
func (a *App) SurfaceEvent(kind zoom.EventKind) (float64, bool) {
	return a.Zoom.Enforce(kind)
}

// AppVersion returns the running version.
func (a *App) AppVersion() string {
	return a.Version
}

// Shutdown requests a host power-off. It reports false when unsupported or
// when the OS command fails.
func (a *App) Shutdown(ctx context.Context) bool {
	return a.Power.TryRequest(ctx)
}

// UpdateStatus returns the latest update snapshot.
func (a *App) UpdateStatus() update.Snapshot {
	return a.Updates.Current()
}

// StationLogin authenticates the station against the backend and stores
// its identity.
func (a *App) StationLogin(ctx context.Context, email, password string) (store.Document, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	info, err := a.Device.Info()
	if err != nil {
		return nil, err
	}
	st, err := a.Station.Login(ctx, stationauth.LoginRequest{
		StationEmail:    email,
		StationPassword: password,
		DeviceID:        info.DeviceID,
		DeviceLabel:     info.DeviceLabel,
	})
	if err != nil {
		return nil, err
	}
	doc, err := a.Store.Merge(st.Document())
	if err != nil {
		return nil, err
	}
	a.record(ctx, journal.KindLogin, st.ID+" "+st.Email)
	return doc, nil
}

// LoginURL is the POS page the surface should load.
func (a *App) LoginURL() string {
	return stationauth.LoginURL(a.Config.LoginURL(), a.Store.Load())
}

// Focus asks the attached surface to come to the front. It is used when a
// second instance starts.
func (a *App) Focus() bool {
	return a.Hub.Focus()
}
