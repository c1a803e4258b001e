package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kensar/kiosk/internal/config"
	"github.com/kensar/kiosk/internal/journal"
	"github.com/kensar/kiosk/internal/power"
	"github.com/kensar/kiosk/internal/stationauth"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/update"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:        config.EnvProd,
		BaseURL:    "https://www.metrikpos.com",
		APIBaseURL: "http://127.0.0.1:1",
		DataDir:    t.TempDir(),
		PinHash:    config.PinHashSHA256,
	}
}

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	if opts.Config.DataDir == "" {
		opts.Config = testConfig(t)
	}
	if opts.Version == "" {
		opts.Version = "v1.0.0"
	}
	if opts.Restarter == nil {
		opts.Restarter = update.RestartFunc(func(update.Info) error { return nil })
	}
	a := New(opts)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestStartEnsuresDevice(t *testing.T) {
	a := newTestApp(t, Options{})
	doc := a.GetConfig()
	if doc.DeviceID() == "" || doc.DeviceLabel() == "" {
		t.Fatalf("device identity not created: %v", doc)
	}
}

func TestSetConfigIgnoresProtectedKeys(t *testing.T) {
	a := newTestApp(t, Options{})
	id := a.GetConfig().DeviceID()

	doc, err := a.SetConfig(store.Document{
		store.KeyDeviceID:     "forged",
		store.KeyAdminPinHash: "0000",
		store.KeyStationEmail: "caja@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if doc.DeviceID() != id {
		t.Errorf("device id changed to %q", doc.DeviceID())
	}
	if doc.AdminPinHash() != "" {
		t.Error("admin pin hash must not be writable through SetConfig")
	}
	if doc.StationEmail() != "caja@example.com" {
		t.Errorf("station email = %q", doc.StationEmail())
	}
}

func TestClearConfigRequiresPin(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()

	if _, err := a.ClearConfig(ctx, "t", "1234"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("clear without configured PIN err = %v, want ErrAdminRequired", err)
	}

	if r := a.SetAdminPin(ctx, "t", "1234", ""); !r.OK {
		t.Fatalf("SetAdminPin = %+v", r)
	}
	if _, err := a.SetZoom(0.8); err != nil {
		t.Fatal(err)
	}
	if _, err := a.SetConfig(store.Document{store.KeyStationID: "st", store.KeyStationEmail: "e@x.co"}); err != nil {
		t.Fatal(err)
	}
	before := a.GetConfig()

	if _, err := a.ClearConfig(ctx, "t", "9999"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("wrong PIN err = %v", err)
	}

	doc, err := a.ClearConfig(ctx, "t", "1234")
	if err != nil {
		t.Fatal(err)
	}
	if doc.StationID() != "" || doc.StationEmail() != "" {
		t.Errorf("station fields survived reset: %v", doc)
	}
	if doc.DeviceID() != before.DeviceID() || doc.AdminPinHash() != before.AdminPinHash() {
		t.Errorf("identity not preserved: %v", doc)
	}
	if z, ok := doc.ZoomFactor(); !ok || z != 0.8 {
		t.Errorf("zoom = %v, %v", z, ok)
	}
}

func TestSetAdminPinReplaceNeedsCurrent(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()

	if r := a.SetAdminPin(ctx, "t", "12a4", ""); r.OK || r.Error == "" {
		t.Fatalf("invalid pin result = %+v", r)
	}
	if a.HasAdminPin() {
		t.Fatal("invalid pin must not be stored")
	}
	if r := a.SetAdminPin(ctx, "t", "1234", ""); !r.OK {
		t.Fatal(r.Error)
	}
	if r := a.SetAdminPin(ctx, "t", "5678", "0000"); r.OK {
		t.Fatal("replacing with wrong current PIN must fail")
	}
	if r := a.SetAdminPin(ctx, "t", "5678", "1234"); !r.OK {
		t.Fatalf("replace = %+v", r)
	}
	if !a.VerifyAdminPin(ctx, "t", "5678") {
		t.Error("new PIN should verify")
	}
}

func TestVerifyAdminPinRateLimited(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()
	a.SetAdminPin(ctx, "t", "1234", "")

	for i := 0; i < pinAttemptsPerWindow; i++ {
		if a.VerifyAdminPin(ctx, "ui", "0000") {
			t.Fatal("wrong PIN verified")
		}
	}
	if a.VerifyAdminPin(ctx, "ui", "1234") {
		t.Fatal("correct PIN must be refused once attempts are exhausted")
	}
	if !a.VerifyAdminPin(ctx, "cli", "1234") {
		t.Fatal("other callers are limited separately")
	}
}

func TestAdminActionsLimitedPerCaller(t *testing.T) {
	a := newTestApp(t, Options{})
	ctx := context.Background()
	a.SetAdminPin(ctx, "t", "1234", "")

	for i := 0; i < pinAttemptsPerWindow; i++ {
		if _, err := a.ClearConfig(ctx, "api:10.0.0.9", "0000"); !errors.Is(err, ErrAdminRequired) {
			t.Fatalf("wrong PIN err = %v", err)
		}
	}
	if r := a.SetAdminPin(ctx, "api:10.0.0.9", "5678", "1234"); r.OK {
		t.Fatal("exhausted caller must stay locked out")
	}
	if _, err := a.ClearConfig(ctx, "api:127.0.0.1", "1234"); err != nil {
		t.Fatalf("another caller was locked out: %v", err)
	}
	if r := a.SetAdminPin(ctx, "cli", "5678", "1234"); !r.OK {
		t.Fatalf("replace from another caller = %+v", r)
	}
}

func TestJournalRecordsAdminActions(t *testing.T) {
	cfg := testConfig(t)
	j, err := journal.Open(cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	a := newTestApp(t, Options{Config: cfg, Journal: j})
	ctx := context.Background()
	a.SetAdminPin(ctx, "t", "1234", "")
	a.VerifyAdminPin(ctx, "ui", "4321")

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]bool{}
	for _, e := range entries {
		kinds[e.Kind] = true
		if strings.Contains(e.Detail, "1234") || strings.Contains(e.Detail, "4321") {
			t.Errorf("journal entry leaks a PIN: %+v", e)
		}
	}
	if !kinds[journal.KindPinSet] || !kinds[journal.KindPinRejected] {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestStationLogin(t *testing.T) {
	var req stationauth.LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		if req.StationPassword != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Credenciales inválidas"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"station_id": "st-1", "station_label": "Caja 1", "station_email": "caja1@example.com",
		})
	}))
	defer srv.Close()

	a := newTestApp(t, Options{Station: stationauth.New(srv.URL)})
	ctx := context.Background()

	if _, err := a.StationLogin(ctx, " ", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}

	_, err := a.StationLogin(ctx, "caja1@example.com", "nope")
	var rej *stationauth.RejectedError
	if !errors.As(err, &rej) || rej.Detail != "Credenciales inválidas" {
		t.Fatalf("err = %v, want rejection detail", err)
	}
	if a.GetConfig().StationID() != "" {
		t.Fatal("rejected login must not store station fields")
	}

	doc, err := a.StationLogin(ctx, " caja1@example.com ", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if doc.StationID() != "st-1" || doc.StationLabel() != "Caja 1" {
		t.Errorf("doc = %v", doc)
	}
	if req.DeviceID != doc.DeviceID() || req.StationEmail != "caja1@example.com" {
		t.Errorf("request = %+v", req)
	}

	want := "https://www.metrikpos.com/login-pos?station_email=caja1%40example.com&station_id=st-1&station_label=Caja+1"
	if got := a.LoginURL(); got != want {
		t.Errorf("LoginURL = %q, want %q", got, want)
	}
}

func TestShutdownFailsClosed(t *testing.T) {
	ran := false
	p := power.New(nil)
	p.GOOS = "darwin"
	p.Run = func(context.Context, string, ...string) error {
		ran = true
		return nil
	}
	a := newTestApp(t, Options{Power: p})
	if a.Shutdown(context.Background()) {
		t.Fatal("shutdown must be false off windows")
	}
	if ran {
		t.Fatal("no command may run off windows")
	}
}

func TestQuitOnce(t *testing.T) {
	calls := 0
	a := newTestApp(t, Options{Quit: func() { calls++ }})
	a.Quit()
	a.Quit()
	if calls != 1 {
		t.Fatalf("quit called %d times", calls)
	}
}

func TestUpdateStatusIdleWhenUnpackaged(t *testing.T) {
	a := newTestApp(t, Options{})
	if got := a.UpdateStatus().Status; got != update.PhaseIdle {
		t.Fatalf("status = %s, want idle", got)
	}
	if a.AppVersion() != "v1.0.0" {
		t.Errorf("version = %q", a.AppVersion())
	}
}
