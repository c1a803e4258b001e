// Package client talks to a running kiosk's local control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kensar/kiosk/internal/device"
	"github.com/kensar/kiosk/internal/stationauth"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/update"
)

const (
	adminPinHeader      = "X-Admin-Pin"
	codeStationRejected = "station_rejected"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrForbidden  = errors.New("forbidden")
	ErrNotRunning = errors.New("kiosk is not running")
)

// Client is an HTTP client for the control API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for the API listening on addr (host:port or URL).
func New(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Frame is one push message from /v1/events.
type Frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// Health reports the running version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Focus asks the running kiosk to bring its surface to the front.
func (c *Client) Focus(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/app/focus", nil, nil)
}

// Quit asks the running kiosk to exit.
func (c *Client) Quit(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/app/quit", nil, nil)
}

// SetZoom stores and applies a zoom factor, returning the clamped value.
func (c *Client) SetZoom(ctx context.Context, factor float64) (float64, error) {
	var out struct {
		Factor float64 `json:"factor"`
	}
	err := c.do(ctx, http.MethodPut, "/v1/zoom", map[string]float64{"factor": factor}, &out)
	return out.Factor, err
}

// Config returns the configuration document.
func (c *Client) Config(ctx context.Context) (store.Document, error) {
	var doc store.Document
	err := c.do(ctx, http.MethodGet, "/v1/config", nil, &doc)
	return doc, err
}

// SetConfig merges partial into the configuration document.
func (c *Client) SetConfig(ctx context.Context, partial store.Document) (store.Document, error) {
	var doc store.Document
	err := c.do(ctx, http.MethodPatch, "/v1/config", partial, &doc)
	return doc, err
}

// ClearConfig resets the configuration document. A wrong PIN yields
// ErrForbidden.
func (c *Client) ClearConfig(ctx context.Context, pin string) (store.Document, error) {
	var doc store.Document
	err := c.doHeader(ctx, http.MethodDelete, "/v1/config", http.Header{adminPinHeader: {pin}}, nil, &doc)
	return doc, err
}

// HasPin reports whether an admin PIN is configured.
func (c *Client) HasPin(ctx context.Context) (bool, error) {
	var out struct {
		Configured bool `json:"configured"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/admin/pin", nil, &out)
	return out.Configured, err
}

// StationURL returns the POS page the surface loads.
func (c *Client) StationURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/station/url", nil, &out)
	return out.URL, err
}

// PinResult is the outcome of SetPin.
type PinResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SetPin sets or replaces the admin PIN.
func (c *Client) SetPin(ctx context.Context, pin, current string) (PinResult, error) {
	var res PinResult
	body := map[string]string{"pin": pin, "currentPin": current}
	err := c.do(ctx, http.MethodPut, "/v1/admin/pin", body, &res)
	return res, err
}

// Device returns the device identity, which the kiosk creates on first use.
func (c *Client) Device(ctx context.Context) (device.Info, error) {
	var info device.Info
	err := c.do(ctx, http.MethodGet, "/v1/device", nil, &info)
	return info, err
}

// StationLogin registers the terminal with a station. A refusal from the
// station backend comes back as *stationauth.RejectedError.
func (c *Client) StationLogin(ctx context.Context, email, password string) (store.Document, error) {
	var doc store.Document
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/v1/station/login", body, &doc)
	var ae *apiError
	if errors.As(err, &ae) && ae.Code == codeStationRejected {
		return nil, &stationauth.RejectedError{Status: http.StatusUnprocessableEntity, Detail: ae.Message}
	}
	return doc, err
}

// UpdateStatus returns the current update snapshot.
func (c *Client) UpdateStatus(ctx context.Context) (update.Snapshot, error) {
	var s update.Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/update/status", nil, &s)
	return s, err
}

// Stream is an open /v1/events subscription.
type Stream struct {
	conn *websocket.Conn
}

// Events subscribes to the push channel. Unless observe is set the
// subscriber becomes the attached surface, replacing any other.
func (c *Client) Events(ctx context.Context, observe bool) (*Stream, error) {
	url := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/v1/events"
	if observe {
		url += "?observe=1"
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: c.HTTP})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next frame.
func (s *Stream) Next(ctx context.Context) (Frame, error) {
	var f Frame
	err := wsjson.Read(ctx, s.conn, &f)
	return f, err
}

// Close ends the subscription.
func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doHeader(ctx, method, path, nil, body, result)
}

func (c *Client) doHeader(ctx context.Context, method, path string, header http.Header, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error apiError `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Code != "" {
			if resp.StatusCode == http.StatusForbidden {
				return fmt.Errorf("%w: %s", ErrForbidden, envelope.Error.Message)
			}
			return &envelope.Error
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
