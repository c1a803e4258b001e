// Package stationauth talks to the remote station authentication backend.
package stationauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kensar/kiosk/internal/store"
)

// ErrRejected is returned when the backend refuses the credentials. The
// wrapping error carries the backend's human-readable detail.
var ErrRejected = errors.New("station login rejected")

// DefaultDetail is used when a rejection carries no detail message.
const DefaultDetail = "could not validate the station"

// Client is an HTTP client for the station authentication backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a new station auth client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// LoginRequest is the body for POST /auth/pos-station-login.
type LoginRequest struct {
	StationEmail    string `json:"station_email"`
	StationPassword string `json:"station_password"`
	DeviceID        string `json:"device_id"`
	DeviceLabel     string `json:"device_label"`
}

// Station is the identity returned by a successful login.
type Station struct {
	ID    string `json:"station_id"`
	Label string `json:"station_label"`
	Email string `json:"station_email"`
}

// Document returns the station fields as a partial config document.
func (s Station) Document() store.Document {
	return store.Document{
		store.KeyStationID:    s.ID,
		store.KeyStationLabel: s.Label,
		store.KeyStationEmail: s.Email,
	}
}

type rejection struct {
	Detail string `json:"detail"`
}

// RejectedError carries the backend's explanation of a refused login.
type RejectedError struct {
	Status int
	Detail string
}

func (e *RejectedError) Error() string { return e.Detail }

// Unwrap makes errors.Is(err, ErrRejected) true.
func (e *RejectedError) Unwrap() error { return ErrRejected }

// Login exchanges station credentials for the station identity.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Station, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/pos-station-login", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var r rejection
		if json.Unmarshal(body, &r) != nil || r.Detail == "" {
			r.Detail = DefaultDetail
		}
		return nil, &RejectedError{Status: resp.StatusCode, Detail: r.Detail}
	}

	var st Station
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if st.ID == "" {
		return nil, errors.New("station login: response missing station_id")
	}
	return &st, nil
}

// LoginURL builds the POS login page URL for the configured station. Without
// a station id it is the bare login page.
func LoginURL(loginPage string, doc store.Document) string {
	if doc.StationID() == "" {
		return loginPage
	}
	params := url.Values{}
	params.Set("station_id", doc.StationID())
	if v := doc.StationLabel(); v != "" {
		params.Set("station_label", v)
	}
	if v := doc.StationEmail(); v != "" {
		params.Set("station_email", v)
	}
	return loginPage + "?" + params.Encode()
}
