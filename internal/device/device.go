// Package device maintains the installation's stable device identity inside
// the configuration document.
package device

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/kensar/kiosk/internal/store"
)

// Info is the identity reported to the UI and the station backend.
type Info struct {
	DeviceID    string `json:"deviceId"`
	DeviceLabel string `json:"deviceLabel"`
}

// Identity ensures a device id exists in the store.
type Identity struct {
	store    *store.Store
	hostname func() (string, error)
}

// New returns an Identity backed by s.
func New(s *store.Store) *Identity {
	return &Identity{store: s, hostname: os.Hostname}
}

// Ensure returns the stored document, generating and persisting a device id
// (and a default label from the host name) the first time. Once an id exists
// Ensure is a pure read.
func (d *Identity) Ensure() (store.Document, error) {
	return d.store.Modify(func(current store.Document) (store.Document, error) {
		if current.DeviceID() != "" {
			return nil, nil
		}
		id, err := GenerateID()
		if err != nil {
			return nil, err
		}
		partial := store.Document{store.KeyDeviceID: id}
		if current.DeviceLabel() == "" {
			partial[store.KeyDeviceLabel] = d.defaultLabel()
		}
		return partial, nil
	})
}

// Info ensures the identity and returns it, falling back to the host name
// when the stored label is blank.
func (d *Identity) Info() (Info, error) {
	doc, err := d.Ensure()
	if err != nil {
		return Info{}, err
	}
	label := doc.DeviceLabel()
	if label == "" {
		label = d.defaultLabel()
	}
	return Info{DeviceID: doc.DeviceID(), DeviceLabel: label}, nil
}

func (d *Identity) defaultLabel() string {
	name, err := d.hostname()
	if err != nil || name == "" {
		return "kiosk"
	}
	return name
}

// GenerateID creates a new random device id (16 bytes hex, 128 bits).
func GenerateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
