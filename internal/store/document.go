package store

import "math"

// Known document fields.
const (
	KeyDeviceID     = "deviceId"
	KeyDeviceLabel  = "deviceLabel"
	KeyStationID    = "stationId"
	KeyStationLabel = "stationLabel"
	KeyStationEmail = "stationEmail"
	KeyAdminPinHash = "adminPinHash"
	KeyUIZoomFactor = "uiZoomFactor"
)

// Document is the station configuration: a flat mapping of named fields
// persisted as one JSON object. Unknown keys are carried through untouched.
type Document map[string]any

// Clone returns a shallow copy. A nil Document clones to an empty one.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the named field when it holds a non-empty string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Document) DeviceID() string     { return d.String(KeyDeviceID) }
func (d Document) DeviceLabel() string  { return d.String(KeyDeviceLabel) }
func (d Document) StationID() string    { return d.String(KeyStationID) }
func (d Document) StationLabel() string { return d.String(KeyStationLabel) }
func (d Document) StationEmail() string { return d.String(KeyStationEmail) }
func (d Document) AdminPinHash() string { return d.String(KeyAdminPinHash) }

// ZoomFactor returns uiZoomFactor when it is stored as a finite number.
func (d Document) ZoomFactor() (float64, bool) {
	f, ok := d[KeyUIZoomFactor].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Preserve lists the fields that survive a reset. DeviceID and DeviceLabel
// are mandatory; the optional fields are kept only when non-nil.
type Preserve struct {
	DeviceID     string
	DeviceLabel  string
	AdminPinHash *string
	UIZoomFactor *float64
}

// PreserveFrom captures the reset-surviving fields of an existing document.
// The zoom factor is kept only if it was stored as a number.
func PreserveFrom(device, current Document) Preserve {
	p := Preserve{
		DeviceID:    device.DeviceID(),
		DeviceLabel: device.DeviceLabel(),
	}
	if h := current.AdminPinHash(); h != "" {
		p.AdminPinHash = &h
	}
	if z, ok := current[KeyUIZoomFactor].(float64); ok {
		p.UIZoomFactor = &z
	}
	return p
}

func (p Preserve) document() Document {
	doc := Document{
		KeyDeviceID:    p.DeviceID,
		KeyDeviceLabel: p.DeviceLabel,
	}
	if p.AdminPinHash != nil {
		doc[KeyAdminPinHash] = *p.AdminPinHash
	}
	if p.UIZoomFactor != nil {
		doc[KeyUIZoomFactor] = *p.UIZoomFactor
	}
	return doc
}
