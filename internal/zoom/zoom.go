// Package zoom resolves the display zoom factor and keeps the attached
// surface within policy bounds.
package zoom

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/kensar/kiosk/internal/store"
)

// Policy bounds.
const (
	Min     = 0.5
	Max     = 1.2
	Neutral = 1.0
)

// Clamp maps v into [Min, Max]. Non-finite input yields Neutral.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Neutral
	}
	return math.Min(Max, math.Max(Min, v))
}

// Surface is the display the factor is applied to.
type Surface interface {
	ApplyZoom(factor float64) error
}

// EventKind names a surface event that may have reset the native zoom.
type EventKind string

const (
	EventNavigate       EventKind = "did-navigate"
	EventNavigateInPage EventKind = "did-navigate-in-page"
	EventFinishLoad     EventKind = "did-finish-load"
	EventDOMReady       EventKind = "dom-ready"
	EventZoomGesture    EventKind = "zoom-changed"
)

// Reapplies reports whether the policy must re-apply the factor after k.
func (k EventKind) Reapplies() bool {
	switch k {
	case EventNavigate, EventNavigateInPage, EventFinishLoad, EventDOMReady, EventZoomGesture:
		return true
	}
	return false
}

// Policy reads and writes uiZoomFactor through the store.
type Policy struct {
	store   *store.Store
	surface func() Surface
	logger  *slog.Logger
}

// New returns a Policy. surface returns the currently attached display, or
// nil when none is attached; it may itself be nil.
func New(s *store.Store, surface func() Surface, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{store: s, surface: surface, logger: logger.With("component", "zoom")}
}

// Get returns the stored factor clamped, or Neutral when absent or not a number.
func (p *Policy) Get() float64 {
	v, ok := p.store.Load().ZoomFactor()
	if !ok {
		return Neutral
	}
	return Clamp(v)
}

// Set clamps v, persists it, applies it to the attached surface and returns
// the stored value.
func (p *Policy) Set(v float64) (float64, error) {
	factor := Clamp(v)
	if _, err := p.store.Merge(store.Document{store.KeyUIZoomFactor: factor}); err != nil {
		return Neutral, fmt.Errorf("store zoom factor: %w", err)
	}
	p.apply(factor)
	return factor, nil
}

// Enforce re-applies the stored factor after events that may have changed
// the surface's native zoom. It returns the applied factor and whether the
// event triggered a re-apply.
func (p *Policy) Enforce(kind EventKind) (float64, bool) {
	if !kind.Reapplies() {
		return 0, false
	}
	factor := p.Get()
	p.apply(factor)
	return factor, true
}

func (p *Policy) apply(factor float64) {
	if p.surface == nil {
		return
	}
	s := p.surface()
	if s == nil {
		return
	}
	if err := s.ApplyZoom(factor); err != nil {
		// The surface may have detached between lookup and apply.
		p.logger.Debug("apply zoom", "factor", factor, "err", err)
	}
}

// IsZoomShortcut reports whether a key press with Ctrl or Cmd held is a
// native zoom shortcut the surface must suppress.
func IsZoomShortcut(key string, ctrl, meta bool) bool {
	if !ctrl && !meta {
		return false
	}
	switch strings.ToLower(key) {
	case "+", "-", "=", "0", "add", "subtract", "numpadadd", "numpadsubtract", "numpad0":
		return true
	}
	return false
}
