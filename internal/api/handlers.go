package api

import (
	"errors"
	"net/http"

	"github.com/kensar/kiosk/internal/app"
	"github.com/kensar/kiosk/internal/stationauth"
	"github.com/kensar/kiosk/internal/store"
	"github.com/kensar/kiosk/internal/zoom"
)

// AdminPinHeader carries the admin PIN on protected requests.
const AdminPinHeader = "X-Admin-Pin"

// PinRequest is the body of PUT /v1/admin/pin and POST /v1/admin/pin/verify.
type PinRequest struct {
	Pin        string `json:"pin"`
	CurrentPin string `json:"currentPin,omitempty"`
}

// ZoomRequest is the body of PUT /v1/zoom.
type ZoomRequest struct {
	Factor *float64 `json:"factor"`
}

// SurfaceEvent is reported by the UI surface. Type is either a zoom-affecting
// navigation event or "key-down" for keyboard input.
type SurfaceEvent struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Ctrl bool   `json:"ctrl,omitempty"`
	Meta bool   `json:"meta,omitempty"`
}

// SurfaceEventKeyDown is the SurfaceEvent type for keyboard input.
const SurfaceEventKeyDown = "key-down"

// SurfaceResult tells the surface what to do after an event.
type SurfaceResult struct {
	Factor    float64 `json:"factor"`
	Reapplied bool    `json:"reapplied"`
	Suppress  bool    `json:"suppress"`
}

// LoginRequest is the body of POST /v1/station/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// A nil document encodes as null before first configuration.
	writeJSON(w, http.StatusOK, s.app.GetConfig())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var partial store.Document
	if !decodeJSON(w, r, &partial) {
		return
	}
	doc, err := s.app.SetConfig(partial)
	if err != nil {
		logFor(r.Context()).Error("set config", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to save configuration")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleClearConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := s.app.ClearConfig(r.Context(), callerKey(r), r.Header.Get(AdminPinHeader))
	switch {
	case errors.Is(err, app.ErrAdminRequired):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case err != nil:
		logFor(r.Context()).Error("clear config", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to reset configuration")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handleHasPin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"configured": s.app.HasAdminPin()})
}

func (s *Server) handleSetPin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.app.SetAdminPin(r.Context(), callerKey(r), req.Pin, req.CurrentPin))
}

func (s *Server) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	valid := s.app.VerifyAdminPin(r.Context(), callerKey(r), req.Pin)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	info, err := s.app.DeviceInfo()
	if err != nil {
		logFor(r.Context()).Error("device info", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read device identity")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetZoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"factor": s.app.GetZoom()})
}

func (s *Server) handleSetZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Factor == nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidArgument, "factor is required")
		return
	}
	f, err := s.app.SetZoom(*req.Factor)
	if err != nil {
		logFor(r.Context()).Error("set zoom", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to save zoom factor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"factor": f})
}

func (s *Server) handleSurfaceEvent(w http.ResponseWriter, r *http.Request) {
	var ev SurfaceEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	if ev.Type == SurfaceEventKeyDown {
		writeJSON(w, http.StatusOK, SurfaceResult{
			Factor:   s.app.GetZoom(),
			Suppress: zoom.IsZoomShortcut(ev.Key, ev.Ctrl, ev.Meta),
		})
		return
	}
	f, reapplied := s.app.SurfaceEvent(zoom.EventKind(ev.Type))
	writeJSON(w, http.StatusOK, SurfaceResult{Factor: f, Reapplied: reapplied})
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
	// Quit after the response is flushed.
	go s.app.Quit()
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.app.AppVersion()})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.app.Shutdown(r.Context())})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"focused": s.app.Focus()})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.UpdateStatus())
}

func (s *Server) handleStationLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := s.app.StationLogin(r.Context(), req.Email, req.Password)
	var rej *stationauth.RejectedError
	switch {
	case errors.Is(err, app.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidArgument, err.Error())
	case errors.As(err, &rej):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeRejected, rej.Detail)
	case err != nil:
		logFor(r.Context()).Error("station login", "err", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "station backend unreachable")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handleStationURL(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": s.app.LoginURL()})
}
