// Package hub is the one-way push channel to the attached UI surface.
//
// At most one surface is attached at a time. Attaching a new one detaches the
// previous one, and pushes with nothing attached are dropped. Observers (the
// terminal console) receive every push without taking the surface's place.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kensar/kiosk/internal/metrics"
)

// Push channels.
const (
	ChannelUpdateStatus = "update:status"
	ChannelZoomApply    = "zoom:apply"
	ChannelFocus        = "app:focus"
)

// ErrNoSurface is returned when a push needs an attached surface.
var ErrNoSurface = errors.New("no UI surface attached")

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Message is one push frame.
type Message struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload,omitempty"`
}

// ZoomApply tells the surface which factor to use. Visual (pinch) zoom is
// locked by pinning its limits to 1.
type ZoomApply struct {
	Factor        float64 `json:"factor"`
	VisualZoomMin float64 `json:"visualZoomMin"`
	VisualZoomMax float64 `json:"visualZoomMax"`
	SuppressKeys  bool    `json:"suppressZoomShortcuts"`
}

type surface struct {
	send chan Message
	done chan struct{}
	once sync.Once
}

func (s *surface) detach() { s.once.Do(func() { close(s.done) }) }

// Hub tracks the attached surface.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
	hello   func() []Message
	origins []string

	mu        sync.Mutex
	current   *surface
	observers map[*surface]struct{}
}

// Options configures a Hub.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	// Hello returns the frames sent to a surface as soon as it attaches.
	Hello func() []Message
	// OriginPatterns are passed to the websocket handshake.
	OriginPatterns []string
}

// New returns a Hub with nothing attached.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger.With("component", "hub"),
		metrics:   opts.Metrics,
		hello:     opts.Hello,
		origins:   opts.OriginPatterns,
		observers: make(map[*surface]struct{}),
	}
}

// Attached reports whether a surface is attached.
func (h *Hub) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current != nil
}

// Observers returns the number of attached observers.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Push queues a frame for the attached surface and any observers without
// waiting. It reports whether the frame was queued for the surface.
func (h *Hub) Push(channel string, payload any) bool {
	m := Message{Channel: channel, Payload: payload}
	h.mu.Lock()
	s := h.current
	for o := range h.observers {
		select {
		case o.send <- m:
		default:
		}
	}
	h.mu.Unlock()
	if s == nil {
		return false
	}
	select {
	case s.send <- m:
		return true
	default:
		h.logger.Warn("surface too slow, dropping push", "channel", channel)
		return false
	}
}

// ApplyZoom pushes a zoom:apply frame.
func (h *Hub) ApplyZoom(factor float64) error {
	if !h.Push(ChannelZoomApply, ZoomApply{Factor: factor, VisualZoomMin: 1, VisualZoomMax: 1, SuppressKeys: true}) {
		return ErrNoSurface
	}
	return nil
}

// Focus asks the attached surface to restore and focus its window.
func (h *Hub) Focus() bool {
	return h.Push(ChannelFocus, nil)
}

// Close detaches the current surface and all observers.
func (h *Hub) Close() {
	h.mu.Lock()
	s := h.current
	h.current = nil
	for o := range h.observers {
		o.detach()
		delete(h.observers, o)
	}
	h.mu.Unlock()
	if s != nil {
		s.detach()
		h.metrics.SurfaceAttached(false)
	}
}

func (h *Hub) attach() *surface {
	s := &surface{send: make(chan Message, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	prev := h.current
	h.current = s
	h.mu.Unlock()
	if prev != nil {
		prev.detach()
	}
	h.metrics.SurfaceAttached(true)
	return s
}

func (h *Hub) observe() *surface {
	s := &surface{send: make(chan Message, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.observers[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) release(s *surface) {
	h.mu.Lock()
	if h.current == s {
		h.current = nil
		h.metrics.SurfaceAttached(false)
	}
	delete(h.observers, s)
	h.mu.Unlock()
	s.detach()
}

// ServeHTTP upgrades the request to a websocket and attaches it as the
// surface until either side closes. With ?observe=1 the connection only
// observes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Debug("websocket accept", "err", err)
		return
	}
	var s *surface
	if r.URL.Query().Get("observe") == "1" {
		s = h.observe()
		h.logger.Debug("observer attached", "remote", r.RemoteAddr)
	} else {
		s = h.attach()
		h.logger.Info("surface attached", "remote", r.RemoteAddr)
	}
	defer h.release(s)

	// The surface never sends data frames; reading only tracks the close.
	ctx := conn.CloseRead(r.Context())

	if h.hello != nil {
		for _, m := range h.hello() {
			if err := write(ctx, conn, m); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-s.done:
			_ = conn.Close(websocket.StatusGoingAway, "replaced")
			h.logger.Info("surface detached", "remote", r.RemoteAddr)
			return
		case m := <-s.send:
			if err := write(ctx, conn, m); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, m Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, m)
}
