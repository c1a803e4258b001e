package api

import (
	"context"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kensar/kiosk/internal/metrics"
)

type ctxKey struct{}

// reqInfo is the per-request state carried in the context.
type reqInfo struct {
	id     string
	logger *slog.Logger
}

// quietPaths are polled by supervisors and logged at debug level.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

func infoFrom(ctx context.Context) (reqInfo, bool) {
	ri, ok := ctx.Value(ctxKey{}).(reqInfo)
	return ri, ok
}

// logFor returns the request logger, or the default logger outside a request.
func logFor(ctx context.Context) *slog.Logger {
	if ri, ok := infoFrom(ctx); ok {
		return ri.logger
	}
	return slog.Default()
}

// callerKey identifies the caller for PIN attempt limiting.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "api:" + host
}

// withRequestContext assigns the request id (reusing a well-formed inbound
// X-Request-ID) and a logger tagged with it.
func withRequestContext(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ri := reqInfo{id: id, logger: base.With("rid", id)}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, ri)))
		})
	}
}

// withRecovery turns a handler panic into a 500 response.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logFor(r.Context()).Error("panic recovered", "panic", rec, "path", r.URL.Path)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets the websocket handshake reach the underlying Hijacker.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// withObservation logs every request and counts it by status class.
func withObservation(m *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			m.Request(rec.status)
			level := slog.LevelInfo
			if quietPaths[r.URL.Path] {
				level = slog.LevelDebug
			}
			logFor(r.Context()).Log(r.Context(), level, "req",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"dur", time.Since(start).String(),
			)
		})
	}
}

// withLocalGuard refuses requests a web page could forge against the loopback
// API. The Host must be a loopback name. A browser Origin must be the API
// itself or match one of the host patterns. Writes must be declared JSON,
// which browsers only send cross-origin after a preflight, and no preflight
// is ever granted.
func withLocalGuard(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isLoopbackHost(r.Host) {
				writeError(w, http.StatusForbidden, ErrCodeForbidden, "host not allowed")
				return
			}
			if o := r.Header.Get("Origin"); o != "" && !originAllowed(o, r.Host, origins) {
				writeError(w, http.StatusForbidden, ErrCodeForbidden, "origin not allowed")
				return
			}
			switch r.Method {
			case http.MethodGet, http.MethodHead:
			default:
				mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mt != "application/json" {
					writeError(w, http.StatusUnsupportedMediaType, ErrCodeBadRequest, "Content-Type must be application/json")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackHost(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = strings.Trim(hostport, "[]")
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// originAllowed matches the websocket handshake's rule: same host, or a
// path.Match host pattern.
func originAllowed(origin, host string, patterns []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, host) {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(strings.ToLower(p), strings.ToLower(u.Host)); ok {
			return true
		}
	}
	return false
}

// withBodyLimit caps request bodies at n bytes.
func withBodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// chain wraps h so that the first middleware is outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
