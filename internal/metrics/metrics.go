// Package metrics registers the kiosk's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kiosk"

// Recorder holds the control-plane collectors. A nil *Recorder is valid and
// records nothing, so components can be used without metrics in tests.
type Recorder struct {
	reg *prom.Registry

	configSaves     *prom.CounterVec
	backupRestores  prom.Counter
	pinVerify       *prom.CounterVec
	updateStatus    *prom.CounterVec
	countdown       prom.Gauge
	requests        *prom.CounterVec
	surfaceAttached prom.Gauge
}

// New constructs and registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{reg: prom.NewRegistry()}
	r.configSaves = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "config_saves_total",
		Help:      "Configuration document saves by result",
	}, []string{"result"})
	r.backupRestores = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "config_backup_restores_total",
		Help:      "Times the backup document was promoted to primary during load",
	})
	r.pinVerify = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "admin_pin_verifications_total",
		Help:      "Admin PIN verifications by result",
	}, []string{"result"})
	r.updateStatus = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "update_status_transitions_total",
		Help:      "Update lifecycle transitions by status entered",
	}, []string{"status"})
	r.countdown = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "update_restart_countdown_seconds",
		Help:      "Seconds left before the forced restart, 0 when no countdown is armed",
	})
	r.requests = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Control API requests by status class",
	}, []string{"code"})
	r.surfaceAttached = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_surface_attached",
		Help:      "1 while a UI surface is attached to the push channel",
	})
	r.reg.MustRegister(r.configSaves, r.backupRestores, r.pinVerify, r.updateStatus,
		r.countdown, r.requests, r.surfaceAttached)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry (tests gather from it).
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) ConfigSaved(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.configSaves.WithLabelValues("error").Inc()
		return
	}
	r.configSaves.WithLabelValues("ok").Inc()
}

func (r *Recorder) BackupRestored() {
	if r == nil {
		return
	}
	r.backupRestores.Inc()
}

func (r *Recorder) PinVerified(ok bool) {
	if r == nil {
		return
	}
	r.pinVerify.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) UpdateStatus(status string, countdown int) {
	if r == nil {
		return
	}
	r.updateStatus.WithLabelValues(status).Inc()
	r.countdown.Set(float64(countdown))
}

func (r *Recorder) Request(code int) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(strconv.Itoa(code/100) + "xx").Inc()
}

func (r *Recorder) SurfaceAttached(attached bool) {
	if r == nil {
		return
	}
	if attached {
		r.surfaceAttached.Set(1)
		return
	}
	r.surfaceAttached.Set(0)
}
