// Package metrics exposes poller activity and the projected sensor values of
// the selected device in the Prometheus format.
package metrics

import (
	"errors"
	"net/http"

	"github.com/berfenger/ucan2mqtt/internal/core/service"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "ucan"

const (
	ErrorKindAuth       = "auth"
	ErrorKindServerData = "server_data"
	ErrorKindOther      = "other"
)

// Metrics is nil-safe: every method is a noop on a nil receiver so that
// callers do not need to check whether metrics are enabled.
type Metrics struct {
	registry       *prometheus.Registry
	pollTicks      prometheus.Counter
	pollErrors     *prometheus.CounterVec
	sensorUpdates  prometheus.Counter
	signIns        *prometheus.CounterVec
	statusSnapshot *StatusCollector
}

func New(store *state.Store, logger *zap.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Number of polling iterations run",
		}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Number of failed cloud calls by error kind",
		}, []string{"kind"}),
		sensorUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_updates_total",
			Help:      "Number of sensor values published",
		}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Number of sign in attempts by result",
		}, []string{"result"}),
		statusSnapshot: NewStatusCollector(store, service.Projection{Logger: logger}),
	}
	m.registry.MustRegister(
		m.pollTicks,
		m.pollErrors,
		m.sensorUpdates,
		m.signIns,
		m.statusSnapshot,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePollTick() {
	if m == nil {
		return
	}
	m.pollTicks.Inc()
}

func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	m.pollErrors.WithLabelValues(ErrorKind(err)).Inc()
}

func (m *Metrics) ObserveSensorUpdates(n int) {
	if m == nil {
		return
	}
	m.sensorUpdates.Add(float64(n))
}

func (m *Metrics) ObserveSignIn(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = ErrorKind(err)
		var ae *ucancloud.AuthError
		if errors.As(err, &ae) {
			result = string(ae.Kind)
		}
	}
	m.signIns.WithLabelValues(result).Inc()
}

func ErrorKind(err error) string {
	var ae *ucancloud.AuthError
	var se *ucancloud.ServerDataError
	switch {
	case errors.As(err, &ae):
		return ErrorKindAuth
	case errors.As(err, &se):
		return ErrorKindServerData
	default:
		return ErrorKindOther
	}
}
