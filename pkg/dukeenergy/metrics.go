package dukeenergy

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	logins      *prometheus.CounterVec
	logouts     prometheus.Counter
	requests    *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dukeenergy",
			Name:      "logins_total",
			Help:      "Login attempts against the portal by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dukeenergy",
			Name:      "logouts_total",
			Help:      "Times the session cookie was cleared.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dukeenergy",
			Name:      "requests_total",
			Help:      "Billing and usage requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dukeenergy",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful request per endpoint.",
		}, []string{"endpoint"}),
	}
	if reg == nil {
		return m
	}
	m.logins = register(reg, m.logins)
	m.logouts = register(reg, m.logouts)
	m.requests = register(reg, m.requests)
	m.lastSuccess = register(reg, m.lastSuccess)
	return m
}

// register registers c, reusing an identical collector that another client
// already registered on the same registerer.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}
