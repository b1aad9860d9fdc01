package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestCount  *prometheus.CounterVec
	hashInFlight  prometheus.Gauge
	loginResults  *prometheus.CounterVec
	orphanRepairs prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		hashInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "password_hash_in_flight",
			Help: "Password hash or verify operations currently holding a worker slot.",
		}),
		loginResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		orphanRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_orphan_vehicles_repaired_total",
			Help: "Vehicles removed by the recovery pass because their category no longer existed.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requestCount, m.hashInFlight, m.loginResults, m.orphanRepairs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware counts requests by route pattern and final status.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil || c.Path() == "/metrics" {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.requestCount.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			return err
		}
	}
}

// HashStarted marks a hashing slot as taken.
func (m *Metrics) HashStarted() {
	if m != nil {
		m.hashInFlight.Inc()
	}
}

// HashFinished releases a hashing slot.
func (m *Metrics) HashFinished() {
	if m != nil {
		m.hashInFlight.Dec()
	}
}

// LoginResult records a login outcome ("success", "rejected", "throttled", "error").
func (m *Metrics) LoginResult(outcome string) {
	if m != nil {
		m.loginResults.WithLabelValues(outcome).Inc()
	}
}

// OrphansRepaired adds n to the repaired vehicles counter.
func (m *Metrics) OrphansRepaired(n int64) {
	if m != nil && n > 0 {
		m.orphanRepairs.Add(float64(n))
	}
}
