// Package metrics exposes occupancy operation metrics to Prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hms"

// Recorder is what the ward service reports to.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	SetWardOccupancy(wardID string, occupied, total int)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) Observe(context.Context, string, bool, time.Duration) {}
func (Nop) SetWardOccupancy(string, int, int) {}

// Prometheus is a Recorder backed by its own registry.
type Prometheus struct {
	registry  *prometheus.Registry
	ops       *prometheus.CounterVec
	durations *prometheus.HistogramVec
	occupied  *prometheus.GaugeVec
	total     *prometheus.GaugeVec
}

// New builds the collectors and registers them together with the Go and
// process collectors.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occupancy_operations_total",
			Help:      "Occupancy operations by name and result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "occupancy_operation_duration_seconds",
			Help:      "Occupancy operation latency including the transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		occupied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ward_occupied_beds",
			Help:      "OCCUPIED beds per ward as of the last committed mutation.",
		}, []string{"ward_id"}),
		total: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ward_total_beds",
			Help:      "Provisioned beds per ward.",
		}, []string{"ward_id"}),
	}
	p.registry.MustRegister(
		p.ops, p.durations, p.occupied, p.total,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	p.ops.WithLabelValues(operation, result).Inc()
	p.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetWardOccupancy is keyed by ward id only so a rename never splits a series.
func (p *Prometheus) SetWardOccupancy(wardID string, occupied, total int) {
	p.occupied.WithLabelValues(wardID).Set(float64(occupied))
	p.total.WithLabelValues(wardID).Set(float64(total))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// HTTPMiddleware counts requests by route and status.
func (p *Prometheus) HTTPMiddleware() echo.MiddlewareFunc {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	p.registry.MustRegister(requests)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			requests.WithLabelValues(c.Path(), c.Request().Method, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
