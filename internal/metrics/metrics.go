// Package metrics counts what a watch-party client sends, drops and receives.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for client metrics collection
type Collector interface {
	// Channel metrics
	MessageSent(messageType string)
	MessageDropped(messageType string)
	MessageReceived(messageType string)

	// Routing metrics
	RouteFailure(reason string)

	// Party metrics
	CatchUp()
	Participants(n int)
}

// PrometheusCollector implements Collector on its own registry, so several
// parties in one process (tests, the MCP server) never collide.
type PrometheusCollector struct {
	registry *prometheus.Registry

	messagesSent     *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	routeFailures    *prometheus.CounterVec
	catchUps         prometheus.Counter
	participants     prometheus.Gauge
}

// NewPrometheusCollector creates a new PrometheusCollector
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		messagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinema_messages_sent_total",
				Help: "Total number of party messages written to the channel",
			},
			[]string{"type"},
		),

		messagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinema_messages_dropped_total",
				Help: "Total number of party messages dropped because the channel was not open",
			},
			[]string{"type"},
		),

		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinema_messages_received_total",
				Help: "Total number of party messages received and routed",
			},
			[]string{"type"},
		),

		routeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinema_route_failures_total",
				Help: "Total number of inbound payloads that reached no handler",
			},
			[]string{"reason"},
		),

		catchUps: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinema_catchups_total",
			Help: "Total number of catch-up adjustments applied after joining",
		}),

		participants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinema_participants",
			Help: "Participants in the latest roster snapshot",
		}),
	}
}

func (c *PrometheusCollector) MessageSent(messageType string) {
	c.messagesSent.WithLabelValues(messageType).Inc()
}

func (c *PrometheusCollector) MessageDropped(messageType string) {
	c.messagesDropped.WithLabelValues(messageType).Inc()
}

func (c *PrometheusCollector) MessageReceived(messageType string) {
	c.messagesReceived.WithLabelValues(messageType).Inc()
}

func (c *PrometheusCollector) RouteFailure(reason string) {
	c.routeFailures.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) CatchUp() {
	c.catchUps.Inc()
}

func (c *PrometheusCollector) Participants(n int) {
	c.participants.Set(float64(n))
}

// Registry exposes the underlying registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *PrometheusCollector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) MessageSent(string) {}
func (Nop) MessageDropped(string) {}
func (Nop) MessageReceived(string) {}
func (Nop) RouteFailure(string) {}
func (Nop) CatchUp() {}
func (Nop) Participants(int) {}
