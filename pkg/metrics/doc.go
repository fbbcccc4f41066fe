/*
Package metrics provides Prometheus metrics collection and exposition for
Relay.

The metrics package defines and registers all Relay metrics using the
Prometheus client library, providing observability into event throughput,
delivery outcomes, connection lifecycle and authentication. Metrics are
exposed via HTTP endpoint for scraping by Prometheus servers, alongside
health and readiness endpoints.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                             │          │
	│  │  Bus: published, rejected, deliveries,      │          │
	│  │       retries, dedup, drops, latency        │          │
	│  │  Gateway: connections by state, rejections, │          │
	│  │       messages, rate limits, broadcasts     │          │
	│  │  Auth: failures, timeouts                   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Collector + Health                 │          │
	│  │  - Collector polls a StatusSource           │          │
	│  │  - HealthChecker tracks component status    │          │
	│  │  - /metrics, /health, /ready handlers       │          │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

# Metric Catalog

Bus metrics:
  - relay_events_published_total{category}
  - relay_events_rejected_total{reason}
  - relay_deliveries_total{mode,outcome}
  - relay_delivery_retries_total
  - relay_deduplicated_events_total
  - relay_dropped_events_total
  - relay_active_subscriptions
  - relay_delivery_latency_seconds

Gateway metrics:
  - relay_connections_total{state}
  - relay_connections_rejected_total{reason}
  - relay_messages_received_total
  - relay_messages_rate_limited_total
  - relay_broadcast_send_failures_total

Auth metrics:
  - relay_auth_failures_total
  - relay_auth_timeouts_total

# Usage

Exposing metrics:

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())

Instrumenting code:

	metrics.EventsPublished.WithLabelValues(string(ev.Category)).Inc()
	metrics.Deliveries.WithLabelValues("ordered", "success").Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DeliveryLatency)

Polling gauges from live components:

	collector := metrics.NewCollector(source, 15*time.Second)
	collector.Start()
	defer collector.Stop()

Component health:

	metrics.RegisterComponent("bus", true, "")
	metrics.UpdateComponent("bus", false, "shutting down")

# Best Practices

Do:
  - Use labels sparingly (low cardinality: category, mode, state)
  - Observe latency through the Timer helper
  - Keep gauge updates in the collector, counters at the call site

Don't:
  - Put IDs (connection, event) in label values
  - Register metrics outside package init

# See Also

  - Prometheus client: https://github.com/prometheus/client_golang
  - Metric naming: https://prometheus.io/docs/practices/naming/
*/
package metrics
