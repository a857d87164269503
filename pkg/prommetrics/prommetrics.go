/*
Copyright 2025 The Kioskline Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package prommetrics exports the resolver's Prometheus metrics: one
// package-level registry and a handful of recording functions the rest of
// the codebase calls, with no *prometheus.* types leaking outside it.
package prommetrics

import (
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schedule_resolver"

var (
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Time spent resolving one tick's layout/overlay/action/command state.",
		Buckets:   prometheus.DefBuckets,
	})

	resolvedLayoutCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resolved_layout_count",
		Help:      "Number of items in the most recently resolved layout schedule.",
	})

	resolvedOverlayCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resolved_overlay_count",
		Help:      "Number of items in the most recently resolved overlay schedule.",
	})

	invalidLayoutCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "invalid_layout_count",
		Help:      "Number of layouts currently quarantined by the validity filter.",
	})

	scheduleChangeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_change_events_total",
		Help:      "Count of emitted schedule change events, by event name.",
	}, []string{"event"})

	commandsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_dispatched_total",
		Help:      "Count of dispatched commands, by outcome.",
	}, []string{"outcome"})

	screenshotUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screenshot_uploads_total",
		Help:      "Count of attempted screenshot uploads, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		tickDuration,
		resolvedLayoutCount,
		resolvedOverlayCount,
		invalidLayoutCount,
		scheduleChangeEvents,
		commandsDispatched,
		screenshotUploads,
	)
}

// RecordTick records how long one tick's resolution pass took.
func RecordTick(seconds float64) {
	tickDuration.Observe(seconds)
}

// RecordResolvedCounts records the size of the resolved layout/overlay sets.
func RecordResolvedCounts(layouts, overlays int) {
	resolvedLayoutCount.Set(float64(layouts))
	resolvedOverlayCount.Set(float64(overlays))
}

// RecordInvalidLayoutCount records the quarantine list size.
func RecordInvalidLayoutCount(n int) {
	invalidLayoutCount.Set(float64(n))
}

// RecordChangeEvent increments the counter for an emitted schedule change
// event, e.g. "on_new_schedule_available" or "on_refresh_schedule".
func RecordChangeEvent(event string) {
	scheduleChangeEvents.WithLabelValues(event).Inc()
}

// RecordCommandDispatch increments the counter for a dispatched command's
// outcome ("ok" or "error").
func RecordCommandDispatch(outcome string) {
	commandsDispatched.WithLabelValues(outcome).Inc()
}

// RecordScreenshotUpload increments the counter for a screenshot upload
// attempt's outcome ("ok" or "error").
func RecordScreenshotUpload(outcome string) {
	screenshotUploads.WithLabelValues(outcome).Inc()
}

// Server serves the /metrics endpoint on address until ctx-independent
// shutdown via the returned http.Server; callers Close it on exit.
func Server(log logr.Logger, address string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: address, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server stopped unexpectedly")
		}
	}()
	return srv
}
