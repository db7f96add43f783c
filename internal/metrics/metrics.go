// Package metrics exposes Prometheus gauges for the congestion and loss
// detection internals, so a running endpoint can be scraped rather than
// only read through logs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CongestionWindow = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "draftquic",
		Subsystem: "congestion",
		Name:      "window_bytes",
		Help:      "Current congestion window, in bytes, keyed by connection.",
	}, []string{"connection"})

	BytesInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "draftquic",
		Subsystem: "congestion",
		Name:      "bytes_in_flight",
		Help:      "Bytes sent but not yet acknowledged or declared lost.",
	}, []string{"connection"})

	SmoothedRTT = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "draftquic",
		Subsystem: "rtt",
		Name:      "smoothed_seconds",
		Help:      "Smoothed round-trip time estimate, in seconds.",
	}, []string{"connection"})

	SlowStartThreshold = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "draftquic",
		Subsystem: "congestion",
		Name:      "ssthresh_bytes",
		Help:      "Slow start threshold, in bytes.",
	}, []string{"connection"})
)

func init() {
	prometheus.MustRegister(CongestionWindow, BytesInFlight, SmoothedRTT, SlowStartThreshold)
}

// Unregister removes a connection's label set once it closes, so gauges
// don't accumulate stale series across the lifetime of a long-running
// endpoint.
func Unregister(connection string) {
	CongestionWindow.DeleteLabelValues(connection)
	BytesInFlight.DeleteLabelValues(connection)
	SmoothedRTT.DeleteLabelValues(connection)
	SlowStartThreshold.DeleteLabelValues(connection)
}
