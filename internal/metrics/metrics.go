// Package metrics exposes Prometheus instrumentation for the capture,
// dispatch and replay pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canscope_frames_received_total",
		Help: "Frames received from the bus adapter, by channel.",
	}, []string{"channel"})

	framesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canscope_frames_dispatched_total",
		Help: "Frames handed to the dispatcher by the active producer.",
	})

	framesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canscope_frames_delivered_total",
		Help: "Frames enqueued to subscriber queues, by subscription.",
	}, []string{"subscription"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canscope_frames_dropped_total",
		Help: "Frames dropped from full subscriber queues, by subscription.",
	}, []string{"subscription"})

	deliveryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canscope_delivery_errors_total",
		Help: "Subscriber delivery faults, by subscription.",
	}, []string{"subscription"})

	bufferRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canscope_trace_buffer_records",
		Help: "Records currently held in the trace buffer.",
	})

	playerPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canscope_player_position_seconds",
		Help: "Current replay position on the recorded time-offset axis.",
	})

	playerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canscope_player_state",
		Help: "Replay state: 0 stopped, 1 playing, 2 paused.",
	})
)

// FrameReceived records a frame arriving from a bus channel.
func FrameReceived(channel string) {
	framesReceived.WithLabelValues(channel).Inc()
}

// FrameDispatched records a dispatch call.
func FrameDispatched() {
	framesDispatched.Inc()
}

// FrameDelivered records a frame enqueued for a subscription.
func FrameDelivered(subscription string) {
	framesDelivered.WithLabelValues(subscription).Inc()
}

// FrameDropped records a frame dropped from a subscription queue.
func FrameDropped(subscription string) {
	framesDropped.WithLabelValues(subscription).Inc()
}

// DeliveryError records a subscriber delivery fault.
func DeliveryError(subscription string) {
	deliveryErrors.WithLabelValues(subscription).Inc()
}

// BufferAppended updates the trace buffer fill gauge.
func BufferAppended(records int) {
	bufferRecords.Set(float64(records))
}

// PlayerPosition updates the replay position gauge.
func PlayerPosition(seconds float64) {
	playerPosition.Set(seconds)
}

// PlayerState updates the replay state gauge.
func PlayerState(state int) {
	playerState.Set(float64(state))
}

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
