// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus counters for the transport hot paths. All methods are nil-safe
// so instrumentation can be left unwired.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates transport counters.
type Metrics struct {
	MessagesSent     prometheus.Counter
	SendErrors       prometheus.Counter
	MessagesReceived prometheus.Counter
	BytesReceived    prometheus.Counter
	ReceiveErrors    prometheus.Counter
	WouldBlocks      prometheus.Counter
	DecodeErrors     prometheus.Counter
	ReleaseFailures  prometheus.Counter
}

// NewMetrics registers the transport counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_messages_sent_total",
			Help: "Messages handed to the kernel via MSG_SEND.",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_send_errors_total",
			Help: "Failed MSG_SEND calls, EINTR retries excluded.",
		}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_messages_received_total",
			Help: "Messages decoded from the receive pool.",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_bytes_received_total",
			Help: "Payload bytes copied out of the receive pool.",
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_receive_errors_total",
			Help: "Failed MSG_RECV calls, would-block excluded.",
		}),
		WouldBlocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_would_blocks_total",
			Help: "MSG_RECV calls that found no message ready.",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_decode_errors_total",
			Help: "Messages rejected by the item-chain decoder.",
		}),
		ReleaseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kdbus_release_failures_total",
			Help: "Failed MSG_RELEASE calls after decode.",
		}),
	}
}

// IncSent counts a delivered send.
func (m *Metrics) IncSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

// IncSendError counts a failed send.
func (m *Metrics) IncSendError() {
	if m != nil {
		m.SendErrors.Inc()
	}
}

// IncReceived counts one decoded message with its payload size.
func (m *Metrics) IncReceived(bytes int) {
	if m != nil {
		m.MessagesReceived.Inc()
		m.BytesReceived.Add(float64(bytes))
	}
}

// IncReceiveError counts a failed receive.
func (m *Metrics) IncReceiveError() {
	if m != nil {
		m.ReceiveErrors.Inc()
	}
}

// IncWouldBlock counts a receive that would have blocked.
func (m *Metrics) IncWouldBlock() {
	if m != nil {
		m.WouldBlocks.Inc()
	}
}

// IncDecodeError counts a framing violation.
func (m *Metrics) IncDecodeError() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

// IncReleaseFailure counts a failed pool release.
func (m *Metrics) IncReleaseFailure() {
	if m != nil {
		m.ReleaseFailures.Inc()
	}
}
