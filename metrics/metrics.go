package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Exporter interface {
	Export()
}

const (
	namespace = "clipring"

	bufferedSpanKey  = "buffered_span_seconds"
	bufferedBytesKey = "buffered_bytes"
	packetsKey       = "packets_total"
	exportsKey       = "exports_total"
	exportBytesKey   = "export_bytes_total"
)

var (
	bufferedSpan = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      bufferedSpanKey,
			Help:      "Time covered by the buffered packets. Broken down by session.",
		},
		[]string{"session"},
	)

	bufferedBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      bufferedBytesKey,
			Help:      "Payload bytes held in the arena. Broken down by session.",
		},
		[]string{"session"},
	)

	packets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drain",
			Name:      packetsKey,
			Help:      "Packets drained from the encoder. Broken down by session and outcome.",
		},
		[]string{"session", "outcome"},
	)

	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      exportsKey,
			Help:      "Finished exports. Broken down by session and status.",
		},
		[]string{"session", "status"},
	)

	exportBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      exportBytesKey,
			Help:      "Payload bytes handed to the container writer. Broken down by session.",
		},
		[]string{"session"},
	)
)

var register sync.Once
var Registry *prometheus.Registry

var (
	exporterMu sync.Mutex
	exporter   Exporter
)

// Register creates the registry on the first call. A non-nil exp replaces
// the current exporter, so a session opened first does not shadow the
// exporter the caller sets up later.
func Register(exp Exporter) {
	register.Do(func() {
		Registry = prometheus.NewRegistry()
		Registry.MustRegister(bufferedSpan, bufferedBytes, packets, exports, exportBytes)
	})
	if exp == nil {
		return
	}
	exporterMu.Lock()
	exporter = exp
	exporterMu.Unlock()
}

func Export() {
	exporterMu.Lock()
	exp := exporter
	exporterMu.Unlock()
	if exp != nil {
		exp.Export()
	}
}

func BufferStatus(session string, spanUsec int64, used uint64) {
	bufferedSpan.WithLabelValues(session).Set(float64(spanUsec) / 1e6)
	bufferedBytes.WithLabelValues(session).Set(float64(used))
}

func PacketAppended(session string) {
	packets.WithLabelValues(session, "appended").Inc()
}

func PacketDropped(session string) {
	packets.WithLabelValues(session, "dropped").Inc()
}

func ExportFinished(session, status string, bytes int64) {
	exports.WithLabelValues(session, status).Inc()
	exportBytes.WithLabelValues(session).Add(float64(bytes))
}

// Forget drops every series of a closed session.
func Forget(session string) {
	labels := prometheus.Labels{"session": session}
	bufferedSpan.DeletePartialMatch(labels)
	bufferedBytes.DeletePartialMatch(labels)
	packets.DeletePartialMatch(labels)
	exports.DeletePartialMatch(labels)
	exportBytes.DeletePartialMatch(labels)
}
