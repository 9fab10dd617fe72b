package binding

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamabind",
			Subsystem: "binding",
			Name:      "loads_total",
			Help:      "Model load attempts by engine and result",
		},
		[]string{"engine", "result"},
	)

	openHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamabind",
			Subsystem: "binding",
			Name:      "open_handles",
			Help:      "Bound models created and not yet closed",
		},
	)

	stateBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamabind",
			Subsystem: "binding",
			Name:      "state_bytes_total",
			Help:      "Runtime state bytes captured or restored",
		},
		[]string{"direction"},
	)

	opFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamabind",
			Subsystem: "binding",
			Name:      "failures_total",
			Help:      "Failed binding operations by operation and error kind",
		},
		[]string{"op", "kind"},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, openHandles, stateBytesTotal, opFailures)
}
