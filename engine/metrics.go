package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "requests_total",
	Help:      "Commands handed to the transport.",
})

var transportErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "transport_errors_total",
	Help:      "Commands the transport refused to send.",
})

var timeoutCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "reply_timeouts_total",
	Help:      "Exchanges that expired with no recognized reply.",
})

var desyncCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "desyncs_total",
	Help:      "Replies that did not match the expected configuration step.",
})

var unsolicitedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "unsolicited_total",
	Help:      "Spontaneous panel messages handled outside an exchange.",
})

var droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "dropped_total",
	Help:      "Incoming messages dropped as unattributable.",
})

var sendOutcomeErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "send_outcome_errors_total",
	Help:      "OS-level delivery failures reported by the transport.",
})

var pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "smsalarm",
	Subsystem: "engine",
	Name:      "exchange_pending",
	Help:      "Whether an exchange is currently in flight.",
})
