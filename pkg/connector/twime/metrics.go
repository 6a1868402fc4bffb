package twime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robaho/go-twime/pkg/protocol"
)

var (
	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "frames_received_total",
		Help:      "Frames received by template.",
	}, []string{"account", "template"})

	frameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "frame_errors_total",
		Help:      "Frames whose handler failed, by template.",
	}, []string{"account", "template"})

	framingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "framing_errors_total",
		Help:      "Connections abandoned because of a corrupt header.",
	}, []string{"account", "code"})

	retransmitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "retransmit_requests_total",
		Help:      "RetransmitRequest messages sent.",
	}, []string{"account"})

	recoveryEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "recovery_mode_total",
		Help:      "Switches to the recovery endpoint.",
	}, []string{"account"})

	echoMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "echo_mismatches_total",
		Help:      "Responses whose echoed fields differ from the request.",
	}, []string{"account"})

	stops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "twime",
		Name:      "stops_total",
		Help:      "Session stops by reason.",
	}, []string{"account", "reason"})

	seqNums = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "twime",
		Name:      "seqnum",
		Help:      "Next expected (rx) and next outgoing (tx) application sequence number.",
	}, []string{"account", "direction"})

	sessionActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "twime",
		Name:      "session_active",
		Help:      "1 while the session is logged on.",
	}, []string{"account"})
)

type sessionMetrics struct {
	account     string
	rx, tx      prometheus.Gauge
	active      prometheus.Gauge
	retransmits prometheus.Counter
	recoveries  prometheus.Counter
	mismatches  prometheus.Counter
}

func newSessionMetrics(account string) *sessionMetrics {
	return &sessionMetrics{
		account:     account,
		rx:          seqNums.WithLabelValues(account, "rx"),
		tx:          seqNums.WithLabelValues(account, "tx"),
		active:      sessionActive.WithLabelValues(account),
		retransmits: retransmitRequests.WithLabelValues(account),
		recoveries:  recoveryEntries.WithLabelValues(account),
		mismatches:  echoMismatches.WithLabelValues(account),
	}
}

func (m *sessionMetrics) frame(tid uint16) {
	framesReceived.WithLabelValues(m.account, protocol.TemplateName(tid)).Inc()
}

func (m *sessionMetrics) frameError(tid uint16) {
	frameErrors.WithLabelValues(m.account, protocol.TemplateName(tid)).Inc()
}

func (m *sessionMetrics) framingError(code protocol.FramingCode) {
	framingErrors.WithLabelValues(m.account, code.String()).Inc()
}

func (m *sessionMetrics) stop(reason string) {
	stops.WithLabelValues(m.account, reason).Inc()
}
