package irc

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks per-connection counters. A nil *Metrics is valid and makes
// every method a no-op, so library users without a registry pay nothing.
type Metrics struct {
	linesIn     prometheus.Counter
	linesOut    prometheus.Counter
	parseErrors prometheus.Counter
	reconnects  prometheus.Counter
	dccOffers   prometheus.Counter
	connState   prometheus.Gauge
}

// NewMetrics builds and registers the connection metrics for one network.
func NewMetrics(reg prometheus.Registerer, network string) *Metrics {
	labels := prometheus.Labels{"network": network}
	m := &Metrics{
		linesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "irc_lines_received_total",
			Help:        "Protocol lines received from the server.",
			ConstLabels: labels,
		}),
		linesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "irc_lines_sent_total",
			Help:        "Protocol lines sent to the server.",
			ConstLabels: labels,
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "irc_parse_errors_total",
			Help:        "Inbound lines dropped as unparseable.",
			ConstLabels: labels,
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "irc_reconnects_total",
			Help:        "Reconnection attempts.",
			ConstLabels: labels,
		}),
		dccOffers: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "irc_dcc_offers_total",
			Help:        "DCC offers detected.",
			ConstLabels: labels,
		}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "irc_connection_state",
			Help:        "Current connection state (enum ordinal).",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.linesIn, m.linesOut, m.parseErrors, m.reconnects, m.dccOffers, m.connState)
	return m
}

func (m *Metrics) LineReceived() {
	if m != nil {
		m.linesIn.Inc()
	}
}

func (m *Metrics) LineSent() {
	if m != nil {
		m.linesOut.Inc()
	}
}

func (m *Metrics) ParseError() {
	if m != nil {
		m.parseErrors.Inc()
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) DCCOffer() {
	if m != nil {
		m.dccOffers.Inc()
	}
}

func (m *Metrics) State(s ConnState) {
	if m != nil {
		m.connState.Set(float64(s))
	}
}
