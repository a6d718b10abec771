package infrastructure

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the runtime's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	connectionsActive  prometheus.Gauge
	connectionsTotal   *prometheus.CounterVec // path, outcome (completed/errored/cancelled/rejected)
	connectionDuration *prometheus.HistogramVec
	framesIn           *prometheus.CounterVec
	framesOut          *prometheus.CounterVec
	topicPublishes     *prometheus.CounterVec
	topicDeliveries    *prometheus.CounterVec
	topicDrops         *prometheus.CounterVec
	ingressRecords     *prometheus.CounterVec // source, status (published/failed)
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reactws",
			Subsystem: "connections",
			Name:      "active",
			Help:      "WebSocket connections currently dispatched",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "connections",
			Name:      "total",
			Help:      "Connections by path and how they ended",
		}, []string{"path", "outcome"}),
		connectionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reactws",
			Subsystem: "connections",
			Name:      "duration_seconds",
			Help:      "Connection lifetime in seconds",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 1800, 3600},
		}, []string{"path"}),
		framesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "frames",
			Name:      "inbound_total",
			Help:      "Frames read from peers",
		}, []string{"path"}),
		framesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "frames",
			Name:      "outbound_total",
			Help:      "Frames written to peers",
		}, []string{"path"}),
		topicPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "topic",
			Name:      "publishes_total",
			Help:      "Publish calls per topic",
		}, []string{"topic"}),
		topicDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "topic",
			Name:      "deliveries_total",
			Help:      "Values handed to subscribed links",
		}, []string{"topic"}),
		topicDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "topic",
			Name:      "dropped_links_total",
			Help:      "Links unsubscribed during publish because they were gone",
		}, []string{"topic"}),
		ingressRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactws",
			Subsystem: "ingress",
			Name:      "records_total",
			Help:      "External records routed into topics",
		}, []string{"source", "status"}),
	}

	for _, c := range []prometheus.Collector{
		m.connectionsActive, m.connectionsTotal, m.connectionDuration,
		m.framesIn, m.framesOut,
		m.topicPublishes, m.topicDeliveries, m.topicDrops,
		m.ingressRecords,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
}

func (m *Metrics) connectionClosed(path, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
	m.connectionsTotal.WithLabelValues(path, outcome).Inc()
	m.connectionDuration.WithLabelValues(path).Observe(time.Since(started).Seconds())
}

func (m *Metrics) connectionRejected() {
	if m == nil {
		return
	}
	// unknown paths are not bounded, keep label cardinality fixed
	m.connectionsTotal.WithLabelValues("unknown", "rejected").Inc()
}

func (m *Metrics) frameIn(path string) {
	if m == nil {
		return
	}
	m.framesIn.WithLabelValues(path).Inc()
}

func (m *Metrics) frameOut(path string) {
	if m == nil {
		return
	}
	m.framesOut.WithLabelValues(path).Inc()
}

// ObservePublish matches domain.PublishObserver so it can be attached to every topic.
func (m *Metrics) ObservePublish(topic string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.topicPublishes.WithLabelValues(topic).Inc()
	m.topicDeliveries.WithLabelValues(topic).Add(float64(delivered))
	m.topicDrops.WithLabelValues(topic).Add(float64(dropped))
}

// IngressRecord counts one external record by source and status.
func (m *Metrics) IngressRecord(source, status string) {
	if m == nil {
		return
	}
	m.ingressRecords.WithLabelValues(source, status).Inc()
}
