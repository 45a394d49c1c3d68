package tcp

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
)

// ID uniquely identifies a Connection for the lifetime of a process, used
// as the label value exported by [Collector].
type ID = xid.ID

// NewID returns a fresh connection identifier.
func NewID() ID { return xid.New() }

var (
	bytesInFlightDesc = prometheus.NewDesc(
		"mintcp_bytes_in_flight", "Unacknowledged sender bytes currently outstanding.",
		[]string{"conn"}, nil)
	retxDesc = prometheus.NewDesc(
		"mintcp_consecutive_retransmits", "Consecutive retransmission timeouts since the last new ACK.",
		[]string{"conn"}, nil)
	recvWindowDesc = prometheus.NewDesc(
		"mintcp_receive_window_bytes", "Bytes the receiver currently advertises as free.",
		[]string{"conn"}, nil)
	unassembledDesc = prometheus.NewDesc(
		"mintcp_unassembled_bytes", "Bytes held by the reassembler that are not yet contiguous.",
		[]string{"conn"}, nil)
	activeDesc = prometheus.NewDesc(
		"mintcp_active", "1 if the connection is still active, 0 once closed.",
		[]string{"conn"}, nil)
)

// Collector exports Prometheus metrics for a set of tracked connections.
// Connections register themselves with [Collector.Track] and deregister
// with [Collector.Forget]; Collect reads each tracked connection's current
// counters at scrape time rather than caching stale samples.
type Collector struct {
	mu    sync.Mutex
	conns map[ID]*trackedConnection
}

type trackedConnection struct {
	conn        *Connection
	reassembler *Reassembler
}

// NewCollector returns an empty Collector ready to register with a
// Prometheus registry.
func NewCollector() *Collector {
	return &Collector{conns: make(map[ID]*trackedConnection)}
}

// Track registers conn (and the reassembler backing its receiver, for the
// unassembled-bytes gauge) under id for export on the next Collect.
func (col *Collector) Track(id ID, conn *Connection) {
	col.mu.Lock()
	defer col.mu.Unlock()
	col.conns[id] = &trackedConnection{conn: conn, reassembler: conn.receiver.reassembler}
}

// Forget removes a connection from export, typically once it has closed.
func (col *Collector) Forget(id ID) {
	col.mu.Lock()
	defer col.mu.Unlock()
	delete(col.conns, id)
}

// Describe implements [prometheus.Collector].
func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- bytesInFlightDesc
	ch <- retxDesc
	ch <- recvWindowDesc
	ch <- unassembledDesc
	ch <- activeDesc
}

// Collect implements [prometheus.Collector].
func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	col.mu.Lock()
	defer col.mu.Unlock()
	for id, tc := range col.conns {
		label := id.String()
		c := tc.conn
		ch <- prometheus.MustNewConstMetric(bytesInFlightDesc, prometheus.GaugeValue,
			float64(c.sender.BytesInFlight()), label)
		ch <- prometheus.MustNewConstMetric(retxDesc, prometheus.GaugeValue,
			float64(c.sender.ConsecutiveRetx()), label)
		ch <- prometheus.MustNewConstMetric(recvWindowDesc, prometheus.GaugeValue,
			float64(c.receiver.WindowSize()), label)
		ch <- prometheus.MustNewConstMetric(unassembledDesc, prometheus.GaugeValue,
			float64(tc.reassembler.UnassembledBytes()), label)
		active := 0.0
		if c.Active() {
			active = 1.0
		}
		ch <- prometheus.MustNewConstMetric(activeDesc, prometheus.GaugeValue, active, label)
	}
}
