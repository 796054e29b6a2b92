// Copyright 2026 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the instance counters to Prometheus.  A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "vega"

// Reasons a received message is dropped.
const (
	DropBadHeader = "bad_header"
	DropBadType   = "bad_type"
	DropNoTopic   = "unknown_topic"
)

// Metrics holds the instance collectors.
type Metrics struct {
	published   prometheus.Counter
	received    *prometheus.CounterVec
	requests    prometheus.Counter
	responses   prometheus.Counter
	timeouts    prometheus.Counter
	dropped     *prometheus.CounterVec
	connections *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.  With a nil
// registerer it returns nil, which disables metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages published on all topics",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages delivered to listeners by type",
		}, []string{"type"}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Requests sent, counted once per request",
		}),
		responses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_received_total",
			Help:      "Responses delivered to response listeners",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_timeouts_total",
			Help:      "Requests that expired",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Received messages dropped before delivery",
		}, []string{"reason"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open physical sockets by direction",
		}, []string{"direction"}),
	}
	var err error
	for _, c := range []prometheus.Collector{
		m.published, m.received, m.requests, m.responses,
		m.timeouts, m.dropped, m.connections,
	} {
		err = multierr.Append(err, reg.Register(c))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Published counts one published message.
func (m *Metrics) Published() {
	if m != nil {
		m.published.Inc()
	}
}

// Received counts one message delivered to a listener.
func (m *Metrics) Received(kind string) {
	if m != nil {
		m.received.WithLabelValues(kind).Inc()
	}
}

// RequestSent counts one sent request.
func (m *Metrics) RequestSent() {
	if m != nil {
		m.requests.Inc()
	}
}

// ResponseReceived counts one delivered response.
func (m *Metrics) ResponseReceived() {
	if m != nil {
		m.responses.Inc()
	}
}

// Timeout counts one expired request.
func (m *Metrics) Timeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}

// Dropped counts one dropped message.
func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

// ConnectionOpened and ConnectionClosed track open sockets.
func (m *Metrics) ConnectionOpened(direction string) {
	if m != nil {
		m.connections.WithLabelValues(direction).Inc()
	}
}

// ConnectionClosed is the inverse of ConnectionOpened.
func (m *Metrics) ConnectionClosed(direction string) {
	if m != nil {
		m.connections.WithLabelValues(direction).Dec()
	}
}
