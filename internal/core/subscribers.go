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

package core

import (
	"encoding/binary"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/msg"
	"nanomsg.org/go/vega/transport"
	"nanomsg.org/go/vega/wire"
)

// TopicSubscriber is the handle of a subscribed topic.
type TopicSubscriber struct {
	t        *inboundTopic
	listener msg.Listener
}

// TopicName returns the subscribed topic.
func (s *TopicSubscriber) TopicName() string { return s.t.name }

// Closed reports whether the subscriber was destroyed.
func (s *TopicSubscriber) Closed() bool { return s.t.closed.Load() }

// SubscribersManager owns the subscribed topics of an instance.
type SubscribersManager struct {
	inbound
}

// NewSubscribersManager creates a manager following publisher endpoints.
func NewSubscribersManager(env *Env) *SubscribersManager {
	m := &SubscribersManager{}
	m.inbound = newInbound(env, discovery.Publisher, "sub", &env.Config.Subscribers, m.dialer)
	return m
}

// filterPrefix is the leading bytes of every DATA message of a topic.
func filterPrefix(topicID uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{byte(wire.TypeData)}, topicID)
}

func (m *SubscribersManager) dialer(ep discovery.EndPoint, s *config.SocketSchema, c *connection) (physical, error) {
	sock, err := transport.NewSubSocket(ep.Addr, s, func(h *wire.Header, payload []byte) {
		m.deliver(c, h, payload)
	}, c.log, m.env.Metrics)
	if err != nil {
		return nil, err
	}
	if m.env.Config.NativeFiltering {
		c.onBind = func(id uint64) error { return sock.Subscribe(filterPrefix(id)) }
		c.onUnbind = func(id uint64) error { return sock.Unsubscribe(filterPrefix(id)) }
	} else if err = sock.Subscribe(nil); err != nil {
		_ = sock.Close()
		return nil, err
	}
	return sock, nil
}

// deliver runs on the connection's receive goroutine.  A topic id that is
// no longer bound is expected for messages in flight during removal.
func (m *SubscribersManager) deliver(c *connection, h *wire.Header, payload []byte) {
	if h.Type != wire.TypeData {
		m.env.Metrics.Dropped(metrics.DropBadType)
		c.log.Warn().Stringer("type", h.Type).Msg("unexpected message type")
		return
	}
	v, ok := c.lookup(h.TopicID)
	if !ok {
		m.env.Metrics.Dropped(metrics.DropNoTopic)
		c.log.Trace().Uint64("topic", h.TopicID).Msg("message for unbound topic")
		return
	}
	s := v.(*TopicSubscriber)
	if s.Closed() {
		return
	}
	m.env.Metrics.Received("data")
	safely(c.log, s.t.name, func() {
		s.listener(msg.New(s.t.name, h, payload))
	})
}

// Create subscribes to a topic.
func (m *SubscribersManager) Create(topic string, l msg.Listener) (*TopicSubscriber, error) {
	if l == nil {
		return nil, ErrNoListener
	}
	t, err := m.create(topic, func(t *inboundTopic) any {
		return &TopicSubscriber{t: t, listener: l}
	})
	if err != nil {
		return nil, err
	}
	return t.handle.(*TopicSubscriber), nil
}

// Destroy unsubscribes from a topic.
func (m *SubscribersManager) Destroy(topic string) error {
	return m.destroy(topic)
}

// Stop destroys every subscriber.  The manager cannot be used afterwards.
func (m *SubscribersManager) Stop() error {
	return m.stop()
}
