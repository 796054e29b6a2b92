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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/internal/pool"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/msg"
	"nanomsg.org/go/vega/transport"
	"nanomsg.org/go/vega/wire"
)

// TopicResponder is the handle of a responder topic.
type TopicResponder struct {
	name     string
	id       uint64
	sock     *respSocket
	listener msg.RequestListener
	closed   atomic.Bool
}

// TopicName returns the responder topic.
func (r *TopicResponder) TopicName() string { return r.name }

// ID returns the topic id announced for this responder.
func (r *TopicResponder) ID() uint64 { return r.id }

// Closed reports whether the responder was destroyed.
func (r *TopicResponder) Closed() bool { return r.closed.Load() }

// respSocket is a pooled responder socket and the topics sharing it.
type respSocket struct {
	*transport.RespSocket
	env    *Env
	topics sync.Map
	log    zerolog.Logger
}

func (s *respSocket) handle(h *wire.Header, payload []byte, reply transport.Replier) {
	if h.Type != wire.TypeRequest || !h.HasRequestID {
		s.env.Metrics.Dropped(metrics.DropBadType)
		s.log.Warn().Stringer("type", h.Type).Msg("unexpected message type")
		return
	}
	v, ok := s.topics.Load(h.TopicID)
	if !ok {
		s.env.Metrics.Dropped(metrics.DropNoTopic)
		s.log.Trace().Uint64("topic", h.TopicID).Msg("request for unknown topic")
		return
	}
	r := v.(*TopicResponder)
	if r.Closed() {
		return
	}
	reqID := h.RequestID
	req := msg.NewRequest(r.name, h, payload, func(b []byte) error {
		rh := s.env.header(wire.TypeResponse, r.id)
		rh.HasRequestID = true
		rh.RequestID = reqID
		return reply(&rh, b)
	})
	s.env.Metrics.Received("request")
	safely(s.log, r.name, func() { r.listener(req) })
}

// RespondersManager owns the responder topics of an instance.
type RespondersManager struct {
	sync.Mutex
	env     *Env
	pool    *pool.Pool[*respSocket]
	topics  map[string]*TopicResponder
	stopped bool
	log     zerolog.Logger
}

// NewRespondersManager creates a responders manager.
func NewRespondersManager(env *Env) *RespondersManager {
	m := &RespondersManager{
		env:    env,
		topics: make(map[string]*TopicResponder),
		log:    env.Log.With().Str("component", "resp-manager").Logger(),
	}
	m.pool = pool.New[*respSocket](m.newSocket, m.log)
	return m
}

func (m *RespondersManager) newSocket(s *config.SocketSchema) (*respSocket, error) {
	id, err := m.env.Discovery.CreateUniqueID()
	if err != nil {
		return nil, err
	}
	rs := &respSocket{env: m.env, log: m.log.With().Uint64("socket", id).Logger()}
	if rs.RespSocket, err = transport.NewRespSocket(id, s, rs.handle, m.log, m.env.Metrics); err != nil {
		return nil, err
	}
	m.env.Metrics.ConnectionOpened("resp")
	return rs, nil
}

// Create creates a responder for a topic and announces it.
func (m *RespondersManager) Create(topic string, l msg.RequestListener) (*TopicResponder, error) {
	if l == nil {
		return nil, ErrNoListener
	}
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return nil, ErrStopped
	}
	if _, ok := m.topics[topic]; ok {
		return nil, fmt.Errorf("%w: responder %q", ErrDuplicateTopic, topic)
	}
	s, err := m.env.Config.Responders.Match(topic)
	if err != nil {
		return nil, err
	}
	sock, err := m.pool.GetOrCreate(s)
	if err != nil {
		return nil, err
	}
	id, err := m.env.Discovery.CreateUniqueID()
	if err != nil {
		return nil, err
	}
	r := &TopicResponder{name: topic, id: id, sock: sock, listener: l}
	sock.topics.Store(id, r)
	err = m.env.Discovery.Register(discovery.EndPoint{
		Kind:       discovery.Responder,
		TopicName:  topic,
		SocketID:   sock.ID(),
		TopicID:    id,
		InstanceID: m.env.InstanceID,
		Addr:       sock.Addr(),
	})
	if err != nil {
		sock.topics.Delete(id)
		return nil, err
	}
	m.topics[topic] = r
	m.log.Debug().Str("topic", topic).Uint64("id", id).Uint64("socket", sock.ID()).Msg("created")
	return r, nil
}

func (m *RespondersManager) release(r *TopicResponder) error {
	r.closed.Store(true)
	r.sock.topics.Delete(r.id)
	return m.env.Discovery.Unregister(discovery.Responder, r.id)
}

// Destroy withdraws a responder.  Its socket stays in the pool.
func (m *RespondersManager) Destroy(topic string) error {
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return ErrStopped
	}
	r, ok := m.topics[topic]
	if !ok {
		return fmt.Errorf("%w: responder %q", ErrTopicNotFound, topic)
	}
	delete(m.topics, topic)
	return m.release(r)
}

// Stop destroys every responder and closes the pooled sockets.
func (m *RespondersManager) Stop() error {
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return ErrAlreadyStopped
	}
	m.stopped = true
	var errs error
	for topic, r := range m.topics {
		delete(m.topics, topic)
		errs = multierr.Append(errs, m.release(r))
	}
	n := m.pool.Size()
	errs = multierr.Append(errs, m.pool.StopAndCleanAll())
	for i := 0; i < n; i++ {
		m.env.Metrics.ConnectionClosed("resp")
	}
	return errs
}
