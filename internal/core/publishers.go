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
	"nanomsg.org/go/vega/transport"
	"nanomsg.org/go/vega/wire"
)

// TopicPublisher is the handle of a published topic.  It owns one pooled
// socket, possibly shared with other topics.
type TopicPublisher struct {
	name   string
	id     uint64
	sock   *transport.PubSocket
	header wire.Header
	closed atomic.Bool
	env    *Env
}

// TopicName returns the published topic.
func (p *TopicPublisher) TopicName() string { return p.name }

// ID returns the topic id announced for this publisher.
func (p *TopicPublisher) ID() uint64 { return p.id }

// Closed reports whether the publisher was destroyed.
func (p *TopicPublisher) Closed() bool { return p.closed.Load() }

// Publish sends payload to every subscriber of the topic.
func (p *TopicPublisher) Publish(payload []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.sock.Send(&p.header, payload); err != nil {
		return fmt.Errorf("publishing on %q: %w", p.name, err)
	}
	p.env.Metrics.Published()
	return nil
}

// PublishersManager owns the published topics of an instance.
type PublishersManager struct {
	sync.Mutex
	env     *Env
	pool    *pool.Pool[*transport.PubSocket]
	topics  map[string]*TopicPublisher
	stopped bool
	log     zerolog.Logger
}

// NewPublishersManager creates a publishers manager.
func NewPublishersManager(env *Env) *PublishersManager {
	m := &PublishersManager{
		env:    env,
		topics: make(map[string]*TopicPublisher),
		log:    env.Log.With().Str("component", "pub-manager").Logger(),
	}
	m.pool = pool.New[*transport.PubSocket](m.newSocket, m.log)
	return m
}

func (m *PublishersManager) newSocket(s *config.SocketSchema) (*transport.PubSocket, error) {
	id, err := m.env.Discovery.CreateUniqueID()
	if err != nil {
		return nil, err
	}
	sock, err := transport.NewPubSocket(id, s, m.log, m.env.Metrics)
	if err != nil {
		return nil, err
	}
	m.env.Metrics.ConnectionOpened("pub")
	return sock, nil
}

// Create creates a publisher for a topic and announces it.
func (m *PublishersManager) Create(topic string) (*TopicPublisher, error) {
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return nil, ErrStopped
	}
	if _, ok := m.topics[topic]; ok {
		return nil, fmt.Errorf("%w: publisher %q", ErrDuplicateTopic, topic)
	}
	s, err := m.env.Config.Publishers.Match(topic)
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
	p := &TopicPublisher{
		name:   topic,
		id:     id,
		sock:   sock,
		header: m.env.header(wire.TypeData, id),
		env:    m.env,
	}
	err = m.env.Discovery.Register(discovery.EndPoint{
		Kind:       discovery.Publisher,
		TopicName:  topic,
		SocketID:   sock.ID(),
		TopicID:    id,
		InstanceID: m.env.InstanceID,
		Addr:       sock.Addr(),
	})
	if err != nil {
		return nil, err
	}
	m.topics[topic] = p
	m.log.Debug().Str("topic", topic).Uint64("id", id).Uint64("socket", sock.ID()).Msg("created")
	return p, nil
}

// Destroy withdraws a publisher.  Its socket stays in the pool.
func (m *PublishersManager) Destroy(topic string) error {
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return ErrStopped
	}
	p, ok := m.topics[topic]
	if !ok {
		return fmt.Errorf("%w: publisher %q", ErrTopicNotFound, topic)
	}
	delete(m.topics, topic)
	p.closed.Store(true)
	return m.env.Discovery.Unregister(discovery.Publisher, p.id)
}

// Stop destroys every publisher and closes the pooled sockets.
func (m *PublishersManager) Stop() error {
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return ErrAlreadyStopped
	}
	m.stopped = true
	var errs error
	for topic, p := range m.topics {
		delete(m.topics, topic)
		p.closed.Store(true)
		errs = multierr.Append(errs, m.env.Discovery.Unregister(discovery.Publisher, p.id))
	}
	n := m.pool.Size()
	errs = multierr.Append(errs, m.pool.StopAndCleanAll())
	for i := 0; i < n; i++ {
		m.env.Metrics.ConnectionClosed("pub")
	}
	return errs
}
