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
)

// inboundTopic is the state of a subscriber or requester topic.
type inboundTopic struct {
	name      string
	schema    *config.SocketSchema
	endpoints map[uint64]discovery.EndPoint // guarded by inbound.mu
	closed    atomic.Bool
	handle    any
}

// dialer opens the socket of a new connection to ep.
type dialer func(ep discovery.EndPoint, s *config.SocketSchema, c *connection) (physical, error)

// inbound is what the subscribers and requesters managers share: the
// topic table, the remote socket id to connection table, and the
// reaction to discovery events.
//
// User operations are serialized by ops.  The tables are guarded by mu,
// which discovery callbacks also take; mu is never held while calling
// into discovery, because subscribing replays known endpoints through
// the callbacks.  Callbacks run under the discovery lock, so connections
// they empty are closed by closeLater and never waited for there.
type inbound struct {
	ops       sync.Mutex
	mu        sync.Mutex
	closers   sync.WaitGroup
	env       *Env
	kind      discovery.Kind
	direction string
	table     *config.Table
	topics    map[string]*inboundTopic
	conns     map[uint64]*connection
	dial      dialer
	stopped   bool
	log       zerolog.Logger
}

func newInbound(env *Env, kind discovery.Kind, direction string, table *config.Table, d dialer) inbound {
	return inbound{
		env:       env,
		kind:      kind,
		direction: direction,
		table:     table,
		topics:    make(map[string]*inboundTopic),
		conns:     make(map[uint64]*connection),
		dial:      d,
		log:       env.Log.With().Str("component", direction+"-manager").Logger(),
	}
}

type topicListener struct {
	b *inbound
	t *inboundTopic
}

func (l topicListener) OnEndPointAdded(ep discovery.EndPoint) {
	l.b.onAdded(l.t, ep)
}

func (l topicListener) OnEndPointRemoved(ep discovery.EndPoint) {
	l.b.onRemoved(l.t, ep)
}

func (b *inbound) create(name string, handle func(t *inboundTopic) any) (*inboundTopic, error) {
	b.ops.Lock()
	defer b.ops.Unlock()

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrStopped
	}
	if _, ok := b.topics[name]; ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s %q", ErrDuplicateTopic, b.direction, name)
	}
	s, err := b.table.Match(name)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	t := &inboundTopic{
		name:      name,
		schema:    s,
		endpoints: make(map[uint64]discovery.EndPoint),
	}
	t.handle = handle(t)
	b.topics[name] = t
	b.mu.Unlock()

	if err := b.env.Discovery.Subscribe(name, b.kind, topicListener{b, t}); err != nil {
		b.mu.Lock()
		closing := b.release(t)
		b.mu.Unlock()
		_ = b.closeAll(closing)
		return nil, err
	}
	b.log.Debug().Str("topic", name).Str("schema", s.Name).Msg("created")
	return t, nil
}

func (b *inbound) destroy(name string) error {
	b.ops.Lock()
	defer b.ops.Unlock()

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	t, ok := b.topics[name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s %q", ErrTopicNotFound, b.direction, name)
	}
	closing := b.release(t)
	b.mu.Unlock()

	err := multierr.Append(b.env.Discovery.Unsubscribe(name, b.kind), b.closeAll(closing))
	b.log.Debug().Str("topic", name).Err(err).Msg("destroyed")
	return err
}

func (b *inbound) stop() error {
	b.ops.Lock()
	defer b.ops.Unlock()

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrAlreadyStopped
	}
	b.stopped = true
	var names []string
	var closing []*connection
	for name, t := range b.topics {
		names = append(names, name)
		closing = append(closing, b.release(t)...)
	}
	for id, c := range b.conns {
		delete(b.conns, id)
		if c.beginClose() {
			closing = append(closing, c)
		}
	}
	b.mu.Unlock()

	var errs error
	for _, name := range names {
		errs = multierr.Append(errs, b.env.Discovery.Unsubscribe(name, b.kind))
	}
	errs = multierr.Append(errs, b.closeAll(closing))
	b.closers.Wait()
	return errs
}

func (b *inbound) lookup(name string) (*inboundTopic, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	return t, ok
}

// release drops t and its bindings.  Called with mu held; the returned
// connections became empty and must be closed after unlocking.
func (b *inbound) release(t *inboundTopic) []*connection {
	t.closed.Store(true)
	if b.topics[t.name] == t {
		delete(b.topics, t.name)
	}
	var closing []*connection
	for id, ep := range t.endpoints {
		delete(t.endpoints, id)
		if c := b.unbind(ep); c != nil {
			closing = append(closing, c)
		}
	}
	return closing
}

// unbind removes the endpoint's topic id from its connection.  Called
// with mu held.  It returns the connection when it has nothing left.
func (b *inbound) unbind(ep discovery.EndPoint) *connection {
	c, ok := b.conns[ep.SocketID]
	if !ok {
		return nil
	}
	if c.unbind(ep.TopicID) > 0 {
		return nil
	}
	delete(b.conns, ep.SocketID)
	if !c.beginClose() {
		return nil
	}
	return c
}

// closeLater closes c on its own goroutine.
func (b *inbound) closeLater(c *connection) {
	b.closers.Add(1)
	go func() {
		defer b.closers.Done()
		if err := b.closeAll([]*connection{c}); err != nil {
			c.log.Warn().Err(err).Msg("close failed")
		}
	}()
}

func (b *inbound) closeAll(cs []*connection) error {
	var errs error
	for _, c := range cs {
		errs = multierr.Append(errs, c.finishClose())
		b.env.Metrics.ConnectionClosed(b.direction)
	}
	return errs
}

func (b *inbound) open(ep discovery.EndPoint, s *config.SocketSchema) (*connection, error) {
	c := &connection{
		socketID: ep.SocketID,
		addr:     ep.Addr,
		log: b.log.With().Uint64("socket", ep.SocketID).
			Str("addr", ep.Addr).Logger(),
	}
	c.advance(Unconnected)
	sock, err := b.dial(ep, s, c)
	if err != nil {
		return nil, err
	}
	c.sock = sock
	c.advance(Connecting)
	b.env.Metrics.ConnectionOpened(b.direction)
	c.log.Debug().Msg("connection opened")
	return c, nil
}

func (b *inbound) onAdded(t *inboundTopic, ep discovery.EndPoint) {
	b.mu.Lock()
	c := b.added(t, ep)
	b.mu.Unlock()
	if c != nil {
		b.closeLater(c)
	}
}

// added binds a new endpoint.  Failures are logged and the endpoint is
// skipped; a later event for it will try again.
func (b *inbound) added(t *inboundTopic, ep discovery.EndPoint) *connection {
	if b.stopped || b.topics[t.name] != t {
		return nil
	}
	if _, ok := t.endpoints[ep.TopicID]; ok {
		return nil
	}
	c, ok := b.conns[ep.SocketID]
	if !ok {
		var err error
		if c, err = b.open(ep, t.schema); err != nil {
			b.log.Error().Err(err).Stringer("endpoint", ep).Msg("cannot connect")
			return nil
		}
		b.conns[ep.SocketID] = c
	}
	if err := c.bind(ep.TopicID, t.handle); err != nil {
		b.log.Error().Err(err).Stringer("endpoint", ep).Msg("cannot bind")
		if c.bound == 0 {
			delete(b.conns, ep.SocketID)
			if c.beginClose() {
				return c
			}
		}
		return nil
	}
	t.endpoints[ep.TopicID] = ep
	b.log.Debug().Stringer("endpoint", ep).Msg("endpoint added")
	return nil
}

func (b *inbound) onRemoved(t *inboundTopic, ep discovery.EndPoint) {
	b.mu.Lock()
	if b.topics[t.name] != t {
		b.mu.Unlock()
		return
	}
	if _, ok := t.endpoints[ep.TopicID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(t.endpoints, ep.TopicID)
	c := b.unbind(ep)
	b.mu.Unlock()
	b.log.Debug().Stringer("endpoint", ep).Msg("endpoint removed")
	if c != nil {
		b.closeLater(c)
	}
}

// target is a connection a request is sent through.
type target struct {
	ep discovery.EndPoint
	c  *connection
}

// targets snapshots the connected endpoints of t.
func (b *inbound) targets(t *inboundTopic) []target {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts := make([]target, 0, len(t.endpoints))
	for _, ep := range t.endpoints {
		if c, ok := b.conns[ep.SocketID]; ok && c.State() == Connected {
			ts = append(ts, target{ep, c})
		}
	}
	return ts
}
