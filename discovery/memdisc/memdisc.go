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

// Package memdisc is an in-process discovery registry.  Every instance of
// a process that should see each other takes a Client from the same
// Registry.  Changes are delivered synchronously from the goroutine that
// made them.
package memdisc

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	"nanomsg.org/go/vega/discovery"
	. "nanomsg.org/go/vega/errors"
)

type epKey struct {
	kind    discovery.Kind
	topicID uint64
}

type subKey struct {
	topic string
	kind  discovery.Kind
}

// Registry is the shared endpoint table.
type Registry struct {
	sync.Mutex
	node      *snowflake.Node
	endpoints map[epKey]discovery.EndPoint
	subs      map[subKey]map[*Client]discovery.Listener
	log       zerolog.Logger
}

// NewRegistry creates an empty registry.  Ids are generated by a
// snowflake node with the given node number (0-1023).
func NewRegistry(node int64, log zerolog.Logger) (*Registry, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &Registry{
		node:      n,
		endpoints: make(map[epKey]discovery.EndPoint),
		subs:      make(map[subKey]map[*Client]discovery.Listener),
		log:       log.With().Str("component", "memdisc").Logger(),
	}, nil
}

// Client returns a new view onto the registry for one instance.
func (r *Registry) Client() *Client {
	return &Client{
		r:     r,
		owned: make(map[epKey]bool),
		subs:  make(map[subKey]bool),
	}
}

// EndPoints returns a snapshot of every registered endpoint.
func (r *Registry) EndPoints() []discovery.EndPoint {
	r.Lock()
	defer r.Unlock()
	eps := make([]discovery.EndPoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		eps = append(eps, ep)
	}
	return eps
}

// deliver must be called with the registry lock held.
func (r *Registry) deliver(ep discovery.EndPoint, added bool) {
	for _, l := range r.subs[subKey{ep.TopicName, ep.Kind}] {
		if added {
			l.OnEndPointAdded(ep)
		} else {
			l.OnEndPointRemoved(ep)
		}
	}
}

// Client implements discovery.Discovery on a Registry.
type Client struct {
	r      *Registry
	owned  map[epKey]bool
	subs   map[subKey]bool
	closed bool
}

// Register implements discovery.Discovery.
func (c *Client) Register(ep discovery.EndPoint) error {
	r := c.r
	r.Lock()
	defer r.Unlock()
	if c.closed {
		return ErrClosed
	}
	k := epKey{ep.Kind, ep.TopicID}
	if _, ok := r.endpoints[k]; ok {
		return fmt.Errorf("%w: endpoint %s already registered", ErrDuplicateTopic, ep)
	}
	r.endpoints[k] = ep
	c.owned[k] = true
	r.log.Debug().Stringer("endpoint", ep).Msg("registered")
	r.deliver(ep, true)
	return nil
}

// Unregister implements discovery.Discovery.
func (c *Client) Unregister(kind discovery.Kind, topicID uint64) error {
	r := c.r
	r.Lock()
	defer r.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.unregister(epKey{kind, topicID})
}

func (c *Client) unregister(k epKey) error {
	r := c.r
	if !c.owned[k] {
		return fmt.Errorf("%w: %s endpoint %d", ErrTopicNotFound, k.kind, k.topicID)
	}
	delete(c.owned, k)
	ep := r.endpoints[k]
	delete(r.endpoints, k)
	r.log.Debug().Stringer("endpoint", ep).Msg("unregistered")
	r.deliver(ep, false)
	return nil
}

// Subscribe implements discovery.Discovery.
func (c *Client) Subscribe(topic string, kind discovery.Kind, l discovery.Listener) error {
	r := c.r
	r.Lock()
	defer r.Unlock()
	if c.closed {
		return ErrClosed
	}
	k := subKey{topic, kind}
	if c.subs[k] {
		return fmt.Errorf("%w: %s %q", ErrAlreadySubscribed, kind, topic)
	}
	c.subs[k] = true
	if r.subs[k] == nil {
		r.subs[k] = make(map[*Client]discovery.Listener)
	}
	r.subs[k][c] = l
	for _, ep := range r.endpoints {
		if ep.Kind == kind && ep.TopicName == topic {
			l.OnEndPointAdded(ep)
		}
	}
	return nil
}

// Unsubscribe implements discovery.Discovery.
func (c *Client) Unsubscribe(topic string, kind discovery.Kind) error {
	r := c.r
	r.Lock()
	defer r.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.unsubscribe(subKey{topic, kind})
}

func (c *Client) unsubscribe(k subKey) error {
	r := c.r
	if !c.subs[k] {
		return fmt.Errorf("%w: %s %q", ErrNotSubscribed, k.kind, k.topic)
	}
	delete(c.subs, k)
	delete(r.subs[k], c)
	if len(r.subs[k]) == 0 {
		delete(r.subs, k)
	}
	return nil
}

// CreateUniqueID implements discovery.Discovery.
func (c *Client) CreateUniqueID() (uint64, error) {
	return uint64(c.r.node.Generate().Int64()), nil
}

// Close drops the client's subscriptions and withdraws its endpoints.
func (c *Client) Close() error {
	r := c.r
	r.Lock()
	defer r.Unlock()
	if c.closed {
		return ErrClosed
	}
	for k := range c.subs {
		_ = c.unsubscribe(k)
	}
	for k := range c.owned {
		_ = c.unregister(k)
	}
	c.closed = true
	return nil
}
