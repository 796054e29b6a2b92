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

// Package discovery defines the registry through which instances announce
// the endpoints they bind and learn about the endpoints of their peers.
//
// Two implementations are provided: memdisc, which shares a registry
// between instances of one process, and natsdisc, which keeps the registry
// in a NATS JetStream key-value bucket.
package discovery

import (
	"fmt"
)

// Kind tells which side of a topic an endpoint serves.
type Kind int

// Endpoint kinds.
const (
	Publisher Kind = iota
	Responder
)

func (k Kind) String() string {
	switch k {
	case Publisher:
		return "pub"
	case Responder:
		return "resp"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// EndPoint is the announcement of one (topic, physical socket) pair.
type EndPoint struct {
	Kind       Kind   `json:"kind"`
	TopicName  string `json:"topicName"`
	SocketID   uint64 `json:"socketId"`
	TopicID    uint64 `json:"topicId"`
	InstanceID uint64 `json:"instanceId"`
	Addr       string `json:"addr"`
}

func (ep EndPoint) String() string {
	return fmt.Sprintf("%s[%s topic=%d socket=%d addr=%s]",
		ep.Kind, ep.TopicName, ep.TopicID, ep.SocketID, ep.Addr)
}

// Listener receives endpoint changes for a subscribed topic.  Calls for
// one subscription are never concurrent.  A listener must not call back
// into the Discovery that invokes it.
type Listener interface {
	OnEndPointAdded(ep EndPoint)
	OnEndPointRemoved(ep EndPoint)
}

// ListenerFuncs adapts a pair of functions to a Listener.
type ListenerFuncs struct {
	Added   func(EndPoint)
	Removed func(EndPoint)
}

// OnEndPointAdded implements Listener.
func (l ListenerFuncs) OnEndPointAdded(ep EndPoint) {
	if l.Added != nil {
		l.Added(ep)
	}
}

// OnEndPointRemoved implements Listener.
func (l ListenerFuncs) OnEndPointRemoved(ep EndPoint) {
	if l.Removed != nil {
		l.Removed(ep)
	}
}

// Discovery is the registry consumed by the instance.
type Discovery interface {
	// Register announces a local endpoint.
	Register(ep EndPoint) error

	// Unregister withdraws a local endpoint previously registered.
	Unregister(kind Kind, topicID uint64) error

	// Subscribe delivers every currently known endpoint of the given
	// topic and kind to l before returning, then keeps delivering
	// changes until Unsubscribe.  Subscribing twice to the same topic
	// and kind fails with ErrAlreadySubscribed.
	Subscribe(topic string, kind Kind, l Listener) error

	// Unsubscribe stops delivery.  It fails with ErrNotSubscribed when
	// there is no such subscription.
	Unsubscribe(topic string, kind Kind) error

	// CreateUniqueID returns an id unique across every instance sharing
	// the registry.
	CreateUniqueID() (uint64, error)

	// Close releases the registry client.  Local endpoints still
	// registered are withdrawn.
	Close() error
}
