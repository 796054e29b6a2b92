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

	"github.com/rs/zerolog"

	. "nanomsg.org/go/vega/errors"
)

// physical is the transport socket behind a connection.
type physical interface {
	Close() error
}

// connection is one socket connected to a remote socket id.  Every local
// topic with an endpoint on that remote socket binds the endpoint's topic
// id here; inbound messages are routed through handles by topic id
// without taking the manager lock.
type connection struct {
	stateMachine
	socketID uint64
	addr     string
	sock     physical
	handles  sync.Map
	bound    int // guarded by the owning manager
	onBind   func(topicID uint64) error
	onUnbind func(topicID uint64) error
	log      zerolog.Logger
}

func (c *connection) lookup(topicID uint64) (any, bool) {
	return c.handles.Load(topicID)
}

func (c *connection) bind(topicID uint64, h any) error {
	if st := c.State(); st != Connected {
		return fmt.Errorf("%w: connection to socket %d is %s", ErrClosed, c.socketID, st)
	}
	if c.onBind != nil {
		if err := c.onBind(topicID); err != nil {
			return err
		}
	}
	c.handles.Store(topicID, h)
	c.bound++
	return nil
}

// unbind removes a topic id and returns how many remain bound.
func (c *connection) unbind(topicID uint64) int {
	if _, ok := c.handles.LoadAndDelete(topicID); !ok {
		return c.bound
	}
	c.bound--
	if c.onUnbind != nil {
		if err := c.onUnbind(topicID); err != nil {
			c.log.Warn().Err(err).Uint64("topic", topicID).Msg("unbind failed")
		}
	}
	return c.bound
}

// beginClose stops the connection from accepting bindings.
func (c *connection) beginClose() bool {
	return c.advance(Connected)
}

// finishClose closes the socket.  It must not be called with the manager
// lock held, since it waits for the receive goroutine.
func (c *connection) finishClose() error {
	if c.State() != Closing {
		return nil
	}
	err := c.sock.Close()
	c.advance(Closing)
	c.log.Debug().Err(err).Msg("connection closed")
	return err
}
