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

// Package pool keeps, per socket schema, a bounded queue of bound sockets
// that many topics share.  The queue grows up to the schema's
// MaxNumPorts and is then cycled round robin.  Sockets are only closed
// when the whole pool is stopped.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
)

// Socket is what the pool needs from a pooled socket.
type Socket interface {
	ID() uint64
	Close() error
}

// Factory creates a new socket for a schema.
type Factory[S Socket] func(s *config.SocketSchema) (S, error)

// Pool is a set of per-schema socket queues.
type Pool[S Socket] struct {
	sync.Mutex
	create  Factory[S]
	queues  map[string][]S
	log     zerolog.Logger
	stopped bool
}

// New creates an empty pool.
func New[S Socket](create Factory[S], log zerolog.Logger) *Pool[S] {
	return &Pool[S]{
		create: create,
		queues: make(map[string][]S),
		log:    log,
	}
}

// GetOrCreate returns a socket for the schema.  A new socket is created
// while the queue holds fewer than MaxNumPorts; otherwise the head of the
// queue is moved to the tail and returned.  When creation fails because
// the port range is exhausted, an existing socket is reused if there is
// one.
func (p *Pool[S]) GetOrCreate(s *config.SocketSchema) (S, error) {
	p.Lock()
	defer p.Unlock()
	var zero S
	if p.stopped {
		return zero, ErrStopped
	}
	q := p.queues[s.Name]
	if len(q) >= s.MaxNumPorts {
		return p.rotate(s.Name)
	}
	sock, err := p.create(s)
	if err != nil {
		if errors.Is(err, ErrNoPortsAvailable) && len(q) > 0 {
			p.log.Warn().Err(err).Str("schema", s.Name).Msg("reusing pooled socket")
			return p.rotate(s.Name)
		}
		return zero, fmt.Errorf("creating socket for schema %s: %w", s.Name, err)
	}
	p.queues[s.Name] = append(q, sock)
	p.log.Debug().Str("schema", s.Name).Uint64("socket", sock.ID()).
		Int("size", len(q)+1).Msg("socket added to pool")
	return sock, nil
}

// rotate moves the head of a queue to its tail and returns it.
func (p *Pool[S]) rotate(name string) (S, error) {
	q := p.queues[name]
	if len(q) == 0 {
		var zero S
		return zero, fmt.Errorf("%w: empty pool for schema %s", ErrNoPortsAvailable, name)
	}
	head := q[0]
	p.queues[name] = append(q[1:], head)
	return head, nil
}

// Len returns the number of sockets created for a schema.
func (p *Pool[S]) Len(schema string) int {
	p.Lock()
	defer p.Unlock()
	return len(p.queues[schema])
}

// Size returns the number of sockets in the pool.
func (p *Pool[S]) Size() int {
	p.Lock()
	defer p.Unlock()
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// StopAndCleanAll closes every socket once and empties the pool.  The
// pool cannot be used afterwards.
func (p *Pool[S]) StopAndCleanAll() error {
	p.Lock()
	defer p.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.stopped = true
	var errs error
	for name, q := range p.queues {
		for _, sock := range q {
			errs = multierr.Append(errs, sock.Close())
		}
		delete(p.queues, name)
	}
	return errs
}
