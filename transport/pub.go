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

package transport

import (
	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

// PubSocket is a bound PUB socket shared by the publishers of one pool
// slot.
type PubSocket struct {
	Bound
	socket
}

// NewPubSocket opens a PUB socket bound within the schema port range.
func NewPubSocket(id uint64, s *config.SocketSchema, log zerolog.Logger, m *metrics.Metrics) (*PubSocket, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, err
	}
	if err = setQueueLen(sock, mangos.OptionWriteQLen, s.RateLimit); err != nil {
		sock.Close()
		return nil, err
	}
	log = log.With().Str("component", "pub-socket").Uint64("socket", id).Logger()
	addr, port, err := listenInRange(sock, s, log)
	if err != nil {
		sock.Close()
		return nil, err
	}
	return &PubSocket{
		Bound:  Bound{id: id, addr: addr, port: port},
		socket: socket{sock: sock, log: log, metrics: m},
	}, nil
}

// Send publishes a header and payload to every connected subscriber.
func (p *PubSocket) Send(h *wire.Header, payload []byte) error {
	if p.isClosed() {
		return ErrClosed
	}
	m, err := newMessage(h, payload)
	if err != nil {
		return err
	}
	return p.send(m)
}

// Close closes the socket.
func (p *PubSocket) Close() error {
	return p.close()
}
