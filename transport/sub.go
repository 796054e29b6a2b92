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
	"go.nanomsg.org/mangos/v3/protocol/sub"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

// SubSocket is a SUB socket connected to one remote publisher socket.
type SubSocket struct {
	Dialed
	socket
}

// NewSubSocket connects a SUB socket to addr.  Nothing is received until
// Subscribe is called.
func NewSubSocket(addr string, s *config.SocketSchema, h Handler,
	log zerolog.Logger, m *metrics.Metrics) (*SubSocket, error) {

	sock, err := sub.NewSocket()
	if err != nil {
		return nil, err
	}
	if err = setQueueLen(sock, mangos.OptionReadQLen, s.RateLimit); err != nil {
		sock.Close()
		return nil, err
	}
	log = log.With().Str("component", "sub-socket").Str("addr", addr).Logger()
	ss := &SubSocket{socket: socket{sock: sock, log: log, metrics: m}}
	if err = ss.dial(sock, addr, log); err != nil {
		sock.Close()
		return nil, err
	}
	ss.receive(func(_ *mangos.Message, hdr *wire.Header, payload []byte) {
		h(hdr, payload)
	})
	return ss, nil
}

// Subscribe accepts messages starting with prefix.  An empty prefix
// accepts everything.
func (s *SubSocket) Subscribe(prefix []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.sock.SetOption(mangos.OptionSubscribe, prefix)
}

// Unsubscribe drops a prefix previously subscribed.
func (s *SubSocket) Unsubscribe(prefix []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.sock.SetOption(mangos.OptionUnsubscribe, prefix)
}

// Close closes the socket and waits for its receive goroutine.
func (s *SubSocket) Close() error {
	return s.close()
}
