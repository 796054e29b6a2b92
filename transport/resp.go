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
	"time"

	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/xrep"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

const sendDeadline = time.Second

// RespSocket is a bound raw REP socket.  Requests carry a routing
// envelope in the message header, which replies send back unchanged.
type RespSocket struct {
	Bound
	socket
}

// NewRespSocket opens a raw REP socket bound within the schema port
// range.  Requests are passed to h from the socket's receive goroutine.
func NewRespSocket(id uint64, s *config.SocketSchema, h RequestHandler,
	log zerolog.Logger, m *metrics.Metrics) (*RespSocket, error) {

	sock, err := xrep.NewSocket()
	if err != nil {
		return nil, err
	}
	if err = setQueueLen(sock, mangos.OptionWriteQLen, s.RateLimit); err == nil {
		err = setQueueLen(sock, mangos.OptionReadQLen, s.RateLimit)
	}
	if err == nil {
		err = sock.SetOption(mangos.OptionSendDeadline, sendDeadline)
	}
	if err != nil {
		sock.Close()
		return nil, err
	}
	log = log.With().Str("component", "resp-socket").Uint64("socket", id).Logger()
	addr, port, err := listenInRange(sock, s, log)
	if err != nil {
		sock.Close()
		return nil, err
	}
	r := &RespSocket{
		Bound:  Bound{id: id, addr: addr, port: port},
		socket: socket{sock: sock, log: log, metrics: m},
	}
	r.receive(func(msg *mangos.Message, hdr *wire.Header, payload []byte) {
		env := append([]byte(nil), msg.Header...)
		h(hdr, payload, func(rh *wire.Header, rp []byte) error {
			return r.reply(env, rh, rp)
		})
	})
	return r, nil
}

func (r *RespSocket) reply(env []byte, h *wire.Header, payload []byte) error {
	if r.isClosed() {
		return ErrClosed
	}
	m, err := newMessage(h, payload)
	if err != nil {
		return err
	}
	m.Header = append(m.Header[:0], env...)
	return r.send(m)
}

// Close closes the socket and waits for its receive goroutine.
func (r *RespSocket) Close() error {
	return r.close()
}
