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
	"encoding/binary"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/xreq"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

// ReqSocket is a raw REQ socket connected to one remote responder
// socket.  Responses are correlated by the request id in the vega
// header, not by the SP envelope.
type ReqSocket struct {
	Dialed
	socket
	seq uint32
}

// NewReqSocket connects a raw REQ socket to addr.  Responses are passed
// to h from the socket's receive goroutine.
func NewReqSocket(addr string, s *config.SocketSchema, h Handler,
	log zerolog.Logger, m *metrics.Metrics) (*ReqSocket, error) {

	sock, err := xreq.NewSocket()
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
	log = log.With().Str("component", "req-socket").Str("addr", addr).Logger()
	rs := &ReqSocket{socket: socket{sock: sock, log: log, metrics: m}}
	if err = rs.dial(sock, addr, log); err != nil {
		sock.Close()
		return nil, err
	}
	rs.receive(func(_ *mangos.Message, hdr *wire.Header, payload []byte) {
		h(hdr, payload)
	})
	return rs, nil
}

// Send sends a request.  The SP envelope is a single hop word with the
// high bit set, as a cooked REQ socket would write.
func (r *ReqSocket) Send(h *wire.Header, payload []byte) error {
	if r.isClosed() {
		return ErrClosed
	}
	m, err := newMessage(h, payload)
	if err != nil {
		return err
	}
	id := atomic.AddUint32(&r.seq, 1) | 0x80000000
	m.Header = binary.BigEndian.AppendUint32(m.Header[:0], id)
	return r.send(m)
}

// Close closes the socket and waits for its receive goroutine.
func (r *ReqSocket) Close() error {
	return r.close()
}
