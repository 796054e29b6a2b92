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
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"

	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

// socket holds what every physical socket kind shares.
type socket struct {
	sync.Mutex
	sock    mangos.Socket
	log     zerolog.Logger
	metrics *metrics.Metrics
	closed  bool
	wg      sync.WaitGroup
}

// receive drains the socket until it is closed.  Messages whose header
// does not decode are dropped.
func (s *socket) receive(deliver func(m *mangos.Message, h *wire.Header, payload []byte)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			m, err := s.sock.RecvMsg()
			if err != nil {
				if errors.Is(err, mangos.ErrClosed) {
					return
				}
				if !errors.Is(err, mangos.ErrRecvTimeout) {
					s.log.Warn().Err(err).Msg("receive failed")
				}
				continue
			}
			h, n, err := wire.Decode(m.Body)
			if err != nil {
				s.log.Warn().Err(err).Int("len", len(m.Body)).Msg("dropping message")
				s.metrics.Dropped(metrics.DropBadHeader)
				m.Free()
				continue
			}
			deliver(m, &h, m.Body[n:])
			m.Free()
		}
	}()
}

func (s *socket) send(m *mangos.Message) error {
	if err := s.sock.SendMsg(m); err != nil {
		m.Free()
		return err
	}
	return nil
}

// close closes the mangos socket and waits for the receiver to exit.
func (s *socket) close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.Unlock()
	err := s.sock.Close()
	s.wg.Wait()
	return err
}

func (s *socket) isClosed() bool {
	s.Lock()
	defer s.Unlock()
	return s.closed
}
