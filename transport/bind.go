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
	"fmt"

	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
)

// Bound is the part of a listening socket announced through discovery.
type Bound struct {
	id   uint64
	addr string
	port int
}

// ID is the socket id announced with every endpoint on the socket.
func (b *Bound) ID() uint64 { return b.id }

// Addr is the address peers connect to.
func (b *Bound) Addr() string { return b.addr }

// Port is the port the socket bound.
func (b *Bound) Port() int { return b.port }

// listenInRange binds sock to the first free port of the schema range,
// probing linearly from MinPort.  Failures other than the address being
// in use end the probe immediately.
func listenInRange(sock mangos.Socket, s *config.SocketSchema, log zerolog.Logger) (string, int, error) {
	host := ResolveInterface(s.Interface)
	n := s.NumPorts()
	for i := 0; i < n; i++ {
		port := s.MinPort + i
		err := sock.Listen(bindAddress(s.Media, s.Interface, host, port))
		if err == nil {
			addr := Address(s.Media, host, port)
			log.Debug().Str("addr", addr).Msg("bound")
			return addr, port, nil
		}
		if !IsAddrInUse(err) {
			return "", 0, fmt.Errorf("binding %s port %d: %w", s.Name, port, err)
		}
		log.Trace().Int("port", port).Msg("port in use")
	}
	return "", 0, fmt.Errorf("%w: schema %s [%d-%d]", ErrNoPortsAvailable, s.Name, s.MinPort, s.MaxPort)
}
