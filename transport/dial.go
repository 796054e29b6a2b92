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
	"sync"

	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"
)

// Dialed is the part of a connecting socket that tracks its peer.
type Dialed struct {
	addr      string
	connected chan struct{}
	once      sync.Once
}

// Addr is the remote address the socket dials.
func (d *Dialed) Addr() string { return d.addr }

// Connected is closed once the first connection to the peer is up.
func (d *Dialed) Connected() <-chan struct{} { return d.connected }

// dial connects sock asynchronously; the transport keeps redialing until
// the socket is closed.
func (d *Dialed) dial(sock mangos.Socket, addr string, log zerolog.Logger) error {
	d.addr = addr
	d.connected = make(chan struct{})
	sock.SetPipeEventHook(func(ev mangos.PipeEvent, p mangos.Pipe) {
		switch ev {
		case mangos.PipeEventAttached:
			log.Debug().Str("addr", addr).Msg("connected")
			d.once.Do(func() { close(d.connected) })
		case mangos.PipeEventDetached:
			log.Debug().Str("addr", addr).Msg("disconnected")
		}
	})
	if err := sock.SetOption(mangos.OptionDialAsynch, true); err != nil {
		return err
	}
	return sock.Dial(addr)
}
