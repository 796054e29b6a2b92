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

// Package transport wraps mangos sockets into the four physical socket
// kinds used by vega: publishers and responders bind within a port range,
// subscribers and requesters connect to announced addresses.  Every
// socket that receives runs one goroutine draining it.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"go.nanomsg.org/mangos/v3"
	// Register every transport media.
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"nanomsg.org/go/vega/wire"
)

// Message is an alias for the mangos.Message
type Message = mangos.Message

// LocalhostEnv overrides the address announced for the "*" interface.
const LocalhostEnv = "VEGA_LOCALHOST"

// Handler is called for each decoded inbound message.  The payload is
// only valid until the handler returns.
type Handler func(h *wire.Header, payload []byte)

// Replier sends a message back along the route a request arrived on.
type Replier func(h *wire.Header, payload []byte) error

// RequestHandler is called for each decoded inbound request.
type RequestHandler func(h *wire.Header, payload []byte, reply Replier)

// ResolveInterface returns the host to announce for a configured
// interface.  "*" resolves to $VEGA_LOCALHOST, then the first
// non-loopback IPv4 address, then 127.0.0.1.
func ResolveInterface(iface string) string {
	if iface != "*" && iface != "" {
		return iface
	}
	if h := os.Getenv(LocalhostEnv); h != "" {
		return h
	}
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok || ipn.IP.IsLoopback() {
				continue
			}
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "127.0.0.1"
}

// Address builds the URL of a socket on host and port for the media.
func Address(media, host string, port int) string {
	hp := net.JoinHostPort(host, strconv.Itoa(port))
	switch media {
	case "ws":
		return "ws://" + hp + "/vega"
	case "inproc":
		return "inproc://vega/" + hp
	case "ipc":
		return "ipc://" + filepath.Join(os.TempDir(), "vega-"+host+"-"+strconv.Itoa(port)+".ipc")
	}
	return "tcp://" + hp
}

// bindAddress is the URL a socket listens on.  TCP based media listen on
// every interface for "*"; the others use the announced address.
func bindAddress(media, iface, host string, port int) string {
	switch media {
	case "tcp", "ws":
		if iface == "*" || iface == "" {
			return Address(media, "0.0.0.0", port)
		}
	}
	return Address(media, host, port)
}

// IsAddrInUse reports whether a listen failed because the address is
// taken, as opposed to any other failure.
func IsAddrInUse(err error) bool {
	return errors.Is(err, mangos.ErrAddrInUse) || errors.Is(err, syscall.EADDRINUSE)
}

// setQueueLen applies a queue length, tolerating protocols that do not
// have the option.
func setQueueLen(sock mangos.Socket, opt string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := sock.SetOption(opt, n); err != nil && !errors.Is(err, mangos.ErrBadOption) {
		return fmt.Errorf("setting %s: %w", opt, err)
	}
	return nil
}

// newMessage encodes header and payload into a mangos message.
func newMessage(h *wire.Header, payload []byte) (*mangos.Message, error) {
	m := mangos.NewMessage(h.Size() + len(payload))
	body, err := h.AppendTo(m.Body)
	if err != nil {
		m.Free()
		return nil, err
	}
	m.Body = append(body, payload...)
	return m, nil
}
