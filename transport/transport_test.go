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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
	"go.nanomsg.org/mangos/v3"

	"nanomsg.org/go/vega/config"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

func schema(media string, min, max int) *config.SocketSchema {
	return &config.SocketSchema{Name: "test", Media: media, Interface: "127.0.0.1",
		MinPort: min, MaxPort: max, MaxNumPorts: 1, RateLimit: 16}
}

func waitConnected(d *Dialed) bool {
	select {
	case <-d.Connected():
		return true
	case <-time.After(5 * time.Second):
		return false
	}
}

func TestAddresses(t *testing.T) {
	Convey("Addresses are built per media", t, func() {
		So(Address("tcp", "10.0.0.1", 5), ShouldEqual, "tcp://10.0.0.1:5")
		So(Address("ws", "h", 5), ShouldEqual, "ws://h:5/vega")
		So(Address("inproc", "h", 5), ShouldEqual, "inproc://vega/h:5")
		So(strings.HasPrefix(Address("ipc", "h", 5), "ipc://"), ShouldBeTrue)
		So(bindAddress("tcp", "*", "10.0.0.1", 5), ShouldEqual, "tcp://0.0.0.0:5")
		So(bindAddress("inproc", "*", "10.0.0.1", 5), ShouldEqual, "inproc://vega/10.0.0.1:5")
	})

	Convey("Interfaces resolve", t, func() {
		So(ResolveInterface("192.168.1.1"), ShouldEqual, "192.168.1.1")
		t.Setenv(LocalhostEnv, "myhost")
		So(ResolveInterface("*"), ShouldEqual, "myhost")
	})
}

func TestPortProbing(t *testing.T) {
	Convey("Given a range of two ports", t, func() {
		s := schema("inproc", 36000, 36001)
		a, err := NewPubSocket(1, s, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer a.Close()
		So(a.Port(), ShouldEqual, 36000)
		So(a.ID(), ShouldEqual, uint64(1))

		b, err := NewPubSocket(2, s, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer b.Close()
		So(b.Port(), ShouldEqual, 36001)
		So(b.Addr(), ShouldEqual, "inproc://vega/127.0.0.1:36001")

		Convey("A third socket finds no port", func() {
			_, err := NewPubSocket(3, s, zerolog.Nop(), nil)
			So(errors.Is(err, ErrNoPortsAvailable), ShouldBeTrue)
		})

		Convey("A closed port is reused", func() {
			So(a.Close(), ShouldBeNil)
			c, err := NewPubSocket(3, s, zerolog.Nop(), nil)
			So(err, ShouldBeNil)
			So(c.Port(), ShouldEqual, 36000)
			So(c.Close(), ShouldBeNil)
		})
	})
}

func TestPubSub(t *testing.T) {
	Convey("Given a publisher and a subscriber", t, func() {
		s := schema("inproc", 36100, 36100)
		p, err := NewPubSocket(1, s, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer p.Close()

		got := make(chan string, 16)
		sub, err := NewSubSocket(p.Addr(), s, func(h *wire.Header, payload []byte) {
			got <- string(payload)
		}, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer sub.Close()
		So(sub.Subscribe(nil), ShouldBeNil)
		So(waitConnected(&sub.Dialed), ShouldBeTrue)

		Convey("Published messages arrive", func() {
			h := &wire.Header{Type: wire.TypeData, TopicID: 9}
			var msg string
			deadline := time.After(5 * time.Second)
		loop:
			for {
				So(p.Send(h, []byte("hello")), ShouldBeNil)
				select {
				case msg = <-got:
					break loop
				case <-time.After(20 * time.Millisecond):
				case <-deadline:
					break loop
				}
			}
			So(msg, ShouldEqual, "hello")
		})

		Convey("Closed sockets refuse work", func() {
			So(sub.Close(), ShouldBeNil)
			So(errors.Is(sub.Close(), ErrClosed), ShouldBeTrue)
			So(errors.Is(sub.Subscribe(nil), ErrClosed), ShouldBeTrue)
			So(p.Close(), ShouldBeNil)
			err := p.Send(&wire.Header{Type: wire.TypeData}, nil)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})
	})
}

func TestReqResp(t *testing.T) {
	Convey("Given a responder and a requester", t, func() {
		s := schema("inproc", 36200, 36200)
		r, err := NewRespSocket(7, s, func(h *wire.Header, payload []byte, reply Replier) {
			rh := &wire.Header{Type: wire.TypeResponse, TopicID: h.TopicID,
				HasRequestID: true, RequestID: h.RequestID}
			_ = reply(rh, append([]byte("re:"), payload...))
			_ = reply(rh, []byte("again"))
		}, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer r.Close()

		type resp struct {
			id   wire.RequestID
			body string
		}
		got := make(chan resp, 16)
		q, err := NewReqSocket(r.Addr(), s, func(h *wire.Header, payload []byte) {
			got <- resp{h.RequestID, string(payload)}
		}, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer q.Close()
		So(waitConnected(&q.Dialed), ShouldBeTrue)

		Convey("Each request is answered through the envelope", func() {
			id := wire.NewRequestID()
			h := &wire.Header{Type: wire.TypeRequest, TopicID: 3, HasRequestID: true, RequestID: id}
			So(q.Send(h, []byte("ping")), ShouldBeNil)

			var first, second resp
			select {
			case first = <-got:
			case <-time.After(5 * time.Second):
			}
			select {
			case second = <-got:
			case <-time.After(5 * time.Second):
			}
			So(first.body, ShouldEqual, "re:ping")
			So(first.id, ShouldResemble, id)
			So(second.body, ShouldEqual, "again")
		})
	})
}

// badHeaders reads the dropped message counter for undecodable headers.
func badHeaders(reg *prometheus.Registry) float64 {
	mfs, err := reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range mfs {
		if mf.GetName() != "vega_messages_dropped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == metrics.DropBadHeader {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// garbage holds bodies that do not decode as a header.
var garbage = [][]byte{
	{0x00, 0x01},
	append(make([]byte, wire.MinSize-1), 7),
}

func TestMalformedHeaders(t *testing.T) {
	Convey("Given a subscriber counting drops", t, func() {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		So(err, ShouldBeNil)

		s := schema("inproc", 36300, 36300)
		p, err := NewPubSocket(1, s, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer p.Close()

		got := make(chan string, 64)
		sub, err := NewSubSocket(p.Addr(), s, func(h *wire.Header, payload []byte) {
			got <- string(payload)
		}, zerolog.Nop(), m)
		So(err, ShouldBeNil)
		defer sub.Close()
		So(sub.Subscribe(nil), ShouldBeNil)
		So(waitConnected(&sub.Dialed), ShouldBeTrue)

		h := &wire.Header{Type: wire.TypeData, TopicID: 9}
		deadline := time.After(5 * time.Second)
		joined := false
		for !joined {
			So(p.Send(h, []byte("warm")), ShouldBeNil)
			select {
			case <-got:
				joined = true
			case <-time.After(20 * time.Millisecond):
			case <-deadline:
				So("subscriber never joined", ShouldBeEmpty)
			}
		}
		for len(got) > 0 {
			<-got
		}

		Convey("Garbage is dropped and the next message still arrives", func() {
			for _, g := range garbage {
				So(p.sock.Send(g), ShouldBeNil)
			}
			So(p.Send(h, []byte("after")), ShouldBeNil)

			var msg string
			for msg != "after" {
				select {
				case msg = <-got:
				case <-time.After(5 * time.Second):
					So("message lost after garbage", ShouldBeEmpty)
				}
			}
			So(badHeaders(reg), ShouldEqual, float64(len(garbage)))
		})
	})

	Convey("Given a responder counting drops", t, func() {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		So(err, ShouldBeNil)

		s := schema("inproc", 36400, 36400)
		calls := make(chan string, 16)
		r, err := NewRespSocket(7, s, func(h *wire.Header, payload []byte, reply Replier) {
			calls <- string(payload)
			rh := &wire.Header{Type: wire.TypeResponse, TopicID: h.TopicID,
				HasRequestID: true, RequestID: h.RequestID}
			_ = reply(rh, payload)
		}, zerolog.Nop(), m)
		So(err, ShouldBeNil)
		defer r.Close()

		answers := make(chan string, 16)
		q, err := NewReqSocket(r.Addr(), s, func(h *wire.Header, payload []byte) {
			answers <- string(payload)
		}, zerolog.Nop(), nil)
		So(err, ShouldBeNil)
		defer q.Close()
		So(waitConnected(&q.Dialed), ShouldBeTrue)

		Convey("Garbage is dropped and the next request is answered", func() {
			for i, g := range garbage {
				gm := mangos.NewMessage(len(g))
				gm.Header = binary.BigEndian.AppendUint32(gm.Header[:0], uint32(i+1)|0x80000000)
				gm.Body = append(gm.Body, g...)
				So(q.sock.SendMsg(gm), ShouldBeNil)
			}
			h := &wire.Header{Type: wire.TypeRequest, TopicID: 3,
				HasRequestID: true, RequestID: wire.NewRequestID()}
			So(q.Send(h, []byte("ping")), ShouldBeNil)

			var answer string
			select {
			case answer = <-answers:
			case <-time.After(5 * time.Second):
			}
			So(answer, ShouldEqual, "ping")
			So(len(calls), ShouldEqual, 1)
			So(badHeaders(reg), ShouldEqual, float64(len(garbage)))
		})
	})
}
