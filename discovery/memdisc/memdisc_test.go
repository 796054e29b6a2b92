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

package memdisc

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"nanomsg.org/go/vega/discovery"
	. "nanomsg.org/go/vega/errors"
)

type recorder struct {
	added   []discovery.EndPoint
	removed []discovery.EndPoint
}

func (r *recorder) OnEndPointAdded(ep discovery.EndPoint)   { r.added = append(r.added, ep) }
func (r *recorder) OnEndPointRemoved(ep discovery.EndPoint) { r.removed = append(r.removed, ep) }

func TestMemDisc(t *testing.T) {
	Convey("Given a registry with two clients", t, func() {
		reg, err := NewRegistry(1, zerolog.Nop())
		So(err, ShouldBeNil)
		a := reg.Client()
		b := reg.Client()

		ep := discovery.EndPoint{Kind: discovery.Publisher, TopicName: "T",
			SocketID: 1, TopicID: 10, Addr: "inproc://x"}

		Convey("Subscribe replays existing endpoints", func() {
			So(a.Register(ep), ShouldBeNil)
			rec := &recorder{}
			So(b.Subscribe("T", discovery.Publisher, rec), ShouldBeNil)
			So(rec.added, ShouldResemble, []discovery.EndPoint{ep})
		})

		Convey("Live changes are delivered", func() {
			rec := &recorder{}
			So(b.Subscribe("T", discovery.Publisher, rec), ShouldBeNil)
			So(a.Register(ep), ShouldBeNil)
			So(a.Unregister(discovery.Publisher, 10), ShouldBeNil)
			So(len(rec.added), ShouldEqual, 1)
			So(rec.removed, ShouldResemble, []discovery.EndPoint{ep})
		})

		Convey("Other kinds and topics are filtered", func() {
			rec := &recorder{}
			So(b.Subscribe("T", discovery.Responder, rec), ShouldBeNil)
			So(a.Register(ep), ShouldBeNil)
			other := ep
			other.TopicName = "U"
			other.TopicID = 11
			So(a.Register(other), ShouldBeNil)
			So(rec.added, ShouldBeEmpty)
		})

		Convey("Double subscribe and bad unsubscribe fail", func() {
			rec := &recorder{}
			So(b.Subscribe("T", discovery.Publisher, rec), ShouldBeNil)
			err := b.Subscribe("T", discovery.Publisher, rec)
			So(errors.Is(err, ErrAlreadySubscribed), ShouldBeTrue)
			So(b.Unsubscribe("T", discovery.Publisher), ShouldBeNil)
			err = b.Unsubscribe("T", discovery.Publisher)
			So(errors.Is(err, ErrNotSubscribed), ShouldBeTrue)
		})

		Convey("Only the owner can unregister", func() {
			So(a.Register(ep), ShouldBeNil)
			err := b.Unregister(discovery.Publisher, 10)
			So(errors.Is(err, ErrTopicNotFound), ShouldBeTrue)
		})

		Convey("Close withdraws owned endpoints", func() {
			rec := &recorder{}
			So(b.Subscribe("T", discovery.Publisher, rec), ShouldBeNil)
			So(a.Register(ep), ShouldBeNil)
			So(a.Close(), ShouldBeNil)
			So(len(rec.removed), ShouldEqual, 1)
			So(reg.EndPoints(), ShouldBeEmpty)
			So(errors.Is(a.Close(), ErrClosed), ShouldBeTrue)
			So(errors.Is(a.Register(ep), ErrClosed), ShouldBeTrue)
		})

		Convey("Unique ids do not repeat", func() {
			seen := map[uint64]bool{}
			for i := 0; i < 1000; i++ {
				id, err := a.CreateUniqueID()
				So(err, ShouldBeNil)
				So(seen[id], ShouldBeFalse)
				seen[id] = true
			}
		})
	})
}
