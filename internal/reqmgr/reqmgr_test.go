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

package reqmgr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/msg"
	"nanomsg.org/go/vega/wire"
)

func respHeader(r *SentRequest) *wire.Header {
	return &wire.Header{Type: wire.TypeResponse, TopicID: 1, HasRequestID: true, RequestID: r.ID()}
}

func TestCorrelation(t *testing.T) {
	Convey("Given a request manager", t, func() {
		m := New(0, zerolog.Nop(), nil)
		Reset(func() { _ = m.Stop() })

		var calls atomic.Int32
		var mu sync.Mutex
		var payloads []string
		onResp := func(sr msg.SentRequest, r *msg.Response) {
			calls.Add(1)
			mu.Lock()
			payloads = append(payloads, string(r.Payload))
			mu.Unlock()
		}

		Convey("N responses give N calls and close stops delivery", func() {
			r, err := m.Add("T", 0, onResp, nil)
			So(err, ShouldBeNil)
			for i := 0; i < 5; i++ {
				m.OnResponse(respHeader(r), []byte{byte('a' + i)})
			}
			So(int(calls.Load()), ShouldEqual, 5)
			So(r.NumResponses(), ShouldEqual, 5)
			So(payloads, ShouldResemble, []string{"a", "b", "c", "d", "e"})

			r.Close()
			r.Close()
			m.OnResponse(respHeader(r), []byte("late"))
			So(int(calls.Load()), ShouldEqual, 5)
			So(r.NumResponses(), ShouldEqual, 5)
			So(r.Closed(), ShouldBeTrue)
		})

		Convey("Closed requests leave the table", func() {
			r, err := m.Add("T", 0, onResp, nil)
			So(err, ShouldBeNil)
			So(m.Len(), ShouldEqual, 1)
			r.Close()
			So(eventually(func() bool { return m.Len() == 0 }), ShouldBeTrue)
		})

		Convey("Closed requests wait for the sweep, removed ones do not", func() {
			slow := New(time.Hour, zerolog.Nop(), nil)
			defer slow.Stop()
			r, err := slow.Add("T", 0, onResp, nil)
			So(err, ShouldBeNil)
			r.Close()
			So(slow.Len(), ShouldEqual, 1)
			slow.Remove(r)
			So(slow.Len(), ShouldEqual, 0)
		})

		Convey("Unknown request ids are dropped", func() {
			h := &wire.Header{Type: wire.TypeResponse, HasRequestID: true, RequestID: wire.NewRequestID()}
			m.OnResponse(h, nil)
			So(int(calls.Load()), ShouldEqual, 0)
		})

		Convey("A listener may close its own request", func() {
			r, err := m.Add("T", 0, func(sr msg.SentRequest, _ *msg.Response) {
				calls.Add(1)
				sr.Close()
			}, nil)
			So(err, ShouldBeNil)
			m.OnResponse(respHeader(r), nil)
			m.OnResponse(respHeader(r), nil)
			So(int(calls.Load()), ShouldEqual, 1)
		})

		Convey("A panicking listener does not break delivery", func() {
			r, err := m.Add("T", 0, func(msg.SentRequest, *msg.Response) {
				calls.Add(1)
				panic("boom")
			}, nil)
			So(err, ShouldBeNil)
			m.OnResponse(respHeader(r), nil)
			m.OnResponse(respHeader(r), nil)
			So(int(calls.Load()), ShouldEqual, 2)
		})

		Convey("A response listener is required", func() {
			_, err := m.Add("T", 0, nil, nil)
			So(err, ShouldEqual, ErrNoListener)
		})
	})
}

func TestTimeouts(t *testing.T) {
	Convey("Given a request manager", t, func() {
		m := New(0, zerolog.Nop(), nil)
		Reset(func() { _ = m.Stop() })

		var timeouts, responses atomic.Int32
		onResp := func(msg.SentRequest, *msg.Response) { responses.Add(1) }
		onTimeout := func(msg.SentRequest) { timeouts.Add(1) }

		Convey("An unclosed request times out exactly once", func() {
			r, err := m.Add("T", 50*time.Millisecond, onResp, onTimeout)
			So(err, ShouldBeNil)
			So(r.Expiration().IsZero(), ShouldBeFalse)
			So(eventually(func() bool { return timeouts.Load() == 1 }), ShouldBeTrue)
			time.Sleep(50 * time.Millisecond)
			So(int(timeouts.Load()), ShouldEqual, 1)
			So(r.Closed(), ShouldBeTrue)
			So(m.Len(), ShouldEqual, 0)

			m.OnResponse(respHeader(r), nil)
			So(int(responses.Load()), ShouldEqual, 0)
		})

		Convey("A request closed in time never times out", func() {
			r, err := m.Add("T", 100*time.Millisecond, onResp, onTimeout)
			So(err, ShouldBeNil)
			r.Close()
			time.Sleep(200 * time.Millisecond)
			So(int(timeouts.Load()), ShouldEqual, 0)
		})

		Convey("A zero timeout never expires", func() {
			r, err := m.Add("T", 0, onResp, onTimeout)
			So(err, ShouldBeNil)
			So(r.Expiration().IsZero(), ShouldBeTrue)
			time.Sleep(50 * time.Millisecond)
			So(int(timeouts.Load()), ShouldEqual, 0)
			So(r.Closed(), ShouldBeFalse)
		})

		Convey("A panicking timeout listener does not stop the sweep", func() {
			_, err := m.Add("T", 10*time.Millisecond, onResp, func(msg.SentRequest) { panic("boom") })
			So(err, ShouldBeNil)
			_, err = m.Add("T", 30*time.Millisecond, onResp, onTimeout)
			So(err, ShouldBeNil)
			So(eventually(func() bool { return timeouts.Load() == 1 }), ShouldBeTrue)
		})
	})
}

func TestStop(t *testing.T) {
	Convey("Stopping drains requests without timeouts", t, func() {
		m := New(0, zerolog.Nop(), nil)
		var timeouts atomic.Int32
		r, err := m.Add("T", 50*time.Millisecond, func(msg.SentRequest, *msg.Response) {},
			func(msg.SentRequest) { timeouts.Add(1) })
		So(err, ShouldBeNil)

		So(m.Stop(), ShouldBeNil)
		So(r.Closed(), ShouldBeTrue)
		So(m.Len(), ShouldEqual, 0)
		time.Sleep(100 * time.Millisecond)
		So(int(timeouts.Load()), ShouldEqual, 0)

		So(m.Stop(), ShouldEqual, ErrAlreadyStopped)
		_, err = m.Add("T", 0, func(msg.SentRequest, *msg.Response) {}, nil)
		So(err, ShouldEqual, ErrStopped)
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
