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
	"time"

	"nanomsg.org/go/vega/msg"
	"nanomsg.org/go/vega/wire"
)

// SentRequest tracks one outstanding request.  It implements
// msg.SentRequest.
type SentRequest struct {
	sync.Mutex
	id         wire.RequestID
	topic      string
	expiration time.Time
	onResponse msg.ResponseListener
	onTimeout  msg.TimeoutListener
	responses  atomic.Int64
	closed     bool
}

func newSentRequest(topic string, timeout time.Duration,
	onResp msg.ResponseListener, onTimeout msg.TimeoutListener) *SentRequest {

	r := &SentRequest{
		id:         wire.NewRequestID(),
		topic:      topic,
		onResponse: onResp,
		onTimeout:  onTimeout,
	}
	if timeout > 0 {
		r.expiration = time.Now().Add(timeout)
	}
	return r
}

// ID implements msg.SentRequest.
func (r *SentRequest) ID() wire.RequestID { return r.id }

// TopicName implements msg.SentRequest.
func (r *SentRequest) TopicName() string { return r.topic }

// NumResponses implements msg.SentRequest.
func (r *SentRequest) NumResponses() int { return int(r.responses.Load()) }

// Close implements msg.SentRequest.  It may be called from a response
// listener of the same request.
func (r *SentRequest) Close() {
	r.Lock()
	r.closed = true
	r.Unlock()
}

// Closed implements msg.SentRequest.
func (r *SentRequest) Closed() bool {
	r.Lock()
	defer r.Unlock()
	return r.closed
}

// Expiration returns the deadline, or the zero time for none.
func (r *SentRequest) Expiration() time.Time { return r.expiration }

func (r *SentRequest) hasExpired(now time.Time) bool {
	return !r.expiration.IsZero() && now.After(r.expiration)
}

// accept decides whether one more response is delivered.
func (r *SentRequest) accept() bool {
	r.Lock()
	defer r.Unlock()
	if r.closed {
		return false
	}
	r.responses.Add(1)
	return true
}

// expire closes the request if its deadline passed.  It reports whether
// the request is closed, and whether this call expired it.
func (r *SentRequest) expire(now time.Time) (closed, expired bool) {
	r.Lock()
	defer r.Unlock()
	if r.closed {
		return true, false
	}
	if r.hasExpired(now) {
		r.closed = true
		return true, true
	}
	return false, false
}
