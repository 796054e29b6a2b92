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

// Package reqmgr correlates responses with the requests that caused them
// and expires requests whose deadline passed.
//
// A single goroutine sweeps the outstanding requests at a short fixed
// interval.  Expired requests are removed and their timeout listener is
// called once.  Requests still open when the manager stops are dropped
// without calling anything.
package reqmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/msg"
	"nanomsg.org/go/vega/wire"
)

// DefaultInterval is the sweep interval.
const DefaultInterval = time.Millisecond

// Manager owns the table of outstanding requests.
type Manager struct {
	sync.Mutex
	requests sync.Map
	interval time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
	done     chan struct{}
	wg       sync.WaitGroup
	stopped  bool
}

// New starts a manager sweeping every interval, or DefaultInterval when
// interval is zero.
func New(interval time.Duration, log zerolog.Logger, m *metrics.Metrics) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	mgr := &Manager{
		interval: interval,
		log:      log.With().Str("component", "reqmgr").Logger(),
		metrics:  m,
		done:     make(chan struct{}),
	}
	mgr.wg.Add(1)
	go mgr.run()
	return mgr
}

// Add registers a new request.  A zero timeout never expires.
func (m *Manager) Add(topic string, timeout time.Duration,
	onResp msg.ResponseListener, onTimeout msg.TimeoutListener) (*SentRequest, error) {

	if onResp == nil {
		return nil, ErrNoListener
	}
	r := newSentRequest(topic, timeout, onResp, onTimeout)
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return nil, ErrStopped
	}
	m.requests.Store(r.id, r)
	return r, nil
}

// Remove drops a request without calling any listener.  It is used when
// the request could not be sent.
func (m *Manager) Remove(r *SentRequest) {
	r.Close()
	m.requests.Delete(r.id)
}

// Len returns the number of requests in the table.  A request closed by
// its holder stays counted until the next sweep removes it; Remove takes
// effect at once.
func (m *Manager) Len() int {
	n := 0
	m.requests.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// OnResponse delivers a response to its request.  Responses for unknown
// or closed requests are dropped.
func (m *Manager) OnResponse(h *wire.Header, payload []byte) {
	v, ok := m.requests.Load(h.RequestID)
	if !ok {
		m.log.Trace().Stringer("request", h.RequestID).Msg("response for unknown request")
		return
	}
	r := v.(*SentRequest)
	if !r.accept() {
		return
	}
	m.metrics.ResponseReceived()
	m.safely(r, "response", func() {
		r.onResponse(r, msg.NewResponse(r.topic, h, payload))
	})
}

func (m *Manager) safely(r *SentRequest, what string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error().Str("topic", r.topic).Stringer("request", r.id).
				Str("panic", fmt.Sprint(p)).Msgf("%s listener panicked", what)
		}
	}()
	fn()
}

func (m *Manager) run() {
	defer m.wg.Done()
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-t.C:
			m.sweep(now)
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.requests.Range(func(k, v any) bool {
		r := v.(*SentRequest)
		closed, expired := r.expire(now)
		if !closed {
			return true
		}
		m.requests.Delete(k)
		if expired {
			m.metrics.Timeout()
			m.log.Debug().Str("topic", r.topic).Stringer("request", r.id).Msg("request expired")
			if r.onTimeout != nil {
				m.safely(r, "timeout", func() { r.onTimeout(r) })
			}
		}
		return true
	})
}

// Stop ends the sweep and closes every remaining request silently.
func (m *Manager) Stop() error {
	m.Lock()
	if m.stopped {
		m.Unlock()
		return ErrAlreadyStopped
	}
	m.stopped = true
	m.Unlock()

	close(m.done)
	m.wg.Wait()
	m.requests.Range(func(k, v any) bool {
		v.(*SentRequest).Close()
		m.requests.Delete(k)
		return true
	})
	return nil
}
