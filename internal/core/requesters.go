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

package core

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/msg"
	"nanomsg.org/go/vega/transport"
	"nanomsg.org/go/vega/wire"
)

// TopicRequester is the handle of a requester topic.
type TopicRequester struct {
	t *inboundTopic
	m *RequestersManager
}

// TopicName returns the requester topic.
func (r *TopicRequester) TopicName() string { return r.t.name }

// Closed reports whether the requester was destroyed.
func (r *TopicRequester) Closed() bool { return r.t.closed.Load() }

// SendRequest sends payload to every responder endpoint known right now.
// Responders discovered later do not receive it.  onResp is called for
// every response until the request is closed or expires; onTimeout, if
// given, is called once on expiry.  A zero timeout never expires.
func (r *TopicRequester) SendRequest(payload []byte, timeout time.Duration,
	onResp msg.ResponseListener, onTimeout msg.TimeoutListener) (msg.SentRequest, error) {

	if onResp == nil {
		return nil, ErrNoListener
	}
	if r.Closed() {
		return nil, ErrClosed
	}
	env := r.m.env
	sr, err := env.Requests.Add(r.t.name, timeout, onResp, onTimeout)
	if err != nil {
		return nil, err
	}
	targets := r.m.targets(r.t)
	var errs error
	sent := 0
	for _, tg := range targets {
		h := env.header(wire.TypeRequest, tg.ep.TopicID)
		h.HasRequestID = true
		h.RequestID = sr.ID()
		if err := tg.c.sock.(*transport.ReqSocket).Send(&h, payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tg.ep, err))
			continue
		}
		sent++
	}
	if errs != nil {
		r.m.log.Warn().Err(errs).Str("topic", r.t.name).Msg("request not sent to every responder")
	}
	if sent == 0 && len(targets) > 0 {
		env.Requests.Remove(sr)
		return nil, errs
	}
	env.Metrics.RequestSent()
	r.m.log.Trace().Str("topic", r.t.name).Stringer("request", sr.ID()).
		Int("targets", sent).Msg("request sent")
	return sr, nil
}

// RequestersManager owns the requester topics of an instance.
type RequestersManager struct {
	inbound
}

// NewRequestersManager creates a manager following responder endpoints.
func NewRequestersManager(env *Env) *RequestersManager {
	m := &RequestersManager{}
	m.inbound = newInbound(env, discovery.Responder, "req", &env.Config.Requesters, m.dialer)
	return m
}

func (m *RequestersManager) dialer(ep discovery.EndPoint, s *config.SocketSchema, c *connection) (physical, error) {
	return transport.NewReqSocket(ep.Addr, s, func(h *wire.Header, payload []byte) {
		if h.Type != wire.TypeResponse || !h.HasRequestID {
			m.env.Metrics.Dropped(metrics.DropBadType)
			c.log.Warn().Stringer("type", h.Type).Msg("unexpected message type")
			return
		}
		m.env.Requests.OnResponse(h, payload)
	}, c.log, m.env.Metrics)
}

// Create creates a requester for a topic.
func (m *RequestersManager) Create(topic string) (*TopicRequester, error) {
	t, err := m.create(topic, func(t *inboundTopic) any {
		return &TopicRequester{t: t, m: m}
	})
	if err != nil {
		return nil, err
	}
	return t.handle.(*TopicRequester), nil
}

// Destroy removes a requester.  Its outstanding requests stay open until
// closed or expired.
func (m *RequestersManager) Destroy(topic string) error {
	return m.destroy(topic)
}

// Stop destroys every requester.  The manager cannot be used afterwards.
func (m *RequestersManager) Stop() error {
	return m.stop()
}
