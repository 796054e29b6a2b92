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

// Package msg defines the message views handed to application listeners,
// and the listener function types themselves.
//
// Payloads passed to a listener are borrowed from the receiving socket and
// are only valid until the listener returns.  Call Promote to keep one.
package msg

import (
	"nanomsg.org/go/vega/wire"
)

// Message is a received DATA message.
type Message struct {
	TopicName  string
	TopicID    uint64
	InstanceID uint64
	Version    string
	Payload    []byte

	owned bool
}

// New builds a message view from a decoded header and its payload.
func New(topic string, h *wire.Header, payload []byte) *Message {
	return &Message{
		TopicName:  topic,
		TopicID:    h.TopicID,
		InstanceID: h.InstanceID,
		Version:    h.Version,
		Payload:    payload,
	}
}

// Owned reports whether the payload belongs to the message rather than to
// the socket it arrived on.
func (m *Message) Owned() bool {
	return m.owned
}

// Promote returns a copy of the message whose payload is owned by the
// copy and so remains valid after the listener returns.
func (m *Message) Promote() *Message {
	n := *m
	n.Payload = append([]byte(nil), m.Payload...)
	n.owned = true
	return &n
}

// Replier sends a response payload back to the origin of a request.
type Replier func(payload []byte) error

// Request is a received DATA_REQ message.
type Request struct {
	Message
	RequestID wire.RequestID

	reply Replier
}

// NewRequest builds a request view.  The replier is used by Respond.
func NewRequest(topic string, h *wire.Header, payload []byte, r Replier) *Request {
	return &Request{
		Message:   *New(topic, h, payload),
		RequestID: h.RequestID,
		reply:     r,
	}
}

// Respond sends payload back to the requester.  A request may be answered
// any number of times, also after the listener has returned.
func (r *Request) Respond(payload []byte) error {
	return r.reply(payload)
}

// Promote returns a request holding an owned copy of the payload.
func (r *Request) Promote() *Request {
	return &Request{
		Message:   *r.Message.Promote(),
		RequestID: r.RequestID,
		reply:     r.reply,
	}
}

// Response is a received DATA_RESP message.
type Response struct {
	Message
	RequestID wire.RequestID
}

// NewResponse builds a response view.
func NewResponse(topic string, h *wire.Header, payload []byte) *Response {
	return &Response{
		Message:   *New(topic, h, payload),
		RequestID: h.RequestID,
	}
}

// Promote returns a response holding an owned copy of the payload.
func (r *Response) Promote() *Response {
	return &Response{
		Message:   *r.Message.Promote(),
		RequestID: r.RequestID,
	}
}

// SentRequest is the caller's handle on an outstanding request.
type SentRequest interface {
	// ID returns the request id carried in every header of the request
	// and its responses.
	ID() wire.RequestID

	// TopicName is the requester topic the request was sent on.
	TopicName() string

	// NumResponses returns how many responses have been delivered.
	NumResponses() int

	// Close stops delivery of further responses and prevents the timeout
	// listener from firing.  It is idempotent.
	Close()

	// Closed reports whether the request is closed, either by Close or
	// by expiry.
	Closed() bool
}

// Listener receives DATA messages for a subscribed topic.
//
// Listeners run on the receive goroutine of the connection the message
// arrived on.  A listener must not destroy its own topic or stop the
// instance; both wait for the goroutine it runs on.
type Listener func(m *Message)

// RequestListener receives requests for a responder topic.  It must not
// stop the instance.
type RequestListener func(r *Request)

// ResponseListener receives each response to a sent request.  It may
// close the request.
type ResponseListener func(sr SentRequest, r *Response)

// TimeoutListener is called once when a request expires.
type TimeoutListener func(sr SentRequest)
