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

// Package core implements the topic handles and the four directional
// managers of an instance.
//
// Publishers and responders own bound sockets drawn from a pool and
// announce one endpoint per topic.  Subscribers and requesters follow
// discovery: each announced endpoint of their topic is bound inside a
// connection to the remote socket it lives on, and connections are shared
// between topics and torn down when their last topic goes.
package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery"
	"nanomsg.org/go/vega/internal/reqmgr"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/wire"
)

// Env is the state shared by every manager of an instance.
type Env struct {
	InstanceID uint64
	Version    string
	Config     *config.Config
	Discovery  discovery.Discovery
	Requests   *reqmgr.Manager
	Log        zerolog.Logger
	Metrics    *metrics.Metrics
}

func (e *Env) header(t wire.MsgType, topicID uint64) wire.Header {
	return wire.Header{
		Type:       t,
		TopicID:    topicID,
		InstanceID: e.InstanceID,
		Version:    e.Version,
	}
}

// safely runs a listener, logging instead of propagating a panic.
func safely(log zerolog.Logger, topic string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("topic", topic).Str("panic", fmt.Sprint(p)).Msg("listener panicked")
		}
	}()
	fn()
}
