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

package vega

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery"
	"nanomsg.org/go/vega/discovery/memdisc"
	"nanomsg.org/go/vega/discovery/natsdisc"
	. "nanomsg.org/go/vega/errors"
	"nanomsg.org/go/vega/internal/core"
	"nanomsg.org/go/vega/internal/reqmgr"
	"nanomsg.org/go/vega/metrics"
	"nanomsg.org/go/vega/msg"
)

// Version is written into the header of every message sent.
const Version = "3.0.0"

// Topic handles.
type (
	Publisher  = core.TopicPublisher
	Subscriber = core.TopicSubscriber
	Requester  = core.TopicRequester
	Responder  = core.TopicResponder
)

// Messages and listeners.
type (
	Message          = msg.Message
	Request          = msg.Request
	Response         = msg.Response
	SentRequest      = msg.SentRequest
	Listener         = msg.Listener
	RequestListener  = msg.RequestListener
	ResponseListener = msg.ResponseListener
	TimeoutListener  = msg.TimeoutListener
)

// Options configure a new Instance.  Everything is optional.
type Options struct {
	// Config defaults to config.Default("tcp").
	Config *config.Config

	// Discovery is used as is when set, and is not closed by Stop.
	// Otherwise a registry is built from Config.Discovery; a "memory"
	// registry built this way is private to the instance.
	Discovery discovery.Discovery

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger

	// Registerer receives the instance metrics.  Nil disables metrics.
	Registerer prometheus.Registerer

	// SweepInterval is how often expired requests are looked for.
	SweepInterval time.Duration
}

// Instance is a running vega node.
type Instance struct {
	sync.Mutex
	env      *core.Env
	pubs     *core.PublishersManager
	subs     *core.SubscribersManager
	reqs     *core.RequestersManager
	resps    *core.RespondersManager
	ownsDisc bool
	stopped  bool
	log      zerolog.Logger
}

// New starts an instance.
func New(o Options) (*Instance, error) {
	log := zerolog.Nop()
	if o.Logger != nil {
		log = *o.Logger
	}
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default(config.DefaultMedia)
	}
	if !cfg.Validated() {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	m, err := metrics.New(o.Registerer)
	if err != nil {
		return nil, err
	}

	d := o.Discovery
	owns := false
	if d == nil {
		if d, err = openDiscovery(cfg.Discovery, log); err != nil {
			return nil, err
		}
		owns = true
	}
	id, err := d.CreateUniqueID()
	if err != nil {
		if owns {
			_ = d.Close()
		}
		return nil, fmt.Errorf("instance id: %w", err)
	}

	log = log.With().Uint64("instance", id).Logger()
	if cfg.Instance != "" {
		log = log.With().Str("name", cfg.Instance).Logger()
	}
	env := &core.Env{
		InstanceID: id,
		Version:    Version,
		Config:     cfg,
		Discovery:  d,
		Requests:   reqmgr.New(o.SweepInterval, log, m),
		Log:        log,
		Metrics:    m,
	}
	inst := &Instance{
		env:      env,
		pubs:     core.NewPublishersManager(env),
		subs:     core.NewSubscribersManager(env),
		reqs:     core.NewRequestersManager(env),
		resps:    core.NewRespondersManager(env),
		ownsDisc: owns,
		log:      log,
	}
	log.Info().Str("version", Version).Msg("instance started")
	return inst, nil
}

func openDiscovery(c config.Discovery, log zerolog.Logger) (discovery.Discovery, error) {
	switch c.Backend {
	case "nats":
		return natsdisc.Connect(c, log)
	default:
		reg, err := memdisc.NewRegistry(0, log)
		if err != nil {
			return nil, err
		}
		return reg.Client(), nil
	}
}

// ID returns the unique id of the instance.
func (i *Instance) ID() uint64 {
	return i.env.InstanceID
}

// IsRunning reports whether Stop has not been called yet.
func (i *Instance) IsRunning() bool {
	i.Lock()
	defer i.Unlock()
	return !i.stopped
}

// Config returns the configuration in use.
func (i *Instance) Config() *config.Config {
	return i.env.Config
}

// CreatePublisher creates a publisher for topic.
func (i *Instance) CreatePublisher(topic string) (*Publisher, error) {
	return i.pubs.Create(topic)
}

// DestroyPublisher destroys the publisher of topic.
func (i *Instance) DestroyPublisher(topic string) error {
	return i.pubs.Destroy(topic)
}

// CreateSubscriber subscribes l to topic.
func (i *Instance) CreateSubscriber(topic string, l Listener) (*Subscriber, error) {
	return i.subs.Create(topic, l)
}

// DestroySubscriber destroys the subscriber of topic.
func (i *Instance) DestroySubscriber(topic string) error {
	return i.subs.Destroy(topic)
}

// CreateRequester creates a requester for topic.
func (i *Instance) CreateRequester(topic string) (*Requester, error) {
	return i.reqs.Create(topic)
}

// DestroyRequester destroys the requester of topic.
func (i *Instance) DestroyRequester(topic string) error {
	return i.reqs.Destroy(topic)
}

// CreateResponder creates a responder for topic answering with l.
func (i *Instance) CreateResponder(topic string, l RequestListener) (*Responder, error) {
	return i.resps.Create(topic, l)
}

// DestroyResponder destroys the responder of topic.
func (i *Instance) DestroyResponder(topic string) error {
	return i.resps.Destroy(topic)
}

// Publish is the same as p.Publish(payload).
func (i *Instance) Publish(p *Publisher, payload []byte) error {
	return p.Publish(payload)
}

// SendRequest is the same as r.SendRequest.
func (i *Instance) SendRequest(r *Requester, payload []byte, timeout time.Duration,
	onResp ResponseListener, onTimeout TimeoutListener) (SentRequest, error) {
	return r.SendRequest(payload, timeout, onResp, onTimeout)
}

// Stop destroys every topic handle, closes every socket and cancels the
// outstanding requests without calling their timeout listeners.  Calling
// it again returns ErrAlreadyStopped.
func (i *Instance) Stop() error {
	i.Lock()
	defer i.Unlock()
	if i.stopped {
		return ErrAlreadyStopped
	}
	i.stopped = true

	var errs error
	errs = multierr.Append(errs, i.subs.Stop())
	errs = multierr.Append(errs, i.reqs.Stop())
	errs = multierr.Append(errs, i.pubs.Stop())
	errs = multierr.Append(errs, i.resps.Stop())
	errs = multierr.Append(errs, i.env.Requests.Stop())
	if i.ownsDisc {
		errs = multierr.Append(errs, i.env.Discovery.Close())
	}
	i.log.Info().Err(errs).Msg("instance stopped")
	return errs
}
