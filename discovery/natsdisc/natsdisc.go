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

// Package natsdisc keeps the discovery registry in a NATS JetStream
// key-value bucket.
//
// Endpoints are stored under "<kind>.<hex topic>.<topic id>" with the
// JSON encoded endpoint as value.  Subscriptions are key watchers on
// "<kind>.<hex topic>.*".  Unique ids are the revisions of a counter key.
package natsdisc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery"
	. "nanomsg.org/go/vega/errors"
)

const (
	idKey      = "ids"
	opTimeout  = 5 * time.Second
	maxRetries = 5
)

// Options tune a Client.
type Options struct {
	Bucket  string
	TTL     time.Duration
	Refresh time.Duration
	Logger  zerolog.Logger
}

type subKey struct {
	topic string
	kind  discovery.Kind
}

type subscription struct {
	key   subKey
	l     discovery.Listener
	w     jetstream.KeyWatcher
	known map[string]discovery.EndPoint
	done  chan struct{}
	wg    sync.WaitGroup
}

// Client implements discovery.Discovery over a JetStream bucket.
type Client struct {
	sync.Mutex
	nc     *nats.Conn
	ownsNc bool
	kv     jetstream.KeyValue
	opts   Options
	log    zerolog.Logger
	owned  map[epKey]discovery.EndPoint
	subs   map[subKey]*subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type epKey struct {
	kind    discovery.Kind
	topicID uint64
}

// Connect dials the NATS server named in the discovery configuration and
// returns a client that closes the connection on Close.
func Connect(cfg config.Discovery, log zerolog.Logger) (*Client, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("vega-discovery"))
	if err != nil {
		return nil, err
	}
	c, err := New(nc, Options{
		Bucket:  cfg.Bucket,
		TTL:     cfg.TTL,
		Refresh: cfg.Refresh,
		Logger:  log,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	c.ownsNc = true
	return c, nil
}

// New creates the bucket if needed and starts the endpoint keep-alive.
func New(nc *nats.Conn, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		opts.Bucket = config.DefaultBucket
	}
	if opts.TTL == 0 {
		opts.TTL = config.DefaultTTL
	}
	if opts.Refresh == 0 {
		opts.Refresh = config.DefaultRefresh
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      opts.Bucket,
		Description: "vega endpoint registry",
		History:     1,
		TTL:         opts.TTL,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery bucket %q: %w", opts.Bucket, err)
	}

	c := &Client{
		nc:    nc,
		kv:    kv,
		opts:  opts,
		log:   opts.Logger.With().Str("component", "natsdisc").Str("bucket", opts.Bucket).Logger(),
		owned: make(map[epKey]discovery.EndPoint),
		subs:  make(map[subKey]*subscription),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.keepAlive()
	return c, nil
}

func topicPrefix(kind discovery.Kind, topic string) string {
	return kind.String() + "." + hex.EncodeToString([]byte(topic))
}

func endPointKey(ep discovery.EndPoint) string {
	return topicPrefix(ep.Kind, ep.TopicName) + "." + strconv.FormatUint(ep.TopicID, 10)
}

func (c *Client) retry(op func(ctx context.Context) error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), c.ctx)
	return backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
		defer cancel()
		return op(ctx)
	}, b)
}

func (c *Client) put(ep discovery.EndPoint) error {
	val, err := json.Marshal(ep)
	if err != nil {
		return backoff.Permanent(err)
	}
	return c.retry(func(ctx context.Context) error {
		_, err := c.kv.Put(ctx, endPointKey(ep), val)
		return err
	})
}

// Register implements discovery.Discovery.
func (c *Client) Register(ep discovery.EndPoint) error {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		return ErrClosed
	}
	k := epKey{ep.Kind, ep.TopicID}
	if _, ok := c.owned[k]; ok {
		return fmt.Errorf("%w: endpoint %s already registered", ErrDuplicateTopic, ep)
	}
	if err := c.put(ep); err != nil {
		return err
	}
	c.owned[k] = ep
	c.log.Debug().Stringer("endpoint", ep).Msg("registered")
	return nil
}

// Unregister implements discovery.Discovery.
func (c *Client) Unregister(kind discovery.Kind, topicID uint64) error {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.unregister(epKey{kind, topicID})
}

func (c *Client) unregister(k epKey) error {
	ep, ok := c.owned[k]
	if !ok {
		return fmt.Errorf("%w: %s endpoint %d", ErrTopicNotFound, k.kind, k.topicID)
	}
	delete(c.owned, k)
	err := c.retry(func(ctx context.Context) error {
		return c.kv.Delete(ctx, endPointKey(ep))
	})
	c.log.Debug().Stringer("endpoint", ep).Err(err).Msg("unregistered")
	return err
}

// Subscribe implements discovery.Discovery.  The endpoints already in
// the bucket are delivered before it returns.
func (c *Client) Subscribe(topic string, kind discovery.Kind, l discovery.Listener) error {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		return ErrClosed
	}
	k := subKey{topic, kind}
	if _, ok := c.subs[k]; ok {
		return fmt.Errorf("%w: %s %q", ErrAlreadySubscribed, kind, topic)
	}
	w, err := c.kv.Watch(c.ctx, topicPrefix(kind, topic)+".*")
	if err != nil {
		return err
	}
	s := &subscription{
		key:   k,
		l:     l,
		w:     w,
		known: make(map[string]discovery.EndPoint),
		done:  make(chan struct{}),
	}
	// Initial values end with a nil entry.
	for e := range w.Updates() {
		if e == nil {
			break
		}
		c.handle(s, e)
	}
	c.subs[k] = s
	s.wg.Add(1)
	go c.watch(s)
	return nil
}

func (c *Client) watch(s *subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case e, ok := <-s.w.Updates():
			if !ok {
				return
			}
			if e != nil {
				c.handle(s, e)
			}
		}
	}
}

func (c *Client) handle(s *subscription, e jetstream.KeyValueEntry) {
	switch e.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		ep, ok := s.known[e.Key()]
		if !ok {
			return
		}
		delete(s.known, e.Key())
		s.l.OnEndPointRemoved(ep)
	default:
		var ep discovery.EndPoint
		if err := json.Unmarshal(e.Value(), &ep); err != nil {
			c.log.Warn().Err(err).Str("key", e.Key()).Msg("dropping bad endpoint record")
			return
		}
		if old, ok := s.known[e.Key()]; ok && old == ep {
			return
		}
		s.known[e.Key()] = ep
		s.l.OnEndPointAdded(ep)
	}
}

// Unsubscribe implements discovery.Discovery.
func (c *Client) Unsubscribe(topic string, kind discovery.Kind) error {
	c.Lock()
	if c.closed {
		c.Unlock()
		return ErrClosed
	}
	s, ok := c.subs[subKey{topic, kind}]
	if !ok {
		c.Unlock()
		return fmt.Errorf("%w: %s %q", ErrNotSubscribed, kind, topic)
	}
	delete(c.subs, s.key)
	c.Unlock()
	return c.stopSub(s)
}

func (c *Client) stopSub(s *subscription) error {
	close(s.done)
	err := s.w.Stop()
	s.wg.Wait()
	return err
}

// CreateUniqueID implements discovery.Discovery.
func (c *Client) CreateUniqueID() (uint64, error) {
	var id uint64
	err := c.retry(func(ctx context.Context) error {
		rev, err := c.kv.Put(ctx, idKey, nil)
		id = rev
		return err
	})
	return id, err
}

// keepAlive rewrites the local endpoints so that the bucket TTL only
// removes endpoints of instances that went away.
func (c *Client) keepAlive() {
	defer c.wg.Done()
	t := time.NewTicker(c.opts.Refresh)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}
		c.Lock()
		for _, ep := range c.owned {
			if err := c.put(ep); err != nil {
				c.log.Warn().Err(err).Stringer("endpoint", ep).Msg("keep-alive failed")
			}
		}
		c.Unlock()
	}
}

// Close implements discovery.Discovery.
func (c *Client) Close() error {
	c.Lock()
	if c.closed {
		c.Unlock()
		return ErrClosed
	}
	c.closed = true
	var errs error
	for k := range c.owned {
		errs = multierr.Append(errs, c.unregister(k))
	}
	subs := c.subs
	c.subs = nil
	c.Unlock()

	for _, s := range subs {
		errs = multierr.Append(errs, c.stopSub(s))
	}
	c.cancel()
	c.wg.Wait()
	if c.ownsNc {
		c.nc.Close()
	}
	return errs
}
