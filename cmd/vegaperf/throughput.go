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

package main

import (
	"context"
	"sync"
	"time"

	"nanomsg.org/go/vega"
)

// idleTimeout ends a throughput run whose messages stopped arriving.  PUB
// sockets drop when their queue is full, so count may never be reached.
const idleTimeout = 2 * time.Second

// linger keeps the publisher announced while its queue drains.
const linger = time.Second

// Throughput is the result of a throughput run.
type Throughput struct {
	MsgSize  int
	Sent     int
	Received int
	Elapsed  time.Duration
}

// MsgPerSec returns the received message rate.
func (t Throughput) MsgPerSec() float64 {
	if t.Elapsed <= 0 {
		return 0
	}
	return float64(t.Received) / t.Elapsed.Seconds()
}

// Mbps returns the received payload bandwidth in megabits per second.
func (t Throughput) Mbps() float64 {
	return t.MsgPerSec() * float64(t.MsgSize*8) / 1000000.0
}

func readyTopic(topic string) string {
	return topic + ".ready"
}

// ThroughputServer is the equivalent of local_thr in nanomsg/perf.  It
// subscribes to topic and counts messages of msgSize bytes until count
// arrived or the publisher went idle.
//
// The client publishes empty messages until the server has seen one, and
// asks on the ready topic whether it has; only then does the run start.
func ThroughputServer(ctx context.Context, inst *vega.Instance, topic string, msgSize, count int) (Throughput, error) {
	res := Throughput{MsgSize: msgSize, Sent: count}
	if msgSize <= 0 {
		return res, errBadSize
	}
	if count <= 0 {
		return res, errBadCount
	}

	var mu sync.Mutex
	ready := false
	var start, last time.Time
	done := make(chan struct{})

	_, err := inst.CreateSubscriber(topic, func(m *vega.Message) {
		mu.Lock()
		defer mu.Unlock()
		if len(m.Payload) == 0 {
			ready = true
			return
		}
		if len(m.Payload) != msgSize || res.Received == count {
			return
		}
		last = time.Now()
		if res.Received == 0 {
			start = last
		}
		if res.Received++; res.Received == count {
			close(done)
		}
	})
	if err != nil {
		return res, err
	}
	defer inst.DestroySubscriber(topic)

	_, err = inst.CreateResponder(readyTopic(topic), func(req *vega.Request) {
		mu.Lock()
		ok := ready
		mu.Unlock()
		if ok {
			_ = req.Respond(nil)
		}
	})
	if err != nil {
		return res, err
	}
	defer inst.DestroyResponder(readyTopic(topic))

	tick := time.NewTicker(idleTimeout / 4)
	defer tick.Stop()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		case <-ctx.Done():
			return res, ctx.Err()
		case now := <-tick.C:
			mu.Lock()
			finished = res.Received > 0 && now.Sub(last) > idleTimeout
			mu.Unlock()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	res.Elapsed = last.Sub(start)
	return res, nil
}

// ThroughputClient publishes count messages of msgSize bytes on topic,
// the equivalent of remote_thr.
func ThroughputClient(ctx context.Context, inst *vega.Instance, topic string, msgSize, count int) error {
	if msgSize <= 0 {
		return errBadSize
	}
	if count <= 0 {
		return errBadCount
	}
	p, err := inst.CreatePublisher(topic)
	if err != nil {
		return err
	}
	defer inst.DestroyPublisher(topic)
	r, err := inst.CreateRequester(readyTopic(topic))
	if err != nil {
		return err
	}
	defer inst.DestroyRequester(readyTopic(topic))

	for {
		if err = p.Publish(nil); err != nil {
			return err
		}
		err = roundTrip(ctx, r, nil, 100*time.Millisecond)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	body := make([]byte, msgSize)
	for i := range body {
		body[i] = 111
	}
	for i := 0; i < count; i++ {
		if err = p.Publish(body); err != nil {
			return err
		}
	}

	t := time.NewTimer(linger)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return nil
}
