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
	"errors"
	"fmt"
	"time"

	"nanomsg.org/go/vega"
)

// Empty payloads are reserved for warm-up and control messages.
var errBadSize = errors.New("message size must be positive")

var errBadCount = errors.New("count must be positive")

// LatencyServer echoes requests on topic, the equivalent of local_lat in
// nanomsg/perf.  It returns after answering roundTrips requests of msgSize
// bytes.  Empty warm-up requests are answered but not counted.
func LatencyServer(ctx context.Context, inst *vega.Instance, topic string, msgSize, roundTrips int) error {
	if msgSize <= 0 {
		return errBadSize
	}
	if roundTrips <= 0 {
		return errBadCount
	}
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	n := 0
	_, err := inst.CreateResponder(topic, func(req *vega.Request) {
		if err := req.Respond(req.Payload); err != nil {
			finish(err)
			return
		}
		switch len(req.Payload) {
		case 0:
		case msgSize:
			// Requests of one requester arrive in order on one goroutine.
			if n++; n == roundTrips {
				finish(nil)
			}
		default:
			finish(fmt.Errorf("received wrong message size: %d != %d", len(req.Payload), msgSize))
		}
	})
	if err != nil {
		return err
	}
	defer inst.DestroyResponder(topic)

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// roundTrip sends one request and waits for its first response.
func roundTrip(ctx context.Context, r *vega.Requester, payload []byte, timeout time.Duration) error {
	got := make(chan bool, 1)
	signal := func(ok bool) {
		select {
		case got <- ok:
		default:
		}
	}
	sr, err := r.SendRequest(payload, timeout,
		func(sr vega.SentRequest, _ *vega.Response) {
			sr.Close()
			signal(true)
		},
		func(vega.SentRequest) {
			signal(false)
		})
	if err != nil {
		return err
	}
	select {
	case ok := <-got:
		if !ok {
			return context.DeadlineExceeded
		}
		return nil
	case <-ctx.Done():
		sr.Close()
		return ctx.Err()
	}
}

// LatencyClient measures request round trips on topic, the equivalent of
// remote_lat.  It returns the average one way latency.
func LatencyClient(ctx context.Context, inst *vega.Instance, topic string, msgSize, roundTrips int) (time.Duration, error) {
	if msgSize <= 0 {
		return 0, errBadSize
	}
	if roundTrips <= 0 {
		return 0, errBadCount
	}
	r, err := inst.CreateRequester(topic)
	if err != nil {
		return 0, err
	}
	defer inst.DestroyRequester(topic)

	// Warm up until a responder is connected.
	for {
		err = roundTrip(ctx, r, nil, 100*time.Millisecond)
		if err == nil {
			break
		}
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return 0, err
		}
	}

	body := make([]byte, msgSize)
	start := time.Now()
	for i := 0; i < roundTrips; i++ {
		if err = roundTrip(ctx, r, body, 0); err != nil {
			return 0, err
		}
	}
	total := time.Since(start)
	return total / time.Duration(roundTrips*2), nil
}
