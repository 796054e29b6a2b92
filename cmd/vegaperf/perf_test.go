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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInprocLatency(t *testing.T) {
	a, b, stop := newInprocPair()
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- LatencyServer(ctx, a, "lat", 64, 20)
	}()
	lat, err := LatencyClient(ctx, b, "lat", 64, 20)
	require.NoError(t, err)
	assert.True(t, lat > 0)
	assert.NoError(t, <-errc)
}

func TestInprocThroughput(t *testing.T) {
	a, b, stop := newInprocPair()
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- ThroughputClient(ctx, a, "thr", 128, 100)
	}()
	res, err := ThroughputServer(ctx, b, "thr", 128, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Received)
	assert.True(t, res.MsgPerSec() > 0)
	assert.NoError(t, <-errc)
}

func TestBadArguments(t *testing.T) {
	a, b, stop := newInprocPair()
	defer stop()
	ctx := context.Background()

	_, err := LatencyClient(ctx, a, "x", 0, 1)
	assert.Equal(t, errBadSize, err)
	assert.Equal(t, errBadCount, LatencyServer(ctx, b, "x", 1, 0))
	_, err = ThroughputServer(ctx, b, "x", 1, -1)
	assert.Equal(t, errBadCount, err)
	assert.Equal(t, errBadSize, ThroughputClient(ctx, a, "x", -1, 1))

	assert.Equal(t, 0.0, Throughput{}.MsgPerSec())
}
