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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
	// Must not panic.
	m.Published()
	m.Dropped(DropBadHeader)
	m.ConnectionOpened("sub")
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Published()
	m.Published()
	m.Received("data")
	m.RequestSent()
	m.ResponseReceived()
	m.Timeout()
	m.Dropped(DropBadHeader)
	m.ConnectionOpened("sub")
	m.ConnectionOpened("sub")
	m.ConnectionClosed("sub")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.received.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.timeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(DropBadHeader)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections.WithLabelValues("sub")))

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}
