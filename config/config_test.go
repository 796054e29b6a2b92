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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "nanomsg.org/go/vega/errors"
)

const sample = `
instance: node-1
nativeFiltering: true
publishers:
  schemas:
    - name: fast
      media: inproc
      minPort: 40000
      maxPort: 40009
      maxNumPorts: 3
    - name: slow
      interface: 127.0.0.1
      minPort: 41000
      maxPort: 41000
  topics:
    - pattern: "FAST_.*"
      schema: fast
    - pattern: "F.*"
      schema: slow
subscribers:
  schemas: [{name: sub}]
  topics: [{pattern: ".*", schema: sub}]
requesters:
  schemas: [{name: req, rateLimit: 10}]
  topics: [{pattern: ".*", schema: req}]
responders:
  schemas: [{name: resp}]
  topics: [{pattern: ".*", schema: resp}]
discovery:
  backend: nats
  url: nats://127.0.0.1:4222
  ttl: 20s
  refresh: 5s
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.True(t, c.Validated())
	assert.Equal(t, "node-1", c.Instance)
	assert.True(t, c.NativeFiltering)

	s, err := c.Publishers.Match("FAST_1")
	require.NoError(t, err)
	assert.Equal(t, "fast", s.Name)
	assert.Equal(t, "inproc", s.Media)
	assert.Equal(t, DefaultInterface, s.Interface)
	assert.Equal(t, 3, s.MaxNumPorts)
	assert.Equal(t, DefaultRateLimit, s.RateLimit)

	s, err = c.Publishers.Match("FOO")
	require.NoError(t, err)
	assert.Equal(t, "slow", s.Name)
	assert.Equal(t, DefaultMedia, s.Media)
	assert.Equal(t, 1, s.NumPorts())

	_, err = c.Publishers.Match("XFAST_1")
	assert.True(t, errors.Is(err, ErrNoConfig))

	r, ok := c.Requesters.Schema("req")
	require.True(t, ok)
	assert.Equal(t, 10, r.RateLimit)

	assert.Equal(t, "nats", c.Discovery.Backend)
	assert.Equal(t, 20*time.Second, c.Discovery.TTL)
	assert.Equal(t, 5*time.Second, c.Discovery.Refresh)
	assert.Equal(t, DefaultBucket, c.Discovery.Bucket)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vega.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-1", c.Instance)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFirstMatchWins(t *testing.T) {
	c := Default("tcp")
	c.Publishers.Schemas = append(c.Publishers.Schemas, SocketSchema{Name: "other"})
	c.Publishers.Topics = append(c.Publishers.Topics, TopicConfig{Pattern: "A", Schema: "other"})
	require.NoError(t, c.Validate())

	s, err := c.Publishers.Match("A")
	require.NoError(t, err)
	assert.Equal(t, "pub", s.Name)
}

func TestValidateErrors(t *testing.T) {
	table := func(s ...SocketSchema) Table {
		return Table{Schemas: s, Topics: []TopicConfig{{Pattern: ".*", Schema: s[0].Name}}}
	}
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"duplicate schema", func(c *Config) {
			c.Publishers = table(SocketSchema{Name: "a"}, SocketSchema{Name: "a"})
		}, ErrDuplicateSchema},
		{"duplicate pattern", func(c *Config) {
			c.Subscribers.Topics = append(c.Subscribers.Topics, c.Subscribers.Topics[0])
		}, ErrDuplicatePattern},
		{"unknown schema", func(c *Config) {
			c.Requesters.Topics[0].Schema = "nope"
		}, ErrBadSchema},
		{"min above max", func(c *Config) {
			c.Responders = table(SocketSchema{Name: "r", MinPort: 10, MaxPort: 5})
		}, ErrBadConfig},
		{"pool above range", func(c *Config) {
			c.Publishers = table(SocketSchema{Name: "p", MinPort: 10, MaxPort: 11, MaxNumPorts: 3})
		}, ErrBadConfig},
		{"negative pool size", func(c *Config) {
			c.Publishers = table(SocketSchema{Name: "p", MaxNumPorts: -1})
		}, ErrBadConfig},
		{"negative pool size on a connecting table", func(c *Config) {
			c.Subscribers = table(SocketSchema{Name: "s", MaxNumPorts: -3})
		}, ErrBadConfig},
		{"bad media", func(c *Config) {
			c.Publishers = table(SocketSchema{Name: "p", Media: "carrier-pigeon"})
		}, ErrBadConfig},
		{"bad regexp", func(c *Config) {
			c.Publishers.Topics[0].Pattern = "("
		}, ErrBadConfig},
		{"empty table", func(c *Config) {
			c.Subscribers = Table{}
		}, ErrBadConfig},
		{"nats without url", func(c *Config) {
			c.Discovery.Backend = "nats"
		}, ErrBadConfig},
		{"unknown backend", func(c *Config) {
			c.Discovery.Backend = "zookeeper"
		}, ErrBadConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default("tcp")
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.False(t, c.Validated())
		})
	}
}

func TestParseBadYAML(t *testing.T) {
	_, err := Parse([]byte("publishers: [oops"))
	assert.True(t, errors.Is(err, ErrBadConfig))
}

func TestSupportedMedia(t *testing.T) {
	for _, m := range []string{"tcp", "ipc", "inproc", "ws"} {
		assert.True(t, SupportedMedia(m), m)
		assert.NotPanics(t, func() { Default(m) }, m)
	}
	assert.False(t, SupportedMedia("udp"))
}

func TestParseNegativePoolSize(t *testing.T) {
	_, err := Parse([]byte(`
publishers:
  schemas:
    - name: p
      maxNumPorts: -1
  topics:
    - pattern: ".*"
      schema: p
subscribers:
  schemas: [{name: s}]
  topics: [{pattern: ".*", schema: s}]
requesters:
  schemas: [{name: q}]
  topics: [{pattern: ".*", schema: q}]
responders:
  schemas: [{name: r}]
  topics: [{pattern: ".*", schema: r}]
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadConfig), "got %v", err)
}
