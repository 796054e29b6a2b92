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

// Package config holds the socket schema and topic pattern tables that
// decide which physical socket a topic is carried on.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	. "nanomsg.org/go/vega/errors"
)

// Defaults applied to schemas that leave a field unset.
const (
	DefaultMedia       = "tcp"
	DefaultInterface   = "*"
	DefaultMaxNumPorts = 1
	DefaultRateLimit   = 1000
	DefaultMinPort     = 35000
	DefaultMaxPort     = 35500

	DefaultBucket  = "vega"
	DefaultTTL     = 30 * time.Second
	DefaultRefresh = 10 * time.Second
)

// Supported transport media.
var medias = map[string]bool{
	"tcp":    true,
	"ipc":    true,
	"inproc": true,
	"ws":     true,
}

// SupportedMedia reports whether m names a transport media.
func SupportedMedia(m string) bool {
	return medias[m]
}

// SocketSchema describes how physical sockets of one kind are built.
type SocketSchema struct {
	Name        string `yaml:"name"`
	Media       string `yaml:"media"`
	Interface   string `yaml:"interface"`
	MinPort     int    `yaml:"minPort"`
	MaxPort     int    `yaml:"maxPort"`
	MaxNumPorts int    `yaml:"maxNumPorts"`
	RateLimit   int    `yaml:"rateLimit"`
}

// NumPorts returns the size of the schema's port range.
func (s *SocketSchema) NumPorts() int {
	return s.MaxPort - s.MinPort + 1
}

// TopicConfig binds topics whose name fully matches Pattern to the
// schema called Schema.
type TopicConfig struct {
	Pattern string `yaml:"pattern"`
	Schema  string `yaml:"schema"`

	re *regexp.Regexp
}

// Table is the configuration of one direction.
type Table struct {
	Schemas []SocketSchema `yaml:"schemas"`
	Topics  []TopicConfig  `yaml:"topics"`

	byName map[string]*SocketSchema
}

// Discovery selects and tunes the discovery backend.
type Discovery struct {
	// Backend is "memory" or "nats".
	Backend string        `yaml:"backend"`
	URL     string        `yaml:"url"`
	Bucket  string        `yaml:"bucket"`
	TTL     time.Duration `yaml:"ttl"`
	Refresh time.Duration `yaml:"refresh"`
}

// Config is the full configuration of an instance.
type Config struct {
	Instance        string    `yaml:"instance"`
	NativeFiltering bool      `yaml:"nativeFiltering"`
	Publishers      Table     `yaml:"publishers"`
	Subscribers     Table     `yaml:"subscribers"`
	Requesters      Table     `yaml:"requesters"`
	Responders      Table     `yaml:"responders"`
	Discovery       Discovery `yaml:"discovery"`

	validated bool
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a YAML configuration.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a validated configuration where every topic of every
// direction uses a single schema on the given media.
func Default(media string) *Config {
	c := &Config{
		Publishers:  defaultTable("pub", media),
		Subscribers: defaultTable("sub", media),
		Requesters:  defaultTable("req", media),
		Responders:  defaultTable("resp", media),
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

func defaultTable(name, media string) Table {
	return Table{
		Schemas: []SocketSchema{{Name: name, Media: media}},
		Topics:  []TopicConfig{{Pattern: ".*", Schema: name}},
	}
}

// Validate fills in defaults, compiles topic patterns and checks the
// tables for consistency.  All problems found are returned together.
func (c *Config) Validate() error {
	var errs error
	errs = multierr.Append(errs, c.Publishers.validate("publishers", true))
	errs = multierr.Append(errs, c.Subscribers.validate("subscribers", false))
	errs = multierr.Append(errs, c.Requesters.validate("requesters", false))
	errs = multierr.Append(errs, c.Responders.validate("responders", true))
	errs = multierr.Append(errs, c.Discovery.validate())
	c.validated = errs == nil
	return errs
}

// Validated reports whether the last call to Validate succeeded.
func (c *Config) Validated() bool {
	return c.validated
}

func (d *Discovery) validate() error {
	if d.Backend == "" {
		d.Backend = "memory"
	}
	if d.Bucket == "" {
		d.Bucket = DefaultBucket
	}
	if d.TTL == 0 {
		d.TTL = DefaultTTL
	}
	if d.Refresh == 0 {
		d.Refresh = DefaultRefresh
	}
	switch d.Backend {
	case "memory":
	case "nats":
		if d.URL == "" {
			return fmt.Errorf("%w: nats discovery without url", ErrBadConfig)
		}
		if d.Refresh >= d.TTL {
			return fmt.Errorf("%w: discovery refresh %v not below ttl %v",
				ErrBadConfig, d.Refresh, d.TTL)
		}
	default:
		return fmt.Errorf("%w: unknown discovery backend %q", ErrBadConfig, d.Backend)
	}
	return nil
}

func (t *Table) validate(dir string, bound bool) error {
	var errs error
	if len(t.Schemas) == 0 || len(t.Topics) == 0 {
		return fmt.Errorf("%w: %s: no schemas or topics", ErrBadConfig, dir)
	}
	t.byName = make(map[string]*SocketSchema, len(t.Schemas))
	for i := range t.Schemas {
		s := &t.Schemas[i]
		s.applyDefaults()
		if _, ok := t.byName[s.Name]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %q", ErrDuplicateSchema, dir, s.Name))
			continue
		}
		t.byName[s.Name] = s
		if !medias[s.Media] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: schema %q: unknown media %q",
				ErrBadConfig, dir, s.Name, s.Media))
		}
		if s.RateLimit < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: schema %q: negative rate limit",
				ErrBadConfig, dir, s.Name))
		}
		if s.MaxNumPorts < 1 {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: schema %q: pool size %d below 1",
				ErrBadConfig, dir, s.Name, s.MaxNumPorts))
		}
		if !bound {
			continue
		}
		switch {
		case s.MinPort <= 0 || s.MaxPort > 65535:
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: schema %q: port out of range",
				ErrBadConfig, dir, s.Name))
		case s.MinPort > s.MaxPort:
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: schema %q: min port %d above max port %d",
				ErrBadConfig, dir, s.Name, s.MinPort, s.MaxPort))
		case s.MaxNumPorts > s.NumPorts():
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: schema %q: pool of %d exceeds %d ports",
				ErrBadConfig, dir, s.Name, s.MaxNumPorts, s.NumPorts()))
		}
	}

	seen := make(map[string]bool, len(t.Topics))
	for i := range t.Topics {
		tc := &t.Topics[i]
		if seen[tc.Pattern] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %q", ErrDuplicatePattern, dir, tc.Pattern))
			continue
		}
		seen[tc.Pattern] = true
		if _, ok := t.byName[tc.Schema]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: pattern %q references %q",
				ErrBadSchema, dir, tc.Pattern, tc.Schema))
		}
		re, err := regexp.Compile("^(?:" + tc.Pattern + ")$")
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: pattern %q: %v",
				ErrBadConfig, dir, tc.Pattern, err))
			continue
		}
		tc.re = re
	}
	return errs
}

func (s *SocketSchema) applyDefaults() {
	if s.Media == "" {
		s.Media = DefaultMedia
	}
	if s.Interface == "" {
		s.Interface = DefaultInterface
	}
	if s.MaxNumPorts == 0 {
		s.MaxNumPorts = DefaultMaxNumPorts
	}
	if s.RateLimit == 0 {
		s.RateLimit = DefaultRateLimit
	}
	if s.MinPort == 0 && s.MaxPort == 0 {
		s.MinPort = DefaultMinPort
		s.MaxPort = DefaultMaxPort
	}
}

// Match returns the schema bound to the first pattern that matches the
// whole topic name.
func (t *Table) Match(topic string) (*SocketSchema, error) {
	for i := range t.Topics {
		tc := &t.Topics[i]
		if tc.re == nil || !tc.re.MatchString(topic) {
			continue
		}
		if s, ok := t.byName[tc.Schema]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoConfig, topic)
}

// Schema looks up a schema by name.
func (t *Table) Schema(name string) (*SocketSchema, bool) {
	s, ok := t.byName[name]
	return s, ok
}
