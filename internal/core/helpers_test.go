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

package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery/memdisc"
	"nanomsg.org/go/vega/internal/reqmgr"
)

func newRegistry(t *testing.T) *memdisc.Registry {
	reg, err := memdisc.NewRegistry(1, zerolog.Nop())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newEnv(t *testing.T, reg *memdisc.Registry, cfg *config.Config) *Env {
	if cfg == nil {
		cfg = config.Default("inproc")
	}
	d := reg.Client()
	id, err := d.CreateUniqueID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	req := reqmgr.New(0, zerolog.Nop(), nil)
	t.Cleanup(func() {
		_ = req.Stop()
		_ = d.Close()
	})
	return &Env{
		InstanceID: id,
		Version:    "3.0.0",
		Config:     cfg,
		Discovery:  d,
		Requests:   req,
		Log:        zerolog.Nop(),
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
