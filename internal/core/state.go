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
	"sync/atomic"
)

// State is the lifecycle state of a connection.
type State int32

// Connection states, in the only order they are traversed.
const (
	Unconnected State = iota
	Connecting
	Connected
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "UNCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	}
	return "INVALID"
}

type stateMachine struct {
	state atomic.Int32
}

func (sm *stateMachine) State() State {
	return State(sm.state.Load())
}

// advance moves from one state to the next one.  It fails when the
// machine is not in from, or when to is not the successor of from.
func (sm *stateMachine) advance(from State) bool {
	if from >= Closed {
		return false
	}
	return sm.state.CompareAndSwap(int32(from), int32(from+1))
}
