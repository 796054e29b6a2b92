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

// Package errors just defines some constant error codes, and is intended
// to be directly imported.  It is safe to import using ".", so that
// short names can be used without concern about unrelated namespace
// pollution.
//
// Callers that add context do so with fmt.Errorf and %w, so the values
// here remain matchable with errors.Is.
package errors

type err string

func (e err) Error() string {
	return string(e)
}

// Predefined error values.
const (
	// Lifecycle violations.
	ErrClosed            = err("object closed")
	ErrStopped           = err("manager stopped")
	ErrAlreadyStopped    = err("already stopped")
	ErrDuplicateTopic    = err("topic already has a handle")
	ErrTopicNotFound     = err("no handle for topic")
	ErrNotSubscribed     = err("not subscribed to topic")
	ErrAlreadySubscribed = err("already subscribed to topic")
	ErrNoListener        = err("listener is required")

	// Configuration errors.
	ErrNoConfig         = err("no configuration matches topic")
	ErrBadConfig        = err("invalid configuration")
	ErrDuplicateSchema  = err("duplicate socket schema name")
	ErrDuplicatePattern = err("duplicate topic pattern")
	ErrBadSchema        = err("unknown socket schema")

	// Resource exhaustion.
	ErrNoPortsAvailable = err("no port available in range")

	// Transport and wire errors.
	ErrBadAddr   = err("invalid address")
	ErrBadHeader = err("invalid header received")
	ErrTooShort  = err("message is too short")
	ErrBadType   = err("unexpected message type")
)
