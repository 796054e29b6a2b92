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

// Package vega provides topic addressed publish/subscribe and
// request/response messaging between processes, carried over
// Scalability Protocols sockets (see www.nanomsg.org).
//
// Each process runs an Instance.  Topics are multiplexed over a bounded
// pool of bound sockets per configured socket schema; peers find each
// other through a pluggable discovery registry, so no process needs to
// know the address of another, and there is no broker.
//
// Publishers and responders bind.  Subscribers and requesters connect to
// every endpoint discovery announces for their topic, for as long as it
// is announced.  Requests go to every responder known at the time of
// sending, and may be answered any number of times until they are closed
// or time out.
//
// Every message carries a small binary header, see package wire.
package vega
