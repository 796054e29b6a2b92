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

// vegaperf measures vega latency and throughput in the manner of the
// libnanomsg perf tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strconv"
	"time"

	"github.com/droundy/goopt"
	"github.com/rs/zerolog"

	"nanomsg.org/go/vega"
	"nanomsg.org/go/vega/config"
	"nanomsg.org/go/vega/discovery/memdisc"
)

var natsURL = goopt.String([]string{"--nats"}, "", "Use the NATS discovery server at URL")
var media = goopt.String([]string{"--media", "-m"}, config.DefaultMedia, "Transport media")
var verbose = goopt.Flag([]string{"--verbose", "-v"}, nil, "Log to stderr", "")

var log = zerolog.Nop()

func fatalf(format string, v ...interface{}) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func usage() {
	fatalf(`Usage: vegaperf [options] <command> <args>
  local_lat  <topic> <msg-size> <roundtrips>
  remote_lat <topic> <msg-size> <roundtrips>
  local_thr  <topic> <msg-size> <msg-count>
  remote_thr <topic> <msg-size> <msg-count>
  inproc_lat <msg-size> <roundtrips>
  inproc_thr <msg-size> <msg-count>`)
}

func atoi(name, s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		fatalf("Bad %s: %v", name, err)
	}
	return v
}

func newInstance() *vega.Instance {
	if !config.SupportedMedia(*media) {
		fatalf("Unknown media %q.", *media)
	}
	cfg := config.Default(*media)
	if *natsURL != "" {
		cfg.Discovery.Backend = "nats"
		cfg.Discovery.URL = *natsURL
		if err := cfg.Validate(); err != nil {
			fatalf("Bad configuration: %v", err)
		}
	}
	inst, err := vega.New(vega.Options{Config: cfg, Logger: &log})
	if err != nil {
		fatalf("Failed starting instance: %v", err)
	}
	return inst
}

// newInprocPair returns two instances sharing a private registry.
func newInprocPair() (*vega.Instance, *vega.Instance, func()) {
	reg, err := memdisc.NewRegistry(1, log)
	if err != nil {
		fatalf("Failed creating registry: %v", err)
	}
	var clients []*memdisc.Client
	start := func() *vega.Instance {
		c := reg.Client()
		clients = append(clients, c)
		inst, err := vega.New(vega.Options{
			Config:    config.Default("inproc"),
			Discovery: c,
			Logger:    &log,
		})
		if err != nil {
			fatalf("Failed starting instance: %v", err)
		}
		return inst
	}
	a, b := start(), start()
	return a, b, func() {
		_ = a.Stop()
		_ = b.Stop()
		for _, c := range clients {
			_ = c.Close()
		}
	}
}

func printLatency(msgSize, roundTrips int, lat time.Duration) {
	fmt.Printf("message size: %d [B]\n", msgSize)
	fmt.Printf("round trip count: %d\n", roundTrips)
	fmt.Printf("average latency: %.3f [us]\n", float64(lat)/float64(time.Microsecond))
}

func printThroughput(t Throughput) {
	fmt.Printf("message size: %d [B]\n", t.MsgSize)
	fmt.Printf("message count: %d\n", t.Sent)
	if t.Received != t.Sent {
		fmt.Printf("messages lost: %d\n", t.Sent-t.Received)
	}
	fmt.Printf("throughput: %d [msg/s]\n", uint64(t.MsgPerSec()))
	fmt.Printf("throughput: %.3f [Mb/s]\n", t.Mbps())
}

func run(ctx context.Context, cmd string, args []string) bool {
	need := func(n int) {
		if len(args) < n {
			usage()
		}
	}
	switch cmd {
	case "latency_server", "local_lat":
		need(3)
		inst := newInstance()
		defer inst.Stop()
		if err := LatencyServer(ctx, inst, args[0], atoi("msg-size", args[1]), atoi("roundtrips", args[2])); err != nil {
			fatalf("local_lat: %v", err)
		}

	case "latency_client", "remote_lat":
		need(3)
		inst := newInstance()
		defer inst.Stop()
		size, n := atoi("msg-size", args[1]), atoi("roundtrips", args[2])
		lat, err := LatencyClient(ctx, inst, args[0], size, n)
		if err != nil {
			fatalf("remote_lat: %v", err)
		}
		printLatency(size, n, lat)

	case "throughput_server", "local_thr":
		need(3)
		inst := newInstance()
		defer inst.Stop()
		t, err := ThroughputServer(ctx, inst, args[0], atoi("msg-size", args[1]), atoi("msg-count", args[2]))
		if err != nil {
			fatalf("local_thr: %v", err)
		}
		printThroughput(t)

	case "throughput_client", "remote_thr":
		need(3)
		inst := newInstance()
		defer inst.Stop()
		if err := ThroughputClient(ctx, inst, args[0], atoi("msg-size", args[1]), atoi("msg-count", args[2])); err != nil {
			fatalf("remote_thr: %v", err)
		}

	case "inproc_lat":
		need(2)
		a, b, stop := newInprocPair()
		defer stop()
		size, n := atoi("msg-size", args[0]), atoi("roundtrips", args[1])
		go LatencyServer(ctx, a, "inproc_lat", size, n)
		lat, err := LatencyClient(ctx, b, "inproc_lat", size, n)
		if err != nil {
			fatalf("inproc_lat: %v", err)
		}
		printLatency(size, n, lat)

	case "inproc_thr":
		need(2)
		a, b, stop := newInprocPair()
		defer stop()
		size, n := atoi("msg-size", args[0]), atoi("msg-count", args[1])
		go ThroughputClient(ctx, a, "inproc_thr", size, n)
		t, err := ThroughputServer(ctx, b, "inproc_thr", size, n)
		if err != nil {
			fatalf("inproc_thr: %v", err)
		}
		printThroughput(t)

	default:
		return false
	}
	return true
}

func main() {
	goopt.Description = func() string {
		return "vegaperf measures latency and throughput of vega topics."
	}
	goopt.Suite = "vega"
	goopt.Parse(nil)

	if *verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Invoked through a link named after the command, or with the command
	// as first argument.
	if run(ctx, path.Base(os.Args[0]), goopt.Args) {
		return
	}
	if len(goopt.Args) == 0 || !run(ctx, goopt.Args[0], goopt.Args[1:]) {
		usage()
	}
}
