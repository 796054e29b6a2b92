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

// vegacat publishes, subscribes, requests and responds on vega topics from
// the command line, in the manner of nanocat(1).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/droundy/goopt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"nanomsg.org/go/vega"
	"nanomsg.org/go/vega/config"
)

const (
	modePub  = "pub"
	modeSub  = "sub"
	modeReq  = "req"
	modeResp = "resp"
)

var verbose int
var mode string
var topic string
var configFile string
var media string
var natsURL string
var metricsAddr string
var recvTimeout int
var reqTimeout = 5
var sendInterval int
var sendDelay int
var sendData []byte
var printFormat string

func setMode(m string) error {
	if mode != "" {
		return errors.New("mode already selected")
	}
	mode = m
	return nil
}

func setSendData(data string) error {
	if sendData != nil {
		return errors.New("data or file already set")
	}
	sendData = []byte(data)
	return nil
}

func setSendFile(path string) error {
	if sendData != nil {
		return errors.New("data or file already set")
	}
	var err error
	sendData, err = os.ReadFile(path)
	return err
}

func setFormat(f string) error {
	if printFormat != "" {
		return errors.New("output format already set")
	}
	if !validFormat(f) {
		return errors.New("invalid format type")
	}
	printFormat = f
	return nil
}

func intArg(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("value not an integer")
		}
		*p = v
		return nil
	}
}

func fatalf(format string, v ...interface{}) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func init() {
	goopt.NoArg([]string{"--verbose", "-v"}, "Increase verbosity",
		func() error {
			verbose++
			return nil
		})
	goopt.NoArg([]string{"--silent", "-q"}, "Decrease verbosity",
		func() error {
			verbose--
			return nil
		})

	goopt.NoArg([]string{"--pub"}, "Publish DATA on TOPIC", func() error {
		return setMode(modePub)
	})
	goopt.NoArg([]string{"--sub"}, "Print what is published on TOPIC", func() error {
		return setMode(modeSub)
	})
	goopt.NoArg([]string{"--req"}, "Send DATA as a request on TOPIC", func() error {
		return setMode(modeReq)
	})
	goopt.NoArg([]string{"--resp"}, "Print requests on TOPIC, answering DATA",
		func() error {
			return setMode(modeResp)
		})

	goopt.ReqArg([]string{"--topic", "-t"}, "TOPIC", "Topic name",
		func(s string) error {
			topic = s
			return nil
		})
	goopt.ReqArg([]string{"--config", "-c"}, "FILE", "YAML configuration FILE",
		func(s string) error {
			configFile = s
			return nil
		})
	goopt.ReqArg([]string{"--media", "-m"}, "MEDIA",
		"Transport media when no configuration is given (default tcp)",
		func(s string) error {
			media = s
			return nil
		})
	goopt.ReqArg([]string{"--nats"}, "URL", "Use the NATS discovery server at URL",
		func(s string) error {
			natsURL = s
			return nil
		})
	goopt.ReqArg([]string{"--metrics"}, "ADDR", "Serve Prometheus metrics on ADDR",
		func(s string) error {
			metricsAddr = s
			return nil
		})

	goopt.ReqArg([]string{"--recv-timeout"}, "SEC", "Exit after SEC seconds",
		intArg(&recvTimeout))
	goopt.ReqArg([]string{"--req-timeout"}, "SEC", "Request timeout (default 5)",
		intArg(&reqTimeout))
	goopt.ReqArg([]string{"--send-delay", "-d"}, "SEC", "Set initial send delay",
		intArg(&sendDelay))
	goopt.ReqArg([]string{"--interval", "-i"}, "SEC", "Send DATA every SEC seconds",
		intArg(&sendInterval))

	goopt.NoArg([]string{"--raw"}, "Raw output, no delimiters",
		func() error {
			return setFormat(formatRaw)
		})
	goopt.NoArg([]string{"--ascii", "-A"}, "ASCII output, one per line",
		func() error {
			return setFormat(formatASCII)
		})
	goopt.NoArg([]string{"--quoted", "-Q"}, "Quoted output, one per line",
		func() error {
			return setFormat(formatQuoted)
		})
	goopt.NoArg([]string{"--msgpack"}, "Msgpacked binary output (see msgpack.org)",
		func() error {
			return setFormat(formatMsgpack)
		})

	goopt.ReqArg([]string{"--data", "-D"}, "DATA", "Data to send", setSendData)
	goopt.ReqArg([]string{"--file", "-F"}, "FILE", "Send contents of FILE", setSendFile)

	goopt.Description = func() string {
		return `vegacat is a command-line interface to send and receive
data on vega topics.  Peers are found through discovery, so only topic
names are given, never addresses.`
	}
	goopt.Suite = "vega"
	goopt.Summary = "command line interface to vega messaging"
}

// printer serializes output from concurrent listeners.
type printer struct {
	sync.Mutex
	format string
	log    zerolog.Logger
}

func (p *printer) print(body []byte) {
	p.Lock()
	defer p.Unlock()
	if err := writeMsg(os.Stdout, p.format, body); err != nil {
		p.log.Error().Err(err).Msg("write failed")
	}
}

func logLevel() zerolog.Level {
	switch {
	case verbose >= 2:
		return zerolog.TraceLevel
	case verbose == 1:
		return zerolog.DebugLevel
	case verbose < 0:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	} else {
		if media == "" {
			media = config.DefaultMedia
		}
		if !config.SupportedMedia(media) {
			return nil, fmt.Errorf("unknown media %q", media)
		}
		cfg = config.Default(media)
	}
	if natsURL != "" {
		cfg.Discovery.Backend = "nats"
		cfg.Discovery.URL = natsURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func serveMetrics(reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server failed")
		}
	}()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// sendLoop calls send once, or every interval until ctx is done.
func sendLoop(ctx context.Context, send func() error) error {
	if sendData == nil {
		return errors.New("no data to send")
	}
	if !sleep(ctx, time.Duration(sendDelay)*time.Second) {
		return nil
	}
	for {
		if err := send(); err != nil {
			return err
		}
		if sendInterval <= 0 {
			return nil
		}
		if !sleep(ctx, time.Duration(sendInterval)*time.Second) {
			return nil
		}
	}
}

func run(ctx context.Context, inst *vega.Instance, out *printer, log zerolog.Logger) error {
	switch mode {
	case modePub:
		p, err := inst.CreatePublisher(topic)
		if err != nil {
			return err
		}
		return sendLoop(ctx, func() error {
			return p.Publish(sendData)
		})

	case modeSub:
		_, err := inst.CreateSubscriber(topic, func(m *vega.Message) {
			out.print(m.Payload)
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil

	case modeReq:
		r, err := inst.CreateRequester(topic)
		if err != nil {
			return err
		}
		var wg sync.WaitGroup
		timeout := time.Duration(reqTimeout) * time.Second
		err = sendLoop(ctx, func() error {
			wg.Add(1)
			_, err := r.SendRequest(sendData, timeout,
				func(_ vega.SentRequest, resp *vega.Response) {
					out.print(resp.Payload)
				},
				func(sr vega.SentRequest) {
					log.Debug().Stringer("request", sr.ID()).
						Int("responses", sr.NumResponses()).Msg("request done")
					wg.Done()
				})
			if err != nil {
				wg.Done()
			}
			return err
		})
		if err != nil {
			return err
		}
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return nil

	case modeResp:
		_, err := inst.CreateResponder(topic, func(req *vega.Request) {
			out.print(req.Payload)
			if sendData == nil {
				return
			}
			if err := req.Respond(sendData); err != nil {
				log.Warn().Err(err).Msg("reply failed")
			}
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
	return fmt.Errorf("unknown mode %q", mode)
}

func main() {
	goopt.Parse(nil)

	if mode == "" {
		fatalf("Mode not specified.")
	}
	if topic == "" {
		fatalf("No topic specified.")
	}
	if printFormat == "" {
		printFormat = formatASCII
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(logLevel()).With().Timestamp().Str("mode", mode).Logger()

	cfg, err := loadConfig()
	if err != nil {
		fatalf("Bad configuration: %v", err)
	}
	if cfg.Discovery.Backend == "memory" {
		log.Warn().Msg("in-memory discovery only reaches this process; use --nats")
	}

	reg := prometheus.NewRegistry()
	inst, err := vega.New(vega.Options{
		Config:     cfg,
		Logger:     &log,
		Registerer: reg,
	})
	if err != nil {
		fatalf("Failed starting instance: %v", err)
	}
	if metricsAddr != "" {
		serveMetrics(reg, log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if recvTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recvTimeout)*time.Second)
		defer cancel()
	}

	out := &printer{format: printFormat, log: log}
	err = run(ctx, inst, out, log)
	if serr := inst.Stop(); err == nil {
		err = serr
	}
	if err != nil {
		fatalf("%s: %v", mode, err)
	}
}
