// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// schedsim runs synthetic workloads on a simulated multiprocessor.
//
// With -steps it runs that many ticks and prints a JSON report. Otherwise
// it steps on its own at the configured interval and serves the
// scheduler's debug page, the simulation report and Prometheus metrics
// until interrupted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/sched/x/debug"
	"go.uber.org/sched/x/schedsim"
	"go.uber.org/zap"
)

var (
	flagSet     = flag.NewFlagSet("schedsim", flag.ExitOnError)
	flagConfig  = flagSet.String("config", "", "path to the simulation YAML config")
	flagListen  = flagSet.String("listen", "127.0.0.1:8080", "address to serve /debug/sched, /report and /metrics on")
	flagSteps   = flagSet.Int("steps", 0, "run this many ticks, print the report and exit")
	flagDebug   = flagSet.Bool("debug", false, "log at debug level")
	flagRefresh = flagSet.Duration("refresh", 0, "reload period of the /debug/sched page; zero disables reloading")
)

func main() {
	if err := do(); err != nil {
		log.Fatal(err)
	}
}

func do() error {
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *flagConfig == "" {
		return fmt.Errorf("-config is required")
	}
	cfg, err := schedsim.LoadConfigFromYAML(*flagConfig)
	if err != nil {
		return err
	}

	logCfg := zap.NewProductionConfig()
	if *flagDebug {
		logCfg.Level.SetLevel(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *flagSteps > 0 {
		cfg.Interval = 0
	}
	sim, err := schedsim.New(cfg, schedsim.Logger(logger))
	if err != nil {
		return err
	}
	if err := sim.Start(); err != nil {
		return err
	}
	defer sim.Stop()

	if *flagSteps > 0 {
		sim.Run(*flagSteps)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sim.Report())
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(prometheus.NewGoCollector()); err != nil {
		return err
	}
	if err := registry.Register(newCollector(sim)); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/sched", debug.NewHandler(sim.Scheduler(), debug.Logger(logger), debug.Refresh(*flagRefresh)))
	mux.HandleFunc("/report", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sim.Report()); err != nil {
			logger.Error("failed to write report", zap.Error(err))
		}
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))

	server := &http.Server{Addr: *flagListen, Handler: mux}
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()
	logger.Info("serving", zap.String("addr", *flagListen))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	}
	return server.Close()
}
