// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Command cb-sub000-demo drives an arena-backed red-black BST through a
// scripted insert/delete/traverse scenario, the way an application
// embedding this module would: it wires up a terminal log handler, a
// jaeger tracer, and the Prometheus metrics endpoint, then exercises
// the library end to end.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/opentracing/opentracing-go"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/bst"
	"github.com/dkopko/cb-sub000/diagnostics"
	gethmetrics "github.com/dkopko/cb-sub000/metrics"
	"github.com/dkopko/cb-sub000/term"
)

func main() {
	var (
		loglevel     = flag.Int("loglevel", int(log.LvlInfo), "log level (0-5)")
		numEntries   = flag.Int("entries", 20, "number of keys to insert into the demo tree")
		metricsAddr  = flag.String("metrics.addr", "", "if set, serve Prometheus metrics on this address (e.g. :6060)")
		traceService = flag.String("trace.service", "", "if set, report spans to a local jaeger agent under this service name")
	)
	flag.Parse()

	setupLogging(*loglevel)

	if *traceService != "" {
		closer, err := setupTracing(*traceService)
		if err != nil {
			log.Error("tracer setup failed", "err", err)
		} else {
			defer closer.Close()
		}
	}

	gethmetrics.Setup()
	if *metricsAddr != "" {
		go func() {
			if err := diagnostics.ServeMetrics(*metricsAddr); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	if err := run(*numEntries); err != nil {
		log.Crit("demo run failed", "err", err)
	}
}

func setupLogging(level int) {
	var handler log.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = log.StreamHandler(colorable.NewColorableStderr(), log.TerminalFormat(true))
	} else {
		handler = log.StreamHandler(os.Stderr, log.LogfmtFormat())
	}
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(level), handler))
}

func setupTracing(serviceName string) (io.Closer, error) {
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: true,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

// run builds an arena-backed BST, inserts n keys, deletes every other
// one, and traverses the survivors in order, printing a summary line
// per step the way a smoke-test harness would.
func run(n int) error {
	a := arena.New()
	r := arena.NewRegion(a, arena.Forward, 0)

	headerOff, err := bst.Init(r, term.Cmp, term.Render, term.ExternalSize)
	if err != nil {
		return err
	}

	cutoff := a.Cursor()
	for i := 0; i < n; i++ {
		key := term.FromU64(uint64(i))
		val := term.FromU64(uint64(i * i))
		headerOff, err = bst.Insert(r, headerOff, key, val, cutoff)
		if err != nil {
			return err
		}
	}
	log.Info("inserted", "count", n, "header", headerOff)

	for i := 0; i < n; i += 2 {
		headerOff, err = bst.Delete(r, headerOff, term.FromU64(uint64(i)), cutoff)
		if err != nil {
			return err
		}
	}
	log.Info("deleted evens", "header", headerOff)

	bst.Traverse(r, headerOff, func(key, value term.Term) int {
		fmt.Printf("%d -> %d\n", key.U64Val, value.U64Val)
		return 0
	})
	return nil
}
