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

// Package diagnostics provides the operational surface for inspecting a
// running instance of this module's containers: heap footprint
// reporting via fjl/memsize, and a Prometheus-scrapeable metrics
// endpoint built on go-ethereum/metrics/prometheus, in place of the
// InfluxDB export and on-disk datadir accounting the teacher's
// metrics/flags.go wired up for swarm's own deployment.
package diagnostics

import (
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/fjl/memsize"

	"github.com/dkopko/cb-sub000/lowerbound"
)

var logger = log.New("pkg", "diagnostics")

// Footprint reports the in-process memory footprint of the given
// lowerbound.Set by walking it with memsize.Scan. It is intended for
// ad-hoc inspection (pprof-adjacent, but structure-aware) of how much
// heap the live cutoff bookkeeping is holding, not for hot-path use:
// memsize.Scan stops the world briefly while it walks the object graph.
func Footprint(set *lowerbound.Set) memsize.Sizes {
	return memsize.Scan(set)
}

// ServeMetrics starts an HTTP server on addr exposing the
// go-ethereum/metrics default registry in Prometheus exposition format
// at /debug/metrics/prometheus. It blocks until the server stops or
// errors, mirroring the teacher's pattern of handing the accounting
// registry to prometheus.Handler and serving it directly rather than
// through a generic metrics exporter goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", prometheus.Handler(gethmetrics.DefaultRegistry))
	logger.Info("serving metrics", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
