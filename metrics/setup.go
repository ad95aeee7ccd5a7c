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

// Package metrics wires process-level metrics collection into
// go-ethereum/metrics' default registry. Every package in this module
// registers its own counters, gauges, and timers against that registry
// directly; Setup only turns on the background collectors that populate
// the rest (GC pauses, goroutine counts, memory stats).
package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

// Setup starts background collection of process-level runtime metrics,
// the part of the teacher's metrics/flags.go Setup that has no
// dependency on swarm-specific concerns (on-disk datadir usage,
// InfluxDB export) this module doesn't have.
func Setup() {
	if metrics.Enabled {
		go metrics.CollectProcessMetrics(4 * time.Second)
	}
}
