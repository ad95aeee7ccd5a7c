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

// Package logmap implements a log-structured map: writes land first in an
// append-only command log, and Get checks that log before falling back to
// the last folded bst.Header. Consolidate periodically (or on demand)
// replays the pending log into the tree so the log doesn't grow without
// bound.
package logmap

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tilinna/clock"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/bst"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/term"
)

type recordKind uint8

const (
	recSet recordKind = iota
	recDelete
	recSnapshot
)

// record is one entry in the append-only command log.
type record struct {
	kind  recordKind
	seq   uint64
	key   term.Term
	value term.Term
}

var (
	metricAppend               = metrics.GetOrRegisterCounter("logmap/append", nil)
	metricGetFromLog           = metrics.GetOrRegisterCounter("logmap/get/from_log", nil)
	metricGetFromTree          = metrics.GetOrRegisterCounter("logmap/get/from_tree", nil)
	metricConsolidate          = metrics.GetOrRegisterCounter("logmap/consolidate", nil)
	metricConsolidateDuration  = metrics.GetOrRegisterTimer("logmap/consolidate/duration", nil)
	metricConsolidateBacklog   = metrics.GetOrRegisterGauge("logmap/consolidate/backlog", nil)
	logger                     = log.New("pkg", "logmap")
)

// Map is a log-structured, single-mutator map. logRegion and dataRegion
// are distinct Region views of the same underlying Arena: the command log
// is pure sequential append, while dataRegion holds the consolidated
// bst.Header and its nodes under the ordinary cutoff/path-copy discipline.
type Map struct {
	mu sync.Mutex

	logRegion  *arena.Region
	dataRegion *arena.Region
	headerOff  arena.Offset

	pendingStart arena.Offset
	nextSeq      uint64

	cmpFn bst.CmpFunc

	clk      clock.Clock
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Map over the given arena. If interval > 0, a background
// goroutine calls Consolidate every interval, driven by clk (pass
// clock.Realtime() in production, clock.NewMock() in tests).
func New(a *arena.Arena, cmp bst.CmpFunc, render bst.RenderFunc, extSize bst.ExtSizeFunc, clk clock.Clock, interval time.Duration) (*Map, error) {
	logRegion := arena.NewRegion(a, arena.Forward, 0)
	dataRegion := arena.NewRegion(a, arena.Forward, 0)
	headerOff, err := bst.Init(dataRegion, cmp, render, extSize)
	if err != nil {
		return nil, errs.New("logmap.New", errs.AllocationFailure, err)
	}

	m := &Map{
		logRegion:    logRegion,
		dataRegion:   dataRegion,
		headerOff:    headerOff,
		pendingStart: logRegion.Arena().Cursor(),
		cmpFn:        cmp,
		clk:          clk,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
	if interval > 0 {
		go m.autoConsolidate()
	}
	return m, nil
}

// Close stops the background auto-consolidate goroutine, if running. Safe
// to call multiple times and safe to call on a Map created with
// interval <= 0.
func (m *Map) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Map) pendingOffsets() []arena.Offset {
	cursor := m.logRegion.Arena().Cursor()
	var offs []arena.Offset
	for o := m.pendingStart; o != cursor; o++ {
		offs = append(offs, o)
	}
	return offs
}

// Get checks the pending log (most recent record for key wins) before
// falling back to the last consolidated tree.
func (m *Map) Get(key term.Term) (term.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offs := m.pendingOffsets()
	for i := len(offs) - 1; i >= 0; i-- {
		rec := m.logRegion.At(offs[i]).(*record)
		if rec.kind == recSnapshot {
			continue
		}
		if m.cmpFn(rec.key, key) != 0 {
			continue
		}
		metricGetFromLog.Inc(1)
		if rec.kind == recDelete {
			return term.Term{}, errs.New("logmap.Get", errs.NotFound, nil)
		}
		return rec.value, nil
	}

	metricGetFromTree.Inc(1)
	return bst.Lookup(m.dataRegion, m.headerOff, key)
}

// Backlog returns the number of records appended since the last
// Consolidate.
func (m *Map) Backlog() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingOffsets())
}
