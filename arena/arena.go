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

// Package arena implements the offset-addressed, rewindable allocation
// substrate that every persistent container in this module is built on.
//
// An Arena is a monotonic, append-only sequence of cells, each identified by
// a 64-bit Offset. Offsets are compared cyclically (see OffsetCmp) so that
// the address space can, in principle, wrap after 2^64 allocations without
// breaking ordering locally. Cells are never removed except by Rewind
// (discarding speculative work after an offset) or Reclaim (dropping a
// prefix no reader still needs).
//
// Unlike the C original this is distilled from, cells hold Go values rather
// than packed bytes: §6 of the design notes that in-memory layout carries no
// on-disk compatibility requirement, so node structs are stored directly and
// addressed by slice index instead of by manually computed byte offsets.
// This keeps the cutoff/path-copy discipline — the actual subject of this
// package — identical to the original while dropping layout bookkeeping Go
// has no use for.
package arena

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// Offset identifies a single allocated cell. The value Sentinel never
// addresses a real cell; every container uses it to mean "no such node".
type Offset uint64

// Sentinel is the reserved "none" offset. Real allocations start at 2.
const Sentinel Offset = 1

var (
	metricAlloc  = metrics.GetOrRegisterCounter("arena/alloc", nil)
	metricRewind = metrics.GetOrRegisterCounter("arena/rewind", nil)
	metricGrow   = metrics.GetOrRegisterCounter("arena/grow", nil)
	metricGauge  = metrics.GetOrRegisterGauge("arena/cells", nil)
)

// Arena is a growable, monotonic sequence of cells. It is not safe for
// concurrent use: alloc, Rewind and Reclaim replace or reslice the backing
// cell slice without any synchronization, so At must not run concurrently
// with any of them. Goroutines sharing an Arena serialize access
// themselves (logmap.Map does so with its mutex).
type Arena struct {
	cells []any // cells[i] backs offset base+1+Offset(i)
	base  Offset
	log   log.Logger
}

// New creates an empty Arena. Offset 2 is the first real offset it will
// ever hand out.
func New() *Arena {
	return &Arena{
		base: Sentinel,
		log:  log.New("pkg", "arena"),
	}
}

// Cursor returns the offset that the next allocation anywhere in the arena
// will receive, i.e. the arena's monotonic high-water mark.
func (a *Arena) Cursor() Offset {
	return a.base + 1 + Offset(len(a.cells))
}

// Base returns the oldest live offset; any offset strictly less than Base
// has been reclaimed and is no longer resolvable.
func (a *Arena) Base() Offset {
	return a.base + 1
}

// OffsetCmp compares two offsets cyclically: it treats a-b as a signed
// 64-bit value, so the arena's logical address space is effectively half of
// the full uint64 range. This is the sole primitive the cutoff discipline
// is built on.
func OffsetCmp(x, y Offset) int {
	d := int64(x - y)
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

// alloc appends a new cell and returns its offset. It is the only place a
// new offset is ever minted.
func (a *Arena) alloc(cell any) Offset {
	off := a.Cursor()
	prevCap := cap(a.cells)
	a.cells = append(a.cells, cell)
	if cap(a.cells) != prevCap {
		// append reallocated the backing array: the Go analogue of the
		// original's explicit realloc-on-grow.
		metricGrow.Inc(1)
	}
	metricAlloc.Inc(1)
	metricGauge.Update(int64(len(a.cells)))
	return off
}

// At resolves offset to the cell stored there. Per the arena-invalidates-
// pointers discipline (design notes §9), the caller must re-resolve through
// At after any call that may have allocated — in this Go port that matters
// because Rewind/Reclaim can make earlier offsets stale, not because the
// returned value itself ever moves.
func (a *Arena) At(off Offset) any {
	if off == Sentinel {
		return nil
	}
	idx := int(off - a.base - 1)
	if idx < 0 || idx >= len(a.cells) {
		a.log.Warn("offset out of live range", "offset", off, "base", a.base, "cursor", a.Cursor())
		return nil
	}
	return a.cells[idx]
}

// Rewind discards every cell allocated after off, which must be <= the
// current cursor and >= Base. It is the mechanism by which a failed
// mutation undoes any speculative allocation it performed.
func (a *Arena) Rewind(off Offset) {
	if OffsetCmp(off, a.Base()) < 0 || OffsetCmp(off, a.Cursor()) > 0 {
		a.log.Warn("rewind target out of range", "offset", off, "base", a.base, "cursor", a.Cursor())
		return
	}
	idx := int(off - a.base - 1)
	a.cells = a.cells[:idx]
	metricRewind.Inc(1)
	metricGauge.Update(int64(len(a.cells)))
}

// Reclaim drops every cell strictly before to, which must be >= Base and <=
// the current cursor. Call this only once no lowerbound.Set entry still
// references an offset below to — the arena itself does not track readers,
// it only trusts the caller (normally the lower-bound set's coordinator).
func (a *Arena) Reclaim(to Offset) {
	if OffsetCmp(to, a.base) < 0 || OffsetCmp(to, a.Cursor()) > 0 {
		a.log.Warn("reclaim target out of range", "to", to, "base", a.base, "cursor", a.Cursor())
		return
	}
	n := int(to - a.base - 1)
	if n <= 0 {
		return
	}
	remaining := make([]any, len(a.cells)-n)
	copy(remaining, a.cells[n:])
	a.cells = remaining
	a.base = to - 1
	a.log.Debug("reclaimed prefix", "to", to, "freed_cells", n)
}
