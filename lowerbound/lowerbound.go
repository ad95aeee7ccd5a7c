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

// Package lowerbound implements the ordered multiset of live cutoff
// offsets the arena garbage collector consults to know how far back it
// may reclaim. It is built directly on bst.Header: a cutoff's refcount
// (how many live readers currently hold it) is the value stored under a
// key wrapping the cutoff offset as a term.
package lowerbound

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/bst"
	"github.com/dkopko/cb-sub000/errs"
	"github.com/dkopko/cb-sub000/term"
)

var (
	metricAdd    = metrics.GetOrRegisterCounter("lowerbound/add", nil)
	metricRemove = metrics.GetOrRegisterCounter("lowerbound/remove", nil)
	metricSize   = metrics.GetOrRegisterGauge("lowerbound/size", nil)
	logger       = log.New("pkg", "lowerbound")
)

func offsetCmp(a, b term.Term) int {
	return arena.OffsetCmp(arena.Offset(a.U64Val), arena.Offset(b.U64Val))
}

func renderOffset(t term.Term) string {
	return term.Render(t)
}

func refcountExtSize(term.Term) uint64 { return 0 }

// Set is the live multiset of cutoff offsets. Unlike the data containers,
// a Set has exactly one live version at a time — nothing publishes old
// Set snapshots to readers — so its backing bst.Header is always mutated
// in place: every internal operation passes arena.Sentinel as the
// cutoff, which SelectModifiable treats as "every real offset is
// modifiable," avoiding the path-copy garbage a published container
// needs but a private bookkeeping structure does not.
type Set struct {
	r         *arena.Region
	headerOff arena.Offset
	min       arena.Offset
	hasMin    bool
}

// NewSet creates an empty lower-bound set backed by region r.
func NewSet(r *arena.Region) (*Set, error) {
	hOff, err := bst.Init(r, offsetCmp, renderOffset, refcountExtSize)
	if err != nil {
		return nil, errs.New("lowerbound.NewSet", errs.AllocationFailure, err)
	}
	return &Set{r: r, headerOff: hOff}, nil
}

func keyFor(off arena.Offset) term.Term { return term.FromU64(uint64(off)) }

// Add registers one more reader at cutoff off, incrementing its refcount.
func (s *Set) Add(off arena.Offset) error {
	metricAdd.Inc(1)
	key := keyFor(off)
	count := uint64(1)
	if cur, err := bst.Lookup(s.r, s.headerOff, key); err == nil {
		count = cur.U64Val + 1
	}
	newHeaderOff, err := bst.Insert(s.r, s.headerOff, key, term.FromU64(count), arena.Sentinel)
	if err != nil {
		return err
	}
	s.headerOff = newHeaderOff
	if !s.hasMin || arena.OffsetCmp(off, s.min) < 0 {
		s.min = off
		s.hasMin = true
	}
	metricSize.Update(int64(bst.NumEntriesAt(s.r, s.headerOff)))
	logger.Debug("add", "offset", off, "refcount", count)
	return nil
}

// Remove releases one reader at cutoff off, decrementing its refcount and
// dropping the entry entirely once it reaches zero. Removing an offset
// with no registered readers is an InvalidArgument error.
func (s *Set) Remove(off arena.Offset) error {
	metricRemove.Inc(1)
	key := keyFor(off)
	cur, err := bst.Lookup(s.r, s.headerOff, key)
	if err != nil {
		return errs.New("lowerbound.Remove", errs.InvalidArgument, err)
	}

	var newHeaderOff arena.Offset
	if cur.U64Val > 1 {
		newHeaderOff, err = bst.Insert(s.r, s.headerOff, key, term.FromU64(cur.U64Val-1), arena.Sentinel)
	} else {
		newHeaderOff, err = bst.Delete(s.r, s.headerOff, key, arena.Sentinel)
	}
	if err != nil {
		return err
	}
	s.headerOff = newHeaderOff

	if cur.U64Val <= 1 && off == s.min {
		s.recomputeMin()
	}
	metricSize.Update(int64(bst.NumEntriesAt(s.r, s.headerOff)))
	logger.Debug("remove", "offset", off)
	return nil
}

func (s *Set) recomputeMin() {
	s.hasMin = false
	bst.Traverse(s.r, s.headerOff, func(k, _ term.Term) int {
		s.min = arena.Offset(k.U64Val)
		s.hasMin = true
		return 1 // bst.Traverse visits in ascending key order; the first hit is the minimum.
	})
}

// GetLowest returns the current minimum live cutoff offset. The second
// return value is false when the set is empty.
func (s *Set) GetLowest() (arena.Offset, bool) {
	return s.min, s.hasMin
}

// Len returns the number of distinct cutoff offsets currently registered.
func (s *Set) Len() uint64 {
	return bst.NumEntriesAt(s.r, s.headerOff)
}
