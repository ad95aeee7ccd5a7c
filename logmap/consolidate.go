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

package logmap

import (
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/dkopko/cb-sub000/arena"
	"github.com/dkopko/cb-sub000/bst"
)

// Consolidate replays every record appended since the last Consolidate
// into the backing bst.Header, in sequence order, and returns the new
// header offset. cutoff is passed through to bst.Insert/bst.Delete
// unchanged, so callers decide how much of the previously-consolidated
// tree remains shared with older published readers versus gets
// path-copied.
//
// A Delete record for a key the tree does not currently hold surfaces as
// a NotFound error here rather than at Set/Delete append time, since
// appending a record never consults the tree — this mirrors how the underlying bst
// itself only validates existence at mutation time, not at key-read
// time.
func (m *Map) Consolidate(cutoff arena.Offset) (arena.Offset, error) {
	span := opentracing.GlobalTracer().StartSpan("logmap.Consolidate")
	defer span.Finish()
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	offs := m.pendingOffsets()
	span.SetTag("records", len(offs))

	entryCursor := m.dataRegion.Arena().Cursor()
	newHeaderOff := m.headerOff
	for _, off := range offs {
		rec := m.logRegion.At(off).(*record)
		var err error
		switch rec.kind {
		case recSet:
			newHeaderOff, err = bst.Insert(m.dataRegion, newHeaderOff, rec.key, rec.value, cutoff)
		case recDelete:
			newHeaderOff, err = bst.Delete(m.dataRegion, newHeaderOff, rec.key, cutoff)
		case recSnapshot:
			// Marker only; nothing to fold.
		}
		if err != nil {
			// m.headerOff is left untouched: a failure partway through the
			// batch (e.g. a Delete record for a key already absent from the
			// tree) must not leave the map pointing at a half-applied,
			// possibly-zero header offset. The unconsumed records, including
			// the one that failed, remain pending for the next Consolidate.
			// Tree cells allocated by records replayed before the failure are
			// rewound, so only log records follow pendingStart.
			m.dataRegion.Arena().Rewind(entryCursor)
			span.SetTag("error", true)
			return 0, err
		}
	}

	m.headerOff = newHeaderOff
	m.pendingStart = m.logRegion.Arena().Cursor()
	metricConsolidate.Inc(1)
	metricConsolidateDuration.UpdateSince(start)
	metricConsolidateBacklog.Update(0)
	logger.Debug("consolidate", "records", len(offs), "header", m.headerOff)
	return m.headerOff, nil
}

func (m *Map) autoConsolidate() {
	timer := m.clk.NewTimer(m.interval)
	defer timer.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-timer.C:
			// cutoff is the current high-water mark of dataRegion's arena: every
			// record folds into the tree at-or-after that point, so nothing a
			// concurrent reader has already published gets mutated in place.
			if _, err := m.Consolidate(m.dataRegion.Arena().Cursor()); err != nil {
				logger.Error("auto-consolidate failed", "err", err)
			}
			timer.Reset(m.interval)
		}
	}
}
