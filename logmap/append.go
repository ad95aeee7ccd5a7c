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

import "github.com/dkopko/cb-sub000/term"

func (m *Map) append(rec *record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.seq = m.nextSeq
	m.nextSeq++
	if _, err := m.logRegion.Alloc(rec); err != nil {
		return err
	}
	metricAppend.Inc(1)
	metricConsolidateBacklog.Update(int64(len(m.pendingOffsets())))
	return nil
}

// Set appends a Set command for (key, value). It does not touch the
// consolidated tree; Get will see it immediately via the pending log.
func (m *Map) Set(key, value term.Term) error {
	logger.Debug("append set")
	return m.append(&record{kind: recSet, key: key, value: value})
}

// Delete appends a Delete command for key.
func (m *Map) Delete(key term.Term) error {
	logger.Debug("append delete")
	return m.append(&record{kind: recDelete, key: key})
}

// Snapshot appends a checkpoint marker with no payload. It carries no
// semantics of its own beyond occupying a sequence number; its purpose
// is auditability of the command log (a durable marker of "state as of
// here"), consistent with the Set/Delete/Snapshot record set named in
// the design notes.
func (m *Map) Snapshot() error {
	logger.Debug("append snapshot")
	return m.append(&record{kind: recSnapshot})
}
