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

package arena

import "github.com/dkopko/cb-sub000/errs"

// Flags controls a Region's growth policy.
type Flags uint8

const (
	// Forward is the default: offsets handed out by Alloc increase.
	Forward Flags = 0
	// Reversed marks a region intended for output areas that are sized up
	// front and filled back-to-front; it carries no allocation-order
	// requirement of its own in this Go port since cells are not packed
	// by hand, but a Region still records it for callers that branch on
	// direction (mirrors the C original's REVERSED flag).
	Reversed Flags = 1 << 0
	// Final marks a region that must not grow past its declared capacity;
	// exhaustion is an AllocationFailure rather than a trip back to the
	// arena for more space.
	Final Flags = 1 << 1
)

// Region is a sub-allocator over an Arena. A region backing a single
// mutation is non-final and effectively unbounded; a region reserved to
// bound a test or a garbage-collection output area is Final with a fixed
// Capacity.
type Region struct {
	a        *Arena
	flags    Flags
	capacity int // only enforced when flags&Final != 0; 0 means unbounded
	count    int
}

// NewRegion reserves a sub-allocator over a. capacity is only meaningful
// when flags includes Final; it is the maximum number of cells the region
// will ever hand out before Alloc starts returning AllocationFailure.
func NewRegion(a *Arena, flags Flags, capacity int) *Region {
	return &Region{a: a, flags: flags, capacity: capacity}
}

// Final reports whether exhaustion of this region is fatal.
func (r *Region) Final() bool { return r.flags&Final != 0 }

// Reversed reports whether this region grows back-to-front.
func (r *Region) Reversed() bool { return r.flags&Reversed != 0 }

// Alloc allocates a new cell holding v and returns its offset. It is the Go
// analogue of memalign(region, size, alignment): since cells hold typed Go
// values rather than packed bytes, there is no size/alignment to request —
// the Go runtime already aligns the value for us.
func (r *Region) Alloc(v any) (Offset, error) {
	if r.Final() && r.capacity > 0 && r.count >= r.capacity {
		return 0, errs.New("arena.Region.Alloc", errs.AllocationFailure, nil)
	}
	off := r.a.alloc(v)
	r.count++
	return off, nil
}

// SelectModifiable implements the cutoff discipline's first helper: if
// offset is already modifiable in place (OffsetCmp(offset, cutoff) >= 0) it
// is returned unchanged; otherwise a fresh cell is allocated, initialized
// as a shallow copy of the one at offset, and its offset is returned. Use
// this when a later step still needs the old contents.
func SelectModifiable[T any](r *Region, offset, cutoff Offset) (Offset, *T, error) {
	if OffsetCmp(offset, cutoff) >= 0 {
		return offset, r.a.At(offset).(*T), nil
	}
	old := r.a.At(offset).(*T)
	cp := *old
	newOff, err := r.Alloc(&cp)
	if err != nil {
		return 0, nil, err
	}
	return newOff, &cp, nil
}

// SelectModifiableRaw is SelectModifiable's uninitialized counterpart: when
// not already modifiable in place, it allocates a zero-valued T instead of
// copying the old contents, because the caller is about to overwrite every
// field anyway.
func SelectModifiableRaw[T any](r *Region, offset, cutoff Offset) (Offset, *T, error) {
	if OffsetCmp(offset, cutoff) >= 0 {
		return offset, r.a.At(offset).(*T), nil
	}
	var zero T
	newOff, err := r.Alloc(&zero)
	if err != nil {
		return 0, nil, err
	}
	return newOff, &zero, nil
}

// At resolves offset through the region's underlying arena.
func (r *Region) At(offset Offset) any {
	return r.a.At(offset)
}

// Arena returns the region's backing arena.
func (r *Region) Arena() *Arena {
	return r.a
}
