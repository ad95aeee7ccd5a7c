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

package structmap

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/dkopko/cb-sub000/arena"
)

// Condenser rewrites finished subtrees from the mutable sparse layout into
// the compact, popcount-indexed condensed layout. It is offline: nothing
// about the source subtree changes, and the condensed copy is read-only
// forever after (see selectSparse, which un-condenses on any subsequent
// write). Results are memoized by source offset, the same way
// storage.NetStore memoizes in-flight chunk fetches, since an unchanged
// offset always condenses to the same output and repeat Condense calls on
// overlapping snapshots are expected.
type Condenser struct {
	r     *arena.Region
	cache *lru.Cache
	group singleflight.Group
}

// NewCondenser creates a Condenser backed by an LRU of the given capacity.
func NewCondenser(r *arena.Region, cacheCapacity int) *Condenser {
	cache, _ := lru.New(cacheCapacity)
	return &Condenser{r: r, cache: cache}
}

// Condense returns the offset of a condensed copy of the subtree at off.
// Already-condensed subtrees are returned unchanged.
func (c *Condenser) Condense(off arena.Offset) (arena.Offset, error) {
	if off == arena.Sentinel {
		return arena.Sentinel, nil
	}
	if v, ok := c.cache.Get(off); ok {
		return v.(arena.Offset), nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%d", off), func() (interface{}, error) {
		condensedOff, cerr := c.condense(off)
		if cerr != nil {
			return nil, cerr
		}
		return condensedOff, nil
	})
	if err != nil {
		return 0, err
	}
	result := v.(arena.Offset)
	c.cache.Add(off, result)
	return result, nil
}

func (c *Condenser) condense(off arena.Offset) (arena.Offset, error) {
	n := c.r.At(off).(*node)
	if n.condensed {
		return off, nil
	}
	metricCondense.Inc(1)

	width := 1 << n.consumeBitcount
	var present []int
	for i := 0; i < width; i++ {
		if n.childLocations&(1<<uint(i)) != 0 {
			present = append(present, i)
		}
	}

	cn := &node{
		consumeBitcount:  n.consumeBitcount,
		enclosedBitcount: n.enclosedBitcount,
		isLeaf:           n.isLeaf,
		condensed:        true,
		childLocations:   n.childLocations,
		children:         make([]any, len(present)),
	}
	for pc, idx := range present {
		if n.isLeaf {
			cn.children[pc] = n.children[idx]
			continue
		}
		childOff, err := c.Condense(n.children[idx].(arena.Offset))
		if err != nil {
			return 0, err
		}
		cn.children[pc] = childOff
	}
	return c.r.Alloc(cn)
}
