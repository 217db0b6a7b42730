// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The memmap library maintains the analyzed process's virtual address
// map as reconstructed from segment records in the event log. Segments
// model live process mappings that can be remapped or replaced during a
// run (a library reload, say), so insertion eagerly restores
// disjointness and lookups stay unambiguous.
package memmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// An Address is a location in the analyzed process's virtual address space.
type Address uint64

// Add adds x to address a.
func (a Address) Add(x int64) Address {
	return a + Address(x)
}

// Sub subtracts b from a. Requires a >= b.
func (a Address) Sub(b Address) int64 {
	return int64(a - b)
}

func (a Address) String() string {
	return fmt.Sprintf("%x", uint64(a))
}

// ParseAddr interprets a pointer token from the event log: a hex literal
// with or without a 0x prefix, or the literal "(nil)", which means
// address zero.
func ParseAddr(tok string) (Address, error) {
	if tok == "(nil)" {
		return 0, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(tok, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address token %q", tok)
	}
	return Address(n), nil
}

// A Segment is one mapped region of a binary image.
type Segment struct {
	Start   Address // lowest virtual address of the region
	End     Address // address of the byte just beyond the region
	PageOff int64   // file offset corresponding to Start
	File    string  // backing file; empty for anonymous mappings
}

// Size returns int64(End-Start).
func (s Segment) Size() int64 {
	return s.End.Sub(s.Start)
}

// A Table is the current set of mapped segments, pairwise disjoint and
// sorted by start address. The zero Table is empty and ready to use.
type Table struct {
	segs []Segment
}

// Insert adds seg to the table. Existing segments overlapping seg are
// removed if seg covers them entirely, and shrunk away from the overlap
// otherwise; a segment that seg lands strictly inside loses its high
// end. Overlaps are processed in table order. Clipped-to-nothing
// leftovers are legal; they just never match a lookup.
func (t *Table) Insert(seg Segment) {
	kept := t.segs[:0]
	for _, s := range t.segs {
		switch {
		case s.End <= seg.Start || s.Start >= seg.End:
			// no overlap
		case seg.Start <= s.Start && s.End <= seg.End:
			continue // fully covered
		case s.Start < seg.Start:
			s.End = seg.Start
		default:
			s.PageOff += seg.End.Sub(s.Start)
			s.Start = seg.End
		}
		kept = append(kept, s)
	}
	t.segs = append(kept, seg)
	sort.Slice(t.segs, func(i, j int) bool {
		return t.segs[i].Start < t.segs[j].Start
	})
}

// Lookup finds the segment containing address a, if any.
func (t *Table) Lookup(a Address) (Segment, bool) {
	// Disjoint and sorted by Start, so End is ascending too.
	i := sort.Search(len(t.segs), func(i int) bool {
		return t.segs[i].End > a
	})
	if i < len(t.segs) && t.segs[i].Start <= a {
		return t.segs[i], true
	}
	return Segment{}, false
}

// Segments returns the table's segments in ascending start order.
// The returned slice is shared with the table; callers must not modify it.
func (t *Table) Segments() []Segment {
	return t.segs
}
