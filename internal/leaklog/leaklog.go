// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leaklog parses the textual event log emitted by an
// instrumented allocator. Each input line is one record: an allocator
// event (malloc, free, realloc, claim) tagged with a call stack of raw
// return-address tokens, or a segment record describing a mapped region
// of the process image.
package leaklog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leaktrace/leakcheck/internal/memmap"
)

// Kind discriminates the record variants.
type Kind int

const (
	KindMalloc Kind = iota
	KindFree
	KindClaim
	KindRealloc
	KindSegment
)

// A Record is one parsed log line.
type Record struct {
	Kind Kind
	Line int // 1-based input line number

	Base  memmap.Address // malloc/realloc result, free/claim operand, segment start
	Old   memmap.Address // realloc: pointer being reallocated
	Size  int64          // malloc/realloc: requested bytes
	Stack []string       // raw return-address tokens, most recent caller first

	// Segment records only.
	End     memmap.Address // address just past the segment
	PageOff int64          // file offset corresponding to Base
	Perm    string         // e.g. "r-xp"
	File    string         // backing file; empty for anonymous mappings
}

// One alternation per record shape. The pointer class deliberately
// accepts both 0x-prefixed and bare hex, plus the allocator's literal
// "(nil)".
const ptrPat = `((?:0x)?[0-9a-fA-F]+|\(nil\))`

var (
	mallocRE  = regexp.MustCompile(`^malloc\((\d+)\) -> ` + ptrPat + `:(.*)$`)
	freeRE    = regexp.MustCompile(`^free\(` + ptrPat + `\):(.*)$`)
	claimRE   = regexp.MustCompile(`^claim\(` + ptrPat + `\):(.*)$`)
	reallocRE = regexp.MustCompile(`^realloc\(` + ptrPat + `, (\d+)\) -> ` + ptrPat + `:(.*)$`)
	segmentRE = regexp.MustCompile(`^segment: ` + ptrPat + `-` + ptrPat + ` ` + ptrPat + ` ([rwxsp-]{4}) ?(.*)$`)
)

// A SyntaxError reports an input line matching none of the record
// shapes. Processing continues with the next line.
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: unrecognized record %q", e.Line, e.Text)
}

// ParseLine parses one log line into a Record. line is the 1-based
// input line number and is recorded in the result.
func ParseLine(line int, text string) (Record, error) {
	bad := func() (Record, error) {
		return Record{}, &SyntaxError{Line: line, Text: text}
	}

	if m := mallocRE.FindStringSubmatch(text); m != nil {
		size, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return bad()
		}
		base, err := memmap.ParseAddr(m[2])
		if err != nil {
			return bad()
		}
		return Record{Kind: KindMalloc, Line: line, Base: base, Size: size, Stack: strings.Fields(m[3])}, nil
	}
	if m := freeRE.FindStringSubmatch(text); m != nil {
		base, err := memmap.ParseAddr(m[1])
		if err != nil {
			return bad()
		}
		return Record{Kind: KindFree, Line: line, Base: base, Stack: strings.Fields(m[2])}, nil
	}
	if m := claimRE.FindStringSubmatch(text); m != nil {
		base, err := memmap.ParseAddr(m[1])
		if err != nil {
			return bad()
		}
		return Record{Kind: KindClaim, Line: line, Base: base, Stack: strings.Fields(m[2])}, nil
	}
	if m := reallocRE.FindStringSubmatch(text); m != nil {
		old, err := memmap.ParseAddr(m[1])
		if err != nil {
			return bad()
		}
		size, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return bad()
		}
		base, err := memmap.ParseAddr(m[3])
		if err != nil {
			return bad()
		}
		return Record{Kind: KindRealloc, Line: line, Old: old, Base: base, Size: size, Stack: strings.Fields(m[4])}, nil
	}
	if m := segmentRE.FindStringSubmatch(text); m != nil {
		start, err := memmap.ParseAddr(m[1])
		if err != nil {
			return bad()
		}
		end, err := memmap.ParseAddr(m[2])
		if err != nil {
			return bad()
		}
		off, err := memmap.ParseAddr(m[3])
		if err != nil {
			return bad()
		}
		return Record{
			Kind:    KindSegment,
			Line:    line,
			Base:    start,
			End:     end,
			PageOff: int64(off),
			Perm:    m[4],
			File:    m[5],
		}, nil
	}
	return bad()
}
