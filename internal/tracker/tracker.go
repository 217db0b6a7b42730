// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracker reconstructs the set of live allocator blocks from
// the event stream and, once the stream ends, groups the survivors
// into the leak report. Consistency anomalies (double allocation of a
// live address, claim of an untracked address, free of an untracked
// address) are reported the moment they are seen; the tracked state is
// still updated so later records are interpreted consistently.
package tracker

import (
	"fmt"
	"io"

	"github.com/leaktrace/leakcheck/internal/memmap"
)

// A Block is one outstanding allocation, keyed by its base address.
type Block struct {
	Base  memmap.Address
	Size  int64
	Line  int      // input line that recorded the current call stack
	Stack []string // raw return-address tokens, most recent caller first
}

// A Renderer turns one raw return-address token into display text.
// *symbol.Resolver is the real implementation.
type Renderer interface {
	FrameText(tok string) string
}

// A Tracker holds the live-block map. Anomaly reports go to out as
// they are detected.
type Tracker struct {
	blocks    map[memmap.Address]Block
	out       io.Writer
	render    Renderer
	anomalies int
}

// New returns an empty Tracker writing anomaly reports to out. A nil
// render prints raw address tokens.
func New(out io.Writer, render Renderer) *Tracker {
	return &Tracker{
		blocks: make(map[memmap.Address]Block),
		out:    out,
		render: render,
	}
}

// Allocate records a block returned by the allocator. A nil base is
// ignored. Allocating an address that is already live is an anomaly
// (an allocator bug, or an alias that was never freed); both the old
// and the new block are reported, and the new one wins.
func (t *Tracker) Allocate(line int, base memmap.Address, size int64, stack []string) {
	if base == 0 {
		return
	}
	if old, ok := t.blocks[base]; ok {
		t.reportf(line, "in-use address 0x%08x returned by allocator", uint64(base))
		fmt.Fprintf(t.out, " in use: %d bytes allocated at line %d\n", old.Size, old.Line)
		t.writeStack(old.Stack)
		fmt.Fprintf(t.out, " new: %d bytes\n", size)
		t.writeStack(stack)
	}
	t.blocks[base] = Block{Base: base, Size: size, Line: line, Stack: stack}
}

// Claim reassigns ownership of a live block to a new call site. Only
// the origin line and call stack change; size and address do not. A
// claim of an untracked address is an anomaly and creates nothing.
func (t *Tracker) Claim(line int, base memmap.Address, stack []string) {
	if base == 0 {
		return
	}
	b, ok := t.blocks[base]
	if !ok {
		t.reportf(line, "claim asserted on not-in-use block 0x%08x", uint64(base))
		t.writeStack(stack)
		return
	}
	b.Line = line
	b.Stack = stack
	t.blocks[base] = b
}

// Free removes a live block. Freeing an address that is not tracked
// (never allocated, or already freed) is an anomaly.
func (t *Tracker) Free(line int, base memmap.Address, stack []string) {
	if base == 0 {
		return
	}
	if _, ok := t.blocks[base]; !ok {
		t.reportf(line, "bad free of not-allocated address 0x%08x", uint64(base))
		t.writeStack(stack)
		return
	}
	delete(t.blocks, base)
}

// Realloc is a free of old followed by an allocation at base, in that
// order. A realloc returning the old address therefore refreshes the
// block without raising an anomaly.
func (t *Tracker) Realloc(line int, old, base memmap.Address, size int64, stack []string) {
	t.Free(line, old, stack)
	t.Allocate(line, base, size, stack)
}

// Anomalies returns the number of consistency anomalies reported so far.
func (t *Tracker) Anomalies() int {
	return t.anomalies
}

// Live returns the blocks still tracked, sorted by origin line then
// base address.
func (t *Tracker) Live() []Block {
	blocks := make([]Block, 0, len(t.blocks))
	for _, b := range t.blocks {
		blocks = append(blocks, b)
	}
	sortBlocks(blocks)
	return blocks
}

func (t *Tracker) reportf(line int, format string, args ...interface{}) {
	t.anomalies++
	fmt.Fprintf(t.out, "line %d: %s\n", line, fmt.Sprintf(format, args...))
}

func (t *Tracker) writeStack(stack []string) {
	for _, tok := range stack {
		text := tok
		if t.render != nil {
			text = t.render.FrameText(tok)
		}
		fmt.Fprintf(t.out, "\t%s\n", text)
	}
}
