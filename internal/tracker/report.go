// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracker

import (
	"fmt"
	"io"
	"sort"
)

// A Grouper buckets call stacks by site and renders their frames.
type Grouper interface {
	Renderer
	Signature(stack []string) string
}

// Blocks sharing a leak site beyond this many are summarized, not listed.
const maxListedBlocks = 6

type group struct {
	blocks []Block
	bytes  int64
}

// Report writes the end-of-run leak summary for the blocks still live.
// Blocks whose call stacks resolve to the same signature form one
// group; groups come out in non-increasing block count order, ties
// broken by lowest origin line then base address. Nothing is written
// when blocks is empty.
func Report(w io.Writer, blocks []Block, g Grouper) {
	if len(blocks) == 0 {
		return
	}
	var total int64
	for _, b := range blocks {
		total += b.Size
	}
	fmt.Fprintf(w, "Leaked %d bytes in %d blocks.\n", total, len(blocks))

	bySig := make(map[string]*group)
	var groups []*group
	for _, b := range blocks {
		sig := g.Signature(b.Stack)
		gr := bySig[sig]
		if gr == nil {
			gr = &group{}
			bySig[sig] = gr
			groups = append(groups, gr)
		}
		gr.blocks = append(gr.blocks, b)
		gr.bytes += b.Size
	}
	for _, gr := range groups {
		sortBlocks(gr.blocks)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if len(gi.blocks) != len(gj.blocks) {
			return len(gi.blocks) > len(gj.blocks)
		}
		bi, bj := gi.blocks[0], gj.blocks[0]
		if bi.Line != bj.Line {
			return bi.Line < bj.Line
		}
		return bi.Base < bj.Base
	})

	for _, gr := range groups {
		fmt.Fprintf(w, "\n%d bytes in %d blocks allocated from:\n", gr.bytes, len(gr.blocks))
		n := len(gr.blocks)
		if n > maxListedBlocks {
			n = maxListedBlocks
		}
		for _, b := range gr.blocks[:n] {
			fmt.Fprintf(w, "  %d bytes at 0x%08x (line %d)\n", b.Size, uint64(b.Base), b.Line)
		}
		if rest := len(gr.blocks) - n; rest > 0 {
			fmt.Fprintf(w, "  ... and %d more blocks\n", rest)
		}
		for _, tok := range gr.blocks[0].Stack {
			fmt.Fprintf(w, "\t%s\n", g.FrameText(tok))
		}
	}
}

func sortBlocks(blocks []Block) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Line != blocks[j].Line {
			return blocks[i].Line < blocks[j].Line
		}
		return blocks[i].Base < blocks[j].Base
	})
}
