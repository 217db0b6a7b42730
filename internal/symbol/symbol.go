// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symbol resolves raw return-address tokens from the event log
// into human-readable "function (file:line)" text. Resolution tries
// direct debug-info lookup against the primary binary first, then falls
// back to segment-based resolution: translating the program counter
// through the segment table to a file offset, finding the containing
// section, and asking the address-to-line tool about that offset scoped
// to that section. Every resolved address is cached for the run;
// resolution is pure given fixed binaries.
package symbol

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/leaktrace/leakcheck/internal/memmap"
)

// Unknown is the address-to-line tool's sentinel for a name or location
// it cannot determine.
const Unknown = "??"

// Ellipsis stands in for a run of unresolvable frames in a stack
// signature, and marks a shortened location string.
const Ellipsis = "..."

// A Querier answers the external-tool questions resolution needs.
// *binutils.Tools is the real implementation.
type Querier interface {
	HaveAddr2Line() bool
	Addr2Line(binary, section string, addr uint64) (fn, loc string, err error)
	Section(file string, off int64) (name string, start int64, ok bool)
}

// A Resolver caches resolved addresses for one run.
type Resolver struct {
	binary   string // primary binary for direct lookup; may be empty
	tools    Querier
	segments *memmap.Table
	cache    map[memmap.Address]frame
}

type frame struct {
	text  string
	known bool // the tool named the function
}

// NewResolver returns a Resolver reading segment state from segments,
// which the caller keeps updating as the log is consumed. binary names
// the primary binary for direct lookup; empty skips that step.
func NewResolver(binary string, tools Querier, segments *memmap.Table) *Resolver {
	return &Resolver{
		binary:   binary,
		tools:    tools,
		segments: segments,
		cache:    make(map[memmap.Address]frame),
	}
}

// FrameText renders one return-address token, preserving the token's
// source spelling in the result.
func (r *Resolver) FrameText(tok string) string {
	return r.resolve(tok).text
}

// Signature resolves every frame of a raw call stack and collapses each
// run of unresolvable frames to a single ellipsis, yielding the key
// that groups leaks by allocation site. It is for grouping, not
// display.
func (r *Resolver) Signature(stack []string) string {
	var parts []string
	inUnknown := false
	for _, tok := range stack {
		f := r.resolve(tok)
		if !f.known {
			if !inUnknown {
				parts = append(parts, Ellipsis)
			}
			inUnknown = true
			continue
		}
		inUnknown = false
		parts = append(parts, f.text)
	}
	return strings.Join(parts, " ")
}

func (r *Resolver) resolve(tok string) frame {
	pc, err := memmap.ParseAddr(tok)
	if err != nil {
		// The parser vets pointer tokens, so only hand-fed input
		// gets here.
		return frame{text: unknownText(tok)}
	}
	if f, ok := r.cache[pc]; ok {
		return f
	}
	f := r.lookup(tok, pc)
	r.cache[pc] = f
	return f
}

func (r *Resolver) lookup(tok string, pc memmap.Address) frame {
	if r.binary != "" && r.tools.HaveAddr2Line() {
		fn, loc, err := r.tools.Addr2Line(r.binary, "", uint64(pc))
		if err == nil && fn != Unknown {
			return frame{text: frameText(tok, fn, loc), known: true}
		}
		if err != nil {
			logrus.Debugf("direct lookup of %s in %s: %v", tok, r.binary, err)
		}
	}

	seg, ok := r.segments.Lookup(pc)
	if !ok || seg.File == "" {
		return frame{text: unknownText(tok)}
	}
	fileOff := pc.Sub(seg.Start) + seg.PageOff
	section, secStart, ok := r.tools.Section(seg.File, fileOff)
	if !ok {
		return frame{text: unknownText(tok)}
	}
	fn, loc, err := r.tools.Addr2Line(seg.File, section, uint64(fileOff-secStart))
	if err != nil {
		logrus.Debugf("section lookup of %s in %s %s: %v", tok, seg.File, section, err)
		return frame{text: unknownText(tok)}
	}
	return frame{text: frameText(tok, fn, loc), known: fn != Unknown}
}

func frameText(tok, fn, loc string) string {
	return fmt.Sprintf("%s: %s (%s)", tok, fn, shortenLocation(loc))
}

func unknownText(tok string) string {
	return fmt.Sprintf("%s: %s (0)", tok, Unknown)
}

// shortenLocation strips leading parent-directory markers and bounds
// the location to 28 characters, keeping the tail. That keeps report
// lines from wrapping regardless of build-tree depth.
func shortenLocation(loc string) string {
	for strings.HasPrefix(loc, "../") {
		loc = loc[len("../"):]
	}
	if len(loc) > 28 {
		loc = Ellipsis + loc[len(loc)-25:]
	}
	return loc
}
