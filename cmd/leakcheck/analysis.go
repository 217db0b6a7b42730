// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/leaktrace/leakcheck/internal/binutils"
	"github.com/leaktrace/leakcheck/internal/leaklog"
	"github.com/leaktrace/leakcheck/internal/memmap"
	"github.com/leaktrace/leakcheck/internal/symbol"
	"github.com/leaktrace/leakcheck/internal/tracker"
)

// analysis owns one run's state: the segment table and block tracker
// the log stream mutates, and the resolver the reports consult.
type analysis struct {
	out        io.Writer
	base       string // prepended to segment file paths
	segments   *memmap.Table
	resolver   *symbol.Resolver
	tracker    *tracker.Tracker
	syntaxErrs int
}

func newAnalysis(binary, base string, tools *binutils.Tools, out io.Writer) *analysis {
	segments := new(memmap.Table)
	resolver := symbol.NewResolver(binary, tools, segments)
	return &analysis{
		out:      out,
		base:     base,
		segments: segments,
		resolver: resolver,
		tracker:  tracker.New(out, resolver),
	}
}

// consume reads the event log one record at a time, applying each to
// the segment table or the block tracker. Lines matching no record
// shape are reported and skipped.
func (a *analysis) consume(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024) // deep stacks make long lines
	line := 0
	for sc.Scan() {
		line++
		rec, err := leaklog.ParseLine(line, sc.Text())
		if err != nil {
			a.syntaxErrs++
			fmt.Fprintf(a.out, "%v\n", err)
			continue
		}
		a.apply(rec)
	}
	return errors.Wrap(sc.Err(), "reading event log")
}

func (a *analysis) apply(rec leaklog.Record) {
	switch rec.Kind {
	case leaklog.KindSegment:
		file := rec.File
		if file != "" && a.base != "" {
			file = filepath.Join(a.base, file)
		}
		a.segments.Insert(memmap.Segment{
			Start:   rec.Base,
			End:     rec.End,
			PageOff: rec.PageOff,
			File:    file,
		})
		logrus.Debugf("segment %x-%x %s", rec.Base, rec.End, file)
	case leaklog.KindMalloc:
		a.tracker.Allocate(rec.Line, rec.Base, rec.Size, rec.Stack)
	case leaklog.KindFree:
		a.tracker.Free(rec.Line, rec.Base, rec.Stack)
	case leaklog.KindClaim:
		a.tracker.Claim(rec.Line, rec.Base, rec.Stack)
	case leaklog.KindRealloc:
		a.tracker.Realloc(rec.Line, rec.Old, rec.Base, rec.Size, rec.Stack)
	}
}

func (a *analysis) reportLeaks() {
	tracker.Report(a.out, a.tracker.Live(), a.resolver)
}
