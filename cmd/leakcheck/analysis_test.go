// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leaktrace/leakcheck/internal/binutils"
)

// runLog processes a log with no binary and no external tools, so
// every frame resolves to the unknown sentinel.
func runLog(t *testing.T, log string) (*analysis, string) {
	t.Helper()
	var out bytes.Buffer
	tools := binutils.Find("/nonexistent/objdump", "/nonexistent/addr2line")
	a := newAnalysis("", "", tools, &out)
	if err := a.consume(strings.NewReader(log)); err != nil {
		t.Fatalf("consume: %v", err)
	}
	a.reportLeaks()
	return a, out.String()
}

func TestEndToEndLeak(t *testing.T) {
	a, out := runLog(t, "malloc(16) -> 0x1000:0x10\n")
	if !strings.Contains(out, "16 bytes in 1 blocks") {
		t.Errorf("missing leak summary:\n%s", out)
	}
	if !strings.Contains(out, "16 bytes at 0x00001000 (line 1)") {
		t.Errorf("missing leaked block:\n%s", out)
	}
	if a.tracker.Anomalies() != 0 {
		t.Errorf("anomalies = %d, want 0", a.tracker.Anomalies())
	}
}

func TestEndToEndClean(t *testing.T) {
	_, out := runLog(t, "malloc(16) -> 0x1000:0x10\nfree(0x1000):0x10\n")
	if out != "" {
		t.Errorf("clean run produced output:\n%s", out)
	}
}

func TestEndToEndBadFree(t *testing.T) {
	a, out := runLog(t, "free(0x2000):0x20\n")
	if !strings.Contains(out, "bad free of not-allocated address 0x00002000") {
		t.Errorf("missing anomaly:\n%s", out)
	}
	if strings.Contains(out, "Leaked") {
		t.Errorf("bad free produced a leak summary:\n%s", out)
	}
	if a.tracker.Anomalies() != 1 {
		t.Errorf("anomalies = %d, want 1", a.tracker.Anomalies())
	}
}

func TestEndToEndSyntaxErrorContinues(t *testing.T) {
	a, out := runLog(t, "garbage\nmalloc(8) -> 0x3000:0x10\n")
	if a.syntaxErrs != 1 {
		t.Errorf("syntaxErrs = %d, want 1", a.syntaxErrs)
	}
	if !strings.Contains(out, "line 1") {
		t.Errorf("syntax error not reported with its line:\n%s", out)
	}
	if !strings.Contains(out, "8 bytes in 1 blocks") {
		t.Errorf("record after the bad line was not processed:\n%s", out)
	}
}

func TestEndToEndSegmentsAndGrouping(t *testing.T) {
	log := strings.Join([]string{
		"segment: 0x7f0000000000-0x7f0000010000 0x0 r-xp /lib/libfoo.so",
		"malloc(16) -> 0x1000:0xaa 0xbb",
		"malloc(16) -> 0x2000:0xaa 0xbb",
		"malloc(4) -> 0x3000:0xcc",
		"free(0x3000):0xcc",
	}, "\n") + "\n"
	a, out := runLog(t, log)

	if !strings.Contains(out, "Leaked 32 bytes in 2 blocks.") {
		t.Errorf("bad total:\n%s", out)
	}
	// Both survivors share a call site, so there is exactly one group.
	if got := strings.Count(out, "allocated from:"); got != 1 {
		t.Errorf("got %d groups, want 1:\n%s", got, out)
	}
	if len(a.segments.Segments()) != 1 {
		t.Errorf("segment record not applied")
	}
	// With no tools, frames render as the unknown sentinel.
	if !strings.Contains(out, "0xaa: ?? (0)") {
		t.Errorf("frame not rendered with unknown sentinel:\n%s", out)
	}
}

func TestEndToEndRealloc(t *testing.T) {
	log := strings.Join([]string{
		"malloc(16) -> 0x1000:0x10",
		"realloc(0x1000, 32) -> 0x1000:0x20",
	}, "\n") + "\n"
	a, out := runLog(t, log)
	if a.tracker.Anomalies() != 0 {
		t.Errorf("realloc at the same address raised an anomaly:\n%s", out)
	}
	if !strings.Contains(out, "32 bytes at 0x00001000 (line 2)") {
		t.Errorf("realloc did not refresh the block:\n%s", out)
	}
}
