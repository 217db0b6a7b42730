// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/leaktrace/leakcheck/internal/memmap"
)

// fakeTools scripts the external-tool answers and records queries.
type fakeTools struct {
	have bool
	// direct maps primary-binary addresses to "fn\nloc" answers.
	direct map[uint64][2]string
	// scoped maps file/section/offset queries to answers.
	scoped map[string][2]string
	// sections maps file -> one section.
	sections map[string]struct {
		name  string
		start int64
		end   int64
	}
	calls int
}

func (f *fakeTools) HaveAddr2Line() bool { return f.have }

func (f *fakeTools) Addr2Line(binary, section string, addr uint64) (string, string, error) {
	f.calls++
	if section == "" {
		if ans, ok := f.direct[addr]; ok {
			return ans[0], ans[1], nil
		}
		return Unknown, Unknown + ":0", nil
	}
	key := binary + "/" + section + "/" + memmap.Address(addr).String()
	if ans, ok := f.scoped[key]; ok {
		return ans[0], ans[1], nil
	}
	return "", "", errors.New("lookup failed")
}

func (f *fakeTools) Section(file string, off int64) (string, int64, bool) {
	s, ok := f.sections[file]
	if !ok || off < s.start || off >= s.end {
		return "", 0, false
	}
	return s.name, s.start, true
}

func TestResolveDirect(t *testing.T) {
	tools := &fakeTools{
		have:   true,
		direct: map[uint64][2]string{0x1080: {"do_work", "work.c:42"}},
	}
	r := NewResolver("/bin/prog", tools, &memmap.Table{})

	got := r.FrameText("0x1080")
	want := "0x1080: do_work (work.c:42)"
	if got != want {
		t.Errorf("FrameText = %q, want %q", got, want)
	}

	// Second resolve must come from the cache.
	r.FrameText("0x1080")
	if tools.calls != 1 {
		t.Errorf("tool invoked %d times, want 1", tools.calls)
	}
	// Same numeric address under different spelling shares the cache
	// entry, first spelling wins.
	if got := r.FrameText("1080"); got != want {
		t.Errorf("FrameText(\"1080\") = %q, want cached %q", got, want)
	}
}

func TestResolveSegmentFallback(t *testing.T) {
	var segs memmap.Table
	segs.Insert(memmap.Segment{
		Start:   0x7f00_0000_0000,
		End:     0x7f00_0001_0000,
		PageOff: 0x2000,
		File:    "/lib/libc.so",
	})
	tools := &fakeTools{
		have: true,
		// pc 0x7f0000001050: fileOff = 0x1050+0x2000 = 0x3050,
		// section starts at 0x3000, so the scoped query is for 0x50.
		scoped: map[string][2]string{
			"/lib/libc.so/.text/50": {"malloc_hook", "hook.c:7"},
		},
		sections: map[string]struct {
			name  string
			start int64
			end   int64
		}{
			"/lib/libc.so": {".text", 0x3000, 0x4000},
		},
	}
	r := NewResolver("", tools, &segs)

	got := r.FrameText("0x7f0000001050")
	want := "0x7f0000001050: malloc_hook (hook.c:7)"
	if got != want {
		t.Errorf("FrameText = %q, want %q", got, want)
	}
}

func TestResolveUnknown(t *testing.T) {
	tools := &fakeTools{}
	r := NewResolver("", tools, &memmap.Table{})

	// No segment at all.
	if got := r.FrameText("0x9999"); got != "0x9999: ?? (0)" {
		t.Errorf("FrameText = %q, want unknown sentinel", got)
	}
	// (nil) keeps its spelling.
	if got := r.FrameText("(nil)"); got != "(nil): ?? (0)" {
		t.Errorf("FrameText((nil)) = %q", got)
	}
}

func TestResolveAnonymousSegment(t *testing.T) {
	var segs memmap.Table
	segs.Insert(memmap.Segment{Start: 0x1000, End: 0x2000})
	r := NewResolver("", &fakeTools{have: true}, &segs)
	if got := r.FrameText("0x1800"); got != "0x1800: ?? (0)" {
		t.Errorf("FrameText = %q, want unknown for a fileless segment", got)
	}
}

func TestShortenLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"work.c:42", "work.c:42"},
		{"../../src/work.c:42", "src/work.c:42"},
		{"a/very/deep/build/tree/path/file.c:1234", "...ild/tree/path/file.c:1234"},
		{"0123456789012345678901234567", "0123456789012345678901234567"}, // exactly 28
	}
	for _, test := range tests {
		if got := shortenLocation(test.in); got != test.want {
			t.Errorf("shortenLocation(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestSignatureCollapsesUnknownRuns(t *testing.T) {
	tools := &fakeTools{
		have: true,
		direct: map[uint64][2]string{
			0x10: {"alpha", "a.c:1"},
			0x40: {"delta", "d.c:4"},
		},
	}
	r := NewResolver("/bin/prog", tools, &memmap.Table{})

	sig := r.Signature([]string{"0x10", "0x20", "0x30", "0x40"})
	want := "0x10: alpha (a.c:1) ... 0x40: delta (d.c:4)"
	if sig != want {
		t.Errorf("Signature = %q, want %q", sig, want)
	}

	// Stacks differing only in their unresolvable frames share a
	// signature.
	other := r.Signature([]string{"0x10", "0x99", "0x40"})
	if other != sig {
		t.Errorf("signatures differ: %q vs %q", sig, other)
	}

	// All-unknown stacks collapse to a bare ellipsis.
	if got := r.Signature([]string{"0x20", "0x30"}); got != Ellipsis {
		t.Errorf("Signature = %q, want %q", got, Ellipsis)
	}
}
