// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package binutils locates and drives the external binutils programs
// the analyzer leans on for symbol resolution: an address-to-line tool
// (addr2line) and a section-listing tool (objdump -h). Both are
// optional; a missing tool degrades resolution, it never aborts a run.
package binutils

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xyproto/env/v2"
)

// A Section is a named region of a binary file, addressed by file
// offset. Sections are read once per distinct file and cached for the
// run; they are immutable after load.
type Section struct {
	Start int64 // file offset of the section's first byte
	End   int64 // file offset just past the section
	Name  string
}

// Tools holds the resolved paths of the external programs and the
// per-file section cache. Construct with Find.
type Tools struct {
	objdump   string // resolved path; empty if unavailable
	addr2line string

	run      func(path string, args ...string) ([]byte, error)
	sections map[string][]Section
}

// Find locates the external tools in the executable search path.
// An explicit override wins over the OBJDUMP/ADDR2LINE environment
// variables, which win over the conventional names. Missing tools are
// reported once, at warning level, and left unset.
func Find(objdump, addr2line string) *Tools {
	t := &Tools{
		objdump:   locate("objdump", "OBJDUMP", objdump),
		addr2line: locate("addr2line", "ADDR2LINE", addr2line),
		sections:  make(map[string][]Section),
	}
	t.run = func(path string, args ...string) ([]byte, error) {
		return exec.Command(path, args...).Output()
	}
	return t
}

func locate(name, envVar, override string) string {
	if override == "" {
		override = env.Str(envVar, name)
	}
	path, err := exec.LookPath(override)
	if err != nil {
		logrus.Warnf("%s not found (%v); symbol resolution will degrade", override, err)
		return ""
	}
	return path
}

// HaveAddr2Line reports whether an address-to-line tool was found.
func (t *Tools) HaveAddr2Line() bool {
	return t.addr2line != ""
}

// HaveObjdump reports whether a section-listing tool was found.
func (t *Tools) HaveObjdump() bool {
	return t.objdump != ""
}

// Addr2Line queries the address-to-line tool for addr in binary,
// optionally scoped to a section, and returns the function name and
// location string it reports. The tool's unknown sentinel ("??") comes
// back verbatim.
func (t *Tools) Addr2Line(binary, section string, addr uint64) (fn, loc string, err error) {
	if t.addr2line == "" {
		return "", "", errors.New("no address-to-line tool available")
	}
	args := []string{"-fe", binary, "--demangle"}
	if section != "" {
		args = append(args, "--section="+section)
	}
	args = append(args, fmt.Sprintf("0x%x", addr))
	out, err := t.run(t.addr2line, args...)
	if err != nil {
		return "", "", errors.Wrapf(err, "running %s on %s", t.addr2line, binary)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	var lines []string
	for sc.Scan() && len(lines) < 2 {
		lines = append(lines, sc.Text())
	}
	if len(lines) < 2 {
		return "", "", errors.Errorf("short output from %s", t.addr2line)
	}
	return lines[0], lines[1], nil
}

// SectionsFor returns file's sections sorted by start offset, invoking
// the section-listing tool the first time each distinct file is asked
// for. Failures cache an empty table so a broken file is probed once.
func (t *Tools) SectionsFor(file string) []Section {
	if secs, ok := t.sections[file]; ok {
		return secs
	}
	var secs []Section
	if t.objdump != "" {
		out, err := t.run(t.objdump, "-h", file)
		if err != nil {
			logrus.Warnf("listing sections of %s: %v", file, err)
		} else {
			secs = parseSections(out)
		}
	}
	t.sections[file] = secs
	return secs
}

// Section maps a file offset to the containing section of file.
func (t *Tools) Section(file string, off int64) (name string, start int64, ok bool) {
	secs := t.SectionsFor(file)
	i := sort.Search(len(secs), func(i int) bool {
		return secs[i].End > off
	})
	if i < len(secs) && secs[i].Start <= off {
		return secs[i].Name, secs[i].Start, true
	}
	return "", 0, false
}

// parseSections extracts section rows from `objdump -h` output. Rows
// look like
//
//	0 .interp  0000001c  0000000000000318  0000000000000318  00000318  2**0
//
// with index, name, size, VMA, LMA and file offset columns; only the
// name, size and file offset matter here. Non-row lines are skipped.
func parseSections(out []byte) []Section {
	var secs []Section
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 6 {
			continue
		}
		if _, err := strconv.Atoi(f[0]); err != nil {
			continue // header or flags continuation line
		}
		size, err := strconv.ParseInt(f[2], 16, 64)
		if err != nil {
			continue
		}
		off, err := strconv.ParseInt(f[5], 16, 64)
		if err != nil {
			continue
		}
		secs = append(secs, Section{Start: off, End: off + size, Name: f[1]})
	}
	sort.Slice(secs, func(i, j int) bool {
		return secs[i].Start < secs[j].Start
	})
	return secs
}
