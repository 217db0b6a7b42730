// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/leaktrace/leakcheck/internal/tracker"
)

// inspect runs the post-report query loop. The log arrived on stdin,
// so the loop talks to the controlling terminal directly; raw-mode
// handling goes through termios on that fd rather than readline's
// stdin default.
func (a *analysis) inspect() {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		logrus.Warnf("interactive mode unavailable: %v", err)
		return
	}
	defer tty.Close()

	fd := int(tty.Fd())
	if _, err := unix.IoctlGetTermios(fd, unix.TCGETS); err != nil {
		logrus.Warnf("interactive mode needs a terminal: %v", err)
		return
	}

	var saved *unix.Termios
	rl, err := readline.NewEx(&readline.Config{
		Prompt:         "(leakcheck) ",
		Stdin:          tty,
		Stdout:         tty,
		Stderr:         tty,
		FuncIsTerminal: func() bool { return true },
		FuncMakeRaw: func() error {
			t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
			if err != nil {
				return err
			}
			saved = t
			raw := *t
			raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
				unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
			raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
			raw.Cflag &^= unix.CSIZE | unix.PARENB
			raw.Cflag |= unix.CS8
			raw.Cc[unix.VMIN] = 1
			raw.Cc[unix.VTIME] = 0
			return unix.IoctlSetTermios(fd, unix.TCSETS, &raw)
		},
		FuncExitRaw: func() error {
			if saved == nil {
				return nil
			}
			return unix.IoctlSetTermios(fd, unix.TCSETS, saved)
		},
	})
	if err != nil {
		logrus.Warnf("interactive mode unavailable: %v", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on ^D, readline.ErrInterrupt on ^C
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "addr":
			if len(fields) != 2 {
				fmt.Fprintln(tty, "usage: addr <ptr>")
				continue
			}
			fmt.Fprintln(tty, a.resolver.FrameText(fields[1]))
		case "segments":
			for _, s := range a.segments.Segments() {
				fmt.Fprintf(tty, "%012x-%012x %08x %s\n",
					uint64(s.Start), uint64(s.End), s.PageOff, s.File)
			}
		case "leaks":
			tracker.Report(tty, a.tracker.Live(), a.resolver)
		case "help":
			fmt.Fprintln(tty, "commands: addr <ptr>, segments, leaks, quit")
		case "quit", "exit", "q":
			return
		default:
			fmt.Fprintf(tty, "unknown command %q (try help)\n", fields[0])
		}
	}
}
