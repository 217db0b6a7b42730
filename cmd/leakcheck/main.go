// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The leakcheck tool analyzes an instrumented allocator's event log
// for memory leaks. It reads the log from standard input and reports
// anomalies as they are found, followed by an end-of-run summary of
// unfreed blocks grouped by allocation site:
//
//	leakcheck ./myprog < alloc.log
//
// Naming the program binary is optional; without it (or without
// addr2line and objdump in the search path) the report shows raw
// return addresses instead of function names.
package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leaktrace/leakcheck/internal/binutils"
)

var (
	flagLogLevel    string
	flagBase        string
	flagInteractive bool
	flagObjdump     string
	flagAddr2Line   string
)

func main() {
	root := &cobra.Command{
		Use:   "leakcheck [binary]",
		Short: "report unfreed allocations from an instrumented allocator log",
		Long: `leakcheck reads an allocator event log (malloc/free/realloc/claim
records with call stacks, plus segment maps) from standard input,
reports allocator inconsistencies as they occur, and summarizes the
blocks still allocated at end of input, grouped by call site.`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "leakcheck: %v\n", err)
		os.Exit(1)
	}
}

func addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagLogLevel, "log-level", "warning", `log level: "debug", "info", "warning", "error"`)
	fs.StringVar(&flagBase, "base", "", "directory prepended to segment file paths (for relocated logs)")
	fs.BoolVarP(&flagInteractive, "interactive", "i", false, "query resolved state on /dev/tty after the report")
	fs.StringVar(&flagObjdump, "objdump", "", "section-listing tool (default $OBJDUMP, then objdump)")
	fs.StringVar(&flagAddr2Line, "addr2line", "", "address-to-line tool (default $ADDR2LINE, then addr2line)")
}

func run(cmd *cobra.Command, args []string) error {
	lvl, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		return errors.Wrap(err, "could not parse log level")
	}
	logrus.SetLevel(lvl)

	binary := ""
	if len(args) == 1 {
		binary, err = homedir.Expand(args[0])
		if err != nil {
			return errors.Wrapf(err, "expanding %q", args[0])
		}
		if _, err := os.Stat(binary); err != nil {
			return errors.Wrapf(err, "binary %q", args[0])
		}
	}

	tools := binutils.Find(flagObjdump, flagAddr2Line)
	if binary != "" && !tools.HaveAddr2Line() {
		logrus.Warn("no address-to-line tool; printing raw addresses")
	}

	a := newAnalysis(binary, flagBase, tools, os.Stdout)
	if err := a.consume(os.Stdin); err != nil {
		return err
	}
	a.reportLeaks()
	logrus.Infof("%d anomalies, %d syntax errors, %d blocks leaked",
		a.tracker.Anomalies(), a.syntaxErrs, len(a.tracker.Live()))

	if flagInteractive {
		a.inspect()
	}
	return nil
}
