// Copyright 2026 The leakcheck Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux
// +build !linux

package main

import "github.com/sirupsen/logrus"

func (a *analysis) inspect() {
	logrus.Warn("interactive mode is only supported on linux")
}
