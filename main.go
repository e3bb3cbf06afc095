// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project
//
// dbtm - DBTM measurement station controller
//
// A CLI tool for driving the DBTM body-measurement rig and persisting
// finalized measurements to the DBTM web API.

package main

import (
	"os"

	"github.com/aryaw001/dbtm-station/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
