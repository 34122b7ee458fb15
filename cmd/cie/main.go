// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the CIE CLI: two subcommands, ingest and
// serve-http. Adapted from the teacher's cmd/cie, which had many more
// commands (init, status, query, reset, install-hook, completion, --mcp);
// this redesign drops the async job-queue indexing model and the
// MCP-stdio mode entirely (see DESIGN.md), keeping only the synchronous
// ingest + serving split spec.md's scope calls for.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	showVersion := flag.BoolP("version", "V", false, "Show version and exit")
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `CIE - Code Intelligence Engine

Usage:
  cie <command> [options]

Commands:
  ingest       Index a directory tree into the graph database
  serve-http   Open the database and serve the query HTTP API

For command-specific help: cie <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cie version %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	var code int
	switch command {
	case "ingest":
		code = runIngest(cmdArgs)
	case "serve-http":
		code = runServeHTTP(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		flag.Usage()
		code = 1
	}
	os.Exit(code)
}
