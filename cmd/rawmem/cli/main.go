// Copyright 2024 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli is the main entrypoint for rawmem.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"gvisor.dev/rawmem/cmd/rawmem/cmd"
	"gvisor.dev/rawmem/pkg/hostarch"
	"gvisor.dev/rawmem/pkg/log"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging.")
	logFormat = flag.String("log-format", "auto", "log format: text, json, or auto (text on a terminal, json otherwise).")
	quiet     = flag.Bool("quiet", false, "discard all log output.")
)

// Main is the main entrypoint.
func Main() {
	forEachCmd(subcommands.Register)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	var out io.Writer = os.Stderr
	if *quiet {
		out = io.Discard
	}
	format := *logFormat
	if format == "auto" {
		format = autoFormat(term.IsTerminal(int(os.Stderr.Fd())))
	}
	e, err := newEmitter(format, out)
	if err != nil {
		cmd.Fatalf("%v", err)
	}
	log.SetTarget(e)
	if *debug {
		log.SetLevel(log.Debug)
	}
	log.Debugf("rawmem: %s, %s/%s, page size %d", runtime.Version(), runtime.GOOS, runtime.GOARCH, hostarch.PageSize())

	os.Exit(int(subcommands.Execute(context.Background())))
}

// forEachCmd invokes the passed callback for each command supported by rawmem.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(new(cmd.Probe), "")
	cb(new(cmd.SelfTest), "")
}

func newEmitter(format string, logFile io.Writer) (log.Emitter, error) {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}, nil
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}, nil
	}
	return nil, fmt.Errorf("invalid log format %q, must be 'text' or 'json'", format)
}

func autoFormat(terminal bool) string {
	if terminal {
		return "text"
	}
	return "json"
}
