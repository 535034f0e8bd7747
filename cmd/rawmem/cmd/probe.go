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

package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/rawmem/pkg/hostarch"
	"gvisor.dev/rawmem/pkg/rawmem"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct {
	configPath string
	format     string
}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "print the raw memory capabilities of this host"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return `probe [flags] - print the raw memory capabilities of this host.

Without -config, the capabilities are probed with the configuration taken from
the RAWMEM_* environment variables.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Probe) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.configPath, "config", "", "TOML file with capability overrides.")
	f.StringVar(&p.format, "format", "text", "output format: text or json.")
}

// Execute implements subcommands.Command.Execute.
func (p *Probe) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	var caps rawmem.Capabilities
	if p.configPath != "" {
		cfg, err := rawmem.LoadConfig(p.configPath)
		if err != nil {
			Fatalf("%v", err)
		}
		caps = rawmem.ProbeWithConfig(cfg)
	} else {
		caps = rawmem.Probe()
	}

	if err := writeReport(os.Stdout, p.format, caps); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// report is the output of the probe command.
type report struct {
	rawmem.Capabilities
	BigEndian           bool    `json:"big_endian"`
	UnalignedAdvertised bool    `json:"unaligned_advertised"`
	PageSize            uintptr `json:"page_size"`
}

func writeReport(w io.Writer, format string, caps rawmem.Capabilities) error {
	r := report{
		Capabilities:        caps,
		BigEndian:           hostarch.BigEndian,
		UnalignedAdvertised: hostarch.UnalignedAdvertised,
		PageSize:            hostarch.PageSize(),
	}
	switch format {
	case "text":
		_, err := fmt.Fprintf(w, "raw_access:           %t\n"+
			"unaligned_access:     %t\n"+
			"explicit_release:     %t\n"+
			"bulk_copy:            %t\n"+
			"big_endian:           %t\n"+
			"unaligned_advertised: %t\n"+
			"page_size:            %d\n",
			r.RawAccess, r.UnalignedAccess, r.ExplicitRelease, r.BulkCopy,
			r.BigEndian, r.UnalignedAdvertised, r.PageSize)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("invalid format %q, must be 'text' or 'json'", format)
	}
}
