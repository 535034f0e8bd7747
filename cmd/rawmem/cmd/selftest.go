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
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/rawmem/pkg/log"
	"gvisor.dev/rawmem/pkg/memutil"
	"gvisor.dev/rawmem/pkg/rawmem"
)

// SelfTest implements subcommands.Command for the "selftest" command.
type SelfTest struct {
	size int
}

// Name implements subcommands.Command.Name.
func (*SelfTest) Name() string {
	return "selftest"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*SelfTest) Synopsis() string {
	return "exercise every accessor path on a native buffer"
}

// Usage implements subcommands.Command.Usage.
func (*SelfTest) Usage() string {
	return `selftest [flags] - allocate a native buffer and check that the fast and
fallback accessor paths agree, that integers are stored big-endian, and that
copies and release behave.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *SelfTest) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.size, "size", 4096, "size of the native test buffer in bytes, at least 64.")
}

// Execute implements subcommands.Command.Execute.
func (s *SelfTest) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || s.size < minSelfTestSize {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if failed := runSelfTest(os.Stdout, rawmem.Probe(), s.size); failed > 0 {
		log.Warningf("Self test: %d checks failed", failed)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

const minSelfTestSize = 64

type namedAccessor struct {
	name string
	a    *rawmem.Accessor
}

// runSelfTest writes one PASS or FAIL line per check to w and returns the
// number of failed checks.
func runSelfTest(w io.Writer, host rawmem.Capabilities, size int) int {
	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(w, "PASS %s\n", name)
	}

	check("raw access", rawAccessError(host))
	if !host.RawAccess {
		return failed
	}

	buf, err := memutil.NewNativeBuffer(size)
	if err != nil {
		check("allocate native buffer", err)
		return failed
	}
	check("allocate native buffer", nil)

	fallback := rawmem.NewAccessor(rawmem.Capabilities{RawAccess: true, BulkCopy: host.BulkCopy})
	accessors := []namedAccessor{{"fallback", fallback}}
	if host.UnalignedAccess {
		accessors = append(accessors, namedAccessor{"fast", rawmem.NewAccessor(host)})
	}

	base := buf.Address()
	for _, acc := range accessors {
		for off := uintptr(0); off < 8; off++ {
			check(fmt.Sprintf("%s round trip at offset %d", acc.name, off), roundTrip(acc.a, base+off))
			check(fmt.Sprintf("%s byte order at offset %d", acc.name, off), byteOrder(acc.a, fallback, base+off))
		}
	}
	if host.UnalignedAccess {
		check("fast and fallback agree", agree(rawmem.NewAccessor(host), fallback, base+3))
	}
	check("copy", copyCheck(rawmem.NewAccessor(host), base, uintptr(size)))

	rawmem.NewAccessor(host).Release(buf)
	if host.ExplicitRelease && buf.Releasable() {
		check("release", fmt.Errorf("buffer at %#x still holds its release handle", base))
	} else {
		check("release", nil)
	}
	return failed
}

func rawAccessError(c rawmem.Capabilities) error {
	if !c.RawAccess {
		return rawmem.ErrCapabilityUnavailable
	}
	return nil
}

func roundTrip(a *rawmem.Accessor, addr uintptr) error {
	var v uint64 = 0xfedcba9876543210
	if err := a.WriteU8(addr, uint8(v)); err != nil {
		return err
	}
	if got, err := a.ReadU8(addr); err != nil || got != uint8(v) {
		return mismatch("ReadU8", uint64(got), uint64(uint8(v)), err)
	}
	if err := a.WriteU16(addr, uint16(v)); err != nil {
		return err
	}
	if got, err := a.ReadU16(addr); err != nil || got != uint16(v) {
		return mismatch("ReadU16", uint64(got), uint64(uint16(v)), err)
	}
	if err := a.WriteU32(addr, uint32(v)); err != nil {
		return err
	}
	if got, err := a.ReadU32(addr); err != nil || got != uint32(v) {
		return mismatch("ReadU32", uint64(got), uint64(uint32(v)), err)
	}
	if err := a.WriteU64(addr, v); err != nil {
		return err
	}
	if got, err := a.ReadU64(addr); err != nil || got != v {
		return mismatch("ReadU64", got, v, err)
	}
	return nil
}

// byteOrder writes with a and checks the individual bytes through bytes,
// which must be the byte-composed accessor.
func byteOrder(a, bytes *rawmem.Accessor, addr uintptr) error {
	if err := a.WriteU64(addr, 0x0102030405060708); err != nil {
		return err
	}
	for i := uintptr(0); i < 8; i++ {
		got, err := bytes.ReadU8(addr + i)
		if want := uint8(i + 1); err != nil || got != want {
			return mismatch(fmt.Sprintf("byte %d", i), uint64(got), uint64(want), err)
		}
	}
	return nil
}

func agree(fast, fallback *rawmem.Accessor, addr uintptr) error {
	if err := fast.WriteU32(addr, 0xffeeddcc); err != nil {
		return err
	}
	if got, err := fallback.ReadU32(addr); err != nil || got != 0xffeeddcc {
		return mismatch("fallback ReadU32", uint64(got), 0xffeeddcc, err)
	}
	if err := fallback.WriteU64(addr, 0x8877665544332211); err != nil {
		return err
	}
	if got, err := fast.ReadU64(addr); err != nil || got != 0x8877665544332211 {
		return mismatch("fast ReadU64", got, 0x8877665544332211, err)
	}
	return nil
}

func copyCheck(a *rawmem.Accessor, base, size uintptr) error {
	half := size / 2
	for i := uintptr(0); i < half; i++ {
		if err := a.WriteU8(base+i, uint8(i*7)); err != nil {
			return err
		}
	}
	if err := a.Copy(base, base+half, half); err != nil {
		return err
	}
	if err := a.Copy(base, base, 0); err != nil {
		return err
	}
	for i := uintptr(0); i < half; i++ {
		got, err := a.ReadU8(base + half + i)
		if want := uint8(i * 7); err != nil || got != want {
			return mismatch(fmt.Sprintf("copied byte %d", i), uint64(got), uint64(want), err)
		}
	}
	return nil
}

func mismatch(what string, got, want uint64, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s = %#x, want %#x", what, got, want)
}
