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

package rawmem

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/rawmem/pkg/gohacks"
	"gvisor.dev/rawmem/pkg/hostarch"
	"gvisor.dev/rawmem/pkg/log"
	"gvisor.dev/rawmem/pkg/memutil"
)

// logToTest sends the global logger's output, down to debug level, to tl
// until t finishes.
func logToTest(t *testing.T, tl log.TestLogger) {
	t.Helper()
	old := log.Log()
	level := old.Level
	log.SetTarget(&log.TestEmitter{TestLogger: tl})
	log.SetLevel(log.Debug)
	t.Cleanup(func() {
		log.SetTarget(old.Emitter)
		log.SetLevel(level)
	})
}

// logLines records formatted log messages.
type logLines []string

func (l *logLines) Logf(format string, v ...any) {
	*l = append(*l, fmt.Sprintf(format, v...))
}

func (l logLines) contains(substr string) bool {
	for _, line := range l {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// fakeNativeAddr is a plausible mapping address on 32 and 64-bit hosts.
const fakeNativeAddr uintptr = 0x7f001000

// healthyEnv returns a probe environment in which every step succeeds. The
// returned counters track the native buffers it hands out.
func healthyEnv() (probeEnv, *envStats) {
	stats := &envStats{}
	return probeEnv{
		rawAccess:           func() bool { return true },
		unalignedAdvertised: func() bool { return true },
		misalignedLoads:     func() bool { return true },
		bulkCopy:            func() bool { return true },
		newHeapBuffer: func(int) addresser {
			return &fakeBuffer{}
		},
		newNativeBuffer: func(int) (NativeBuffer, error) {
			b := &fakeBuffer{addr: fakeNativeAddr}
			stats.native = append(stats.native, b)
			return b, nil
		},
	}, stats
}

type envStats struct {
	native []*fakeBuffer
}

func TestProbeDegradesOneCapability(t *testing.T) {
	all := Capabilities{RawAccess: true, UnalignedAccess: true, ExplicitRelease: true, BulkCopy: true}
	for _, tc := range []struct {
		name    string
		disable func(*probeEnv)
		want    Capabilities
	}{
		{
			name:    "healthy",
			disable: func(*probeEnv) {},
			want:    all,
		},
		{
			name:    "no raw access",
			disable: func(e *probeEnv) { e.rawAccess = func() bool { return false } },
			want:    Capabilities{},
		},
		{
			name:    "unaligned not advertised",
			disable: func(e *probeEnv) { e.unalignedAdvertised = func() bool { return false } },
			want:    Capabilities{RawAccess: true, ExplicitRelease: true, BulkCopy: true},
		},
		{
			name:    "misaligned loads broken",
			disable: func(e *probeEnv) { e.misalignedLoads = func() bool { return false } },
			want:    Capabilities{RawAccess: true, ExplicitRelease: true, BulkCopy: true},
		},
		{
			name: "heap buffer has an address",
			disable: func(e *probeEnv) {
				e.newHeapBuffer = func(int) addresser { return &fakeBuffer{addr: 0x1000} }
			},
			want: Capabilities{RawAccess: true, ExplicitRelease: true, BulkCopy: true},
		},
		{
			name:    "no bulk copy",
			disable: func(e *probeEnv) { e.bulkCopy = func() bool { return false } },
			want:    Capabilities{RawAccess: true, UnalignedAccess: true, ExplicitRelease: true},
		},
		{
			name: "release fails",
			disable: func(e *probeEnv) {
				e.newNativeBuffer = func(int) (NativeBuffer, error) {
					return &fakeBuffer{addr: 0x1000, err: memutil.ErrNoReleaseHandle}, nil
				}
			},
			want: Capabilities{RawAccess: true, UnalignedAccess: true, BulkCopy: true},
		},
		{
			name: "release panics",
			disable: func(e *probeEnv) {
				e.newNativeBuffer = func(int) (NativeBuffer, error) {
					return &fakeBuffer{addr: 0x1000, panics: true}, nil
				}
			},
			want: Capabilities{RawAccess: true, UnalignedAccess: true, BulkCopy: true},
		},
		{
			name: "native allocation fails",
			disable: func(e *probeEnv) {
				e.newNativeBuffer = func(int) (NativeBuffer, error) {
					return nil, errors.New("out of address space")
				}
			},
			want: Capabilities{RawAccess: true, BulkCopy: true},
		},
		{
			name: "native buffer has no address",
			disable: func(e *probeEnv) {
				e.newNativeBuffer = func(int) (NativeBuffer, error) {
					return &fakeBuffer{}, nil
				}
			},
			want: Capabilities{RawAccess: true, ExplicitRelease: true, BulkCopy: true},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logToTest(t, t)
			env, _ := healthyEnv()
			tc.disable(&env)
			if diff := cmp.Diff(tc.want, probe(Config{}, env)); diff != "" {
				t.Errorf("probe() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProbeLogsDegradedSteps(t *testing.T) {
	var lines logLines
	logToTest(t, &lines)
	env, _ := healthyEnv()
	env.misalignedLoads = func() bool { return false }
	env.bulkCopy = func() bool { return false }
	probe(Config{NoExplicitRelease: true}, env)

	for _, want := range []string{
		"Explicit release disabled by configuration",
		"misaligned loads returned wrong values",
		"Bulk copy primitive not linked in",
	} {
		if !lines.contains(want) {
			t.Errorf("log %q does not mention %q", lines, want)
		}
	}
}

func TestProbeReleasesProbeBuffers(t *testing.T) {
	for _, tc := range []struct {
		name       string
		misaligned bool
	}{
		{"unaligned confirmed", true},
		{"unaligned rejected", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env, stats := healthyEnv()
			env.misalignedLoads = func() bool { return tc.misaligned }
			probe(Config{}, env)
			if len(stats.native) != 2 {
				t.Fatalf("probe allocated %d native buffers, want 2", len(stats.native))
			}
			for i, b := range stats.native {
				if b.releases != 1 {
					t.Errorf("native buffer %d released %d times, want 1", i, b.releases)
				}
			}
		})
	}
}

func TestProbeWithoutRawAccessTouchesNothing(t *testing.T) {
	env, stats := healthyEnv()
	env.rawAccess = func() bool { return false }
	called := false
	env.bulkCopy = func() bool { called = true; return true }
	env.unalignedAdvertised = func() bool { called = true; return true }

	if got := probe(Config{}, env); got != (Capabilities{}) {
		t.Errorf("probe() = %v, want all false", got)
	}
	if called || len(stats.native) != 0 {
		t.Errorf("probe ran later steps without raw access")
	}
}

func TestProbeConfigOverrides(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
		want Capabilities
	}{
		{"no unsafe", Config{NoUnsafe: true}, Capabilities{}},
		{"no unaligned", Config{NoUnaligned: true}, Capabilities{RawAccess: true, ExplicitRelease: true, BulkCopy: true}},
		{"no explicit release", Config{NoExplicitRelease: true}, Capabilities{RawAccess: true, UnalignedAccess: true, BulkCopy: true}},
		{"no bulk copy", Config{NoBulkCopy: true}, Capabilities{RawAccess: true, UnalignedAccess: true, ExplicitRelease: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env, _ := healthyEnv()
			if diff := cmp.Diff(tc.want, probe(tc.cfg, env)); diff != "" {
				t.Errorf("probe() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProbeIdempotent(t *testing.T) {
	first := Probe()

	var g errgroup.Group
	results := make([]Capabilities, 16)
	for i := range results {
		g.Go(func() error {
			results[i] = Probe()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Probe goroutines failed: %v", err)
	}
	for i, got := range results {
		if diff := cmp.Diff(first, got); diff != "" {
			t.Errorf("Probe() call %d mismatch (-first +got):\n%s", i, diff)
		}
	}
}

func TestHostProbe(t *testing.T) {
	c := ProbeWithConfig(Config{})
	if c.RawAccess != unsafeAllowed {
		t.Errorf("RawAccess = %t, want %t", c.RawAccess, unsafeAllowed)
	}
	if !c.RawAccess {
		if c != (Capabilities{}) {
			t.Errorf("capabilities without raw access: %v", c)
		}
		return
	}
	if c.ExplicitRelease != memutil.NativeSupported {
		t.Errorf("ExplicitRelease = %t, want %t", c.ExplicitRelease, memutil.NativeSupported)
	}
	if c.BulkCopy != gohacks.HasMemmove {
		t.Errorf("BulkCopy = %t, want %t", c.BulkCopy, gohacks.HasMemmove)
	}
	if c.UnalignedAccess && !hostarch.UnalignedAdvertised {
		t.Errorf("UnalignedAccess reported on an architecture that does not advertise it")
	}
	if hostarch.UnalignedAdvertised && !misalignedAccessWorks() {
		t.Errorf("misaligned accesses misbehave on an architecture that advertises them")
	}
}

func TestCapabilitiesString(t *testing.T) {
	c := Capabilities{RawAccess: true, BulkCopy: true}
	want := "raw_access=true unaligned_access=false explicit_release=false bulk_copy=true"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
