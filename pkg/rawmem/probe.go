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
	"fmt"

	"gvisor.dev/rawmem/pkg/gohacks"
	"gvisor.dev/rawmem/pkg/hostarch"
	"gvisor.dev/rawmem/pkg/log"
	"gvisor.dev/rawmem/pkg/memutil"
)

// NativeBuffer is a buffer whose storage is not managed by the garbage
// collector. *memutil.Buffer implements it.
type NativeBuffer interface {
	// Address returns the buffer's address field: the start of its storage,
	// or zero if it has no native storage.
	Address() uintptr

	// Release runs the buffer's release handle.
	Release() error
}

// addresser is a buffer that exposes its address field.
type addresser interface {
	Address() uintptr
}

// probeEnv is the host as seen by the probe. Each step is a plain function so
// that tests can take any single feature away.
type probeEnv struct {
	// rawAccess reports whether raw memory operations may be used at all.
	rawAccess func() bool

	// unalignedAdvertised reports the architecture's claim about unaligned
	// loads and stores.
	unalignedAdvertised func() bool

	// misalignedLoads runs loads and stores at misaligned offsets of a known
	// pattern and reports whether they behaved.
	misalignedLoads func() bool

	// bulkCopy reports whether the memmove primitive is linked in.
	bulkCopy func() bool

	newHeapBuffer   func(size int) addresser
	newNativeBuffer func(size int) (NativeBuffer, error)
}

func hostEnv() probeEnv {
	return probeEnv{
		rawAccess:           func() bool { return unsafeAllowed },
		unalignedAdvertised: func() bool { return hostarch.UnalignedAdvertised },
		misalignedLoads:     misalignedAccessWorks,
		bulkCopy:            func() bool { return gohacks.HasMemmove },
		newHeapBuffer: func(size int) addresser {
			return memutil.NewHeapBuffer(size)
		},
		newNativeBuffer: func(size int) (NativeBuffer, error) {
			return memutil.NewNativeBuffer(size)
		},
	}
}

// probe determines the capabilities of env. Every step degrades only its own
// capability; none of them fails the probe.
func probe(cfg Config, env probeEnv) Capabilities {
	var c Capabilities
	switch {
	case cfg.NoUnsafe:
		log.Debugf("Raw memory access disabled by configuration")
		return c
	case !env.rawAccess():
		log.Debugf("Raw memory access unavailable in this build")
		return c
	}
	c.RawAccess = true

	if cfg.NoExplicitRelease {
		log.Debugf("Explicit release disabled by configuration")
	} else {
		c.ExplicitRelease = probeRelease(env)
	}

	if cfg.NoUnaligned {
		log.Debugf("Unaligned access disabled by configuration")
	} else {
		c.UnalignedAccess = probeUnaligned(env)
	}

	switch {
	case cfg.NoBulkCopy:
		log.Debugf("Bulk copy disabled by configuration")
	case !env.bulkCopy():
		log.Debugf("Bulk copy primitive not linked in")
	default:
		c.BulkCopy = true
	}
	return c
}

// probeRelease allocates a throwaway native buffer and releases it.
func probeRelease(env probeEnv) bool {
	b, err := env.newNativeBuffer(1)
	if err != nil {
		log.Debugf("Explicit release unsupported: allocating probe buffer: %v", err)
		return false
	}
	if err := tryRelease(b); err != nil {
		log.Debugf("Explicit release unsupported: %v", err)
		return false
	}
	return true
}

// probeUnaligned trusts the architecture's claim only if the buffer address
// fields and misaligned accesses behave as expected.
func probeUnaligned(env probeEnv) bool {
	if !env.unalignedAdvertised() {
		log.Debugf("Unaligned access not advertised by the architecture")
		return false
	}

	if addr := env.newHeapBuffer(1).Address(); addr != 0 {
		log.Debugf("Unaligned access unsupported: heap buffer has address %#x, want 0", addr)
		return false
	}

	nb, err := env.newNativeBuffer(1)
	if err != nil {
		log.Debugf("Unaligned access unsupported: allocating probe buffer: %v", err)
		return false
	}
	// The probe buffer is released whatever the outcome. Hosts without
	// explicit release leave it to the garbage collector.
	defer tryRelease(nb)

	if nb.Address() == 0 {
		log.Debugf("Unaligned access unsupported: native buffer has no address")
		return false
	}
	if !env.misalignedLoads() {
		log.Debugf("Unaligned access unsupported: misaligned loads returned wrong values")
		return false
	}
	return true
}

// tryRelease runs b's release handle. A panic in the handle is reported as an
// error.
func tryRelease(b NativeBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("release handle panicked: %v", r)
		}
	}()
	return b.Release()
}
