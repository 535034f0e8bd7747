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
	"time"

	"gvisor.dev/rawmem/pkg/log"
	"gvisor.dev/rawmem/pkg/sync"
)

// Accessor reads, writes and copies raw memory according to a fixed set of
// Capabilities. Its methods are safe for concurrent use; concurrent access to
// the same memory needs external synchronization.
type Accessor struct {
	caps Capabilities
}

// NewAccessor returns an Accessor that branches on c instead of the probed
// host capabilities. Callers forcing UnalignedAccess on a host that cannot do
// it get whatever the hardware does.
func NewAccessor(c Capabilities) *Accessor {
	return &Accessor{caps: c.normalize()}
}

var host = sync.OnceValue(func() *Accessor {
	return NewAccessor(Probe())
})

// Host returns the Accessor for the probed host capabilities.
func Host() *Accessor {
	return host()
}

// Capabilities returns the capabilities a branches on.
func (a *Accessor) Capabilities() Capabilities {
	return a.caps
}

// releaseLog reports swallowed release failures. A buffer-heavy caller can
// fail many releases in a row, so it is rate limited.
var releaseLog = sync.OnceValue(func() log.Logger {
	return log.BasicRateLimitedLogger(time.Minute)
})

// Release runs b's release handle if the host supports explicit release, and
// does nothing otherwise. Failures are logged and dropped: the storage is then
// left to whatever eventually reclaims it.
//
// Release never fails, even without raw access. It must be called at most
// once per buffer.
func (a *Accessor) Release(b NativeBuffer) {
	if !a.caps.ExplicitRelease {
		return
	}
	if err := tryRelease(b); err != nil {
		releaseLog().Debugf("Releasing native buffer at %#x: %v", b.Address(), err)
	}
}

// AddressOf returns b's address field, zero for buffers without native
// storage.
func (a *Accessor) AddressOf(b NativeBuffer) (uintptr, error) {
	if !a.caps.RawAccess {
		return 0, noRawAccess("AddressOf")
	}
	return b.Address(), nil
}

// ReadU8 reads the byte at addr using the host accessor.
func ReadU8(addr uintptr) (uint8, error) { return Host().ReadU8(addr) }

// ReadU16 reads a big-endian uint16 at addr using the host accessor.
func ReadU16(addr uintptr) (uint16, error) { return Host().ReadU16(addr) }

// ReadU32 reads a big-endian uint32 at addr using the host accessor.
func ReadU32(addr uintptr) (uint32, error) { return Host().ReadU32(addr) }

// ReadU64 reads a big-endian uint64 at addr using the host accessor.
func ReadU64(addr uintptr) (uint64, error) { return Host().ReadU64(addr) }

// WriteU8 writes v at addr using the host accessor.
func WriteU8(addr uintptr, v uint8) error { return Host().WriteU8(addr, v) }

// WriteU16 writes v big-endian at addr using the host accessor.
func WriteU16(addr uintptr, v uint16) error { return Host().WriteU16(addr, v) }

// WriteU32 writes v big-endian at addr using the host accessor.
func WriteU32(addr uintptr, v uint32) error { return Host().WriteU32(addr, v) }

// WriteU64 writes v big-endian at addr using the host accessor.
func WriteU64(addr uintptr, v uint64) error { return Host().WriteU64(addr, v) }

// Copy copies n bytes from src to dst using the host accessor.
func Copy(src, dst, n uintptr) error { return Host().Copy(src, dst, n) }

// CopyBytes copies n bytes from src[srcOff:] to dst[dstOff:] using the host
// accessor.
func CopyBytes(src []byte, srcOff int, dst []byte, dstOff int, n int) error {
	return Host().CopyBytes(src, srcOff, dst, dstOff, n)
}

// Release releases b using the host accessor.
func Release(b NativeBuffer) { Host().Release(b) }

// AddressOf returns b's address field using the host accessor.
func AddressOf(b NativeBuffer) (uintptr, error) { return Host().AddressOf(b) }
