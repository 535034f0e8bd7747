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
	"math/bits"
	"unsafe"

	"gvisor.dev/rawmem/pkg/gohacks"
	"gvisor.dev/rawmem/pkg/hostarch"
)

// Native loads and stores are converted to and from big-endian here, so that
// the single-instruction path lays out memory exactly as the byte-composed
// path does, whatever the host byte order.

func toBig16(v uint16) uint16 {
	if hostarch.BigEndian {
		return v
	}
	return bits.ReverseBytes16(v)
}

func toBig32(v uint32) uint32 {
	if hostarch.BigEndian {
		return v
	}
	return bits.ReverseBytes32(v)
}

func toBig64(v uint64) uint64 {
	if hostarch.BigEndian {
		return v
	}
	return bits.ReverseBytes64(v)
}

func load8(addr uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(addr))
}

func store8(addr uintptr, v uint8) {
	*(*uint8)(unsafe.Pointer(addr)) = v
}

// ReadU8 reads the byte at addr.
func (a *Accessor) ReadU8(addr uintptr) (uint8, error) {
	if !a.caps.RawAccess {
		return 0, noRawAccess("ReadU8")
	}
	return load8(addr), nil
}

// ReadU16 reads a big-endian uint16 starting at addr.
func (a *Accessor) ReadU16(addr uintptr) (uint16, error) {
	if !a.caps.RawAccess {
		return 0, noRawAccess("ReadU16")
	}
	if a.caps.UnalignedAccess {
		return toBig16(*(*uint16)(unsafe.Pointer(addr))), nil
	}
	return uint16(load8(addr))<<8 | uint16(load8(addr+1)), nil
}

// ReadU32 reads a big-endian uint32 starting at addr.
func (a *Accessor) ReadU32(addr uintptr) (uint32, error) {
	if !a.caps.RawAccess {
		return 0, noRawAccess("ReadU32")
	}
	if a.caps.UnalignedAccess {
		return toBig32(*(*uint32)(unsafe.Pointer(addr))), nil
	}
	return uint32(load8(addr))<<24 |
		uint32(load8(addr+1))<<16 |
		uint32(load8(addr+2))<<8 |
		uint32(load8(addr+3)), nil
}

// ReadU64 reads a big-endian uint64 starting at addr.
func (a *Accessor) ReadU64(addr uintptr) (uint64, error) {
	if !a.caps.RawAccess {
		return 0, noRawAccess("ReadU64")
	}
	if a.caps.UnalignedAccess {
		return toBig64(*(*uint64)(unsafe.Pointer(addr))), nil
	}
	return uint64(load8(addr))<<56 |
		uint64(load8(addr+1))<<48 |
		uint64(load8(addr+2))<<40 |
		uint64(load8(addr+3))<<32 |
		uint64(load8(addr+4))<<24 |
		uint64(load8(addr+5))<<16 |
		uint64(load8(addr+6))<<8 |
		uint64(load8(addr+7)), nil
}

// WriteU8 writes v at addr.
func (a *Accessor) WriteU8(addr uintptr, v uint8) error {
	if !a.caps.RawAccess {
		return noRawAccess("WriteU8")
	}
	store8(addr, v)
	return nil
}

// WriteU16 writes v big-endian starting at addr.
func (a *Accessor) WriteU16(addr uintptr, v uint16) error {
	if !a.caps.RawAccess {
		return noRawAccess("WriteU16")
	}
	if a.caps.UnalignedAccess {
		*(*uint16)(unsafe.Pointer(addr)) = toBig16(v)
		return nil
	}
	store8(addr, uint8(v>>8))
	store8(addr+1, uint8(v))
	return nil
}

// WriteU32 writes v big-endian starting at addr.
func (a *Accessor) WriteU32(addr uintptr, v uint32) error {
	if !a.caps.RawAccess {
		return noRawAccess("WriteU32")
	}
	if a.caps.UnalignedAccess {
		*(*uint32)(unsafe.Pointer(addr)) = toBig32(v)
		return nil
	}
	store8(addr, uint8(v>>24))
	store8(addr+1, uint8(v>>16))
	store8(addr+2, uint8(v>>8))
	store8(addr+3, uint8(v))
	return nil
}

// WriteU64 writes v big-endian starting at addr.
func (a *Accessor) WriteU64(addr uintptr, v uint64) error {
	if !a.caps.RawAccess {
		return noRawAccess("WriteU64")
	}
	if a.caps.UnalignedAccess {
		*(*uint64)(unsafe.Pointer(addr)) = toBig64(v)
		return nil
	}
	store8(addr, uint8(v>>56))
	store8(addr+1, uint8(v>>48))
	store8(addr+2, uint8(v>>40))
	store8(addr+3, uint8(v>>32))
	store8(addr+4, uint8(v>>24))
	store8(addr+5, uint8(v>>16))
	store8(addr+6, uint8(v>>8))
	store8(addr+7, uint8(v))
	return nil
}

// Copy copies n bytes from src to dst. A zero n never touches either address.
//
// If the ranges overlap, the contents of dst are unspecified.
func (a *Accessor) Copy(src, dst, n uintptr) error {
	if !a.caps.RawAccess {
		return noRawAccess("Copy")
	}
	if n == 0 {
		return nil
	}
	if a.caps.BulkCopy {
		gohacks.Memmove(unsafe.Pointer(dst), unsafe.Pointer(src), n)
		return nil
	}
	copy(gohacks.BytesAt(dst, int(n)), gohacks.BytesAt(src, int(n)))
	return nil
}

// CopyBytes copies n bytes from src starting at srcOff to dst starting at
// dstOff. Either slice may be heap- or natively-backed. Offsets and n are not
// checked against the slice lengths.
func (a *Accessor) CopyBytes(src []byte, srcOff int, dst []byte, dstOff int, n int) error {
	if !a.caps.RawAccess {
		return noRawAccess("CopyBytes")
	}
	if n == 0 {
		return nil
	}
	from := unsafe.Add(unsafe.Pointer(unsafe.SliceData(src)), srcOff)
	to := unsafe.Add(unsafe.Pointer(unsafe.SliceData(dst)), dstOff)
	if a.caps.BulkCopy {
		gohacks.Memmove(to, from, uintptr(n))
		return nil
	}
	copy(gohacks.Slice((*byte)(to), n), gohacks.Slice((*byte)(from), n))
	return nil
}
