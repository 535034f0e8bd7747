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

// Package hostarch contains host arch address operations and facts about the
// host's memory access behavior.
package hostarch

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// BigEndian is true if the host stores multi-byte values most significant
// byte first.
const BigEndian = cpu.IsBigEndian

// ByteOrder is the host's native byte order.
var ByteOrder binary.ByteOrder = nativeByteOrder()

func nativeByteOrder() binary.ByteOrder {
	if BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Addr represents an address in an unspecified address space.
type Addr uintptr

// RoundDown returns the address rounded down to the nearest multiple of
// align. align must be a power of two.
func (v Addr) RoundDown(align uintptr) Addr {
	return v & ^Addr(align-1)
}

// RoundUp returns the address rounded up to the nearest multiple of align.
// align must be a power of two. ok is true iff rounding up did not wrap
// around.
func (v Addr) RoundUp(align uintptr) (addr Addr, ok bool) {
	addr = Addr(v + Addr(align) - 1).RoundDown(align)
	ok = addr >= v
	return
}

// PageRoundUp returns v rounded up to the host page size. ok is true iff
// rounding up did not wrap around.
func (v Addr) PageRoundUp() (Addr, bool) {
	return v.RoundUp(PageSize())
}
