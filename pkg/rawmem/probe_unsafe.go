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
	"unsafe"

	"gvisor.dev/rawmem/pkg/hostarch"
)

// misalignedAccessWorks loads and stores 2, 4 and 8 byte integers at
// misaligned offsets of a known pattern.
//
// Some cores (ARM9 and older, for example) silently clear the low address
// bits of a misaligned access instead of faulting, and return the bytes in a
// jumbled order.
func misalignedAccessWorks() bool {
	// words is 8-byte aligned, so every odd offset into it is misaligned for
	// all three widths.
	var words [4]uint64
	raw := (*[32]byte)(unsafe.Pointer(&words))
	pattern := func(i int) byte { return byte(0x11 * (i + 1)) }
	for i := range raw {
		raw[i] = pattern(i)
	}
	base := unsafe.Pointer(raw)

	if *(*uint16)(unsafe.Add(base, 1)) != hostarch.ByteOrder.Uint16(raw[1:]) {
		return false
	}
	if *(*uint32)(unsafe.Add(base, 3)) != hostarch.ByteOrder.Uint32(raw[3:]) {
		return false
	}
	if *(*uint64)(unsafe.Add(base, 9)) != hostarch.ByteOrder.Uint64(raw[9:]) {
		return false
	}

	// The store must not spill into its neighbours.
	const v = 0x0102030405060708
	*(*uint64)(unsafe.Add(base, 17)) = v
	return hostarch.ByteOrder.Uint64(raw[17:]) == v && raw[16] == pattern(16) && raw[25] == pattern(25)
}
