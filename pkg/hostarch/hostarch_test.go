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

package hostarch

import (
	"testing"
	"unsafe"
)

func TestByteOrderMatchesMemory(t *testing.T) {
	x := uint32(0x01020304)
	b := *(*[4]byte)(unsafe.Pointer(&x))
	if got := ByteOrder.Uint32(b[:]); got != x {
		t.Errorf("ByteOrder (%v) decodes %#x from native memory %v, want %#x", ByteOrder, got, b, x)
	}
	if BigEndian != (b[0] == 0x01) {
		t.Errorf("BigEndian = %t, but native memory is %v", BigEndian, b)
	}
}

func TestBigEndianIsConstant(t *testing.T) {
	// Only a constant may initialize a constant.
	const bigEndian = BigEndian
	if want := ByteOrder.Uint16([]byte{0x01, 0x02}) == 0x0102; bigEndian != want {
		t.Errorf("BigEndian = %t, want %t", bigEndian, want)
	}
}

func TestRounding(t *testing.T) {
	for _, tc := range []struct {
		addr      Addr
		align     uintptr
		down, up  Addr
		upWrapped bool
	}{
		{addr: 0, align: 8, down: 0, up: 0},
		{addr: 1, align: 8, down: 0, up: 8},
		{addr: 8, align: 8, down: 8, up: 8},
		{addr: 0x1003, align: 0x1000, down: 0x1000, up: 0x2000},
		{addr: ^Addr(0), align: 2, down: ^Addr(1), up: 0, upWrapped: true},
	} {
		if got := tc.addr.RoundDown(tc.align); got != tc.down {
			t.Errorf("%#x.RoundDown(%d) = %#x, want %#x", tc.addr, tc.align, got, tc.down)
		}
		up, ok := tc.addr.RoundUp(tc.align)
		if ok == tc.upWrapped {
			t.Errorf("%#x.RoundUp(%d) ok = %t, want %t", tc.addr, tc.align, ok, !tc.upWrapped)
		}
		if ok && up != tc.up {
			t.Errorf("%#x.RoundUp(%d) = %#x, want %#x", tc.addr, tc.align, up, tc.up)
		}
	}
}

func TestPageSize(t *testing.T) {
	ps := PageSize()
	if ps == 0 || ps&(ps-1) != 0 {
		t.Fatalf("PageSize() = %d, want a power of two", ps)
	}
	up, ok := Addr(1).PageRoundUp()
	if !ok || uintptr(up) != ps {
		t.Errorf("Addr(1).PageRoundUp() = %#x, %t, want %#x, true", up, ok, ps)
	}
}
