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

package gohacks

import (
	"unsafe"
)

// Slice returns a slice whose underlying array starts at ptr and whose length
// and capacity are length.
func Slice[T any](ptr *T, length int) []T {
	return unsafe.Slice(ptr, length)
}

// BytesAt returns a byte slice over the n bytes starting at the raw address
// addr. The memory must stay valid, and must not be moved by the garbage
// collector, for as long as the slice is used.
func BytesAt(addr uintptr, n int) []byte {
	if n == 0 {
		return nil
	}
	return Slice((*byte)(unsafe.Pointer(addr)), n)
}

// StringFromImmutableBytes is equivalent to string(bs), except that it uses
// the same memory backing bs instead of making a heap-allocated copy. This is
// only valid if bs is never mutated after StringFromImmutableBytes returns.
func StringFromImmutableBytes(bs []byte) string {
	if len(bs) == 0 {
		return ""
	}
	return unsafe.String(&bs[0], len(bs))
}
