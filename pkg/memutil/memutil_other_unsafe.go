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

//go:build !unix

package memutil

import (
	"errors"
	"unsafe"
)

// NativeSupported is true if NewNativeBuffer returns buffers with a release
// handle.
const NativeSupported = false

// NewNativeBuffer returns a zeroed buffer of the given size. Without a way to
// unmap memory explicitly, its storage is pinned by the buffer itself and
// reclaimed by the garbage collector; the buffer has no release handle.
func NewNativeBuffer(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.New("native buffer size must be positive")
	}
	data := make([]byte, size)
	return &Buffer{
		data: data,
		addr: uintptr(unsafe.Pointer(unsafe.SliceData(data))),
	}, nil
}
