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

//go:build unix

package memutil

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/rawmem/pkg/cleanup"
	"gvisor.dev/rawmem/pkg/hostarch"
)

// NativeSupported is true if NewNativeBuffer returns buffers with a release
// handle.
const NativeSupported = true

// MapAnonymous returns a private, zero-filled, read-write mapping of at least
// size bytes. The returned slice covers the whole mapping, which is rounded up
// to the host page size.
func MapAnonymous(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mapping of %d bytes: %w", size, unix.EINVAL)
	}
	length, ok := hostarch.Addr(size).PageRoundUp()
	if !ok {
		return nil, fmt.Errorf("mapping of %d bytes: %w", size, unix.ENOMEM)
	}
	m, err := unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap of %d bytes: %w", length, err)
	}
	return m, nil
}

// UnmapSlice unmaps a mapping returned by MapAnonymous. slice may be resliced,
// but must keep the capacity of the original mapping.
func UnmapSlice(slice []byte) error {
	return unix.Munmap(slice[:cap(slice)])
}

// NewNativeBuffer returns a zeroed buffer of the given size whose storage is
// an anonymous mapping. The buffer's release handle unmaps it.
func NewNativeBuffer(size int) (*Buffer, error) {
	m, err := MapAnonymous(size)
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		data: m[:size],
		addr: uintptr(unsafe.Pointer(unsafe.SliceData(m))),
	}
	b.release = cleanup.Make(func() {
		if err := UnmapSlice(m); err != nil {
			b.releaseErr = fmt.Errorf("munmap of %#x: %w", b.addr, err)
		}
	})
	return b, nil
}
