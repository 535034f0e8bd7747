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

// Package memutil provides buffers whose storage lives either on the Go heap
// or outside of it, together with the helpers to map and unmap the latter.
package memutil

import (
	"errors"
	"sync/atomic"

	"gvisor.dev/rawmem/pkg/cleanup"
)

var (
	// ErrReleased is returned by Buffer.Release if the buffer was already
	// released.
	ErrReleased = errors.New("buffer already released")

	// ErrNoReleaseHandle is returned by Buffer.Release if the buffer has no
	// release handle, i.e. its storage is reclaimed by the garbage collector.
	ErrNoReleaseHandle = errors.New("buffer has no release handle")
)

// Buffer is a fixed-size byte buffer.
//
// A heap-backed Buffer has an address field of zero and no release handle. A
// natively-backed Buffer has a non-zero address field and, on hosts that can
// unmap memory, a release handle that returns its storage to the OS.
type Buffer struct {
	data []byte

	// addr is the start of the storage for natively-backed buffers, and zero
	// for heap-backed buffers.
	addr uintptr

	// release unmaps the storage. It is empty for heap-backed buffers and on
	// hosts without explicit unmapping.
	release cleanup.Cleanup

	// releaseErr is set by the release handle.
	releaseErr error

	released atomic.Bool
}

// NewHeapBuffer returns a zeroed buffer of the given size backed by the Go
// heap.
func NewHeapBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Bytes returns the buffer contents. It returns nil after a successful
// Release.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Address returns the address field of the buffer: the start of its storage
// if it is natively-backed, or zero if it is heap-backed.
//
// The address stays the same after Release, but must not be dereferenced.
func (b *Buffer) Address() uintptr {
	return b.addr
}

// Native returns true if the buffer's storage is not managed by the garbage
// collector.
func (b *Buffer) Native() bool {
	return b.addr != 0
}

// Releasable returns true if the buffer carries a release handle that has not
// run yet.
func (b *Buffer) Releasable() bool {
	return !b.released.Load() && !b.release.Empty()
}

// Release runs the buffer's release handle. It may be called at most once
// successfully; the storage must not be used afterwards.
func (b *Buffer) Release() error {
	if b.release.Empty() && !b.released.Load() {
		return ErrNoReleaseHandle
	}
	if b.released.Swap(true) {
		return ErrReleased
	}
	b.release.Clean()
	b.data = nil
	return b.releaseErr
}
