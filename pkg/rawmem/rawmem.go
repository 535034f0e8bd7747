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

// Package rawmem reads and writes fixed-width integers at raw addresses,
// copies raw memory ranges, and releases natively-backed buffers.
//
// What the host supports is probed once per process (see Probe). Every
// accessor then branches on the cached Capabilities: with unaligned access
// confirmed, a multi-byte value is moved by a single native load or store;
// otherwise it is composed from single-byte accesses. Both paths store
// integers in big-endian order.
//
// Nothing in this package checks bounds, alignment or address validity.
// Callers own the memory behind every address they pass in.
package rawmem

import (
	"fmt"

	"gvisor.dev/rawmem/pkg/log"
	"gvisor.dev/rawmem/pkg/sync"
)

// Capabilities are the facts the probe determined about the host. They are
// computed once by Probe and never change afterwards; callers receive copies.
//
// If RawAccess is false, all other fields are false.
type Capabilities struct {
	// RawAccess is true if raw-address memory operations are usable.
	RawAccess bool `json:"raw_access"`

	// UnalignedAccess is true if the architecture advertises single-instruction
	// unaligned loads and stores and the probe confirmed it empirically.
	UnalignedAccess bool `json:"unaligned_access"`

	// ExplicitRelease is true if a natively-backed buffer was allocated and
	// released through its release handle during probing.
	ExplicitRelease bool `json:"explicit_release"`

	// BulkCopy is true if the runtime's memmove primitive is available.
	BulkCopy bool `json:"bulk_copy"`
}

// String implements fmt.Stringer.
func (c Capabilities) String() string {
	return fmt.Sprintf("raw_access=%t unaligned_access=%t explicit_release=%t bulk_copy=%t",
		c.RawAccess, c.UnalignedAccess, c.ExplicitRelease, c.BulkCopy)
}

// normalize enforces that no capability is reported without raw access.
func (c Capabilities) normalize() Capabilities {
	if !c.RawAccess {
		return Capabilities{}
	}
	return c
}

var hostCapabilities = sync.OnceValue(func() Capabilities {
	cfg, err := ConfigFromEnv()
	if err != nil {
		log.Warningf("Ignoring raw memory configuration: %v", err)
		cfg = Config{}
	}
	c := ProbeWithConfig(cfg)
	log.Infof("Raw memory capabilities: %s", c)
	return c
})

// Probe returns the host's capabilities.
//
// The first call probes the host, honoring the configuration from
// ConfigFromEnv; every later call, from any goroutine, returns the same
// value without side effects.
func Probe() Capabilities {
	return hostCapabilities()
}

// ProbeWithConfig probes the host, honoring cfg. The result is not cached.
func ProbeWithConfig(cfg Config) Capabilities {
	return probe(cfg, hostEnv())
}

// HasRawAccess returns Probe().RawAccess.
func HasRawAccess() bool {
	return Probe().RawAccess
}

// HasUnalignedAccess returns Probe().UnalignedAccess.
func HasUnalignedAccess() bool {
	return Probe().UnalignedAccess
}

// CanReleaseExplicitly returns Probe().ExplicitRelease.
func CanReleaseExplicitly() bool {
	return Probe().ExplicitRelease
}

// HasBulkCopy returns Probe().BulkCopy.
func HasBulkCopy() bool {
	return Probe().BulkCopy
}
