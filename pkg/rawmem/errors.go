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
	"errors"
	"fmt"
)

// ErrCapabilityUnavailable is matched by errors.Is for every error returned
// because the host lacks a capability an operation needs.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// CapabilityUnavailableError is returned by an accessor operation that needs
// a capability the host does not have.
type CapabilityUnavailableError struct {
	// Op is the operation that failed, e.g. "ReadU32".
	Op string

	// Capability is the missing capability.
	Capability string
}

// Error implements error.Error.
func (e *CapabilityUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s unavailable", e.Op, e.Capability)
}

// Is implements errors.Is.
func (e *CapabilityUnavailableError) Is(target error) bool {
	return target == ErrCapabilityUnavailable
}

func noRawAccess(op string) error {
	return &CapabilityUnavailableError{Op: op, Capability: "raw memory access"}
}
