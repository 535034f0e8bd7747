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

//go:build 386 || amd64 || arm64 || ppc64 || ppc64le || s390x || wasm

package hostarch

// UnalignedAdvertised is true if the architecture promises that a single load
// or store of a 2, 4 or 8 byte integer works at any address. It is only the
// architecture's claim; package rawmem confirms it empirically before use.
const UnalignedAdvertised = true
