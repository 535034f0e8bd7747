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

package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gvisor.dev/rawmem/pkg/log"
	"gvisor.dev/rawmem/pkg/rawmem"
)

// logToTest sends the global logger's output to t until t finishes.
func logToTest(t *testing.T) {
	t.Helper()
	old := log.Log()
	log.SetTarget(&log.TestEmitter{TestLogger: t})
	t.Cleanup(func() { log.SetTarget(old.Emitter) })
}

func TestSelfTestHost(t *testing.T) {
	logToTest(t)
	host := rawmem.Probe()
	if !host.RawAccess {
		t.Skip("raw access unavailable in this build")
	}
	var out bytes.Buffer
	if failed := runSelfTest(&out, host, 256); failed != 0 {
		t.Errorf("self test reported %d failures:\n%s", failed, out.String())
	}
	if strings.Contains(out.String(), "FAIL") {
		t.Errorf("self test output contains failures:\n%s", out.String())
	}
}

func TestSelfTestFallbackOnly(t *testing.T) {
	logToTest(t)
	if !rawmem.HasRawAccess() {
		t.Skip("raw access unavailable in this build")
	}
	var out bytes.Buffer
	if failed := runSelfTest(&out, rawmem.Capabilities{RawAccess: true}, minSelfTestSize); failed != 0 {
		t.Errorf("self test reported %d failures:\n%s", failed, out.String())
	}
	if strings.Contains(out.String(), "fast") {
		t.Errorf("fast path exercised without unaligned access:\n%s", out.String())
	}
}

func TestSelfTestNoRawAccess(t *testing.T) {
	logToTest(t)
	var out bytes.Buffer
	if failed := runSelfTest(&out, rawmem.Capabilities{}, minSelfTestSize); failed != 1 {
		t.Errorf("self test reported %d failures, want 1:\n%s", failed, out.String())
	}
	if !strings.HasPrefix(out.String(), "FAIL raw access") {
		t.Errorf("output = %q, want a raw access failure", out.String())
	}
}

func TestWriteReport(t *testing.T) {
	caps := rawmem.Capabilities{RawAccess: true, BulkCopy: true}

	var text bytes.Buffer
	if err := writeReport(&text, "text", caps); err != nil {
		t.Fatalf("writeReport(text) failed: %v", err)
	}
	for _, want := range []string{"raw_access:           true", "unaligned_access:     false", "bulk_copy:            true"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text report %q does not contain %q", text.String(), want)
		}
	}

	var js bytes.Buffer
	if err := writeReport(&js, "json", caps); err != nil {
		t.Fatalf("writeReport(json) failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(js.Bytes(), &got); err != nil {
		t.Fatalf("json report does not parse: %v\n%s", err, js.String())
	}
	if got["raw_access"] != true || got["explicit_release"] != false {
		t.Errorf("json report = %v, want raw_access=true explicit_release=false", got)
	}
	if _, ok := got["page_size"]; !ok {
		t.Errorf("json report = %v, missing page_size", got)
	}

	if err := writeReport(&js, "yaml", caps); err == nil {
		t.Errorf("writeReport(yaml) succeeded")
	}
}
