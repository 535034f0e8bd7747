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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gvisor.dev/rawmem/pkg/log"
)

func TestNewEmitterText(t *testing.T) {
	var out bytes.Buffer
	e, err := newEmitter("text", &out)
	if err != nil {
		t.Fatalf("newEmitter(text) failed: %v", err)
	}
	e.Emit(0, log.Info, time.Now(), "probe %s", "done")
	if got := out.String(); !strings.HasPrefix(got, "I") || !strings.HasSuffix(got, "probe done\n") {
		t.Errorf("text output = %q, want a glog line ending in %q", got, "probe done")
	}
}

func TestNewEmitterJSON(t *testing.T) {
	var out bytes.Buffer
	e, err := newEmitter("json", &out)
	if err != nil {
		t.Fatalf("newEmitter(json) failed: %v", err)
	}
	e.Emit(0, log.Warning, time.Now(), "release failed: %d", 7)
	var got struct {
		Msg   string    `json:"msg"`
		Level log.Level `json:"level"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("json output %q does not parse: %v", out.String(), err)
	}
	if got.Msg != "release failed: 7" || got.Level != log.Warning {
		t.Errorf("json output = %+v, want msg %q at warning", got, "release failed: 7")
	}
}

func TestNewEmitterInvalid(t *testing.T) {
	if _, err := newEmitter("xml", &bytes.Buffer{}); err == nil {
		t.Errorf("newEmitter(xml) succeeded")
	}
}

func TestAutoFormat(t *testing.T) {
	if got := autoFormat(true); got != "text" {
		t.Errorf("autoFormat(terminal) = %q, want text", got)
	}
	if got := autoFormat(false); got != "json" {
		t.Errorf("autoFormat(pipe) = %q, want json", got)
	}
}
