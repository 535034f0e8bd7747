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

package log

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gvisor.dev/rawmem/pkg/gohacks"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog.
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// header is an inline buffer for the line prefix. The data slice is kept on
// the local array so formatting a header does not allocate.
type header struct {
	local [128]byte
	data  []byte
}

func (h *header) digits(v, width int) {
	var tmp [8]byte
	for i := width - 1; i >= 0; i-- {
		tmp[i] = '0' + byte(v%10)
		v /= 10
	}
	h.data = append(h.data, tmp[:width]...)
}

// pid is the space-padded thread id component of the header. The glog
// package logger uses 7 spaces of padding.
var pid = padLeft(strconv.Itoa(os.Getpid()), 7)

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// Emit emits the message, google-style.
//
// Log lines have this form:
//
//	Lmmdd hh:mm:ss.uuuuuu threadid file:line] msg...
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	var h header
	h.data = h.local[:0]

	switch level {
	case Debug:
		h.data = append(h.data, 'D')
	case Info:
		h.data = append(h.data, 'I')
	default:
		h.data = append(h.data, 'W')
	}

	_, month, day := timestamp.Date()
	hour, minute, second := timestamp.Clock()
	h.digits(int(month), 2)
	h.digits(day, 2)
	h.data = append(h.data, ' ')
	h.digits(hour, 2)
	h.data = append(h.data, ':')
	h.digits(minute, 2)
	h.data = append(h.data, ':')
	h.digits(second, 2)
	h.data = append(h.data, '.')
	h.digits(timestamp.Nanosecond()/1000, 6)
	h.data = append(h.data, ' ')
	h.data = append(h.data, pid...)
	h.data = append(h.data, ' ')

	file, line := "???", 0
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		file, line = f[strings.LastIndexByte(f, '/')+1:], l
	}
	h.data = append(h.data, file...)
	h.data = append(h.data, ':')
	h.data = strconv.AppendInt(h.data, int64(line), 10)
	h.data = append(h.data, "] "...)

	// Source file names never contain '%', so the header is safe to prepend.
	g.Emitter.Emit(depth+1, level, timestamp, gohacks.StringFromImmutableBytes(h.data)+format, args...)
}
