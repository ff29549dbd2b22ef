// Copyright 2026 The gVisor Authors.
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
	"strings"
	"testing"
	"time"

	"github.com/mychardev/mychardev/pkg/log"
)

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := newLogrusEmitter(&buf)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tc := range []struct {
		level log.Level
		want  string
	}{
		{log.Alert, "level=error"},
		{log.Warning, "level=warning"},
		{log.Info, "level=info"},
		{log.Debug, "level=debug"},
	} {
		buf.Reset()
		e.Emit(0, tc.level, ts, "major %d", 254)
		got := buf.String()
		if !strings.Contains(got, tc.want) {
			t.Errorf("Emit(%v) = %q, want it to contain %q", tc.level, got, tc.want)
		}
		if !strings.Contains(got, `msg="major 254"`) {
			t.Errorf("Emit(%v) = %q, want the formatted message", tc.level, got)
		}
		if !strings.Contains(got, "2026-01-02T03:04:05Z") {
			t.Errorf("Emit(%v) = %q, want the emitted timestamp", tc.level, got)
		}
	}
}

func TestNewEmitter(t *testing.T) {
	for _, format := range []string{"text", "json", "logrus"} {
		var buf bytes.Buffer
		e := newEmitter(format, &buf)
		e.Emit(0, log.Info, time.Now(), "hello %s", format)
		if !strings.Contains(buf.String(), "hello "+format) {
			t.Errorf("%s emitter wrote %q", format, buf.String())
		}
	}
}
