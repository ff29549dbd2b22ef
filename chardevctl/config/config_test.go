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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mychardev/mychardev/pkg/sentry/devices/chardev"
)

func newFlagSet() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	// "--root" is always set to something different than the default. Reset it
	// to make it easier to test that default values do not generate flags.
	c.RootDir = ""

	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	want := chardev.Options{Name: chardev.DeviceName, Allocator: chardev.FreshAllocator}
	if diff := cmp.Diff(want, c.ModuleOptions()); diff != "" {
		t.Errorf("ModuleOptions mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	for name, value := range map[string]string{
		"root":         "some-path",
		"debug":        "true",
		"allocator":    "pooled",
		"max-sessions": "8",
		"alert-every":  "2s",
	} {
		if err := testFlags.Set(name, value); err != nil {
			t.Fatalf("Flag set: %v", err)
		}
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := "some-path"; c.RootDir != want {
		t.Errorf("RootDir=%v, want: %v", c.RootDir, want)
	}
	if !c.Debug {
		t.Errorf("Debug=%v, want: true", c.Debug)
	}
	want := chardev.Options{
		Name:        chardev.DeviceName,
		Allocator:   chardev.PooledAllocator,
		MaxSessions: 8,
		AlertEvery:  2 * time.Second,
	}
	if diff := cmp.Diff(want, c.ModuleOptions()); diff != "" {
		t.Errorf("ModuleOptions mismatch (-want +got):\n%s", diff)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Set("device-name", "otherdev"); err != nil {
		t.Fatal(err)
	}
	if err := testFlags.Set("log-format", "json"); err != nil {
		t.Fatal(err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	c.RootDir = ""
	got := c.ToFlags()
	want := []string{"--log-format=json", "--device-name=otherdev"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToFlags mismatch (-want +got):\n%s", diff)
	}

	again := newFlagSet()
	if err := again.Parse(got); err != nil {
		t.Fatalf("Parse(%v): %v", got, err)
	}
	c2, err := NewFromFlags(again)
	if err != nil {
		t.Fatal(err)
	}
	c2.RootDir = ""
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value string
	}{
		{"log-format", "xml"},
		{"debug-log-format", "yaml"},
		{"allocator", "slab"},
		{"max-sessions", "-1"},
		{"alert-every", "-1s"},
		{"device-name", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Set(tc.name, tc.value); err != nil {
				t.Fatalf("Flag set: %v", err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags with --%s=%q succeeded", tc.name, tc.value)
			}
		})
	}
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chardevctl.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
device-name = "filedev"
allocator = "pooled"
max-sessions = 4
debug = true
alert-every = "500ms"
`)
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--config", path, "--max-sessions", "16"}); err != nil {
		t.Fatal(err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := chardev.Options{
		Name:        "filedev",
		Allocator:   chardev.PooledAllocator,
		MaxSessions: 16,
		AlertEvery:  500 * time.Millisecond,
	}
	if diff := cmp.Diff(want, c.ModuleOptions()); diff != "" {
		t.Errorf("ModuleOptions mismatch (-want +got):\n%s", diff)
	}
	if !c.Debug {
		t.Errorf("Debug=%v, want: true", c.Debug)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		wantErr  string
	}{
		{"unknown flag", `no-such-flag = 1`, "unknown flag"},
		{"recursive", `config = "other.toml"`, "not allowed"},
		{"bad value", `max-sessions = "many"`, "error setting flag"},
		{"unsupported type", `device-name = ["a", "b"]`, "unsupported value type"},
		{"syntax", `device-name = `, "error reading config file"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Set("config", writeConfigFile(t, tc.contents)); err != nil {
				t.Fatal(err)
			}
			_, err := NewFromFlags(testFlags)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("NewFromFlags: got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}
