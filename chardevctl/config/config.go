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

// Package config provides basic infrastructure to set configuration settings
// for chardevctl. Each setting that can be changed from the command line
// must have a matching flag registered in RegisterFlags and a field with a
// `flag` tag here.
package config

import (
	"fmt"
	"time"

	"github.com/mychardev/mychardev/pkg/log"
	"github.com/mychardev/mychardev/pkg/sentry/devices/chardev"
)

// Config holds configuration that is not part of the device itself.
type Config struct {
	// RootDir is the directory holding server state: lock and pid files.
	RootDir string `flag:"root"`

	// ConfigFile is a TOML file whose keys are flag names. Flags given on
	// the command line take precedence.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename specifies the file to write logs to. Empty means stderr.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: text, json or logrus.
	LogFormat string `flag:"log-format"`

	// DebugLog is the path to log debug information to, if not empty. It
	// may contain %TIMESTAMP% and %COMMAND%.
	DebugLog string `flag:"debug-log"`

	// DebugLogFormat is the log format for debug logs.
	DebugLogFormat string `flag:"debug-log-format"`

	// AlsoLogToStderr also sends debug logs to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// DeviceName is the name the device registers and is exposed under.
	DeviceName string `flag:"device-name"`

	// Allocator selects the session context allocator: fresh or pooled.
	Allocator string `flag:"allocator"`

	// MaxSessions bounds the number of open sessions. 0 is unbounded.
	MaxSessions int `flag:"max-sessions"`

	// AlertEvery rate limits alerts triggered by callers. 0 disables rate
	// limiting.
	AlertEvery time.Duration `flag:"alert-every"`

	// MemoryDevices also registers /dev/null and /dev/zero next to the
	// device.
	MemoryDevices bool `flag:"memdev"`

	// FUSEDebug enables go-fuse request tracing.
	FUSEDebug bool `flag:"fuse-debug"`

	// AllowOther lets other users access the mount.
	AllowOther bool `flag:"allow-other"`
}

func (c *Config) validate() error {
	for _, f := range []struct{ name, value string }{
		{"log-format", c.LogFormat},
		{"debug-log-format", c.DebugLogFormat},
	} {
		switch f.value {
		case "text", "json", "logrus":
		default:
			return fmt.Errorf("invalid --%s %q, must be 'text', 'json', or 'logrus'", f.name, f.value)
		}
	}
	switch chardev.AllocatorKind(c.Allocator) {
	case chardev.FreshAllocator, chardev.PooledAllocator:
	default:
		return fmt.Errorf("invalid --allocator %q, must be %q or %q", c.Allocator, chardev.FreshAllocator, chardev.PooledAllocator)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("--max-sessions must be non-negative, got %d", c.MaxSessions)
	}
	if c.AlertEvery < 0 {
		return fmt.Errorf("--alert-every must be non-negative, got %v", c.AlertEvery)
	}
	if c.DeviceName == "" {
		return fmt.Errorf("--device-name must not be empty")
	}
	return nil
}

// ModuleOptions returns the device options selected by c.
func (c *Config) ModuleOptions() chardev.Options {
	return chardev.Options{
		Name:        c.DeviceName,
		Allocator:   chardev.AllocatorKind(c.Allocator),
		MaxSessions: c.MaxSessions,
		AlertEvery:  c.AlertEvery,
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("\t\tRootDir: %s", c.RootDir)
	log.Infof("\t\tConfigFile: %s", c.ConfigFile)
	log.Infof("\t\tDebug: %t", c.Debug)
	log.Infof("\t\tLogFormat: %s", c.LogFormat)
	log.Infof("\t\tDebugLog: %s", c.DebugLog)
	log.Infof("\t\tDeviceName: %s", c.DeviceName)
	log.Infof("\t\tAllocator: %s", c.Allocator)
	log.Infof("\t\tMaxSessions: %d", c.MaxSessions)
	log.Infof("\t\tAlertEvery: %v", c.AlertEvery)
	log.Infof("\t\tMemoryDevices: %t", c.MemoryDevices)
	log.Infof("\t\tFUSEDebug: %t", c.FUSEDebug)
	log.Infof("\t\tAllowOther: %t", c.AllowOther)
}
