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

// Package cmd holds implementations of the chardevctl commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mychardev/mychardev/chardevctl/config"
	"github.com/mychardev/mychardev/pkg/log"
	"github.com/mychardev/mychardev/pkg/sentry/devices/chardev"
	"github.com/mychardev/mychardev/pkg/sentry/devices/memdev"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the caller of chardevctl.
var ErrorLogger io.Writer

// Fatalf logs to stderr and ErrorLogger, and exits with a failure status.
func Fatalf(format string, args ...any) {
	// Make sure the message is always logged even if the log fails.
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Warningf("FATAL ERROR: "+format, args...)
	if ErrorLogger != nil && ErrorLogger != os.Stderr {
		fmt.Fprintf(ErrorLogger, format+"\n", args...)
	}
	os.Exit(128)
}

// loadModule creates a registry and loads the device into it as conf
// describes.
func loadModule(ctx context.Context, conf *config.Config) (*vfs.VirtualFilesystem, *chardev.Module, error) {
	vfsObj, err := vfs.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("creating device registry: %w", err)
	}
	if conf.MemoryDevices {
		if err := memdev.Register(vfsObj); err != nil {
			return nil, nil, fmt.Errorf("registering memory devices: %w", err)
		}
	}
	m, err := chardev.NewModule(conf.ModuleOptions())
	if err != nil {
		return nil, nil, err
	}
	if err := m.Load(ctx, vfsObj); err != nil {
		return nil, nil, err
	}
	return vfsObj, m, nil
}
