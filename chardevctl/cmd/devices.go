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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/mychardev/mychardev/chardevctl/config"
	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
)

// Devices implements subcommands.Command for the "devices" command.
type Devices struct {
	long bool
}

// Name implements subcommands.Command.Name.
func (*Devices) Name() string {
	return "devices"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Devices) Synopsis() string {
	return "load the device in-process and print the device table"
}

// Usage implements subcommands.Command.Usage.
func (*Devices) Usage() string {
	return `devices [flags] - print registered devices in the format of /proc/devices.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Devices) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.long, "l", false, "list every registered device node with its numbers and permissions.")
}

// Execute implements subcommands.Command.Execute.
func (d *Devices) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	vfsObj, m, err := loadModule(ctx, conf)
	if err != nil {
		Fatalf("%v", err)
	}
	defer m.Unload(ctx)

	if d.long {
		if err := listDevices(vfsObj, os.Stdout); err != nil {
			Fatalf("%v", err)
		}
		return subcommands.ExitSuccess
	}
	fmt.Fprint(os.Stdout, vfsObj.DevicesTable())
	return subcommands.ExitSuccess
}

func listDevices(vfsObj *vfs.VirtualFilesystem, w io.Writer) error {
	return vfsObj.ForEachDevice(func(pathname string, kind vfs.DeviceKind, major, minor uint32, perms uint16) error {
		_, err := fmt.Fprintf(w, "%s %3d:%-3d %#o %#x %s\n", kind, major, minor, perms, linux.MakeDeviceID(major, minor), pathname)
		return err
	})
}
