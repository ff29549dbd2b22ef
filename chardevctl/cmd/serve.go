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
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/mychardev/mychardev/chardevctl/config"
	"github.com/mychardev/mychardev/pkg/devfuse"
	"github.com/mychardev/mychardev/pkg/log"
	"golang.org/x/sys/unix"
)

// Serve implements subcommands.Command for the "serve" command.
type Serve struct {
	pidFile        string
	unmountTimeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Serve) Name() string {
	return "serve"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Serve) Synopsis() string {
	return "load the device and serve it through a FUSE mount"
}

// Usage implements subcommands.Command.Usage.
func (*Serve) Usage() string {
	return `serve [flags] <mountpoint> - load the device and expose it at <mountpoint>/<device-name> until SIGINT or SIGTERM.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Serve) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.pidFile, "pid-file", "", "filename that the server pid will be written to. Defaults to <root>/<device-name>.pid.")
	f.DurationVar(&s.unmountTimeout, "unmount-timeout", 10*time.Second, "how long to retry unmounting while the mount is busy.")
}

// Execute implements subcommands.Command.Execute.
func (s *Serve) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	ctx, stop := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer stop()
	if err := s.serve(ctx, conf, f.Arg(0)); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (s *Serve) serve(ctx context.Context, conf *config.Config, mountpoint string) error {
	unlock, err := lockDevice(conf.RootDir, conf.DeviceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warningf("Releasing lock on %q: %v", conf.DeviceName, err)
		}
	}()

	vfsObj, m, err := loadModule(ctx, conf)
	if err != nil {
		return err
	}
	defer m.Unload(context.Background())

	server, err := devfuse.Mount(mountpoint, vfsObj, devfuse.Options{
		FsName:     conf.DeviceName,
		Debug:      conf.FUSEDebug,
		AllowOther: conf.AllowOther,
	})
	if err != nil {
		return err
	}

	pidFile := s.pidFile
	if pidFile == "" {
		pidFile = pidFilePath(conf.RootDir, conf.DeviceName)
	}
	if err := WritePidFile(pidFile, os.Getpid()); err != nil {
		_ = server.Unmount()
		return err
	}
	defer os.Remove(pidFile)

	major, _ := m.Major()
	log.Infof("Serving %s (major %d) at %s", conf.DeviceName, major, filepath.Join(mountpoint, conf.DeviceName))
	return waitAndUnmount(ctx, server, s.unmountTimeout)
}

// mountedServer is the part of *fuse.Server that serve drives.
type mountedServer interface {
	Wait()
	Unmount() error
}

// waitAndUnmount blocks until the mount goes away on its own or ctx is
// cancelled, in which case it unmounts, retrying while the mount is busy.
func waitAndUnmount(ctx context.Context, server mountedServer, timeout time.Duration) error {
	served := make(chan struct{})
	go func() {
		server.Wait()
		close(served)
	}()
	select {
	case <-served:
		log.Infof("Mount was removed externally")
		return nil
	case <-ctx.Done():
	}

	log.Infof("Shutting down: %v", context.Cause(ctx))
	uctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(100*time.Millisecond), uctx)
	if err := backoff.Retry(func() error {
		err := server.Unmount()
		if err != nil {
			log.Debugf("Unmount: %v, retrying", err)
		}
		return err
	}, b); err != nil {
		return fmt.Errorf("unmounting: %w", err)
	}
	<-served
	return nil
}

func pidFilePath(rootDir, name string) string {
	return filepath.Join(rootDir, name+".pid")
}

// errAlreadyServed is returned by lockDevice when another server holds the
// device name.
var errAlreadyServed = errors.New("device is already being served")

// lockDevice takes the lock that makes a server the only one serving name
// under rootDir.
func lockDevice(rootDir, name string) (func() error, error) {
	if err := os.MkdirAll(rootDir, 0711); err != nil {
		return nil, fmt.Errorf("error creating root directory %q: %v", rootDir, err)
	}
	path := filepath.Join(rootDir, name+".lock")
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock on %q: %v", path, err)
	}
	if !locked {
		if pid, err := readPidFile(pidFilePath(rootDir, name)); err == nil {
			return nil, fmt.Errorf("%q: %w by pid %d", name, errAlreadyServed, pid)
		}
		return nil, fmt.Errorf("%q: %w", name, errAlreadyServed)
	}
	return l.Unlock, nil
}
