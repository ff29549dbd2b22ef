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
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"github.com/mychardev/mychardev/chardevctl/config"
	"github.com/mychardev/mychardev/pkg/abi/linux"
	"github.com/mychardev/mychardev/pkg/errors/linuxerr"
	"github.com/mychardev/mychardev/pkg/sentry/devices/chardev"
	"github.com/mychardev/mychardev/pkg/sentry/vfs"
	"github.com/mychardev/mychardev/pkg/usermem"
	"golang.org/x/sync/errgroup"
)

// Selftest implements subcommands.Command for the "selftest" command.
type Selftest struct{}

// Name implements subcommands.Command.Name.
func (*Selftest) Name() string {
	return "selftest"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Selftest) Synopsis() string {
	return "run the device's behavioral checks in-process"
}

// Usage implements subcommands.Command.Usage.
func (*Selftest) Usage() string {
	return `selftest - load the device in-process, run every check against it and report PASS or FAIL for each.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Selftest) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Selftest) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if failed := runChecks(ctx, conf, os.Stdout); failed > 0 {
		fmt.Fprintf(os.Stdout, "%d of %d checks failed\n", failed, len(checks))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// check is one behavioral check. Each check runs against a freshly loaded
// device.
type check struct {
	name string
	run  func(ctx context.Context, m *chardev.Module) error
}

var checks = []check{
	{"write then read returns the data", checkHello},
	{"fresh session reads the greeting", checkFallback},
	{"oversized write is rejected", checkOversized},
	{"capacity boundary", checkBoundary},
	{"sessions are isolated", checkIsolation},
	{"release frees the session", checkRelease},
	{"unloaded device cannot be opened", checkUnload},
}

// runChecks runs every check concurrently, writes a report to w in check
// order and returns the number of failed checks.
func runChecks(ctx context.Context, conf *config.Config, w io.Writer) int {
	errs := make([]error, len(checks))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range checks {
		g.Go(func() error {
			errs[i] = runCheck(ctx, conf, c)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, c := range checks {
		if errs[i] != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", c.name, errs[i])
			continue
		}
		fmt.Fprintf(w, "PASS  %s\n", c.name)
	}
	return failed
}

func runCheck(ctx context.Context, conf *config.Config, c check) error {
	_, m, err := loadModule(ctx, conf)
	if err != nil {
		return err
	}
	defer m.Unload(ctx)
	return c.run(ctx, m)
}

func openSession(ctx context.Context, m *chardev.Module) (*vfs.FileDescription, error) {
	return m.Open(ctx, linux.O_RDWR)
}

func writeSession(ctx context.Context, fd *vfs.FileDescription, data []byte) (int64, error) {
	return fd.Write(ctx, usermem.BytesIOSequence(data), vfs.WriteOptions{})
}

func readSession(ctx context.Context, fd *vfs.FileDescription, n int) ([]byte, int64, error) {
	buf := make([]byte, n)
	count, err := fd.Read(ctx, usermem.BytesIOSequence(buf), vfs.ReadOptions{})
	return buf, count, err
}

const greeting = "OH HAI MY CHARDEV\x00"

func expectRead(ctx context.Context, fd *vfs.FileDescription, n int, wantData string, wantCount int64) error {
	buf, count, err := readSession(ctx, fd, n)
	if err != nil {
		return fmt.Errorf("read(%d): %w", n, err)
	}
	if count != wantCount {
		return fmt.Errorf("read(%d) returned %d, want %d", n, count, wantCount)
	}
	if !bytes.HasPrefix(buf, []byte(wantData)) {
		return fmt.Errorf("read(%d) copied %q, want prefix %q", n, buf, wantData)
	}
	return nil
}

func checkHello(ctx context.Context, m *chardev.Module) error {
	fd, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer fd.DecRef(ctx)
	if n, err := writeSession(ctx, fd, []byte("HELLO")); err != nil || n != 5 {
		return fmt.Errorf("write = (%d, %v), want (5, nil)", n, err)
	}
	return expectRead(ctx, fd, 5, "HELLO", 5)
}

func checkFallback(ctx context.Context, m *chardev.Module) error {
	fd, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer fd.DecRef(ctx)
	return expectRead(ctx, fd, chardev.BufferSize, greeting, int64(len(greeting)))
}

func checkOversized(ctx context.Context, m *chardev.Module) error {
	fd, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer fd.DecRef(ctx)
	if _, err := writeSession(ctx, fd, make([]byte, 2000)); !linuxerr.Equals(linuxerr.EINVAL, err) {
		return fmt.Errorf("write(2000): got %v, want EINVAL", err)
	}
	return expectRead(ctx, fd, 10, greeting[:10], int64(len(greeting)))
}

func checkBoundary(ctx context.Context, m *chardev.Module) error {
	fd, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer fd.DecRef(ctx)
	if _, err := writeSession(ctx, fd, make([]byte, chardev.BufferSize)); err != nil {
		return fmt.Errorf("write(%d): %w", chardev.BufferSize, err)
	}
	if _, err := writeSession(ctx, fd, make([]byte, chardev.BufferSize+1)); !linuxerr.Equals(linuxerr.EINVAL, err) {
		return fmt.Errorf("write(%d): got %v, want EINVAL", chardev.BufferSize+1, err)
	}
	return nil
}

func checkIsolation(ctx context.Context, m *chardev.Module) error {
	a, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer a.DecRef(ctx)
	b, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer b.DecRef(ctx)
	if _, err := writeSession(ctx, a, []byte("first session")); err != nil {
		return err
	}
	if err := expectRead(ctx, b, chardev.BufferSize, greeting, int64(len(greeting))); err != nil {
		return fmt.Errorf("second session: %w", err)
	}
	return expectRead(ctx, a, 13, "first session", 13)
}

func checkRelease(ctx context.Context, m *chardev.Module) error {
	for i := 0; i < 100; i++ {
		fd, err := openSession(ctx, m)
		if err != nil {
			return err
		}
		if _, err := writeSession(ctx, fd, []byte("x")); err != nil {
			return err
		}
		fd.DecRef(ctx)
	}
	if n := m.Allocated(); n != 0 {
		return fmt.Errorf("%d session contexts still allocated", n)
	}
	if n := m.Sessions(); n != 0 {
		return fmt.Errorf("%d sessions still open", n)
	}
	return nil
}

func checkUnload(ctx context.Context, m *chardev.Module) error {
	m.Unload(ctx)
	if _, err := openSession(ctx, m); !linuxerr.Equals(linuxerr.ENODEV, err) {
		return fmt.Errorf("open after unload: got %v, want ENODEV", err)
	}
	return nil
}
