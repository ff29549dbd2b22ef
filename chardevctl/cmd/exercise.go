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
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"github.com/mychardev/mychardev/pkg/log"
	"golang.org/x/sys/unix"
)

// Exercise implements subcommands.Command for the "exercise" command. It is
// a plain user-space client of a served device file.
type Exercise struct {
	message string
	readLen int
	wait    time.Duration
}

// Name implements subcommands.Command.Name.
func (*Exercise) Name() string {
	return "exercise"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Exercise) Synopsis() string {
	return "write a message to a device file and read it back"
}

// Usage implements subcommands.Command.Usage.
func (*Exercise) Usage() string {
	return `exercise [flags] <path> - open <path>, write a message, read back and print the result.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *Exercise) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.message, "message", "Hello from user space!", "message to write. An empty message skips the write.")
	f.IntVar(&e.readLen, "read-len", 1024, "number of bytes to request when reading back.")
	f.DurationVar(&e.wait, "wait", 5*time.Second, "how long to wait for <path> to appear.")
}

// Execute implements subcommands.Command.Execute.
func (e *Exercise) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if e.readLen < 0 {
		Fatalf("--read-len must be non-negative, got %d", e.readLen)
	}
	path := f.Arg(0)
	if err := waitForPath(ctx, path, e.wait); err != nil {
		Fatalf("waiting for %q: %v", path, err)
	}
	res, err := exercise(path, []byte(e.message), e.readLen)
	if err != nil {
		Fatalf("%v", err)
	}
	if len(e.message) > 0 {
		fmt.Printf("Wrote %d bytes: %q\n", res.wrote, e.message)
	}
	fmt.Printf("Read %d bytes: %q\n", res.read, res.data)
	return subcommands.ExitSuccess
}

type exerciseResult struct {
	wrote int
	read  int
	data  []byte
}

// exercise opens path read-write, writes msg unless it is empty, then reads
// once with a readLen-byte buffer. The device may report a count larger than
// what it copied; data holds at most readLen bytes.
func exercise(path string, msg []byte, readLen int) (exerciseResult, error) {
	var res exerciseResult
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return res, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer unix.Close(fd)
	log.Debugf("Opened %q as fd %d", path, fd)

	if len(msg) > 0 {
		n, err := unix.Write(fd, msg)
		if err != nil {
			return res, fmt.Errorf("failed to write to %q: %w", path, err)
		}
		res.wrote = n
	}

	buf := make([]byte, readLen)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return res, fmt.Errorf("failed to read from %q: %w", path, err)
	}
	res.read = n
	res.data = buf[:min(n, readLen)]
	return res, nil
}

// waitForPath waits with exponential backoff for path to exist.
func waitForPath(ctx context.Context, path string, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = timeout
	op := func() error {
		_, err := os.Stat(path)
		if err == nil || os.IsNotExist(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
