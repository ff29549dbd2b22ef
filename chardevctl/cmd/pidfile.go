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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WritePidFile writes pid to path atomically, by renaming a temporary file in
// the same directory over it. Paths that exist but are not regular files
// (e.g. a FIFO a supervisor reads from) are written in place.
func WritePidFile(path string, pid int) error {
	pidStr := []byte(strconv.Itoa(pid))

	if st, err := os.Stat(path); err == nil && !st.Mode().IsRegular() {
		if err := os.WriteFile(path, pidStr, 0644); err != nil {
			return fmt.Errorf("failed to write pid file %s: %w", path, err)
		}
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat file %s failed: %w", path, err)
	}

	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "pid-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp pid file in dir %s: %w", dir, err)
	}
	tempName := tempFile.Name()
	renamed := false
	defer func() {
		_ = tempFile.Close()
		if !renamed {
			_ = os.Remove(tempName)
		}
	}()

	if err := tempFile.Chmod(0644); err != nil {
		return fmt.Errorf("failed to chmod pid file %s: %w", tempName, err)
	}
	if _, err := tempFile.Write(pidStr); err != nil {
		return fmt.Errorf("failed to write pid file %s: %w", tempName, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp pid file %s: %w", tempName, err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("failed to rename temp pid file %s -> %s: %w", tempName, path, err)
	}
	renamed = true
	return nil
}

// readPidFile returns the pid stored at path.
func readPidFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return pid, nil
}
