// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicWriteFile replaces path with data. The bytes land in a sibling temp
// file first and only become visible under path after a successful rename,
// so an interrupted export never leaves a half-written transcript behind.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	name := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(name)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	// RELIABILITY: flush before rename or a crash can expose an empty file.
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	if err := os.Chmod(name, perm); err != nil {
		return errors.Wrapf(err, "chmod %s", name)
	}
	if err := os.Rename(name, target); err != nil {
		return errors.Wrapf(err, "rename onto %s", target)
	}

	committed = true
	return nil
}
