// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mount

import (
	"os/exec"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// forceUnmount lazily detaches the mount, leaving open files working until
// they are closed. Unprivileged processes go through fusermount.
func forceUnmount(dir string) error {
	err := unix.Unmount(dir, unix.MNT_DETACH)
	if err == nil {
		return nil
	}
	if err != unix.EPERM {
		return errors.Wrap(err, "lazy unmount")
	}
	out, err := exec.Command("fusermount", "-u", "-z", dir).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "fusermount -u -z: %s", out)
	}
	return nil
}
