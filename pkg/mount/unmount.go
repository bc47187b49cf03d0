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
	"time"

	"bazil.org/fuse"
	"github.com/hashicorp/go-multierror"
)

const (
	unmountAttempts = 3
	unmountBackoff  = 100 * time.Millisecond
)

// Unmount releases the mount at dir. A busy mount is retried a few times
// before being detached forcefully.
func Unmount(dir string) error {
	var result *multierror.Error
	for i := 0; i < unmountAttempts; i++ {
		err := fuse.Unmount(dir)
		if err == nil {
			return nil
		}
		result = multierror.Append(result, err)
		time.Sleep(unmountBackoff)
	}
	if err := forceUnmount(dir); err != nil {
		result = multierror.Append(result, err)
		return &MountError{Op: "unmount", Mountpoint: dir, Err: result.ErrorOrNil()}
	}
	return nil
}
