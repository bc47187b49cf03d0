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

import "fmt"

// MountError reports a failure to establish or release a mount.
type MountError struct {
	Op         string // "mount", "options" or "unmount"
	Mountpoint string
	Err        error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Mountpoint, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the mount error.
func (e *MountError) Cause() error { return e.Err }
