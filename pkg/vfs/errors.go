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

package vfs

import (
	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("no such node")
	ErrNotDir      = errors.New("not a directory")
	ErrNotFile     = errors.New("not a file")
	ErrInvalidName = errors.New("invalid name")
)

// NotFound reports that ino is unknown.
func NotFound(ino uint64) error {
	return errors.Wrapf(ErrNotFound, "ino %d", ino)
}

// ChildNotFound reports that parent has no child called name.
func ChildNotFound(parent uint64, name string) error {
	return errors.Wrapf(ErrNotFound, "ino %d: %q", parent, name)
}

// NotDir reports that ino is not a directory.
func NotDir(ino uint64) error {
	return errors.Wrapf(ErrNotDir, "ino %d", ino)
}

// NotFile reports that ino is not a regular file.
func NotFile(ino uint64) error {
	return errors.Wrapf(ErrNotFile, "ino %d", ino)
}

// InvalidName reports that name cannot be decoded as text.
func InvalidName(name string) error {
	return errors.Wrapf(ErrInvalidName, "%q", name)
}

// ErrorKind classifies err for logs and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotDir):
		return "not_dir"
	case errors.Is(err, ErrNotFile):
		return "not_file"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	}
	return "backend"
}
