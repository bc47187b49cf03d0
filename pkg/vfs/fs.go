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
	"context"
	"io"
	"unicode/utf8"
)

// FS is implemented by every backend.
//
// Errors are reported with the sentinels of this package (ErrNotFound,
// ErrNotDir, ErrNotFile, ErrInvalidName), possibly wrapped, or with any
// backend specific error. The adapter logs the detail and answers the kernel
// with a generic "no such entry" status either way.
type FS interface {
	// Getattr returns the attributes of ino. It fails with ErrNotFound for an
	// unknown identity.
	Getattr(ctx context.Context, ino uint64) (AttrOut, error)

	// Lookup resolves the child name of the directory parent. It fails with
	// ErrNotFound if there is no such child and with ErrInvalidName if name
	// is not valid text.
	Lookup(ctx context.Context, parent uint64, name string) (EntryOut, error)

	// Readdir lists the directory ino, yielding exactly the entries whose
	// offset is greater than offset, in the order of a fresh listing. It
	// fails with ErrNotDir if ino is not a directory.
	Readdir(ctx context.Context, ino, fh uint64, offset int64) (DirStream, error)

	// Read returns at most size bytes of ino starting at offset. A short
	// result marks the end of the file and is not an error. It fails with
	// ErrNotFound for unknown identities and ErrNotFile for directories.
	// lock is the opaque lock owner token, nil if none was supplied.
	Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error)
}

// DirStream is a lazily produced directory listing. Next returns io.EOF once
// the listing is exhausted. Close releases whatever the stream holds and is
// safe to call at any point.
type DirStream interface {
	Next(ctx context.Context) (Dirent, error)
	Close() error
}

// ReadAll drains s and closes it.
func ReadAll(ctx context.Context, s DirStream) ([]Dirent, error) {
	defer s.Close()

	var entries []Dirent
	for {
		ent, err := s.Next(ctx)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, ent)
	}
}

// ValidName reports whether name can be used as a single path component.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if !utf8.ValidString(name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return false
		}
	}
	return true
}
