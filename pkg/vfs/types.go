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
	"os"
	"time"
)

// RootIno is the identity of the root directory.
const RootIno uint64 = 1

// Kind is the type of a filesystem node.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindBlockDevice
	KindCharDevice
	KindNamedPipe
	KindSocket
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindBlockDevice:
		return "block-device"
	case KindCharDevice:
		return "char-device"
	case KindNamedPipe:
		return "named-pipe"
	case KindSocket:
		return "socket"
	}
	return "unknown"
}

// KindOf returns the Kind described by the type bits of mode.
func KindOf(mode os.FileMode) Kind {
	switch {
	case mode&os.ModeDir != 0:
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode&os.ModeNamedPipe != 0:
		return KindNamedPipe
	case mode&os.ModeSocket != 0:
		return KindSocket
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		return KindCharDevice
	case mode&os.ModeDevice != 0:
		return KindBlockDevice
	}
	return KindFile
}

// Mode returns the type bits of os.FileMode for k.
func (k Kind) Mode() os.FileMode {
	switch k {
	case KindDir:
		return os.ModeDir
	case KindSymlink:
		return os.ModeSymlink
	case KindBlockDevice:
		return os.ModeDevice
	case KindCharDevice:
		return os.ModeDevice | os.ModeCharDevice
	case KindNamedPipe:
		return os.ModeNamedPipe
	case KindSocket:
		return os.ModeSocket
	}
	return 0
}

// Attr is the metadata of a node. Perm only carries permission bits; the
// node type lives in Kind.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64 // in 512 byte units
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Crtime    time.Time
	Kind      Kind
	Perm      os.FileMode
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Flags     uint32
	BlockSize uint32
}

// Mode combines Kind and Perm into a single os.FileMode.
func (a Attr) Mode() os.FileMode {
	return a.Kind.Mode() | a.Perm&os.ModePerm
}

// AttrOut is the result of Getattr: the node's metadata and how long the
// kernel may trust it.
type AttrOut struct {
	TTL  time.Duration
	Attr Attr
}

// EntryOut is the result of Lookup. Generation distinguishes distinct nodes
// that were handed the same identity over time.
type EntryOut struct {
	TTL        time.Duration
	Attr       Attr
	Generation uint64
}

// Dirent is one row of a directory listing. Offset is the resume cursor
// that yields the entries following this one.
type Dirent struct {
	Ino    uint64
	Offset int64
	Kind   Kind
	Name   string
}

// Blocks returns the number of 512 byte blocks needed for size bytes.
func Blocks(size uint64) uint64 {
	return (size + 511) / 512
}
