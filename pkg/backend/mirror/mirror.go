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

// Package mirror exposes a local directory tree as a read-only vfs.FS.
//
// Path keys are slash separated paths relative to the mirrored root, the
// root itself being the empty key. Symbolic links are reported as such and
// never followed.
package mirror

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kurafs/asyncfs/pkg/inode"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type FS struct {
	root string
	dir  *inode.Directory
	ttl  time.Duration
}

var _ vfs.FS = (*FS)(nil)

// New mirrors the directory at root.
func New(root string, ttl time.Duration) (*FS, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("mirror: %s is not a directory", root)
	}
	return &FS{root: root, dir: inode.NewDirectory(""), ttl: ttl}, nil
}

func (f *FS) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *FS) key(ino uint64) (string, error) {
	key, ok := f.dir.Key(ino)
	if !ok {
		return "", vfs.NotFound(ino)
	}
	return key, nil
}

func timespec(ts unix.Timespec) time.Time {
	return time.Unix(ts.Unix())
}

func (f *FS) stat(key string, ino uint64) (vfs.Attr, error) {
	var st unix.Stat_t
	if err := unix.Lstat(f.path(key), &st); err != nil {
		if err == unix.ENOENT {
			return vfs.Attr{}, errors.Wrapf(vfs.ErrNotFound, "lstat %s", key)
		}
		return vfs.Attr{}, errors.Wrapf(err, "lstat %s", key)
	}

	mode := uint32(st.Mode)
	return vfs.Attr{
		Ino:       ino,
		Size:      uint64(st.Size),
		Blocks:    uint64(st.Blocks),
		Atime:     atime(&st),
		Mtime:     mtime(&st),
		Ctime:     ctime(&st),
		Kind:      kind(mode),
		Perm:      os.FileMode(mode & 0777),
		Nlink:     uint32(st.Nlink),
		Uid:       st.Uid,
		Gid:       st.Gid,
		Rdev:      uint32(st.Rdev),
		BlockSize: uint32(st.Blksize),
	}, nil
}

func kind(mode uint32) vfs.Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return vfs.KindDir
	case unix.S_IFLNK:
		return vfs.KindSymlink
	case unix.S_IFBLK:
		return vfs.KindBlockDevice
	case unix.S_IFCHR:
		return vfs.KindCharDevice
	case unix.S_IFIFO:
		return vfs.KindNamedPipe
	case unix.S_IFSOCK:
		return vfs.KindSocket
	}
	return vfs.KindFile
}

func (f *FS) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	key, err := f.key(ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	attr, err := f.stat(key, ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	return vfs.AttrOut{TTL: f.ttl, Attr: attr}, nil
}

func (f *FS) Lookup(ctx context.Context, parent uint64, name string) (vfs.EntryOut, error) {
	dir, err := f.key(parent)
	if err != nil {
		return vfs.EntryOut{}, err
	}

	var key string
	switch name {
	case ".":
		key = dir
	case "..":
		key = inode.Parent(dir)
	default:
		if !vfs.ValidName(name) {
			return vfs.EntryOut{}, vfs.InvalidName(name)
		}
		key = inode.Join(dir, name)
	}

	// Stat before resolving so that misses do not grow the directory.
	attr, err := f.stat(key, 0)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	attr.Ino = f.dir.Resolve(key)
	return vfs.EntryOut{TTL: f.ttl, Attr: attr, Generation: f.dir.Generation()}, nil
}

func (f *FS) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	key, err := f.key(ino)
	if err != nil {
		return nil, err
	}
	attr, err := f.stat(key, ino)
	if err != nil {
		return nil, err
	}
	if attr.Kind != vfs.KindDir {
		return nil, vfs.NotDir(ino)
	}

	// os.ReadDir sorts by name, which keeps offsets stable across calls.
	entries, err := os.ReadDir(f.path(key))
	if err != nil {
		return nil, errors.Wrapf(err, "readdir %s", key)
	}
	parent := vfs.RootIno
	if key != "" {
		parent = f.dir.Resolve(inode.Parent(key))
	}
	l := vfs.NewListing(ino, parent)
	for _, ent := range entries {
		if !vfs.ValidName(ent.Name()) {
			// Not valid UTF-8, so it could never be looked up.
			continue
		}
		child := inode.Join(key, ent.Name())
		l.Add(f.dir.Resolve(child), vfs.KindOf(ent.Type()), ent.Name())
	}
	return l.Stream(offset), nil
}

func (f *FS) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	key, err := f.key(ino)
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(vfs.ErrNotFound, "open %s", key)
		}
		return nil, errors.Wrapf(err, "open %s", key)
	}
	defer fd.Close()

	fi, err := fd.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", key)
	}
	if fi.IsDir() {
		return nil, vfs.NotFile(ino)
	}

	buf := make([]byte, size)
	n, err := fd.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %s@%d", key, offset)
	}
	return buf[:n], nil
}
