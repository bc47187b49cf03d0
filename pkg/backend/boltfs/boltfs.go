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

// Package boltfs exposes a BoltDB database as a read-only vfs.FS. Buckets
// are directories and keys within them are files holding their values. The
// root of the database holds buckets only.
package boltfs

import (
	"bytes"
	"context"
	"os"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/kurafs/asyncfs/pkg/inode"
	"github.com/kurafs/asyncfs/pkg/streaming"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

type FS struct {
	db    *bolt.DB
	dir   *inode.Directory
	ttl   time.Duration
	mtime time.Time

	uid, gid uint32
}

var _ vfs.FS = (*FS)(nil)

// Open opens the database at path read-only, waiting at most timeout for the
// file lock.
func Open(path string, timeout, ttl time.Duration) (*FS, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true, Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	f := New(db, ttl)
	f.mtime = fi.ModTime()
	return f, nil
}

// New serves an already open database.
func New(db *bolt.DB, ttl time.Duration) *FS {
	return &FS{
		db:    db,
		dir:   inode.NewDirectory(""),
		ttl:   ttl,
		mtime: time.Now(),
		uid:   uint32(os.Getuid()),
		gid:   uint32(os.Getgid()),
	}
}

func (f *FS) Close() error {
	return f.db.Close()
}

// node is what a path key designates within a transaction.
type node struct {
	bucket *bolt.Bucket // nil for the root and for files
	value  []byte       // nil for directories
	dir    bool
}

// cursor returns a cursor over the children of n.
func cursor(tx *bolt.Tx, n node) *bolt.Cursor {
	if n.bucket == nil {
		return tx.Cursor()
	}
	return n.bucket.Cursor()
}

func locate(tx *bolt.Tx, key string) (node, bool) {
	cur := node{dir: true}
	if key == "" {
		return cur, true
	}
	for _, name := range strings.Split(key, "/") {
		if !cur.dir {
			return node{}, false
		}
		raw, ok := Key(name)
		if !ok {
			return node{}, false
		}
		k, v := cursor(tx, cur).Seek(raw)
		if k == nil || !bytes.Equal(k, raw) {
			return node{}, false
		}
		if v == nil {
			if cur.bucket == nil {
				cur = node{bucket: tx.Bucket(raw), dir: true}
			} else {
				cur = node{bucket: cur.bucket.Bucket(raw), dir: true}
			}
			continue
		}
		cur = node{value: v}
	}
	return cur, true
}

func (f *FS) attr(ino uint64, n node) vfs.Attr {
	a := vfs.Attr{
		Ino:       ino,
		Atime:     f.mtime,
		Mtime:     f.mtime,
		Ctime:     f.mtime,
		Crtime:    f.mtime,
		Uid:       f.uid,
		Gid:       f.gid,
		BlockSize: 4096,
	}
	if n.dir {
		a.Kind, a.Perm, a.Nlink = vfs.KindDir, 0555, 2
		return a
	}
	a.Kind, a.Perm, a.Nlink = vfs.KindFile, 0444, 1
	a.Size = uint64(len(n.value))
	a.Blocks = vfs.Blocks(a.Size)
	return a
}

func (f *FS) key(ino uint64) (string, error) {
	key, ok := f.dir.Key(ino)
	if !ok {
		return "", vfs.NotFound(ino)
	}
	return key, nil
}

func (f *FS) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	key, err := f.key(ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	var out vfs.AttrOut
	err = f.db.View(func(tx *bolt.Tx) error {
		n, ok := locate(tx, key)
		if !ok {
			return vfs.NotFound(ino)
		}
		out = vfs.AttrOut{TTL: f.ttl, Attr: f.attr(ino, n)}
		return nil
	})
	return out, err
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

	var out vfs.EntryOut
	err = f.db.View(func(tx *bolt.Tx) error {
		p, ok := locate(tx, dir)
		if !ok {
			return vfs.NotFound(parent)
		}
		if !p.dir {
			return vfs.NotDir(parent)
		}
		n, ok := locate(tx, key)
		if !ok {
			return vfs.ChildNotFound(parent, name)
		}
		out = vfs.EntryOut{
			TTL:        f.ttl,
			Attr:       f.attr(f.dir.Resolve(key), n),
			Generation: f.dir.Generation(),
		}
		return nil
	})
	return out, err
}

func (f *FS) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	key, err := f.key(ino)
	if err != nil {
		return nil, err
	}

	var l *vfs.Listing
	err = f.db.View(func(tx *bolt.Tx) error {
		n, ok := locate(tx, key)
		if !ok {
			return vfs.NotFound(ino)
		}
		if !n.dir {
			return vfs.NotDir(ino)
		}

		parent := vfs.RootIno
		if key != "" {
			parent = f.dir.Resolve(inode.Parent(key))
		}
		l = vfs.NewListing(ino, parent)

		// Keys are iterated in byte order, which is stable across calls.
		c := cursor(tx, n)
		for k, v := c.First(); k != nil; k, v = c.Next() {
			name := Name(k)
			kind := vfs.KindFile
			if v == nil {
				kind = vfs.KindDir
			}
			l.Add(f.dir.Resolve(inode.Join(key, name)), kind, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.Stream(offset), nil
}

func (f *FS) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	key, err := f.key(ino)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = f.db.View(func(tx *bolt.Tx) error {
		n, ok := locate(tx, key)
		if !ok {
			return vfs.NotFound(ino)
		}
		if n.dir {
			return vfs.NotFile(ino)
		}
		// Values are only valid for the life of the transaction.
		data = append([]byte(nil), streaming.Slice(n.value, offset, int(size))...)
		return nil
	})
	return data, err
}
