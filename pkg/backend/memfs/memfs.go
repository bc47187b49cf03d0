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

// Package memfs is an in-memory vfs.FS. Directory children are kept in a
// B-tree ordered by name, which is also the listing order.
package memfs

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/kurafs/asyncfs/pkg/inode"
	"github.com/kurafs/asyncfs/pkg/streaming"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

const btreeDegree = 8

type child struct {
	name string
	ino  uint64
}

func (c child) Less(than btree.Item) bool {
	return c.name < than.(child).name
}

type node struct {
	attr     vfs.Attr
	parent   uint64
	data     []byte
	children *btree.BTree
}

// FS is safe for concurrent use. It may be populated while mounted, but a
// directory listing interleaved with insertions into the same directory can
// skip or repeat entries.
type FS struct {
	mu    sync.RWMutex
	dir   *inode.Directory
	nodes map[uint64]*node

	ttl      time.Duration
	uid, gid uint32
}

var _ vfs.FS = (*FS)(nil)

// Option configures an FS.
type Option func(*FS)

// WithTTL sets the attribute TTL reported to the kernel.
func WithTTL(ttl time.Duration) Option {
	return func(f *FS) {
		f.ttl = ttl
	}
}

// WithOwner sets the owner of every node.
func WithOwner(uid, gid uint32) Option {
	return func(f *FS) {
		f.uid, f.gid = uid, gid
	}
}

// New returns an FS holding an empty root directory.
func New(opts ...Option) *FS {
	f := &FS{
		dir:   inode.NewDirectory("/"),
		nodes: make(map[uint64]*node),
		ttl:   time.Second,
		uid:   uint32(os.Getuid()),
		gid:   uint32(os.Getgid()),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.nodes[vfs.RootIno] = f.newNode(vfs.RootIno, vfs.RootIno, vfs.KindDir, 0755)
	return f
}

func (f *FS) newNode(ino, parent uint64, kind vfs.Kind, perm os.FileMode) *node {
	now := time.Now()
	n := &node{
		parent: parent,
		attr: vfs.Attr{
			Ino:       ino,
			Kind:      kind,
			Perm:      perm & os.ModePerm,
			Nlink:     1,
			Uid:       f.uid,
			Gid:       f.gid,
			Atime:     now,
			Mtime:     now,
			Ctime:     now,
			Crtime:    now,
			BlockSize: 512,
		},
	}
	if kind == vfs.KindDir {
		n.attr.Nlink = 2
		n.children = btree.New(btreeDegree)
	}
	return n
}

func split(p string) ([]string, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		return nil, nil
	}
	parts := strings.Split(p[1:], "/")
	for _, part := range parts {
		if !vfs.ValidName(part) {
			return nil, vfs.InvalidName(part)
		}
	}
	return parts, nil
}

// mkdirAll creates the directories along parts and returns the identity of
// the last one. f.mu must be held for writing.
func (f *FS) mkdirAll(parts []string, perm os.FileMode) (uint64, error) {
	ino, key := vfs.RootIno, "/"
	for _, name := range parts {
		parent := f.nodes[ino]
		key = path.Join(key, name)
		if item := parent.children.Get(child{name: name}); item != nil {
			ino = item.(child).ino
			if f.nodes[ino].attr.Kind != vfs.KindDir {
				return 0, errors.Wrapf(vfs.ErrNotDir, "mkdir %s", key)
			}
			continue
		}
		next := f.dir.Resolve(key)
		f.nodes[next] = f.newNode(next, ino, vfs.KindDir, perm)
		parent.children.ReplaceOrInsert(child{name: name, ino: next})
		parent.attr.Nlink++
		parent.attr.Mtime = time.Now()
		ino = next
	}
	return ino, nil
}

// Mkdir creates the directory p along with any missing parents and returns
// its identity.
func (f *FS) Mkdir(p string, perm os.FileMode) (uint64, error) {
	parts, err := split(p)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mkdirAll(parts, perm)
}

// WriteFile creates or replaces the file p, creating missing parent
// directories with mode 0755, and returns its identity.
func (f *FS) WriteFile(p string, data []byte, perm os.FileMode) (uint64, error) {
	parts, err := split(p)
	if err != nil {
		return 0, err
	}
	if len(parts) == 0 {
		return 0, errors.Wrap(vfs.ErrNotFile, "write /")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir, err := f.mkdirAll(parts[:len(parts)-1], 0755)
	if err != nil {
		return 0, err
	}
	name := parts[len(parts)-1]
	parent := f.nodes[dir]

	var n *node
	if item := parent.children.Get(child{name: name}); item != nil {
		n = f.nodes[item.(child).ino]
		if n.attr.Kind == vfs.KindDir {
			return 0, errors.Wrapf(vfs.ErrNotFile, "write %s", p)
		}
	} else {
		ino := f.dir.Resolve("/" + strings.Join(parts, "/"))
		n = f.newNode(ino, dir, vfs.KindFile, perm)
		f.nodes[ino] = n
		parent.children.ReplaceOrInsert(child{name: name, ino: ino})
	}

	n.data = append([]byte(nil), data...)
	n.attr.Size = uint64(len(data))
	n.attr.Blocks = vfs.Blocks(n.attr.Size)
	n.attr.Perm = perm & os.ModePerm
	n.attr.Mtime = time.Now()
	n.attr.Ctime = n.attr.Mtime
	return n.attr.Ino, nil
}

func (f *FS) get(ino uint64) (*node, error) {
	n, ok := f.nodes[ino]
	if !ok {
		return nil, vfs.NotFound(ino)
	}
	return n, nil
}

func (f *FS) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.get(ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	return vfs.AttrOut{TTL: f.ttl, Attr: n.attr}, nil
}

func (f *FS) Lookup(ctx context.Context, parent uint64, name string) (vfs.EntryOut, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir, err := f.get(parent)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	if dir.attr.Kind != vfs.KindDir {
		return vfs.EntryOut{}, vfs.NotDir(parent)
	}

	var ino uint64
	switch name {
	case ".":
		ino = parent
	case "..":
		ino = dir.parent
	default:
		if !vfs.ValidName(name) {
			return vfs.EntryOut{}, vfs.InvalidName(name)
		}
		item := dir.children.Get(child{name: name})
		if item == nil {
			return vfs.EntryOut{}, vfs.ChildNotFound(parent, name)
		}
		ino = item.(child).ino
	}
	return vfs.EntryOut{TTL: f.ttl, Attr: f.nodes[ino].attr, Generation: f.dir.Generation()}, nil
}

func (f *FS) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir, err := f.get(ino)
	if err != nil {
		return nil, err
	}
	if dir.attr.Kind != vfs.KindDir {
		return nil, vfs.NotDir(ino)
	}

	l := vfs.NewListing(ino, dir.parent)
	dir.children.Ascend(func(item btree.Item) bool {
		c := item.(child)
		l.Add(c.ino, f.nodes[c.ino].attr.Kind, c.name)
		return true
	})
	return l.Stream(offset), nil
}

func (f *FS) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.get(ino)
	if err != nil {
		return nil, err
	}
	if n.attr.Kind == vfs.KindDir {
		return nil, vfs.NotFile(ino)
	}
	// File contents are replaced, never modified in place, so handing out a
	// sub-slice is safe.
	return streaming.Slice(n.data, offset, int(size)), nil
}
