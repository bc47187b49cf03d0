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

// Package inode maps backend path keys to stable node identities.
//
// A Directory is an arena: path keys are appended to a slice and the
// identity of a key is its position plus one, so the root key always gets
// identity 1. Keys are never removed, which rules out identity reuse and
// collisions at the cost of memory that grows with the number of distinct
// keys a session has seen.
package inode

import (
	"sync"
	"time"

	"github.com/kurafs/asyncfs/pkg/vfs"
)

// Directory is safe for concurrent use. Resolving a key that is already
// known only takes a read lock; allocating a new identity takes the write
// lock.
type Directory struct {
	mu    sync.RWMutex
	keys  []string
	index map[string]uint64

	generation uint64
}

// NewDirectory returns a directory holding only root, which is assigned
// vfs.RootIno.
func NewDirectory(root string) *Directory {
	return &Directory{
		keys:       []string{root},
		index:      map[string]uint64{root: vfs.RootIno},
		generation: uint64(time.Now().UnixNano()),
	}
}

// Resolve returns the identity of key, allocating one if key has not been
// seen before.
func (d *Directory) Resolve(key string) uint64 {
	d.mu.RLock()
	ino, ok := d.index[key]
	d.mu.RUnlock()
	if ok {
		return ino
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Somebody may have allocated it between the two locks.
	if ino, ok := d.index[key]; ok {
		return ino
	}
	d.keys = append(d.keys, key)
	ino = uint64(len(d.keys)) - 1 + vfs.RootIno
	d.index[key] = ino
	return ino
}

// Lookup returns the identity of key without allocating one.
func (d *Directory) Lookup(key string) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ino, ok := d.index[key]
	return ino, ok
}

// Key returns the path key ino was allocated for.
func (d *Directory) Key(ino uint64) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if ino < vfs.RootIno || ino-vfs.RootIno >= uint64(len(d.keys)) {
		return "", false
	}
	return d.keys[ino-vfs.RootIno], true
}

// Root returns the root key.
func (d *Directory) Root() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.keys[0]
}

// Len returns the number of identities allocated, root included.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.keys)
}

// Generation is the generation number reported for every identity of this
// directory. Identities are never reused within a directory, so a single
// value per directory suffices; it differs between directories so that
// identities handed out by an earlier backend instance are not confused with
// the current ones.
func (d *Directory) Generation() uint64 {
	return d.generation
}
