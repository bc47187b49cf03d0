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

package adapter

import (
	"context"
	"io"
	"time"
	"unicode/utf8"

	"bazil.org/fuse"
	"github.com/kurafs/asyncfs/pkg/bridge"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

func fuseAttr(a vfs.Attr, ttl time.Duration) fuse.Attr {
	return fuse.Attr{
		Valid:     ttl,
		Inode:     a.Ino,
		Size:      a.Size,
		Blocks:    a.Blocks,
		Atime:     a.Atime,
		Mtime:     a.Mtime,
		Ctime:     a.Ctime,
		Crtime:    a.Crtime,
		Mode:      a.Mode(),
		Nlink:     a.Nlink,
		Uid:       a.Uid,
		Gid:       a.Gid,
		Rdev:      a.Rdev,
		Flags:     a.Flags,
		BlockSize: a.BlockSize,
	}
}

func (a *Adapter) getattr(ctx context.Context, ino uint64) (*fuse.GetattrResponse, error) {
	out, err := bridge.Run(ctx, a.exec, func(ctx context.Context) (vfs.AttrOut, error) {
		return a.fs.Getattr(ctx, ino)
	})
	if err != nil {
		return nil, err
	}
	if out.Attr.Ino == 0 {
		out.Attr.Ino = ino
	}
	return &fuse.GetattrResponse{Attr: fuseAttr(out.Attr, out.TTL)}, nil
}

func (a *Adapter) lookup(ctx context.Context, parent uint64, name string) (*fuse.LookupResponse, error) {
	// The kernel hands us raw bytes; backends only ever see text.
	if !utf8.ValidString(name) {
		return nil, vfs.InvalidName(name)
	}

	out, err := bridge.Run(ctx, a.exec, func(ctx context.Context) (vfs.EntryOut, error) {
		return a.fs.Lookup(ctx, parent, name)
	})
	if err != nil {
		return nil, err
	}
	if out.Attr.Ino == 0 {
		return nil, errors.Errorf("lookup %d/%q: backend returned identity 0", parent, name)
	}
	return &fuse.LookupResponse{
		Node:       fuse.NodeID(out.Attr.Ino),
		Generation: out.Generation,
		EntryValid: out.TTL,
		Attr:       fuseAttr(out.Attr, out.TTL),
	}, nil
}

// readdir fills a reply buffer of at most size bytes with the entries
// following offset. The stream is consumed on the worker since producing an
// entry may mean I/O. Entries that did not fit are left for the next call,
// which the kernel issues with the offset of the last entry it received.
func (a *Adapter) readdir(ctx context.Context, ino, fh uint64, offset int64, size int) ([]byte, error) {
	return bridge.Run(ctx, a.exec, func(ctx context.Context) ([]byte, error) {
		stream, err := a.fs.Readdir(ctx, ino, fh, offset)
		if err != nil {
			return nil, err
		}
		defer stream.Close()

		var buf []byte
		for {
			ent, err := stream.Next(ctx)
			if err == io.EOF {
				return buf, nil
			}
			if err != nil {
				if len(buf) > 0 {
					// Hand out what we have; resuming after the last entry
					// delivered surfaces the error on the next call.
					a.logger.Warnf("readdir %d: listing failed after offset %d: %v", ino, offset, err)
					return buf, nil
				}
				return nil, err
			}
			var ok bool
			if buf, ok = appendDirent(buf, ent, size); !ok {
				return buf, nil
			}
		}
	})
}

func (a *Adapter) read(ctx context.Context, ino, fh uint64, offset int64, size int, flags int32, lock *uint64) ([]byte, error) {
	if size < 0 {
		size = 0
	}
	data, err := bridge.Run(ctx, a.exec, func(ctx context.Context) ([]byte, error) {
		return a.fs.Read(ctx, ino, fh, offset, uint32(size), flags, lock)
	})
	if err != nil {
		return nil, err
	}
	if len(data) > size {
		data = data[:size]
	}
	return data, nil
}
