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

package remote

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultPageSize = 256

// Client is a vfs.FS backed by a remote asyncfs.FS service.
type Client struct {
	conn     grpc.ClientConnInterface
	closer   io.Closer
	pageSize int
}

var _ vfs.FS = (*Client)(nil)

// Dial connects to the service at addr. Connections are plaintext unless opts
// say otherwise.
func Dial(addr string, pageSize int, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}
	c := NewClient(conn, pageSize)
	c.closer = conn
	return c, nil
}

// NewClient uses an existing connection, which the caller keeps ownership of.
func NewClient(conn grpc.ClientConnInterface, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{conn: conn, pageSize: pageSize}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) invoke(ctx context.Context, name string, req, reply interface{}) error {
	err := c.conn.Invoke(ctx, method(name), req, reply, grpc.CallContentSubtype(codecName))
	return fromStatus(err)
}

func (c *Client) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	var reply AttrReply
	if err := c.invoke(ctx, "Getattr", &GetattrRequest{Ino: ino}, &reply); err != nil {
		return vfs.AttrOut{}, err
	}
	return vfs.AttrOut{TTL: reply.TTL, Attr: reply.Attr}, nil
}

func (c *Client) Lookup(ctx context.Context, parent uint64, name string) (vfs.EntryOut, error) {
	// JSON cannot carry arbitrary bytes in a string.
	if !utf8.ValidString(name) {
		return vfs.EntryOut{}, vfs.InvalidName(name)
	}
	var reply EntryReply
	if err := c.invoke(ctx, "Lookup", &LookupRequest{Parent: parent, Name: name}, &reply); err != nil {
		return vfs.EntryOut{}, err
	}
	return vfs.EntryOut{TTL: reply.TTL, Attr: reply.Attr, Generation: reply.Generation}, nil
}

func (c *Client) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	s := &dirStream{c: c, ino: ino, fh: fh, offset: offset}
	// The first page is fetched eagerly so that errors about ino itself
	// surface here rather than on the first Next.
	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	var reply ReadReply
	req := &ReadRequest{Ino: ino, Fh: fh, Offset: offset, Size: size, Flags: flags, Lock: lock}
	if err := c.invoke(ctx, "Read", req, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}

type dirStream struct {
	c      *Client
	ino    uint64
	fh     uint64
	offset int64
	buf    []vfs.Dirent
	eof    bool
}

func (s *dirStream) fetch(ctx context.Context) error {
	var reply ReaddirReply
	req := &ReaddirRequest{Ino: s.ino, Fh: s.fh, Offset: s.offset, Limit: s.c.pageSize}
	if err := s.c.invoke(ctx, "Readdir", req, &reply); err != nil {
		return err
	}
	s.buf = reply.Entries
	s.eof = reply.EOF || len(reply.Entries) == 0
	return nil
}

func (s *dirStream) Next(ctx context.Context) (vfs.Dirent, error) {
	if len(s.buf) == 0 {
		if s.eof {
			return vfs.Dirent{}, io.EOF
		}
		if err := s.fetch(ctx); err != nil {
			return vfs.Dirent{}, err
		}
		if len(s.buf) == 0 {
			return vfs.Dirent{}, io.EOF
		}
	}
	ent := s.buf[0]
	s.buf = s.buf[1:]
	s.offset = ent.Offset
	return ent, nil
}

func (s *dirStream) Close() error {
	s.buf = nil
	s.eof = true
	return nil
}
