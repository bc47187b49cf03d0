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

// Package remote serves a vfs.FS over gRPC and consumes one from another
// process. Messages are JSON encoded; the service is asyncfs.FS.
package remote

import (
	"context"
	"io"

	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/kurafs/asyncfs/pkg/vfs"
)

// MaxPage bounds the number of entries in a single Readdir reply.
const MaxPage = 1024

type Server struct {
	fs     vfs.FS
	logger *log.Logger
}

var _ FSServer = (*Server)(nil)

func NewServer(fs vfs.FS, logger *log.Logger) *Server {
	return &Server{fs: fs, logger: logger}
}

func (s *Server) reply(op string, err error) error {
	if err == nil {
		return nil
	}
	if vfs.ErrorKind(err) == "backend" {
		s.logger.Warnf("%s: %v", op, err)
	} else {
		s.logger.Debugf("%s: %v", op, err)
	}
	return toStatus(err)
}

func (s *Server) Getattr(ctx context.Context, req *GetattrRequest) (*AttrReply, error) {
	out, err := s.fs.Getattr(ctx, req.Ino)
	if err != nil {
		return nil, s.reply("getattr", err)
	}
	return &AttrReply{TTL: out.TTL, Attr: out.Attr}, nil
}

func (s *Server) Lookup(ctx context.Context, req *LookupRequest) (*EntryReply, error) {
	out, err := s.fs.Lookup(ctx, req.Parent, req.Name)
	if err != nil {
		return nil, s.reply("lookup", err)
	}
	return &EntryReply{TTL: out.TTL, Attr: out.Attr, Generation: out.Generation}, nil
}

func (s *Server) Readdir(ctx context.Context, req *ReaddirRequest) (*ReaddirReply, error) {
	limit := req.Limit
	if limit <= 0 || limit > MaxPage {
		limit = MaxPage
	}

	stream, err := s.fs.Readdir(ctx, req.Ino, req.Fh, req.Offset)
	if err != nil {
		return nil, s.reply("readdir", err)
	}
	defer stream.Close()

	reply := &ReaddirReply{}
	for len(reply.Entries) < limit {
		ent, err := stream.Next(ctx)
		if err == io.EOF {
			reply.EOF = true
			break
		}
		if err != nil {
			return nil, s.reply("readdir", err)
		}
		reply.Entries = append(reply.Entries, ent)
	}
	return reply, nil
}

func (s *Server) Read(ctx context.Context, req *ReadRequest) (*ReadReply, error) {
	data, err := s.fs.Read(ctx, req.Ino, req.Fh, req.Offset, req.Size, req.Flags, req.Lock)
	if err != nil {
		return nil, s.reply("read", err)
	}
	if len(data) > int(req.Size) {
		data = data[:req.Size]
	}
	return &ReadReply{Data: data}, nil
}
