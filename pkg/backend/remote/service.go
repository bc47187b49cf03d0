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
	"time"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"google.golang.org/grpc"
)

const serviceName = "asyncfs.FS"

type GetattrRequest struct {
	Ino uint64 `json:"ino"`
}

type AttrReply struct {
	TTL  time.Duration `json:"ttl"`
	Attr vfs.Attr      `json:"attr"`
}

type LookupRequest struct {
	Parent uint64 `json:"parent"`
	Name   string `json:"name"`
}

type EntryReply struct {
	TTL        time.Duration `json:"ttl"`
	Attr       vfs.Attr      `json:"attr"`
	Generation uint64        `json:"generation"`
}

// ReaddirRequest asks for at most Limit entries with an offset greater than
// Offset.
type ReaddirRequest struct {
	Ino    uint64 `json:"ino"`
	Fh     uint64 `json:"fh"`
	Offset int64  `json:"offset"`
	Limit  int    `json:"limit"`
}

// ReaddirReply carries a page of entries. EOF is set when the listing ended
// within the page.
type ReaddirReply struct {
	Entries []vfs.Dirent `json:"entries"`
	EOF     bool         `json:"eof"`
}

type ReadRequest struct {
	Ino    uint64  `json:"ino"`
	Fh     uint64  `json:"fh"`
	Offset int64   `json:"offset"`
	Size   uint32  `json:"size"`
	Flags  int32   `json:"flags"`
	Lock   *uint64 `json:"lock,omitempty"`
}

type ReadReply struct {
	Data []byte `json:"data"`
}

// FSServer is the server side of the asyncfs.FS service.
type FSServer interface {
	Getattr(context.Context, *GetattrRequest) (*AttrReply, error)
	Lookup(context.Context, *LookupRequest) (*EntryReply, error)
	Readdir(context.Context, *ReaddirRequest) (*ReaddirReply, error)
	Read(context.Context, *ReadRequest) (*ReadReply, error)
}

// RegisterFSServer registers srv with s.
func RegisterFSServer(s grpc.ServiceRegistrar, srv FSServer) {
	s.RegisterService(&serviceDesc, srv)
}

func method(name string) string {
	return "/" + serviceName + "/" + name
}

func getattrHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetattrRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FSServer).Getattr(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("Getattr")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FSServer).Getattr(ctx, req.(*GetattrRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func lookupHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LookupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FSServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("Lookup")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FSServer).Lookup(ctx, req.(*LookupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readdirHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReaddirRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FSServer).Readdir(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("Readdir")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FSServer).Readdir(ctx, req.(*ReaddirRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FSServer).Read(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method("Read")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FSServer).Read(ctx, req.(*ReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FSServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Getattr", Handler: getattrHandler},
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "Readdir", Handler: readdirHandler},
		{MethodName: "Read", Handler: readHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "asyncfs/fs",
}
