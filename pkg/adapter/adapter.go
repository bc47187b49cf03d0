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

// Package adapter serves kernel FUSE requests from a vfs.FS.
//
// Each request is answered by Handle on the goroutine that received it. The
// four backend operations (getattr, lookup, readdir, read) go through a
// bridge.Executor so that backend I/O never runs on the dispatch goroutine;
// the dispatch goroutine blocks until the result is in and then replies.
// Every backend failure is reported to the kernel as ENOENT; the detail only
// shows up in the logs. Everything else the kernel may ask of a read-only
// filesystem is answered without consulting the backend.
package adapter

import (
	"context"
	"fmt"
	"runtime/debug"
	"syscall"
	"time"

	"bazil.org/fuse"
	"github.com/kurafs/asyncfs/pkg/bridge"
	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
)

// EROFS is returned for every request that would modify the filesystem.
const EROFS = fuse.Errno(syscall.EROFS)

// Adapter holds no per-request state; it is safe for concurrent use by any
// number of dispatch goroutines.
type Adapter struct {
	fs      vfs.FS
	exec    *bridge.Executor
	logger  *log.Logger
	metrics *metrics
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger failures are reported to.
func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithRegisterer registers the adapter's request metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Adapter) {
		a.metrics.register(reg)
	}
}

// New returns an adapter serving fs, running backend operations on exec.
func New(fs vfs.FS, exec *bridge.Executor, opts ...Option) *Adapter {
	a := &Adapter{
		fs:      fs,
		exec:    exec,
		logger:  log.Discarder(),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle answers req. It always replies exactly once, except to requests
// that take no reply (forget). A panic while serving req is contained here
// and answered with EIO.
func (a *Adapter) Handle(ctx context.Context, req fuse.Request) {
	op := opName(req)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Errorf("%s: panic serving %v: %v\n%s", op, req, r, debug.Stack())
			req.RespondError(fuse.EIO)
			a.metrics.observe(op, "panic", start)
		}
	}()

	err := a.dispatch(ctx, req)
	a.metrics.observe(op, vfs.ErrorKind(err), start)
}

// dispatch replies to req and returns the backend error, if any, for the
// books. Errors sent to the kernel as something other than a backend failure
// (EROFS, ENOSYS) are not returned.
func (a *Adapter) dispatch(ctx context.Context, req fuse.Request) error {
	switch r := req.(type) {
	case *fuse.GetattrRequest:
		resp, err := a.getattr(ctx, uint64(r.Node))
		if err != nil {
			a.fail(r, fmt.Sprintf("getattr %d", r.Node), err)
			return err
		}
		r.Respond(resp)

	case *fuse.LookupRequest:
		resp, err := a.lookup(ctx, uint64(r.Node), r.Name)
		if err != nil {
			a.fail(r, fmt.Sprintf("lookup %d/%q", r.Node, r.Name), err)
			return err
		}
		r.Respond(resp)

	case *fuse.ReadRequest:
		if r.Dir {
			data, err := a.readdir(ctx, uint64(r.Node), uint64(r.Handle), r.Offset, r.Size)
			if err != nil {
				a.fail(r, fmt.Sprintf("readdir %d@%d", r.Node, r.Offset), err)
				return err
			}
			r.Respond(&fuse.ReadResponse{Data: data})
			return nil
		}

		var lock *uint64
		if r.Flags&fuse.ReadLockOwner != 0 {
			owner := uint64(r.LockOwner)
			lock = &owner
		}
		data, err := a.read(ctx, uint64(r.Node), uint64(r.Handle), r.Offset, r.Size, int32(r.FileFlags), lock)
		if err != nil {
			a.fail(r, fmt.Sprintf("read %d@%d", r.Node, r.Offset), err)
			return err
		}
		r.Respond(&fuse.ReadResponse{Data: data})

	case *fuse.OpenRequest:
		// Handles are stateless; backends receive 0.
		if !r.Dir && !r.Flags.IsReadOnly() {
			r.RespondError(EROFS)
			return nil
		}
		r.Respond(&fuse.OpenResponse{})

	case *fuse.StatfsRequest:
		r.Respond(&fuse.StatfsResponse{Bsize: 4096, Frsize: 4096, Namelen: 255})

	case *fuse.ReleaseRequest:
		r.Respond()
	case *fuse.FlushRequest:
		r.Respond()
	case *fuse.FsyncRequest:
		r.Respond()
	case *fuse.AccessRequest:
		r.Respond()
	case *fuse.ForgetRequest:
		// Identities are never released, there is nothing to forget.
		r.Respond()
	case *fuse.InterruptRequest:
		r.Respond()
	case *fuse.DestroyRequest:
		r.Respond()

	case *fuse.SetattrRequest, *fuse.WriteRequest, *fuse.CreateRequest,
		*fuse.MkdirRequest, *fuse.MknodRequest, *fuse.RemoveRequest,
		*fuse.RenameRequest, *fuse.SymlinkRequest, *fuse.LinkRequest,
		*fuse.SetxattrRequest, *fuse.RemovexattrRequest:
		req.RespondError(EROFS)

	default:
		// getxattr, listxattr, readlink and anything newer than us.
		req.RespondError(fuse.ENOSYS)
	}
	return nil
}

// fail replies ENOENT and logs err. Missing entries are routine (shells probe
// for files all the time) and only logged at debug level.
func (a *Adapter) fail(req fuse.Request, what string, err error) {
	switch kind := vfs.ErrorKind(err); kind {
	case "not_found", "invalid_name":
		a.logger.Debugf("%s: %v", what, err)
	default:
		a.logger.Warnf("%s: %s: %v", what, kind, err)
	}
	req.RespondError(fuse.ENOENT)
}

func opName(req fuse.Request) string {
	switch r := req.(type) {
	case *fuse.GetattrRequest:
		return "getattr"
	case *fuse.LookupRequest:
		return "lookup"
	case *fuse.ReadRequest:
		if r.Dir {
			return "readdir"
		}
		return "read"
	case *fuse.OpenRequest:
		if r.Dir {
			return "opendir"
		}
		return "open"
	case *fuse.StatfsRequest:
		return "statfs"
	case *fuse.ReleaseRequest:
		return "release"
	case *fuse.ForgetRequest:
		return "forget"
	}
	return "other"
}
