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

// Package mount owns the lifecycle of a mounted asyncfs filesystem.
//
// Begin mounts a backend and starts serving it right away; it hands back a
// serve function that waits for the session to end and a shutdown trigger.
// The trigger and the serve loop only communicate through a one slot
// channel: the first trigger starts the graceful shutdown, any further ones
// find the slot taken (or nobody listening) and return immediately.
//
// Shutdown proceeds as follows: new requests are refused, the OS is asked to
// unmount, in-flight requests run to completion, the kernel connection is
// closed and serve returns.
package mount

import (
	"context"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"github.com/hashicorp/go-multierror"
	"github.com/kurafs/asyncfs/pkg/adapter"
	"github.com/kurafs/asyncfs/pkg/bridge"
	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// errInterrupted is the reply to requests arriving after shutdown began.
const errInterrupted = fuse.Errno(syscall.EINTR)

// kernelConn is the part of a *fuse.Conn the serve loop depends on.
type kernelConn interface {
	ReadRequest() (fuse.Request, error)
	Close() error
}

type session struct {
	logger     *log.Logger
	conn       kernelConn
	mountpoint string
	handle     func(context.Context, fuse.Request)
	unmount    func(dir string) error
	sem        *semaphore.Weighted

	stop chan struct{}
	done chan struct{}
	err  error
}

// Begin mounts fs at mountpoint and starts serving it. Backend operations
// run on exec, which must outlive the session. The returned serve blocks
// until the session ended and reports why; shutdown may be called any number
// of times from any goroutine. On error nothing is left mounted and the
// error is a *MountError.
func Begin(ctx context.Context, logger *log.Logger, fs vfs.FS, exec *bridge.Executor, mountpoint string, opts Options) (serve func() error, shutdown func(), err error) {
	if err := checkMountpoint(mountpoint); err != nil {
		return nil, nil, &MountError{Op: "mount", Mountpoint: mountpoint, Err: err}
	}
	fopts, err := opts.fuseOptions()
	if err != nil {
		return nil, nil, &MountError{Op: "options", Mountpoint: mountpoint, Err: err}
	}
	if opts.Debug {
		fuse.Debug = logger.Debugger()
	}

	conn, err := fuse.Mount(mountpoint, fopts...)
	if err != nil {
		return nil, nil, &MountError{Op: "mount", Mountpoint: mountpoint, Err: err}
	}

	aopts := []adapter.Option{adapter.WithLogger(logger)}
	if opts.Registerer != nil {
		aopts = append(aopts, adapter.WithRegisterer(opts.Registerer))
	}
	s := newSession(logger, conn, mountpoint, adapter.New(fs, exec, aopts...).Handle, opts.MaxInflight)
	// Some platforms only complete the mount once the first requests have
	// been answered, so serving starts before we wait for readiness.
	go s.loop(context.WithoutCancel(ctx))

	timeout := opts.MountTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().MountTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-conn.Ready:
		err = conn.MountError
	case <-timer.C:
		err = errors.Errorf("mount not ready after %v", timeout)
	}
	if err != nil {
		s.shutdown()
		<-s.done
		return nil, nil, &MountError{Op: "mount", Mountpoint: mountpoint, Err: err}
	}

	if opts.AutoUnmount {
		go s.unmountOnDone(ctx)
	}

	logger.Infof("mounted point: %s", mountpoint)
	return s.wait, s.shutdown, nil
}

func checkMountpoint(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}
	return nil
}

func newSession(logger *log.Logger, conn kernelConn, mountpoint string, handle func(context.Context, fuse.Request), maxInflight int) *session {
	if maxInflight <= 0 {
		maxInflight = DefaultOptions().MaxInflight
	}
	return &session{
		logger:     logger,
		conn:       conn,
		mountpoint: mountpoint,
		handle:     handle,
		unmount:    Unmount,
		sem:        semaphore.NewWeighted(int64(maxInflight)),
		stop:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// unmountOnDone triggers the shutdown once ctx is done, unless the session
// ended first.
func (s *session) unmountOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.logger.Infof("%s: %v, unmounting", s.mountpoint, ctx.Err())
		s.shutdown()
	case <-s.done:
	}
}

func (s *session) wait() error {
	<-s.done
	return s.err
}

func (s *session) shutdown() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

// read feeds kernel requests to the serve loop until the connection ends.
func (s *session) read(reqs chan<- fuse.Request, errc chan<- error) {
	defer close(reqs)
	for {
		req, err := s.conn.ReadRequest()
		if err == io.EOF {
			errc <- nil
			return
		}
		if err != nil {
			errc <- errors.Wrap(err, "reading kernel request")
			return
		}
		reqs <- req
	}
}

func (s *session) loop(ctx context.Context) {
	defer close(s.done)

	reqs := make(chan fuse.Request)
	readErr := make(chan error, 1)
	go s.read(reqs, readErr)

	var (
		inflight  sync.WaitGroup
		stop      = s.stop
		stopping  bool
		closed    bool
		unmounted chan error
		result    *multierror.Error
	)
	for reqs != nil {
		select {
		case <-stop:
			stop = nil
			stopping = true
			s.logger.Infof("unmounting %s", s.mountpoint)
			ch := make(chan error, 1)
			unmounted = ch
			go func() { ch <- s.unmount(s.mountpoint) }()

		case err := <-unmounted:
			unmounted = nil
			if err != nil {
				// Without an unmount the kernel never ends the connection;
				// closing it is the only way left to stop reading.
				s.logger.Errorf("%v", err)
				result = multierror.Append(result, err)
				s.conn.Close()
				closed = true
			}

		case req, ok := <-reqs:
			if !ok {
				reqs = nil
				continue
			}
			if stopping {
				s.refuse(req)
				continue
			}
			if err := s.sem.Acquire(ctx, 1); err != nil {
				req.RespondError(fuse.EIO)
				continue
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer s.sem.Release(1)
				s.handle(ctx, req)
			}()
		}
	}

	inflight.Wait()
	if err := <-readErr; err != nil {
		s.logger.Errorf("%s: %v", s.mountpoint, err)
		result = multierror.Append(result, err)
	}
	switch {
	case unmounted != nil:
		if err := <-unmounted; err != nil {
			result = multierror.Append(result, err)
		}
	case !stopping:
		// The kernel went away on its own (external unmount) or reading
		// failed. Either way nothing may stay mounted behind us.
		if err := s.unmount(s.mountpoint); err != nil {
			s.logger.Debugf("releasing %s: %v", s.mountpoint, err)
		}
	}
	if !closed {
		if err := s.conn.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "closing kernel connection"))
		}
	}
	s.err = result.ErrorOrNil()
	s.logger.Infof("unmounted point: %s", s.mountpoint)
}

// refuse answers a request that arrived after shutdown began. Requests that
// take no reply or only acknowledge teardown are still acknowledged.
func (s *session) refuse(req fuse.Request) {
	switch r := req.(type) {
	case *fuse.ForgetRequest:
		r.Respond()
	case *fuse.DestroyRequest:
		r.Respond()
	case *fuse.InterruptRequest:
		r.Respond()
	default:
		req.RespondError(errInterrupted)
	}
}
