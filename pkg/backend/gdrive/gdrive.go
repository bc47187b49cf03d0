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

// Package gdrive exposes a Google Drive folder as a read-only vfs.FS. Path
// keys are Drive file IDs, the root being the configured folder ("root" for
// My Drive).
package gdrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kurafs/asyncfs/pkg/inode"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	FolderMimeType  = "application/vnd.google-apps.folder"
	fileFields      = "id, name, mimeType, size, modifiedTime, createdTime, viewedByMeTime"
	defaultPageSize = 100
)

type FS struct {
	svc      *drive.Service
	dir      *inode.Directory
	ttl      time.Duration
	pageSize int64

	mu      sync.RWMutex
	folders map[uint64]bool
	parents map[uint64]uint64
}

var _ vfs.FS = (*FS)(nil)

type Option func(*FS)

// WithPageSize sets the number of files requested per listing page.
func WithPageSize(n int) Option {
	return func(f *FS) {
		if n > 0 {
			f.pageSize = int64(n)
		}
	}
}

// New exposes folder through svc.
func New(svc *drive.Service, folder string, ttl time.Duration, opts ...Option) *FS {
	if folder == "" {
		folder = "root"
	}
	f := &FS{
		svc:      svc,
		dir:      inode.NewDirectory(folder),
		ttl:      ttl,
		pageSize: defaultPageSize,
		folders:  map[uint64]bool{vfs.RootIno: true},
		parents:  map[uint64]uint64{vfs.RootIno: vfs.RootIno},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFromClient builds the Drive service on top of an authorized client,
// see Client.
func NewFromClient(ctx context.Context, client *http.Client, folder string, ttl time.Duration, opts ...Option) (*FS, error) {
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.Wrap(err, "unable to get Google Drive client")
	}
	return New(svc, folder, ttl, opts...), nil
}

func (f *FS) remember(file *drive.File, parent uint64) uint64 {
	ino := f.dir.Resolve(file.Id)
	f.mu.Lock()
	f.folders[ino] = file.MimeType == FolderMimeType
	f.parents[ino] = parent
	f.mu.Unlock()
	return ino
}

func (f *FS) node(ino uint64) (id string, folder bool, err error) {
	id, ok := f.dir.Key(ino)
	if !ok {
		return "", false, vfs.NotFound(ino)
	}
	f.mu.RLock()
	folder = f.folders[ino]
	f.mu.RUnlock()
	return id, folder, nil
}

func (f *FS) parent(ino uint64) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if p, ok := f.parents[ino]; ok {
		return p
	}
	return vfs.RootIno
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func (f *FS) attr(ino uint64, file *drive.File) vfs.Attr {
	mtime := parseTime(file.ModifiedTime)
	a := vfs.Attr{
		Ino:       ino,
		Atime:     mtime,
		Mtime:     mtime,
		Ctime:     mtime,
		Crtime:    parseTime(file.CreatedTime),
		BlockSize: 4096,
	}
	if t := parseTime(file.ViewedByMeTime); !t.IsZero() {
		a.Atime = t
	}
	if file.MimeType == FolderMimeType {
		a.Kind, a.Perm, a.Nlink = vfs.KindDir, 0555, 2
		return a
	}
	a.Kind, a.Perm, a.Nlink = vfs.KindFile, 0444, 1
	a.Size = uint64(file.Size)
	a.Blocks = vfs.Blocks(a.Size)
	return a
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// quote escapes s for use in a files.list query string.
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s) + "'"
}

func (f *FS) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	id, _, err := f.node(ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	file, err := f.svc.Files.Get(id).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return vfs.AttrOut{}, vfs.NotFound(ino)
		}
		return vfs.AttrOut{}, errors.Wrapf(err, "get %s", id)
	}
	if ino == vfs.RootIno {
		file.MimeType = FolderMimeType
	}
	return vfs.AttrOut{TTL: f.ttl, Attr: f.attr(ino, file)}, nil
}

func (f *FS) Lookup(ctx context.Context, parent uint64, name string) (vfs.EntryOut, error) {
	id, folder, err := f.node(parent)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	if !folder {
		return vfs.EntryOut{}, vfs.NotDir(parent)
	}

	switch name {
	case ".", "..":
		ino := parent
		if name == ".." {
			ino = f.parent(parent)
		}
		out, err := f.Getattr(ctx, ino)
		if err != nil {
			return vfs.EntryOut{}, err
		}
		return vfs.EntryOut{TTL: out.TTL, Attr: out.Attr, Generation: f.dir.Generation()}, nil
	}
	if !vfs.ValidName(name) {
		return vfs.EntryOut{}, vfs.InvalidName(name)
	}

	q := fmt.Sprintf("%s in parents and name = %s and trashed = false", quote(id), quote(name))
	res, err := f.svc.Files.List().
		Q(q).
		Fields(googleapi.Field("files(" + fileFields + ")")).
		OrderBy("name").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return vfs.EntryOut{}, errors.Wrapf(err, "list %s", id)
	}
	if len(res.Files) == 0 {
		return vfs.EntryOut{}, vfs.ChildNotFound(parent, name)
	}

	file := res.Files[0]
	ino := f.remember(file, parent)
	return vfs.EntryOut{TTL: f.ttl, Attr: f.attr(ino, file), Generation: f.dir.Generation()}, nil
}

func (f *FS) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	id, folder, err := f.node(ino)
	if err != nil {
		return nil, err
	}
	if !folder {
		return nil, vfs.NotDir(ino)
	}
	return newDirStream(f, id, ino, f.parent(ino), offset), nil
}

func (f *FS) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	id, folder, err := f.node(ino)
	if err != nil {
		return nil, err
	}
	if folder {
		return nil, vfs.NotFile(ino)
	}
	if size == 0 {
		return nil, nil
	}

	call := f.svc.Files.Get(id).Context(ctx)
	call.Header().Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(size)-1))
	resp, err := call.Download()
	if err != nil {
		switch {
		case isStatus(err, http.StatusRequestedRangeNotSatisfiable):
			return nil, nil
		case isStatus(err, http.StatusNotFound):
			return nil, vfs.NotFound(ino)
		}
		return nil, errors.Wrapf(err, "download %s", id)
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if resp.StatusCode != http.StatusPartialContent {
		// The range was ignored and the whole file is on its way.
		if _, err := io.CopyN(io.Discard, body, offset); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "download %s", id)
		}
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrapf(err, "download %s", id)
	}
	return buf[:n], nil
}
