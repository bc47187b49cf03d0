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

package gdrive

import (
	"context"
	"fmt"
	"io"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
)

// dirStream pages through files.list ordered by name. Offsets count the
// entries produced so far, so resuming replays the listing up to the resume
// point.
type dirStream struct {
	fs      *FS
	id      string
	token   string
	started bool
	resume  int64
	next    int64
	buf     []vfs.Dirent
	self    uint64
}

func newDirStream(f *FS, id string, self, parent uint64, resume int64) *dirStream {
	s := &dirStream{fs: f, id: id, resume: resume, self: self}
	s.add(self, vfs.KindDir, ".")
	s.add(parent, vfs.KindDir, "..")
	return s
}

func (s *dirStream) add(ino uint64, kind vfs.Kind, name string) {
	s.next++
	s.buf = append(s.buf, vfs.Dirent{Ino: ino, Offset: s.next, Kind: kind, Name: name})
}

func (s *dirStream) Next(ctx context.Context) (vfs.Dirent, error) {
	for {
		if len(s.buf) == 0 {
			if s.started && s.token == "" {
				return vfs.Dirent{}, io.EOF
			}
			if err := s.fetch(ctx); err != nil {
				return vfs.Dirent{}, err
			}
			continue
		}

		ent := s.buf[0]
		s.buf = s.buf[1:]
		if ent.Offset > s.resume {
			return ent, nil
		}
	}
}

func (s *dirStream) fetch(ctx context.Context) error {
	call := s.fs.svc.Files.List().
		Q(fmt.Sprintf("%s in parents and trashed = false", quote(s.id))).
		Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")")).
		OrderBy("name").
		PageSize(s.fs.pageSize).
		Context(ctx)
	if s.token != "" {
		call = call.PageToken(s.token)
	}
	res, err := call.Do()
	if err != nil {
		return errors.Wrapf(err, "list %s", s.id)
	}
	s.started = true
	s.token = res.NextPageToken

	for _, file := range res.Files {
		if !vfs.ValidName(file.Name) {
			continue
		}
		kind := vfs.KindFile
		if file.MimeType == FolderMimeType {
			kind = vfs.KindDir
		}
		s.add(s.fs.remember(file, s.self), kind, file.Name)
	}
	return nil
}

func (s *dirStream) Close() error {
	s.buf = nil
	s.started, s.token = true, ""
	return nil
}
