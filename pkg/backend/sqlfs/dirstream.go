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

package sqlfs

import (
	"context"
	"io"

	"github.com/Masterminds/squirrel"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

// dirStream yields ".", ".." and then the children ordered by (name, ino),
// one page per query. Child i (from zero) has offset i+3, so resuming is an
// OFFSET into the ordered children.
type dirStream struct {
	f           *FS
	ino, parent uint64
	next        int64
	buf         []vfs.Dirent
	done        bool
}

const dots = 2

func (s *dirStream) Next(ctx context.Context) (vfs.Dirent, error) {
	switch s.next {
	case 1:
		s.next++
		return vfs.Dirent{Ino: s.ino, Offset: 1, Kind: vfs.KindDir, Name: "."}, nil
	case 2:
		s.next++
		return vfs.Dirent{Ino: s.parent, Offset: 2, Kind: vfs.KindDir, Name: ".."}, nil
	}

	if len(s.buf) == 0 {
		if s.done {
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
	s.next = ent.Offset + 1
	return ent, nil
}

func (s *dirStream) fetch(ctx context.Context) error {
	skip := uint64(s.next - dots - 1)
	query, args, err := s.f.sb.Select("ino", "type", "name").
		From("metadata").
		Where(squirrel.Eq{"parent_ino": s.ino}).
		Where(squirrel.NotEq{"ino": s.ino}).
		OrderBy("name", "ino").
		Limit(s.f.pageSize).
		Offset(skip).
		ToSql()
	if err != nil {
		return err
	}

	var rows []struct {
		Ino  uint64 `db:"ino"`
		Type string `db:"type"`
		Name string `db:"name"`
	}
	if err := s.f.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrapf(err, "listing ino %d", s.ino)
	}
	for i, row := range rows {
		s.buf = append(s.buf, vfs.Dirent{
			Ino:    row.Ino,
			Offset: s.next + int64(i),
			Kind:   kind(row.Type),
			Name:   row.Name,
		})
	}
	s.done = uint64(len(rows)) < s.f.pageSize
	return nil
}

func (s *dirStream) Close() error {
	s.buf = nil
	s.done = true
	return nil
}
