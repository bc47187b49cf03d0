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

// Package sqlfs exposes a filesystem described by two SQL tables, metadata
// and content, as a read-only vfs.FS. Identities are the ino column; the root
// directory (ino 1) need not have a row.
package sqlfs

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/kurafs/asyncfs/pkg/streaming"
	"github.com/kurafs/asyncfs/pkg/vfs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const defaultPageSize = 256

type FS struct {
	db       *sqlx.DB
	sb       squirrel.StatementBuilderType
	ttl      time.Duration
	pageSize uint64
	mounted  time.Time

	uid, gid uint32
}

var _ vfs.FS = (*FS)(nil)

type Option func(*FS)

// WithPageSize sets how many children a single readdir query fetches.
func WithPageSize(n int) Option {
	return func(f *FS) {
		if n > 0 {
			f.pageSize = uint64(n)
		}
	}
}

// Open connects with driver ("postgres" or "sqlite") to dsn.
func Open(driver, dsn string, ttl time.Duration, opts ...Option) (*FS, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s database", driver)
	}
	return New(db, ttl, opts...), nil
}

// New serves db. Queries use $n placeholders for postgres and ? otherwise.
func New(db *sqlx.DB, ttl time.Duration, opts ...Option) *FS {
	var format squirrel.PlaceholderFormat = squirrel.Question
	if db.DriverName() == "postgres" {
		format = squirrel.Dollar
	}
	f := &FS{
		db:       db,
		sb:       squirrel.StatementBuilder.PlaceholderFormat(format),
		ttl:      ttl,
		pageSize: defaultPageSize,
		mounted:  time.Now(),
		uid:      uint32(os.Getuid()),
		gid:      uint32(os.Getgid()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FS) Close() error {
	return f.db.Close()
}

func (f *FS) selectMetadata() squirrel.SelectBuilder {
	return f.sb.Select(metadataColumns...).
		From("metadata m").
		LeftJoin("content c ON c.ino = m.ino")
}

// row fetches the metadata of ino, synthesizing the root if it has no row.
func (f *FS) row(ctx context.Context, ino uint64) (metadataRow, error) {
	query, args, err := f.selectMetadata().Where(squirrel.Eq{"m.ino": ino}).Limit(1).ToSql()
	if err != nil {
		return metadataRow{}, err
	}

	var row metadataRow
	if err := f.db.GetContext(ctx, &row, query, args...); err != nil {
		if err != sql.ErrNoRows {
			return metadataRow{}, errors.Wrapf(err, "querying ino %d", ino)
		}
		if ino != vfs.RootIno {
			return metadataRow{}, vfs.NotFound(ino)
		}
		t := timestamp{f.mounted}
		return metadataRow{Ino: vfs.RootIno, Type: TypeDir, ParentIno: vfs.RootIno, Atime: t, Mtime: t, Ctime: t}, nil
	}
	return row, nil
}

func (f *FS) attr(row metadataRow) vfs.Attr {
	a := vfs.Attr{
		Ino:       row.Ino,
		Atime:     row.Atime.Time,
		Mtime:     row.Mtime.Time,
		Ctime:     row.Ctime.Time,
		Crtime:    row.Ctime.Time,
		Kind:      kind(row.Type),
		Uid:       f.uid,
		Gid:       f.gid,
		BlockSize: 4096,
	}
	switch a.Kind {
	case vfs.KindDir:
		a.Perm, a.Nlink = 0555, 2
	case vfs.KindSymlink:
		a.Perm, a.Nlink = 0777, 1
		a.Size = row.Size
	default:
		a.Perm, a.Nlink = 0444, 1
		a.Size = row.Size
		a.Blocks = vfs.Blocks(row.Size)
	}
	return a
}

func (f *FS) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	row, err := f.row(ctx, ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	return vfs.AttrOut{TTL: f.ttl, Attr: f.attr(row)}, nil
}

func (f *FS) entry(row metadataRow) vfs.EntryOut {
	// Identities are never reused by the table, so a constant generation
	// will do.
	return vfs.EntryOut{TTL: f.ttl, Attr: f.attr(row), Generation: 1}
}

func (f *FS) Lookup(ctx context.Context, parent uint64, name string) (vfs.EntryOut, error) {
	dir, err := f.row(ctx, parent)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	if dir.Type != TypeDir {
		return vfs.EntryOut{}, vfs.NotDir(parent)
	}

	switch name {
	case ".":
		return f.entry(dir), nil
	case "..":
		up, err := f.row(ctx, dir.ParentIno)
		if err != nil {
			return vfs.EntryOut{}, err
		}
		return f.entry(up), nil
	}
	if !vfs.ValidName(name) {
		return vfs.EntryOut{}, vfs.InvalidName(name)
	}

	query, args, err := f.selectMetadata().
		Where(squirrel.Eq{"m.parent_ino": parent, "m.name": name}).
		Where(squirrel.NotEq{"m.ino": parent}).
		Limit(1).
		ToSql()
	if err != nil {
		return vfs.EntryOut{}, err
	}
	var row metadataRow
	if err := f.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return vfs.EntryOut{}, vfs.ChildNotFound(parent, name)
		}
		return vfs.EntryOut{}, errors.Wrapf(err, "looking up %q in ino %d", name, parent)
	}
	return f.entry(row), nil
}

func (f *FS) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	dir, err := f.row(ctx, ino)
	if err != nil {
		return nil, err
	}
	if dir.Type != TypeDir {
		return nil, vfs.NotDir(ino)
	}
	if offset < 0 {
		offset = 0
	}
	return &dirStream{f: f, ino: ino, parent: dir.ParentIno, next: offset + 1}, nil
}

func (f *FS) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	row, err := f.row(ctx, ino)
	if err != nil {
		return nil, err
	}
	if row.Type == TypeDir {
		return nil, vfs.NotFile(ino)
	}

	query, args, err := f.sb.Select("content").From("content").Where(squirrel.Eq{"ino": ino}).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var content []byte
	if err := f.db.GetContext(ctx, &content, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading ino %d", ino)
	}
	return streaming.Slice(content, offset, int(size)), nil
}
