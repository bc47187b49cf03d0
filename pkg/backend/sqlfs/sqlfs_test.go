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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

const (
	getattrQuery = `SELECT (.+) FROM metadata m LEFT JOIN content c ON c\.ino = m\.ino WHERE m\.ino = \?`
	childQuery   = `SELECT (.+) FROM metadata m LEFT JOIN content c ON c\.ino = m\.ino WHERE (.*)m\.parent_ino = \?`
	contentQuery = `SELECT content FROM content WHERE ino = \?`
)

var columns = []string{"ino", "id", "type", "name", "parent_ino", "atime", "mtime", "ctime", "size"}

var epoch = time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T, opts ...Option) (*FS, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating mock db: %v", err)
	}
	f := New(sqlx.NewDb(db, "sqlmock"), time.Second, opts...)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		f.Close()
	})
	return f, mock
}

func noRoot(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(getattrQuery).WillReturnRows(sqlmock.NewRows(columns))
}

func TestGetattrRoot(t *testing.T) {
	f, mock := newMock(t)
	noRoot(mock)

	out, err := f.Getattr(context.Background(), vfs.RootIno)
	if err != nil {
		t.Fatal(err)
	}
	if out.Attr.Kind != vfs.KindDir || out.Attr.Ino != vfs.RootIno || out.Attr.Perm != 0555 {
		t.Errorf("unexpected root %+v", out.Attr)
	}
	if out.TTL != time.Second {
		t.Errorf("expected a TTL of 1s, got %s", out.TTL)
	}
}

func TestGetattrMissing(t *testing.T) {
	f, mock := newMock(t)
	mock.ExpectQuery(getattrQuery).WillReturnRows(sqlmock.NewRows(columns))

	if _, err := f.Getattr(context.Background(), 42); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	f, mock := newMock(t)

	noRoot(mock)
	mock.ExpectQuery(childQuery).WillReturnRows(sqlmock.NewRows(columns).
		AddRow(5, "f-5", TypeFile, "hello.txt", 1, epoch, epoch, epoch, 13))

	out, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if out.Attr.Ino != 5 || out.Attr.Size != 13 || out.Attr.Kind != vfs.KindFile || !out.Attr.Mtime.Equal(epoch) {
		t.Errorf("unexpected entry %+v", out.Attr)
	}

	noRoot(mock)
	mock.ExpectQuery(childQuery).WillReturnRows(sqlmock.NewRows(columns))
	if _, err := f.Lookup(ctx, vfs.RootIno, "missing"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	noRoot(mock)
	if _, err := f.Lookup(ctx, vfs.RootIno, "a/b"); !errors.Is(err, vfs.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	mock.ExpectQuery(getattrQuery).WillReturnRows(sqlmock.NewRows(columns).
		AddRow(5, "f-5", TypeFile, "hello.txt", 1, epoch, epoch, epoch, 13))
	if _, err := f.Lookup(ctx, 5, "x"); !errors.Is(err, vfs.ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
}

func TestReaddir(t *testing.T) {
	ctx := context.Background()
	f, mock := newMock(t, WithPageSize(2))
	listing := []string{"ino", "type", "name"}

	noRoot(mock)
	mock.ExpectQuery(`SELECT ino, type, name FROM metadata WHERE (.+) ORDER BY name, ino LIMIT 2 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows(listing).AddRow(3, TypeDir, "a").AddRow(2, TypeFile, "b"))
	mock.ExpectQuery(`SELECT ino, type, name FROM metadata WHERE (.+) ORDER BY name, ino LIMIT 2 OFFSET 2`).
		WillReturnRows(sqlmock.NewRows(listing).AddRow(4, TypeSymlink, "c"))

	s, err := f.Readdir(ctx, vfs.RootIno, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	want := []vfs.Dirent{
		{Ino: 1, Offset: 1, Kind: vfs.KindDir, Name: "."},
		{Ino: 1, Offset: 2, Kind: vfs.KindDir, Name: ".."},
		{Ino: 3, Offset: 3, Kind: vfs.KindDir, Name: "a"},
		{Ino: 2, Offset: 4, Kind: vfs.KindFile, Name: "b"},
		{Ino: 4, Offset: 5, Kind: vfs.KindSymlink, Name: "c"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], entries[i])
		}
	}

	// Resuming after "a" skips straight to the second child.
	noRoot(mock)
	mock.ExpectQuery(`SELECT ino, type, name FROM metadata WHERE (.+) ORDER BY name, ino LIMIT 2 OFFSET 1`).
		WillReturnRows(sqlmock.NewRows(listing).AddRow(2, TypeFile, "b").AddRow(4, TypeSymlink, "c"))
	mock.ExpectQuery(`SELECT ino, type, name FROM metadata WHERE (.+) ORDER BY name, ino LIMIT 2 OFFSET 3`).
		WillReturnRows(sqlmock.NewRows(listing))

	s, err = f.Readdir(ctx, vfs.RootIno, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	rest, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || rest[0] != want[3] || rest[1] != want[4] {
		t.Errorf("expected %+v, got %+v", want[3:], rest)
	}
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	f, mock := newMock(t)

	mock.ExpectQuery(getattrQuery).WillReturnRows(sqlmock.NewRows(columns).
		AddRow(5, "f-5", TypeFile, "hello.txt", 1, epoch, epoch, epoch, 13))
	mock.ExpectQuery(contentQuery).
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow([]byte("Hello World!\n")))

	data, err := f.Read(ctx, 5, 0, 6, 5, 0, nil)
	if err != nil || string(data) != "World" {
		t.Errorf("unexpected read %q (%v)", data, err)
	}

	noRoot(mock)
	if _, err := f.Read(ctx, vfs.RootIno, 0, 0, 5, 0, nil); !errors.Is(err, vfs.ErrNotFile) {
		t.Errorf("expected ErrNotFile, got %v", err)
	}
}

func TestBackendError(t *testing.T) {
	f, mock := newMock(t)
	mock.ExpectQuery(getattrQuery).WillReturnError(errors.New("connection reset"))

	_, err := f.Getattr(context.Background(), 7)
	if err == nil || vfs.ErrorKind(err) != "backend" {
		t.Errorf("expected a backend error, got %v", err)
	}
}

func TestTimestampScan(t *testing.T) {
	testCases := []struct {
		src  interface{}
		want time.Time
	}{
		{epoch, epoch},
		{epoch.Unix(), epoch},
		{"1519862400", epoch},
		{[]byte("2018-03-01T00:00:00Z"), epoch},
		{"2018-03-01 00:00:00", epoch},
	}
	for _, tc := range testCases {
		var ts timestamp
		if err := ts.Scan(tc.src); err != nil {
			t.Errorf("Scan(%v): unexpected error %v", tc.src, err)
			continue
		}
		if !ts.Equal(tc.want) {
			t.Errorf("Scan(%v): expected %s, got %s", tc.src, tc.want, ts.Time)
		}
	}

	var ts timestamp
	if err := ts.Scan(3.5); err == nil {
		t.Errorf("expected an error scanning a float")
	}
}
