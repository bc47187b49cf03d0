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
	"path/filepath"
	"testing"
	"time"

	"github.com/kurafs/asyncfs/pkg/vfs"
)

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	f, err := Open("sqlite", filepath.Join(t.TempDir(), "fs.db"), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.db.Exec(Schema); err != nil {
		t.Fatal(err)
	}
	rows := []struct {
		ino, parent uint64
		typ, name   string
	}{
		{2, 1, TypeDir, "docs"},
		{3, 1, TypeFile, "hello.txt"},
		{4, 2, TypeFile, "readme.md"},
	}
	for _, r := range rows {
		_, err := f.db.Exec(`INSERT INTO metadata VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ino, r.name, r.typ, r.name, r.parent, epoch.Unix(), epoch.Unix(), epoch.Unix())
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.db.Exec(`INSERT INTO content VALUES (3, 13, ?)`, []byte("Hello World!\n")); err != nil {
		t.Fatal(err)
	}

	hello, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if hello.Attr.Ino != 3 || hello.Attr.Size != 13 || !hello.Attr.Mtime.Equal(epoch) {
		t.Errorf("unexpected entry %+v", hello.Attr)
	}
	data, err := f.Read(ctx, 3, 0, 0, 5, 0, nil)
	if err != nil || string(data) != "Hello" {
		t.Errorf("unexpected read %q (%v)", data, err)
	}

	s, err := f.Readdir(ctx, vfs.RootIno, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 || entries[2].Name != "docs" || entries[3].Name != "hello.txt" {
		t.Errorf("unexpected listing %+v", entries)
	}

	// A negative resume offset lists from the start.
	s, err = f.Readdir(ctx, vfs.RootIno, 0, -7)
	if err != nil {
		t.Fatal(err)
	}
	again, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(entries) {
		t.Errorf("expected %d entries from a negative offset, got %+v", len(entries), again)
	}

	up, err := f.Lookup(ctx, 2, "..")
	if err != nil || up.Attr.Ino != vfs.RootIno {
		t.Errorf("expected .. to be the root, got %+v (%v)", up.Attr, err)
	}
	// A file without a content row reads as empty.
	data, err = f.Read(ctx, 4, 0, 0, 5, 0, nil)
	if err != nil || len(data) != 0 {
		t.Errorf("expected an empty read, got %q (%v)", data, err)
	}
}
