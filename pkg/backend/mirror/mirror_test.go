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

package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

func setup(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs", "deep"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"hello.txt":          "Hello World!\n",
		"docs/readme.md":     "# asyncfs\n",
		"docs/deep/note.txt": "deep",
	}
	for p, content := range files {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(p)), []byte(content), 0640); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("hello.txt", filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}
	f, err := New(root, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return f, root
}

func TestMirror(t *testing.T) {
	ctx := context.Background()
	f, _ := setup(t)

	root, err := f.Getattr(ctx, vfs.RootIno)
	if err != nil {
		t.Fatal(err)
	}
	if root.Attr.Kind != vfs.KindDir || root.Attr.Ino != vfs.RootIno {
		t.Errorf("unexpected root %+v", root.Attr)
	}

	hello, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if hello.Attr.Size != 13 || hello.Attr.Perm != 0640 || hello.Attr.Kind != vfs.KindFile {
		t.Errorf("unexpected attributes %+v", hello.Attr)
	}
	again, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil || again.Attr.Ino != hello.Attr.Ino {
		t.Errorf("expected a stable identity %d, got %d (%v)", hello.Attr.Ino, again.Attr.Ino, err)
	}

	data, err := f.Read(ctx, hello.Attr.Ino, 0, 6, 64, 0, nil)
	if err != nil || string(data) != "World!\n" {
		t.Errorf("unexpected read %q (%v)", data, err)
	}
	data, err = f.Read(ctx, hello.Attr.Ino, 0, 13, 64, 0, nil)
	if err != nil || len(data) != 0 {
		t.Errorf("expected EOF, got %q (%v)", data, err)
	}

	link, err := f.Lookup(ctx, vfs.RootIno, "link")
	if err != nil || link.Attr.Kind != vfs.KindSymlink {
		t.Errorf("expected a symlink, got %+v (%v)", link.Attr, err)
	}

	if _, err := f.Lookup(ctx, vfs.RootIno, "missing"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.Lookup(ctx, vfs.RootIno, "a/b"); !errors.Is(err, vfs.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if _, err := f.Read(ctx, vfs.RootIno, 0, 0, 1, 0, nil); !errors.Is(err, vfs.ErrNotFile) {
		t.Errorf("expected ErrNotFile, got %v", err)
	}
	if _, err := f.Readdir(ctx, hello.Attr.Ino, 0, 0); !errors.Is(err, vfs.ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
	if _, err := f.Getattr(ctx, 1000); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMirrorReaddir(t *testing.T) {
	ctx := context.Background()
	f, root := setup(t)

	docs, err := f.Lookup(ctx, vfs.RootIno, "docs")
	if err != nil {
		t.Fatal(err)
	}
	s, err := f.Readdir(ctx, docs.Attr.Ino, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{".", "..", "deep", "readme.md"}
	if len(entries) != len(want) {
		t.Fatalf("expected %v, got %+v", want, entries)
	}
	for i, ent := range entries {
		if ent.Name != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], ent.Name)
		}
	}
	if entries[1].Ino != vfs.RootIno || entries[2].Kind != vfs.KindDir {
		t.Errorf("unexpected entries %+v", entries)
	}

	// The identity handed out while listing is the one lookup returns.
	readme, err := f.Lookup(ctx, docs.Attr.Ino, "readme.md")
	if err != nil || readme.Attr.Ino != entries[3].Ino {
		t.Errorf("expected identity %d, got %d (%v)", entries[3].Ino, readme.Attr.Ino, err)
	}
	up, err := f.Lookup(ctx, docs.Attr.Ino, "..")
	if err != nil || up.Attr.Ino != vfs.RootIno {
		t.Errorf("expected .. to be the root, got %d (%v)", up.Attr.Ino, err)
	}

	// Files removed behind our back become NotFound.
	if err := os.Remove(filepath.Join(root, "docs", "readme.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Getattr(ctx, readme.Attr.Ino); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMirrorSkipsUnreachableNames(t *testing.T) {
	ctx := context.Background()
	f, root := setup(t)

	if err := os.WriteFile(filepath.Join(root, "docs", "latin1-\xe9.txt"), nil, 0644); err != nil {
		t.Skipf("cannot create a non UTF-8 name here: %v", err)
	}
	docs, err := f.Lookup(ctx, vfs.RootIno, "docs")
	if err != nil {
		t.Fatal(err)
	}
	s, err := f.Readdir(ctx, docs.Attr.Ino, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	for _, ent := range entries {
		if ent.Name == "latin1-\xe9.txt" {
			t.Errorf("expected the non UTF-8 name to be left out, got %+v", entries)
		}
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 entries, got %+v", entries)
	}
}

func TestNewRejectsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, time.Second); err == nil {
		t.Errorf("expected an error mirroring a file")
	}
}
