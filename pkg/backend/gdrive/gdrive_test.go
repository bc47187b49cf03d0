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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type fakeFile struct {
	drive.File
	parent  string
	content string
	// noRange makes downloads ignore the Range header.
	noRange bool
}

var (
	parentRe = regexp.MustCompile(`^'((?:[^'\\]|\\.)*)' in parents`)
	nameRe   = regexp.MustCompile(`name = '((?:[^'\\]|\\.)*)'`)
)

func unquote(s string) string {
	return strings.NewReplacer(`\'`, "'", `\\`, `\`).Replace(s)
}

// fakeDrive serves the handful of Drive v3 endpoints the backend uses.
func fakeDrive(t *testing.T, files []*fakeFile) *httptest.Server {
	byID := make(map[string]*fakeFile)
	for _, f := range files {
		byID[f.Id] = f
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		m := parentRe.FindStringSubmatch(q)
		if m == nil {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		parent := unquote(m[1])
		var name *string
		if m := nameRe.FindStringSubmatch(q); m != nil {
			n := unquote(m[1])
			name = &n
		}

		var matches []*drive.File
		for _, f := range files {
			if f.parent == parent && (name == nil || f.Name == *name) {
				file := f.File
				matches = append(matches, &file)
			}
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })

		start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		end := len(matches)
		if size > 0 && start+size < end {
			end = start + size
		}
		res := &drive.FileList{Files: matches[start:end]}
		if end < len(matches) {
			res.NextPageToken = strconv.Itoa(end)
		}
		json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		f, ok := byID[strings.TrimPrefix(r.URL.Path, "/files/")]
		if !ok {
			http.Error(w, `{"error": {"code": 404, "message": "File not found"}}`, http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("alt") != "media" {
			json.NewEncoder(w).Encode(f.File)
			return
		}

		rng := r.Header.Get("Range")
		if rng == "" || f.noRange {
			fmt.Fprint(w, f.content)
			return
		}
		var lo, hi int
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &lo, &hi); err != nil {
			t.Errorf("malformed range %q", rng)
		}
		if lo >= len(f.content) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if hi >= len(f.content) {
			hi = len(f.content) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, f.content[lo:hi+1])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T) *FS {
	t.Helper()
	modified := "2018-03-01T00:00:00Z"
	files := []*fakeFile{
		{File: drive.File{Id: "root", Name: "My Drive", MimeType: FolderMimeType, ModifiedTime: modified}},
		{File: drive.File{Id: "f1", Name: "hello.txt", MimeType: "text/plain", Size: 13, ModifiedTime: modified}, parent: "root", content: "Hello World!\n"},
		{File: drive.File{Id: "d1", Name: "docs", MimeType: FolderMimeType, ModifiedTime: modified}, parent: "root"},
		{File: drive.File{Id: "f3", Name: "a/b", MimeType: "text/plain"}, parent: "root"},
		{File: drive.File{Id: "f4", Name: "it's.txt", MimeType: "text/plain", Size: 10}, parent: "root", content: "0123456789", noRange: true},
		{File: drive.File{Id: "f2", Name: "readme.md", MimeType: "text/markdown", Size: 2}, parent: "d1", content: "hi"},
	}
	srv := fakeDrive(t, files)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, "", time.Second, WithPageSize(2))
}

func TestLookupAndRead(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	root, err := f.Getattr(ctx, vfs.RootIno)
	if err != nil {
		t.Fatal(err)
	}
	if root.Attr.Kind != vfs.KindDir {
		t.Errorf("expected the root to be a directory, got %+v", root.Attr)
	}

	hello, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)
	if hello.Attr.Size != 13 || hello.Attr.Kind != vfs.KindFile || !hello.Attr.Mtime.Equal(want) {
		t.Errorf("unexpected attributes %+v", hello.Attr)
	}

	data, err := f.Read(ctx, hello.Attr.Ino, 0, 6, 5, 0, nil)
	if err != nil || string(data) != "World" {
		t.Errorf("unexpected read %q (%v)", data, err)
	}
	data, err = f.Read(ctx, hello.Attr.Ino, 0, 8, 64, 0, nil)
	if err != nil || string(data) != "rld!\n" {
		t.Errorf("unexpected short read %q (%v)", data, err)
	}
	data, err = f.Read(ctx, hello.Attr.Ino, 0, 13, 64, 0, nil)
	if err != nil || len(data) != 0 {
		t.Errorf("expected EOF, got %q (%v)", data, err)
	}

	quoted, err := f.Lookup(ctx, vfs.RootIno, "it's.txt")
	if err != nil {
		t.Fatal(err)
	}
	data, err = f.Read(ctx, quoted.Attr.Ino, 0, 4, 3, 0, nil)
	if err != nil || string(data) != "456" {
		t.Errorf("unexpected read ignoring the range %q (%v)", data, err)
	}

	docs, err := f.Lookup(ctx, vfs.RootIno, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if docs.Attr.Kind != vfs.KindDir {
		t.Errorf("expected a directory, got %+v", docs.Attr)
	}
	up, err := f.Lookup(ctx, docs.Attr.Ino, "..")
	if err != nil || up.Attr.Ino != vfs.RootIno {
		t.Errorf("expected .. to be the root, got %+v (%v)", up.Attr, err)
	}

	if _, err := f.Lookup(ctx, vfs.RootIno, "missing"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.Lookup(ctx, hello.Attr.Ino, "x"); !errors.Is(err, vfs.ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
	if _, err := f.Read(ctx, docs.Attr.Ino, 0, 0, 1, 0, nil); !errors.Is(err, vfs.ErrNotFile) {
		t.Errorf("expected ErrNotFile, got %v", err)
	}
}

func TestReaddir(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	s, err := f.Readdir(ctx, vfs.RootIno, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, ent := range entries {
		names = append(names, ent.Name)
	}
	want := ".,..,docs,hello.txt,it's.txt"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if entries[2].Kind != vfs.KindDir || entries[3].Kind != vfs.KindFile {
		t.Errorf("unexpected kinds %+v", entries)
	}

	s, err = f.Readdir(ctx, vfs.RootIno, 0, entries[2].Offset)
	if err != nil {
		t.Fatal(err)
	}
	rest, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || rest[0] != entries[3] || rest[1] != entries[4] {
		t.Errorf("expected %+v, got %+v", entries[3:], rest)
	}

	// Identities handed out while listing serve getattr.
	attr, err := f.Getattr(ctx, entries[3].Ino)
	if err != nil || attr.Attr.Size != 13 {
		t.Errorf("unexpected getattr %+v (%v)", attr.Attr, err)
	}
}

func TestQuote(t *testing.T) {
	testCases := map[string]string{
		"plain":   "'plain'",
		"it's":    `'it\'s'`,
		`back\`: `'back\\'`,
	}
	for in, want := range testCases {
		if got := quote(in); got != want {
			t.Errorf("quote(%q): expected %s, got %s", in, want, got)
		}
	}
}
