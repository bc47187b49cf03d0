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

package objstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

// fakeClient is an in-memory bucket serving pages of pageSize keys.
type fakeClient struct {
	objects  map[string][]byte
	modified time.Time
	pageSize int
	gets     int32
}

func (c *fakeClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(c.modified),
	}, nil
}

func (c *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	atomic.AddInt32(&c.gets, 1)
	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	lo, hi := int64(0), int64(len(data))
	if r := aws.ToString(in.Range); r != "" {
		bounds := strings.SplitN(strings.TrimPrefix(r, "bytes="), "-", 2)
		lo, _ = strconv.ParseInt(bounds[0], 10, 64)
		last, _ := strconv.ParseInt(bounds[1], 10, 64)
		if lo >= int64(len(data)) {
			return nil, &smithy.GenericAPIError{Code: "InvalidRange", Message: "range not satisfiable"}
		}
		if last+1 < hi {
			hi = last + 1
		}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data[lo:hi]))}, nil
}

func (c *fakeClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix, delim := aws.ToString(in.Prefix), aws.ToString(in.Delimiter)

	seen := make(map[string]bool)
	var keys []string
	for key := range c.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if delim != "" {
			if i := strings.Index(key[len(prefix):], delim); i >= 0 {
				key = key[:len(prefix)+i+len(delim)]
			}
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	after := aws.ToString(in.ContinuationToken)
	limit := c.pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < limit {
		limit = int(*in.MaxKeys)
	}

	out := &s3.ListObjectsV2Output{}
	n := 0
	for _, key := range keys {
		if after != "" && key <= after {
			continue
		}
		if n == limit {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(after)
			break
		}
		if delim != "" && strings.HasSuffix(key, delim) && key != prefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(key)})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
		after = key
		n++
	}
	return out, nil
}

func setup(t *testing.T) (*FS, *fakeClient, []byte) {
	t.Helper()
	big := make([]byte, 200000)
	for i := range big {
		big[i] = byte(i % 251)
	}
	c := &fakeClient{
		objects: map[string][]byte{
			"data/hello.txt":  []byte("Hello World!\n"),
			"data/docs/":      nil,
			"data/docs/a.txt": []byte("a"),
			"data/docs/b.txt": []byte("bb"),
			"data/big.bin":    big,
			"other/x":         []byte("x"),
		},
		modified: time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC),
		pageSize: 1,
	}
	return New(c, "bucket", "/data/", time.Second), c, big
}

func names(entries []vfs.Dirent) []string {
	var ns []string
	for _, ent := range entries {
		ns = append(ns, ent.Name)
	}
	return ns
}

func TestLookupAndGetattr(t *testing.T) {
	ctx := context.Background()
	f, c, _ := setup(t)

	hello, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if hello.Attr.Kind != vfs.KindFile || hello.Attr.Size != 13 || !hello.Attr.Mtime.Equal(c.modified) {
		t.Errorf("unexpected attributes %+v", hello.Attr)
	}
	attr, err := f.Getattr(ctx, hello.Attr.Ino)
	if err != nil || attr.Attr.Size != 13 {
		t.Errorf("unexpected getattr %+v (%v)", attr.Attr, err)
	}

	docs, err := f.Lookup(ctx, vfs.RootIno, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if docs.Attr.Kind != vfs.KindDir || docs.Attr.Perm != 0555 {
		t.Errorf("unexpected attributes %+v", docs.Attr)
	}
	if _, err := f.Lookup(ctx, docs.Attr.Ino, "a.txt"); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	if _, err := f.Lookup(ctx, vfs.RootIno, "x"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound outside the prefix, got %v", err)
	}
	if _, err := f.Lookup(ctx, hello.Attr.Ino, "a"); !errors.Is(err, vfs.ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
	if _, err := f.Lookup(ctx, vfs.RootIno, "\xff"); !errors.Is(err, vfs.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	delete(c.objects, "data/hello.txt")
	if _, err := f.Getattr(ctx, hello.Attr.Ino); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a deleted object, got %v", err)
	}
}

func TestReaddir(t *testing.T) {
	ctx := context.Background()
	f, _, _ := setup(t)

	s, err := f.Readdir(ctx, vfs.RootIno, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{".", "..", "big.bin", "docs", "hello.txt"}
	if got := names(entries); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i, ent := range entries {
		if ent.Offset != int64(i+1) {
			t.Errorf("entry %s: expected offset %d, got %d", ent.Name, i+1, ent.Offset)
		}
	}
	if entries[3].Kind != vfs.KindDir || entries[4].Kind != vfs.KindFile {
		t.Errorf("unexpected kinds %+v", entries)
	}

	s, err = f.Readdir(ctx, vfs.RootIno, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	rest, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(rest); strings.Join(got, ",") != "docs,hello.txt" {
		t.Errorf("expected to resume after big.bin, got %v", got)
	}
	if rest[0].Ino != entries[3].Ino {
		t.Errorf("expected stable identities, got %d and %d", rest[0].Ino, entries[3].Ino)
	}

	// The directory marker object is not listed.
	s, err = f.Readdir(ctx, entries[3].Ino, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := vfs.ReadAll(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(sub); strings.Join(got, ",") != ".,..,a.txt,b.txt" {
		t.Errorf("unexpected listing %v", got)
	}
	if sub[1].Ino != vfs.RootIno {
		t.Errorf("expected .. to be the root, got %d", sub[1].Ino)
	}

	if _, err := f.Readdir(ctx, entries[4].Ino, 0, 0); !errors.Is(err, vfs.ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	f, c, big := setup(t)

	hello, err := f.Lookup(ctx, vfs.RootIno, "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	data, err := f.Read(ctx, hello.Attr.Ino, 0, 0, 5, 0, nil)
	if err != nil || string(data) != "Hello" {
		t.Errorf("unexpected read %q (%v)", data, err)
	}
	data, err = f.Read(ctx, hello.Attr.Ino, 0, 100, 5, 0, nil)
	if err != nil || len(data) != 0 {
		t.Errorf("expected EOF, got %q (%v)", data, err)
	}

	bin, err := f.Lookup(ctx, vfs.RootIno, "big.bin")
	if err != nil {
		t.Fatal(err)
	}

	atomic.StoreInt32(&c.gets, 0)
	data, err = f.Read(ctx, bin.Attr.Ino, 0, 1000, 150000, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, big[1000:151000]) {
		t.Errorf("chunked read returned the wrong bytes")
	}
	if gets := atomic.LoadInt32(&c.gets); gets != 3 {
		t.Errorf("expected 3 ranged gets, got %d", gets)
	}

	// Chunks past the end of the object come back short or empty.
	data, err = f.Read(ctx, bin.Attr.Ino, 0, 190000, 140000, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, big[190000:]) {
		t.Errorf("expected the last %d bytes, got %d", len(big)-190000, len(data))
	}

	if _, err := f.Read(ctx, vfs.RootIno, 0, 0, 1, 0, nil); !errors.Is(err, vfs.ErrNotFile) {
		t.Errorf("expected ErrNotFile, got %v", err)
	}
	if _, err := f.Read(ctx, 1000, 0, 0, 1, 0, nil); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	if !isNotFound(&types.NoSuchKey{}) || !isNotFound(&smithy.GenericAPIError{Code: "NotFound"}) {
		t.Errorf("expected not found errors to be recognised")
	}
	if isNotFound(errors.New("boom")) {
		t.Errorf("unexpected not found classification")
	}
	if !isInvalidRange(errors.Wrap(&smithy.GenericAPIError{Code: "InvalidRange"}, "get")) {
		t.Errorf("expected wrapped InvalidRange to be recognised")
	}
}

func TestPrefixShadowsObject(t *testing.T) {
	ctx := context.Background()
	for _, pageSize := range []int{1, 2, 1000} {
		c := &fakeClient{
			objects: map[string][]byte{
				"a":     []byte("file"),
				"a.txt": []byte("x"),
				"a/b":   []byte("child"),
			},
			pageSize: pageSize,
		}
		f := New(c, "bucket", "", time.Second)

		s, err := f.Readdir(ctx, vfs.RootIno, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		entries, err := vfs.ReadAll(ctx, s)
		if err != nil {
			t.Fatal(err)
		}
		if got := names(entries); strings.Join(got, ",") != ".,..,a,a.txt" {
			t.Fatalf("page size %d: unexpected listing %v", pageSize, got)
		}
		if entries[2].Kind != vfs.KindDir || entries[3].Kind != vfs.KindFile {
			t.Errorf("page size %d: unexpected kinds %+v", pageSize, entries)
		}

		ent, err := f.Lookup(ctx, vfs.RootIno, "a")
		if err != nil {
			t.Fatal(err)
		}
		if ent.Attr.Kind != vfs.KindDir || ent.Attr.Ino != entries[2].Ino {
			t.Errorf("page size %d: expected lookup to agree with the listing, got %+v", pageSize, ent.Attr)
		}
		attr, err := f.Getattr(ctx, ent.Attr.Ino)
		if err != nil || attr.Attr.Kind != vfs.KindDir {
			t.Errorf("page size %d: unexpected getattr %+v (%v)", pageSize, attr.Attr, err)
		}
		if _, err := f.Read(ctx, ent.Attr.Ino, 0, 0, 4, 0, nil); !errors.Is(err, vfs.ErrNotFile) {
			t.Errorf("page size %d: expected ErrNotFile, got %v", pageSize, err)
		}
		if _, err := f.Lookup(ctx, ent.Attr.Ino, "b"); err != nil {
			t.Errorf("page size %d: unexpected error %v", pageSize, err)
		}
	}
}
