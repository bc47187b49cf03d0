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
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kurafs/asyncfs/pkg/inode"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

// dirStream pages through ListObjectsV2 on demand. Objects and common
// prefixes of a page are merged by key, which together with the listing
// order of S3 numbers entries identically on every pass.
//
// An object "a" and a prefix "a/" share one name. The directory wins, so an
// object is held in pending until the listing has moved past the point where
// its prefix twin would sort.
type dirStream struct {
	fs      *FS
	key     string
	pager   *s3.ListObjectsV2Paginator
	resume  int64
	next    int64
	buf     []vfs.Dirent
	dirs    map[string]bool
	pending []string
}

func newDirStream(f *FS, key string, self, parent uint64, resume int64) *dirStream {
	s := &dirStream{
		fs:  f,
		key: key,
		pager: s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(f.bucket),
			Prefix:    aws.String(f.listPrefix(key)),
			Delimiter: aws.String("/"),
		}),
		resume: resume,
		dirs:   make(map[string]bool),
	}
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
			if s.pager == nil || !s.pager.HasMorePages() {
				return vfs.Dirent{}, io.EOF
			}
			out, err := s.pager.NextPage(ctx)
			if err != nil {
				return vfs.Dirent{}, errors.Wrapf(err, "list %s", s.key)
			}
			s.fill(out)
			continue
		}

		ent := s.buf[0]
		s.buf = s.buf[1:]
		if ent.Offset > s.resume {
			return ent, nil
		}
	}
}

func (s *dirStream) fill(out *s3.ListObjectsV2Output) {
	type item struct {
		name string
		kind vfs.Kind
	}
	prefix := s.fs.listPrefix(s.key)

	var (
		items []item
		last  string
	)
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if key > last {
			last = key
		}
		name := strings.TrimPrefix(key, prefix)
		if !vfs.ValidName(name) {
			// Directory markers ("dir/") and keys with empty components.
			continue
		}
		s.pending = append(s.pending, name)
	}
	for _, cp := range out.CommonPrefixes {
		p := aws.ToString(cp.Prefix)
		if p > last {
			last = p
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/")
		if !vfs.ValidName(name) {
			continue
		}
		s.dirs[name] = true
		items = append(items, item{name, vfs.KindDir})
	}

	final := !aws.ToBool(out.IsTruncated)
	var held []string
	for _, name := range s.pending {
		switch {
		case s.dirs[name]:
			// Shadowed by the directory of the same name.
		case final || prefix+name+"/" <= last:
			items = append(items, item{name, vfs.KindFile})
		default:
			held = append(held, name)
		}
	}
	s.pending = held
	sort.SliceStable(items, func(i, j int) bool { return items[i].name < items[j].name })

	for _, it := range items {
		ino := s.fs.remember(inode.Join(s.key, it.name), it.kind)
		s.add(ino, it.kind, it.name)
	}
}

func (s *dirStream) Close() error {
	s.pager = nil
	s.buf = nil
	s.pending = nil
	return nil
}
