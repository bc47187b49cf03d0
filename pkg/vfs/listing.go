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

package vfs

import (
	"context"
	"io"
)

// Listing accumulates the entries of a directory and numbers them 1..n in
// the order they are added. Backends that can produce a full listing cheaply
// build one per Readdir call; the numbering only depends on the enumeration
// order, so resuming from any offset is exact as long as that order is
// stable.
type Listing struct {
	entries []Dirent
}

// NewListing returns a listing that starts with the "." and ".." entries.
func NewListing(self, parent uint64) *Listing {
	l := &Listing{}
	l.Add(self, KindDir, ".")
	l.Add(parent, KindDir, "..")
	return l
}

// Add appends an entry and returns the offset assigned to it.
func (l *Listing) Add(ino uint64, kind Kind, name string) int64 {
	off := int64(len(l.entries) + 1)
	l.entries = append(l.entries, Dirent{Ino: ino, Offset: off, Kind: kind, Name: name})
	return off
}

// Len returns the number of entries added so far.
func (l *Listing) Len() int {
	return len(l.entries)
}

// Stream returns the entries with an offset greater than offset.
func (l *Listing) Stream(offset int64) DirStream {
	return NewSliceStream(l.entries, offset)
}

type sliceStream struct {
	entries []Dirent
	next    int
}

// NewSliceStream returns a DirStream over entries, skipping those whose
// offset is not greater than offset. entries must be sorted by offset.
func NewSliceStream(entries []Dirent, offset int64) DirStream {
	s := &sliceStream{entries: entries}
	for s.next < len(entries) && entries[s.next].Offset <= offset {
		s.next++
	}
	return s
}

func (s *sliceStream) Next(ctx context.Context) (Dirent, error) {
	if s.next >= len(s.entries) {
		return Dirent{}, io.EOF
	}
	ent := s.entries[s.next]
	s.next++
	return ent, nil
}

func (s *sliceStream) Close() error {
	s.next = len(s.entries)
	return nil
}
