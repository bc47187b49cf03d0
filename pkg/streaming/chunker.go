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

package streaming

// Chunker is an iterator over the ChunkSize aligned parts of the byte range
// [start, end).
type Chunker struct {
	start, end int64
	lo, hi     int64
}

func NewChunker(start, end int64) *Chunker {
	if end < start {
		end = start
	}
	return &Chunker{start: start, end: end, lo: -1, hi: start}
}

// Value returns the current range of the Chunker, end exclusive.
func (c *Chunker) Value() (lo, hi int64) {
	return c.lo, c.hi
}

// Next advances the iterator to the next chunk. It must be called before the
// first Value.
func (c *Chunker) Next() bool {
	if c.hi >= c.end {
		return false
	}
	c.lo = c.hi
	c.hi = (c.lo/ChunkSize + 1) * ChunkSize
	if c.hi > c.end {
		c.hi = c.end
	}
	return true
}

// Ranges collects every chunk of [start, end).
func Ranges(start, end int64) [][2]int64 {
	var rs [][2]int64
	c := NewChunker(start, end)
	for c.Next() {
		lo, hi := c.Value()
		rs = append(rs, [2]int64{lo, hi})
	}
	return rs
}
