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

// Window clips a read of n bytes at offset off against an object of the
// given size. The returned range is end exclusive; an empty range means the
// read starts at or past the end of the object.
func Window(size, off int64, n int) (start, end int64) {
	if off < 0 {
		off = 0
	}
	if off >= size || n <= 0 {
		return size, size
	}
	end = off + int64(n)
	if end > size || end < off {
		end = size
	}
	return off, end
}

// Slice returns the part of content a read of n bytes at off would see. The
// result aliases content.
func Slice(content []byte, off int64, n int) []byte {
	start, end := Window(int64(len(content)), off, n)
	return content[start:end]
}
