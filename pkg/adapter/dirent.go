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

package adapter

import (
	"encoding/binary"

	"bazil.org/fuse"
	"github.com/kurafs/asyncfs/pkg/vfs"
)

// direntHeaderSize is the size of struct fuse_dirent without its name: ino,
// off, namelen and type.
const direntHeaderSize = 24

// direntSize is the space an entry called name takes in a readdir reply.
// Entries are padded to eight bytes.
func direntSize(name string) int {
	return (direntHeaderSize + len(name) + 7) &^ 7
}

// appendDirent encodes ent at the end of buf unless that would grow buf past
// limit, in which case buf is returned untouched along with false. The off
// field carries the entry's own resume offset, which is what the kernel
// hands back to continue the listing after it.
func appendDirent(buf []byte, ent vfs.Dirent, limit int) ([]byte, bool) {
	size := direntSize(ent.Name)
	if len(buf)+size > limit {
		return buf, false
	}

	var hdr [direntHeaderSize]byte
	binary.NativeEndian.PutUint64(hdr[0:], ent.Ino)
	binary.NativeEndian.PutUint64(hdr[8:], uint64(ent.Offset))
	binary.NativeEndian.PutUint32(hdr[16:], uint32(len(ent.Name)))
	binary.NativeEndian.PutUint32(hdr[20:], uint32(direntType(ent.Kind)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, ent.Name...)
	for pad := size - direntHeaderSize - len(ent.Name); pad > 0; pad-- {
		buf = append(buf, 0)
	}
	return buf, true
}

func direntType(k vfs.Kind) fuse.DirentType {
	switch k {
	case vfs.KindFile:
		return fuse.DT_File
	case vfs.KindDir:
		return fuse.DT_Dir
	case vfs.KindSymlink:
		return fuse.DT_Link
	case vfs.KindBlockDevice:
		return fuse.DT_Block
	case vfs.KindCharDevice:
		return fuse.DT_Char
	case vfs.KindNamedPipe:
		return fuse.DT_FIFO
	case vfs.KindSocket:
		return fuse.DT_Socket
	}
	return fuse.DT_Unknown
}
