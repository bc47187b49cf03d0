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

package boltfs

import (
	"strings"

	"github.com/kurafs/asyncfs/pkg/proquint"
	"github.com/kurafs/asyncfs/pkg/vfs"
)

const (
	evenMark = "~"
	oddMark  = "~~"
)

// Name returns the directory entry name for a raw bolt key. Keys that are not
// usable as names are shown as a marker followed by their proquint encoding,
// "~~" marking keys of odd length.
func Name(key []byte) string {
	s := string(key)
	if vfs.ValidName(s) && !strings.HasPrefix(s, evenMark) {
		return s
	}
	if len(key)%2 == 1 {
		return oddMark + string(proquint.EncodeBytes(key))
	}
	return evenMark + string(proquint.EncodeBytes(key))
}

// Key reverses Name.
func Key(name string) ([]byte, bool) {
	if !strings.HasPrefix(name, evenMark) {
		return []byte(name), true
	}

	odd := strings.HasPrefix(name, oddMark)
	enc := strings.TrimPrefix(name, evenMark)
	if odd {
		enc = strings.TrimPrefix(name, oddMark)
	}
	key, err := proquint.DecodeBytes([]byte(enc))
	if err != nil {
		return nil, false
	}
	if odd {
		if len(key) == 0 || key[len(key)-1] != 0 {
			return nil, false
		}
		key = key[:len(key)-1]
	}
	if Name(key) != name {
		return nil, false
	}
	return key, true
}
