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
	"database/sql/driver"
	"strconv"
	"time"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

// Schema creates the two tables the backend reads. Drivers differ in how
// they type timestamps; integer seconds since the epoch are accepted as well.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
	ino        BIGINT PRIMARY KEY,
	id         TEXT NOT NULL,
	type       TEXT NOT NULL,
	name       TEXT NOT NULL,
	parent_ino BIGINT NOT NULL,
	atime      TIMESTAMP NOT NULL,
	mtime      TIMESTAMP NOT NULL,
	ctime      TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS content (
	ino     BIGINT PRIMARY KEY,
	size    BIGINT NOT NULL,
	content BYTEA
);
`

const (
	TypeDir     = "dir"
	TypeFile    = "file"
	TypeSymlink = "symlink"
)

type metadataRow struct {
	Ino       uint64    `db:"ino"`
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Name      string    `db:"name"`
	ParentIno uint64    `db:"parent_ino"`
	Atime     timestamp `db:"atime"`
	Mtime     timestamp `db:"mtime"`
	Ctime     timestamp `db:"ctime"`
	Size      uint64    `db:"size"`
}

var metadataColumns = []string{
	"m.ino", "m.id", "m.type", "m.name", "m.parent_ino",
	"m.atime", "m.mtime", "m.ctime", "COALESCE(c.size, 0) AS size",
}

func kind(typ string) vfs.Kind {
	switch typ {
	case TypeDir:
		return vfs.KindDir
	case TypeSymlink:
		return vfs.KindSymlink
	}
	return vfs.KindFile
}

// timestamp scans the time representations drivers hand back.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case int64:
		t.Time = time.Unix(v, 0)
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return errors.Errorf("cannot scan %T into a timestamp", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(secs, 0)
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return errors.Errorf("unrecognised timestamp %q", s)
}

func (t timestamp) Value() (driver.Value, error) {
	return t.Time, nil
}
