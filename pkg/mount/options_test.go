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

package mount

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kurafs/asyncfs/pkg/backend/memfs"
	"github.com/kurafs/asyncfs/pkg/bridge"
	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/pkg/errors"
)

func TestPassthroughFlags(t *testing.T) {
	testCases := []struct {
		flag string
		ok   bool
		nop  bool
	}{
		{"ro", true, false},
		{"rw", true, true},
		{"auto_unmount", false, false},
		{"allow_other", true, false},
		{"allow_root", false, false},
		{"default_permissions", true, false},
		{"nonempty", true, false},
		{"async_read", true, false},
		{"max_readahead=131072", true, false},
		{"max_readahead=lots", false, false},
		{"fsname=tables", true, false},
		{"fsname", false, false},
		{"volname=Tables", true, false},
		{"daemon_timeout=60", true, false},
		{"daemon_timeout=1m", false, false},
		{" local ", true, false},
		{"writeback_cache", false, false},
		{"bogus", false, false},
	}
	for _, tc := range testCases {
		opt, err := passthrough(tc.flag)
		if (err == nil) != tc.ok {
			t.Errorf("passthrough(%q): expected ok=%t, got %v", tc.flag, tc.ok, err)
			continue
		}
		if tc.ok && (opt == nil) != tc.nop {
			t.Errorf("passthrough(%q): expected no-op=%t", tc.flag, tc.nop)
		}
	}
}

func TestFuseOptions(t *testing.T) {
	o := DefaultOptions()
	o.Flags = []string{"default_permissions", "rw"}
	opts, err := o.fuseOptions()
	if err != nil {
		t.Fatal(err)
	}
	// fsname, ro, default_permissions.
	if len(opts) != 3 {
		t.Errorf("expected 3 mount options, got %d", len(opts))
	}

	o.AllowRoot = true
	if _, err := o.fuseOptions(); err == nil || !strings.Contains(err.Error(), "allow_root not supported") {
		t.Errorf("expected allow_root to be rejected, got %v", err)
	}
	o.AllowRoot, o.Flags = false, []string{"auto_unmount"}
	if _, err := o.fuseOptions(); err == nil || !strings.Contains(err.Error(), "auto_unmount not supported") {
		t.Errorf("expected the auto_unmount flag to be rejected, got %v", err)
	}
}

func TestBeginRejectsBadMountpoints(t *testing.T) {
	exec := bridge.NewExecutor(1)
	defer exec.Close()
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name       string
		mountpoint string
		flags      []string
		allowRoot  bool
		op         string
	}{
		{"missing", filepath.Join(dir, "missing"), nil, false, "mount"},
		{"file", file, nil, false, "mount"},
		{"flag", dir, []string{"bogus"}, false, "options"},
		{"allow-root", dir, nil, true, "options"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Flags = tc.flags
			opts.AllowRoot = tc.allowRoot
			serve, shutdown, err := Begin(context.Background(), log.Discarder(), memfs.Hello(), exec, tc.mountpoint, opts)
			var merr *MountError
			if !errors.As(err, &merr) {
				t.Fatalf("expected a *MountError, got %v", err)
			}
			if merr.Op != tc.op || merr.Mountpoint != tc.mountpoint {
				t.Errorf("unexpected mount error %+v", merr)
			}
			if serve != nil || shutdown != nil {
				t.Errorf("expected no serve or shutdown on failure")
			}
		})
	}
}
