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

package doc

import "github.com/kurafs/asyncfs/pkg/cli"

var ArchitectureCmd = &cli.Command{
	UsageLine: "architecture",
	Short:     "asyncfs architecture overview",
	Long: `
A mounted asyncfs filesystem is made of four layers.

  session (pkg/mount)
      Opens the FUSE device, negotiates INIT with the kernel and runs the
      request loop. Each request is handed to the adapter on its own
      goroutine; replies are written back as soon as they are ready, in
      whatever order they complete. Interrupted requests have their
      contexts cancelled.

  adapter (pkg/adapter)
      Translates kernel requests into calls on a backend: GETATTR, LOOKUP,
      OPEN, READ, READDIR and RELEASE. Directory entries are packed into the
      kernel's dirent layout until the requested buffer size is reached.
      Everything that would modify the filesystem is refused with EROFS.

  bridge (pkg/bridge)
      A bounded executor running backend futures. It lets synchronous
      callers wait on asynchronous work without ever running two backend
      calls on the same goroutine stack.

  backend (pkg/backend/...)
      Implements Getattr, Lookup, Readdir and Read against some store:
      memory, a local directory, S3, a bolt database, an SQL database,
      Google Drive, or another asyncfs process over gRPC.

Backends hand out inode numbers from a per-mount arena (pkg/inode); the root
is always inode 1. Directory listings use offset 1 for ".", 2 for ".." and
consecutive offsets for children so that a reader can resume from any
offset the kernel hands back.
`,
}
