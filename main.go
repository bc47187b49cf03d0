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

package main

import (
	"os"

	"github.com/kurafs/asyncfs/doc"
	"github.com/kurafs/asyncfs/pkg/cli"

	fsserver "github.com/kurafs/asyncfs/cmd/fs-server"
	fuseserver "github.com/kurafs/asyncfs/cmd/fuse-server"
)

func main() {
	var commands cli.Commands

	// fuse-server mounts a backend locally, fs-server exports one over gRPC
	// for a remote fuse-server to mount.
	commands = append(commands, fuseserver.FuseServerCmd)
	commands = append(commands, fsserver.FSServerCmd)

	commands = append(commands, doc.ArchitectureCmd)
	commands = append(commands, doc.ConfigurationCmd)

	abstract := "Asyncfs serves read-only filesystems from pluggable asynchronous backends over FUSE."
	if err := cli.Process(abstract, commands); err != nil {
		os.Exit(1)
	}
}
