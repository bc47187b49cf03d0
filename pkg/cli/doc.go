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

// Package cli allows the construction of structured command-line interfaces with sub-commands and
// help topics. This is very similar to the interface in git where the top-level program name (git)
// is preceded by a qualifier that determines what sub-command to execute
// (git {reflog,commit,cherry-pick}).
//
// Package cli explicitly avoid init time global hooks and has a minimal binary size footprint.
//
// Example (the asyncfs binary):
//
//	var commands cli.Commands
//	commands = append(commands, fuseserver.FuseServerCmd)
//	commands = append(commands, fsserver.FSServerCmd)
//
//	// Commands without a Run function are listed as help topics.
//	commands = append(commands, doc.ArchitectureCmd)
//	commands = append(commands, doc.ConfigurationCmd)
//
//	abstract := "Asyncfs serves read-only filesystems from pluggable asynchronous backends over FUSE."
//	if err := cli.Process(abstract, commands); err != nil {
//		os.Exit(1)
//	}
//
// This generates the following top-level behaviour:
//
//	$ asyncfs {,-h,help}
//	Asyncfs serves read-only filesystems from pluggable asynchronous backends over FUSE.
//
//	Usage:
//
//	    asyncfs command [arguments]
//
//	The commands are:
//
//	        fuse-server            mount a backend read-only at the specified mount point
//	        fs-server              serve a backend to remote fuse-servers over gRPC
//
//	Use 'asyncfs help [command]' for more information about a command.
//
//	Additional help topics:
//
//	        architecture           asyncfs architecture overview
//	        configuration          asyncfs configuration overview
//
//	Use "asyncfs help [topic]" for more information about that topic.
//
// Doing the same for a help topic prints its long description:
//
//	$ asyncfs help architecture
//	Topic: asyncfs architecture overview
//	...
//
// Individual commands also have their own '-h' switches for additional command details.
//
//	$ asyncfs fs-server -h
//	Usage:
//
//	    asyncfs fs-server [-config file] [-backend kind] [-source src] [-port port] [logger flags]
//	...
//
package cli

