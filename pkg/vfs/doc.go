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

// Package vfs defines the contract every asyncfs backend implements: four
// read-oriented operations over numeric node identities, plus the attribute,
// entry and listing types they exchange with the protocol adapter.
//
// Identity 1 (RootIno) is always the root directory. Backends without native
// inode numbers allocate the rest through package inode. Operations may block
// on I/O; they are run on the bridge's worker pool and never on the goroutine
// serving the kernel request.
package vfs
