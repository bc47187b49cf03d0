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

// ChunkSize is the unit remote reads are split into; the kernel rarely asks
// for more than 128KiB at a time, so most reads are one or two chunks.
const ChunkSize = 64 * 1024

// MaxChunks bounds how many chunks of a single read are fetched at once.
const MaxChunks = 8
