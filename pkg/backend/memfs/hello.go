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

package memfs

import "time"

// HelloContent is the content of hello.txt in the Hello filesystem.
const HelloContent = "Hello World!\n"

// Hello returns the smallest useful filesystem: a root directory holding
// hello.txt.
func Hello() *FS {
	f := New(WithTTL(time.Second))
	if _, err := f.WriteFile("hello.txt", []byte(HelloContent), 0644); err != nil {
		panic(err)
	}
	return f
}
