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

package log

import (
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// registry is a copy-on-write map. It is consulted by every logging statement
// and changed only by configuration, so lookups are lock free and updates copy
// the whole map under mu.
type registry[V any] struct {
	mu sync.Mutex
	m  atomic.Pointer[map[string]V]
}

func newRegistry[V any]() *registry[V] {
	r := &registry[V]{}
	m := make(map[string]V)
	r.m.Store(&m)
	return r
}

func (r *registry[V]) load() map[string]V {
	return *r.m.Load()
}

func (r *registry[V]) get(key string) (V, bool) {
	v, ok := r.load()[key]
	return v, ok
}

func (r *registry[V]) update(fn func(m map[string]V)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	next := make(map[string]V, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	fn(next)
	r.m.Store(&next)
}

var (
	globalMode  atomic.Int64
	tracePoints = newRegistry[struct{}]()
	fileModes   = newRegistry[Mode]()
)

func init() {
	globalMode.Store(int64(DefaultMode))
}

// SetGlobalLogMode sets the global log mode to the one specified. Logging
// outside what's included in the mode is thereby suppressed.
func SetGlobalLogMode(m Mode) {
	globalMode.Store(int64(m))
}

// GetGlobalLogMode gets the currently set global log mode.
func GetGlobalLogMode() Mode {
	return Mode(globalMode.Load())
}

// SetTracePoint enables the provided tracepoint. A tracepoint is of the form
// filename.go:line-number and names a logging statement that, once enabled,
// also emits a backtrace whenever it executes, whatever its level.
func SetTracePoint(tp string) {
	tracePoints.update(func(m map[string]struct{}) { m[tp] = struct{}{} })
}

// ResetTracePoint disables the provided tracepoint.
func ResetTracePoint(tp string) {
	tracePoints.update(func(m map[string]struct{}) { delete(m, tp) })
}

// GetTracePoint checks if the corresponding tracepoint is enabled.
func GetTracePoint(tp string) (tpenabled bool) {
	_, ok := tracePoints.get(tp)
	return ok
}

// SetFileLogMode overrides the global log mode for the source files matched
// by pattern. A pattern names files by base name ("session.go"), by a
// trailing part of their path ("mount/session.go"), or by a glob over either
// ("mount/*.go"). When several patterns match a file the longest one wins.
func SetFileLogMode(pattern string, m Mode) {
	fileModes.update(func(fm map[string]Mode) { fm[pattern] = m })
}

// GetFileLogMode returns the mode set for exactly this pattern.
func GetFileLogMode(pattern string) (m Mode, ok bool) {
	return fileModes.get(pattern)
}

// ResetFileLogMode removes the override for pattern; matching files are
// filtered as per the global log mode again.
func ResetFileLogMode(pattern string) {
	fileModes.update(func(fm map[string]Mode) { delete(fm, pattern) })
}

// fileMode returns the override in effect for the source file at file.
func fileMode(file string) (Mode, bool) {
	fm := fileModes.load()
	if len(fm) == 0 {
		return DisabledMode, false
	}

	var (
		best  string
		mode  Mode
		found bool
	)
	for pattern, m := range fm {
		if !matchFile(pattern, file) {
			continue
		}
		if !found || len(pattern) > len(best) || (len(pattern) == len(best) && pattern < best) {
			best, mode, found = pattern, m, true
		}
	}
	return mode, found
}

// matchFile matches pattern against as many trailing elements of file as
// the pattern has.
func matchFile(pattern, file string) bool {
	parts := strings.Split(filepath.ToSlash(file), "/")
	n := strings.Count(pattern, "/") + 1
	if n > len(parts) {
		return false
	}
	ok, err := path.Match(pattern, strings.Join(parts[len(parts)-n:], "/"))
	return err == nil && ok
}
