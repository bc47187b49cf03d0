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
	"io"
	"path/filepath"
	"runtime"
)

// Flag determines the header format of every log line; the bits are or'ed
// together.
type Flag int

const (
	Ldate         Flag = 1 << iota // the date in the local time zone: yymmdd
	Ltime                          // the time in the local time zone: hh:mm:ss
	Lmicroseconds                  // microsecond resolution: hh:mm:ss.uuuuuu, assumes Ltime
	Llongfile                      // full file name and line number: /a/b/c/d.go:23
	Lshortfile                     // final file name element and line number: d.go:23, overrides Llongfile
	LUTC                           // if Ldate or Ltime is set, use UTC rather than the local time zone
	Lmode                          // the single character mode the line was logged at: I, W, E, F, D

	LstdFlags = Lmode | Ldate | Lmicroseconds | Lshortfile
)

type option func(l *Logger)

// Writer sets the destination of the logger's output.
func Writer(w io.Writer) option {
	return func(l *Logger) {
		l.w = w
	}
}

// Flags sets the header format of the logger.
func Flags(f Flag) option {
	return func(l *Logger) {
		l.flag = f
	}
}

// SkipBasePath trims the repository root from the file names printed with
// Llongfile, so that headers read pkg/mount/session.go:42 instead of the
// path on the build machine.
func SkipBasePath() option {
	return func(l *Logger) {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			return
		}
		// This file lives at <root>/pkg/log/options.go.
		l.basePath = filepath.Dir(filepath.Dir(filepath.Dir(file)))
	}
}

// BasePath trims the given prefix from the file names printed with Llongfile.
func BasePath(path string) option {
	return func(l *Logger) {
		l.basePath = filepath.Clean(path)
	}
}
