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

import "strings"

// Mode is a set of log levels. Every logging statement is made at exactly one
// level and is emitted if that level is part of the mode in effect for its
// source file: the file's override if one matches (see SetFileLogMode),
// otherwise the global mode. Fatal statements are always emitted.
type Mode int

const (
	InfoMode Mode = 1 << iota
	WarnMode
	ErrorMode
	FatalMode
	DebugMode

	// The zero-value of DisableMode can also be used to check if modes
	// intersect, i.e.  (lmode&gmode) != DisabledMode checks if the local
	// logger mode is filtered through by the global mode.
	DisabledMode = 0
	DefaultMode  = InfoMode | WarnMode | ErrorMode
)

var levels = []struct {
	mode   Mode
	letter byte
	name   string
}{
	{InfoMode, 'I', "info"},
	{WarnMode, 'W', "warn"},
	{ErrorMode, 'E', "error"},
	{FatalMode, 'F', "fatal"},
	{DebugMode, 'D', "debug"},
}

// String lists the levels in m, e.g. "info|warn|error".
func (m Mode) String() string {
	if m == DisabledMode {
		return "disabled"
	}
	var names []string
	for _, l := range levels {
		if m&l.mode != 0 {
			names = append(names, l.name)
		}
	}
	if len(names) == 0 {
		return "?"
	}
	return strings.Join(names, "|")
}

// byte is the letter heading lines logged at the single level m.
func (m Mode) byte() byte {
	for _, l := range levels {
		if m == l.mode {
			return l.letter
		}
	}
	return '?'
}
