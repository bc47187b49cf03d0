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
	"fmt"
	"strconv"
	"strings"
)

// ParseMode parses a log level name (info, warn, error, fatal, debug) into
// the set of modes at or above that level.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DefaultMode | DebugMode, nil
	case "info":
		return DefaultMode, nil
	case "warn", "warning":
		return WarnMode | ErrorMode, nil
	case "error":
		return ErrorMode, nil
	case "fatal":
		return FatalMode, nil
	case "disabled", "off":
		return DisabledMode, nil
	}
	return DisabledMode, fmt.Errorf("unrecognized log level %q", s)
}

// ModeFlag is a flag.Value for -log-mode. Setting it changes the global log
// mode.
type ModeFlag struct {
	level string
}

func (m *ModeFlag) String() string {
	if m == nil || m.level == "" {
		return "info"
	}
	return m.level
}

// IsSet reports whether the flag was given.
func (m *ModeFlag) IsSet() bool {
	return m != nil && m.level != ""
}

func (m *ModeFlag) Set(s string) error {
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	m.level = s
	SetGlobalLogMode(mode)
	return nil
}

// FilterFlag is a flag.Value for -log-filter, a comma separated list of
// pattern:level settings overriding the global mode for matching files (see
// SetFileLogMode).
type FilterFlag struct {
	settings []string
}

func (f *FilterFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(f.settings, ",")
}

func (f *FilterFlag) Set(s string) error {
	for _, setting := range strings.Split(s, ",") {
		if setting == "" {
			continue
		}
		i := strings.LastIndexByte(setting, ':')
		if i <= 0 {
			return fmt.Errorf("malformed log filter %q, expected file:level", setting)
		}
		mode, err := ParseMode(setting[i+1:])
		if err != nil {
			return err
		}
		SetFileLogMode(setting[:i], mode)
		f.settings = append(f.settings, setting)
	}
	return nil
}

// TracePointFlag is a flag.Value for -log-backtrace-at, a comma separated
// list of file:line locations at which logging also emits a stack trace.
type TracePointFlag struct {
	points []string
}

func (t *TracePointFlag) String() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.points, ",")
}

func (t *TracePointFlag) Set(s string) error {
	for _, tp := range strings.Split(s, ",") {
		if tp == "" {
			continue
		}
		i := strings.LastIndexByte(tp, ':')
		if i <= 0 {
			return fmt.Errorf("malformed backtrace point %q, expected file:line", tp)
		}
		if _, err := strconv.Atoi(tp[i+1:]); err != nil {
			return fmt.Errorf("malformed backtrace point %q: %v", tp, err)
		}
		SetTracePoint(tp)
		t.points = append(t.points, tp)
	}
	return nil
}
