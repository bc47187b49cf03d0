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

// Portions of this code originated in the Go source code, under cmd/go/internal/base.

package cli

import (
	"errors"
	"flag"
	"strings"
)

// A Command is a sub-command such as '<program> fuse-server ...'. A Command
// without a Run function is a help topic, only reachable through
// '<program> help <topic>'.
type Command struct {
	// Run runs the command with the arguments following its name, parsed as
	// needed with cmd.FlagSet. Flag parsing failures should be returned
	// wrapped with CmdParseError so that they are reported with the
	// command's usage.
	Run func(cmd *Command, args []string) error

	// UsageLine is the one-line usage message. Its first word is the
	// command's name.
	UsageLine string

	// Short is the description shown in the '<program> help' listing.
	Short string

	// Long is shown by '<program> help <command>'.
	Long string

	// FlagSet holds the command's flags. Its own output is discarded; usage
	// is printed by this package.
	FlagSet flag.FlagSet
}

type Commands []*Command

// Name returns the command's name: the first word in the usage line.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.UsageLine, " ")
	return name
}

// Runnable reports whether the command can be run; otherwise it is a help
// topic such as 'architecture'.
func (c *Command) Runnable() bool {
	return c.Run != nil
}

// Lookup returns the command or help topic called name, nil if there is
// none.
func (cs Commands) Lookup(name string) *Command {
	for _, c := range cs {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

type parseError struct {
	err error
}

func (p *parseError) Error() string { return p.err.Error() }
func (p *parseError) Unwrap() error { return p.err }

// CmdParseError marks err as a command line parsing failure.
func CmdParseError(err error) error {
	if err == nil {
		return nil
	}
	return &parseError{err: err}
}

// isParseError reports whether err was marked with CmdParseError and, if so,
// whether it is a request for help.
func isParseError(err error) (parse, help bool) {
	var pe *parseError
	if !errors.As(err, &pe) {
		return false, false
	}
	return true, errors.Is(pe.err, flag.ErrHelp)
}
