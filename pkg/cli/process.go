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

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Process runs the command named by the program's arguments. Without
// arguments, or with 'help' or '-h', the full usage is printed. Usage
// problems (unknown commands, bad flags) are reported on os.Stderr and exit
// the process with status 2; errors returned by the command itself are
// handed back to the caller.
//
// The abstract heads the full usage:
//
//	$ <program> -h
//	<abstract>
//
//	Usage:
//	    ...
func Process(abstract string, commands Commands) error {
	program := filepath.Base(os.Args[0])
	code, err := run(os.Stdout, os.Stderr, program, abstract, os.Args[1:], commands)
	if code != 0 {
		os.Exit(code)
	}
	return err
}

// run is Process without the process: it returns the exit status for usage
// problems and the command's error otherwise.
func run(stdout, stderr io.Writer, program, abstract string, args []string, commands Commands) (int, error) {
	for _, cmd := range commands {
		cmd.FlagSet.SetOutput(io.Discard)
	}

	if len(args) == 0 || (len(args) == 1 && isHelp(args[0])) {
		printFullUsage(stdout, program, abstract, commands)
		return 0, nil
	}

	name := args[0]
	if name == "help" {
		if len(args) > 2 {
			fmt.Fprintf(stderr, "Usage: %s help [command]\n\nToo many arguments given.\n", program)
			return 2, nil
		}
		cmd := commands.Lookup(args[1])
		if cmd == nil {
			fmt.Fprintf(stderr, "Unknown help topic '%s'\n\nRun '%s help' for available topics.\n", args[1], program)
			return 2, nil
		}
		printCommandUsage(stdout, program, cmd)
		return 0, nil
	}

	cmd := commands.Lookup(name)
	switch {
	case cmd == nil:
		fmt.Fprintf(stderr, "Unknown command '%s'\n\nRun '%s help' for available commands.\n", name, program)
		return 2, nil
	case !cmd.Runnable():
		fmt.Fprintf(stderr, "'%s' is a help topic, not a command\n\nRun '%s help %s' to read it.\n", name, program, name)
		return 2, nil
	}

	// Flags are usually defined by Run itself, so usage is only printed
	// after it returned.
	err := cmd.Run(cmd, args[1:])
	parse, help := isParseError(err)
	switch {
	case help:
		printCommandHelp(stdout, program, cmd)
		return 0, nil
	case parse:
		printCommandParsingError(stderr, program, cmd, err)
		return 2, nil
	}
	return 0, err
}

func isHelp(arg string) bool {
	switch arg {
	case "help", "-h", "-help", "--help":
		return true
	}
	return false
}
