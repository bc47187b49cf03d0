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

// Portions of this code originated in the standard library 'log' package.

package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// Logger writes leveled log lines to an io.Writer, each line headed as
// determined by its flags and followed by the logger's fields, if any.
type Logger struct {
	w        io.Writer
	flag     Flag
	basePath string // trimmed from file names under Llongfile
	fields   []byte // pre-rendered " key=value" pairs
}

// exit is swapped out by tests exercising Fatal.
var exit = os.Exit

// New returns a Logger writing to a synchronized os.Stderr with LstdFlags
// headers, unless configured otherwise by options:
//
//	I180419 06:33:04.606396 fname.go:42] message
func New(options ...option) *Logger {
	l := &Logger{
		w:    DefaultWriter(),
		flag: LstdFlags,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Discarder returns a Logger configured to discard all writes.
func Discarder() *Logger {
	return New(Writer(io.Discard))
}

// With returns a logger writing to the same destination that appends the
// given key/value pairs to every line. A key without a value is logged as
// the value of the key "EXTRA".
func (l *Logger) With(kv ...interface{}) *Logger {
	c := *l
	c.fields = append([]byte(nil), l.fields...)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			c.fields = appendField(c.fields, "EXTRA", kv[i])
			break
		}
		c.fields = appendField(c.fields, fmt.Sprint(kv[i]), kv[i+1])
	}
	return &c
}

func appendField(b []byte, key string, value interface{}) []byte {
	v := fmt.Sprint(value)
	if v == "" || strings.ContainsAny(v, " =\"\t\n") {
		v = strconv.Quote(v)
	}
	b = append(b, ' ')
	b = append(b, key...)
	b = append(b, '=')
	return append(b, v...)
}

// Info logs to the INFO log. Arguments are handled in the manner of
// fmt.Println.
func (l *Logger) Info(v ...interface{}) {
	l.log(InfoMode, fmt.Sprintln(v...))
}

// Infof logs to the INFO log. Arguments are handled in the manner of
// fmt.Printf; a newline is appended at the end.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.log(InfoMode, fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(WarnMode, fmt.Sprintln(v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.log(WarnMode, fmt.Sprintf(format, v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.log(ErrorMode, fmt.Sprintln(v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log(ErrorMode, fmt.Sprintf(format, v...))
}

// Fatal logs to the FATAL log, followed by the stacks of all goroutines, and
// exits with status 255. Fatal lines are never filtered out.
func (l *Logger) Fatal(v ...interface{}) {
	l.log(FatalMode, fmt.Sprintln(v...))
	l.w.Write(allStacks())
	exit(255)
}

// Fatalf is Fatal with arguments handled in the manner of fmt.Printf.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.log(FatalMode, fmt.Sprintf(format, v...))
	l.w.Write(allStacks())
	exit(255)
}

func (l *Logger) Debug(v ...interface{}) {
	l.log(DebugMode, fmt.Sprintln(v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.log(DebugMode, fmt.Sprintf(format, v...))
}

// Debugger adapts the logger to tracing hooks of the form func(msg
// interface{}), such as the FUSE protocol tracer, logging every message at
// the DEBUG level.
func (l *Logger) Debugger() func(msg interface{}) {
	return func(msg interface{}) {
		l.log(DebugMode, fmt.Sprint(msg))
	}
}

// enabled reports whether a statement at level lmode in file is emitted.
func enabled(lmode Mode, file string) bool {
	if lmode&FatalMode != DisabledMode {
		return true
	}
	if fmode, ok := fileMode(file); ok {
		return fmode&lmode != DisabledMode
	}
	return GetGlobalLogMode()&lmode != DisabledMode
}

// log must only be called by the exported logging methods; the statement
// being logged is two frames up.
func (l *Logger) log(lmode Mode, data string) {
	file, line := caller(2)
	if GetTracePoint(filepath.Base(file) + ":" + strconv.Itoa(line)) {
		l.w.Write(stacktrace(2))
	}
	if !enabled(lmode, file) {
		return
	}

	var buf bytes.Buffer
	buf.Write(l.header(lmode, time.Now(), file, line))
	buf.WriteString(strings.TrimSuffix(data, "\n"))
	buf.Write(l.fields)
	buf.WriteByte('\n')
	l.w.Write(buf.Bytes())
}

// header formats the line header as per l.flag. With Llongfile, file is
// printed relative to the configured base path when it lies below it.
func (l *Logger) header(lmode Mode, t time.Time, file string, line int) []byte {
	b := make([]byte, 0, 64)
	if l.flag&Lmode != 0 {
		b = append(b, lmode.byte())
	}
	if l.flag&LUTC != 0 {
		t = t.UTC()
	}
	datef := l.flag&Ldate != 0
	timef := l.flag&(Ltime|Lmicroseconds) != 0
	if datef {
		year, month, day := t.Date()
		if year < 2000 {
			year = 2000
		}
		itoa(&b, year-2000, 2)
		itoa(&b, int(month), 2)
		itoa(&b, day, 2)
	}
	if datef && timef {
		b = append(b, ' ')
	}
	if timef {
		hour, min, sec := t.Clock()
		itoa(&b, hour, 2)
		b = append(b, ':')
		itoa(&b, min, 2)
		b = append(b, ':')
		itoa(&b, sec, 2)
		if l.flag&Lmicroseconds != 0 {
			b = append(b, '.')
			itoa(&b, t.Nanosecond()/1e3, 6)
		}
	}
	b = append(b, ' ')

	if l.flag&(Lshortfile|Llongfile) != 0 {
		if l.basePath != "" && strings.HasPrefix(file, l.basePath+"/") {
			file = file[len(l.basePath)+1:]
		}
		if l.flag&Lshortfile != 0 {
			file = filepath.Base(file)
		}
		b = append(b, file...)
		b = append(b, ':')
		itoa(&b, line, -1)
		b = append(b, "] "...)
	}
	return b
}

// Cheap integer to fixed-width decimal ASCII. Give a negative width to avoid
// zero-padding.
func itoa(buf *[]byte, i int, wid int) {
	var b [20]byte
	bp := len(b) - 1
	for i >= 10 || wid > 1 {
		wid--
		q := i / 10
		b[bp] = byte('0' + i - q*10)
		bp--
		i = q
	}
	b[bp] = byte('0' + i)
	*buf = append(*buf, b[bp:]...)
}

// stacktrace returns the stack of the current goroutine without its
// innermost skip callers (the caller of stacktrace counting as the first).
// The "goroutine N [running]:" line is kept.
func stacktrace(skip int) []byte {
	// Every frame is two lines; debug.Stack and stacktrace itself account
	// for two more frames.
	drop := 2 * (skip + 2)

	lines := bytes.Split(debug.Stack(), []byte("\n"))
	if 1+drop > len(lines) {
		return debug.Stack()
	}
	lines = append(lines[:1], lines[1+drop:]...)
	return bytes.Join(lines, []byte("\n"))
}

// allStacks returns the stacks of every goroutine.
func allStacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// caller returns the file and line depth frames above its caller:
// caller(0) is the call site of caller itself, caller(1) the call site of the
// function calling caller, and so on.
func caller(depth int) (file string, line int) {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return "[???]", -1
	}
	return file, line
}
