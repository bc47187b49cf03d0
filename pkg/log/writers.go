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

// Portions of this code originated in the github.com/golang/glog package.

package log

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	program  = "?"
	hostname = "?"
	username = "?"
	pid      = -1
)

func init() {
	program = filepath.Base(os.Args[0])
	if host, err := os.Hostname(); err == nil {
		hostname = host
	}
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	pid = os.Getpid()
}

// DefaultWriter returns a default os.Stderr writer that is safe for concurrent use.
func DefaultWriter() io.Writer {
	return SynchronizedWriter(os.Stderr)
}

// RotationOption configures LogRotationWriter.
type RotationOption func(*logRotationWriter)

// KeepFiles bounds the number of log files left in the directory; the oldest
// ones are removed whenever a new file is started. Zero keeps everything.
func KeepFiles(n int) RotationOption {
	return func(r *logRotationWriter) {
		r.keep = n
	}
}

// LogRotationWriter returns an io.Writer writing to files in dirname, starting
// a new file whenever the current one would grow past sizeThreshold bytes.
// <program>.log in the directory links to the newest file. A single write
// larger than the threshold still goes to a single file. The writer is not
// safe for concurrent use; wrap it with SynchronizedWriter.
func LogRotationWriter(dirname string, sizeThreshold int, opts ...RotationOption) io.Writer {
	r := &logRotationWriter{
		dirname:       dirname,
		symlink:       program + ".log",
		sizeThreshold: sizeThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SynchronizedWriter wraps an io.Writer with a mutex for concurrent access.
func SynchronizedWriter(w io.Writer) io.Writer {
	return &synchronizedWriter{w: w}
}

// MultiWriter multiplexes writes to multiple io.Writers.
func MultiWriter(w io.Writer, ws ...io.Writer) io.Writer {
	return &multiWriter{ws: append([]io.Writer{w}, ws...)}
}

// logFilename returns a name of the form
// <program>.<host>.<user>.<yyyy-mm-dd>.<hh:mm:ss.mmm>.<pid>.log. Names of one
// process sort in creation order.
func logFilename(t time.Time) string {
	return fmt.Sprintf("%s.%s.%s.%s.%d.log",
		program, hostname, username, t.Format("2006-01-02.15:04:05.000"), pid)
}

type logRotationWriter struct {
	dirname, symlink string
	size             int
	sizeThreshold    int
	keep             int

	current *os.File
}

func (r *logRotationWriter) Write(b []byte) (n int, err error) {
	if r.current == nil || r.size+len(b) > r.sizeThreshold {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err = r.current.Write(b)
	r.size += n
	return n, err
}

func (r *logRotationWriter) rotate() error {
	if err := os.MkdirAll(r.dirname, 0755); err != nil {
		return err
	}
	name := logFilename(time.Now())
	f, err := os.Create(filepath.Join(r.dirname, name))
	if err != nil {
		return err
	}
	if r.current != nil {
		r.current.Close()
	}
	r.current, r.size = f, 0

	// The link is a convenience; failing to update it is not worth failing
	// the write over.
	link := filepath.Join(r.dirname, r.symlink)
	os.Remove(link)
	os.Symlink(name, link)

	r.prune()
	return nil
}

// prune removes this program's oldest log files beyond r.keep.
func (r *logRotationWriter) prune() {
	if r.keep <= 0 {
		return
	}
	entries, err := os.ReadDir(r.dirname)
	if err != nil {
		return
	}
	var logs []string
	for _, e := range entries {
		name := e.Name()
		if name == r.symlink || !e.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(name, program+".") && strings.HasSuffix(name, ".log") {
			logs = append(logs, name)
		}
	}
	sort.Strings(logs)
	for len(logs) > r.keep {
		os.Remove(filepath.Join(r.dirname, logs[0]))
		logs = logs[1:]
	}
}

type synchronizedWriter struct {
	sync.Mutex
	w io.Writer
}

func (s *synchronizedWriter) Write(b []byte) (n int, err error) {
	s.Lock()
	defer s.Unlock()
	return s.w.Write(b)
}

type multiWriter struct {
	ws []io.Writer
}

// Write writes b to every writer regardless of failures, reporting the
// smallest count and the last error.
func (m *multiWriter) Write(b []byte) (n int, err error) {
	n = len(b)
	for _, w := range m.ws {
		nw, werr := w.Write(b)
		if nw < n {
			n = nw
		}
		if werr != nil {
			err = werr
		}
	}
	return n, err
}
