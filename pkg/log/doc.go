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

// Package log implements leveled, file-filterable execution logs.
//
// Commands expose the package's configuration as flags:
//
//	$ asyncfs fuse-server -h
//	  -log-dir string
//	        Write log files to the specified directory
//	  -log-mode value
//	        Log level for logs emitted globally (can be overridden using -log-filter)
//	  -log-filter value
//	        Comma-separated list of pattern:level settings for file-filtered logging
//	  -log-backtrace-at value
//	        Comma-separated list of filename:N settings to emit backtraces
//
//	$ asyncfs fuse-server -log-mode info \
//	                      -log-dir /var/log/asyncfs \
//	                      -log-filter mount/session.go:debug,backend/*/*.go:warn \
//	                      -log-backtrace-at adapter.go:87 ...
//
// File filters and backtrace points are global and may be changed at any
// time; a running process could expose them over an RPC.
//
// Basic usage:
//
//	logger := log.New()
//	logger.Info("hello, world")
//
// Destinations and header formats are chosen with options:
//
//	writer := log.MultiWriter(
//		log.LogRotationWriter("/logs", 50<<20 /* 50 MiB */, log.KeepFiles(10)),
//		os.Stderr)
//	logf := log.Lmode | log.Ldate | log.Ltime | log.Llongfile
//	logger := log.New(log.Writer(log.SynchronizedWriter(writer)), log.Flags(logf))
//
// Context that applies to every line of a component is attached once:
//
//	logger = logger.With("backend", "s3")
//	logger.Warnf("listing %s failed", prefix) // W... listing a/ failed backend=s3
package log
