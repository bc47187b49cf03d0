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

package doc

import "github.com/kurafs/asyncfs/pkg/cli"

var ConfigurationCmd = &cli.Command{
	UsageLine: "configuration",
	Short:     "asyncfs configuration overview",
	Long: `
Both servers read a YAML or JSON file given with -config, or named by
$ASYNCFS_CONFIG. Values missing from the file take the built-in defaults,
and command-line flags override both.

  mount.readOnly, mount.fsName, mount.subtype, mount.autoUnmount,
  mount.allowRoot, mount.allowOther, mount.flags, mount.mountTimeout,
  mount.maxInflight, mount.debug
      Mount options passed to the kernel and the session.

  executor.workers
      Number of goroutines running backend futures.

  log.level, log.dir, log.rotateSize, log.keep
      Global log mode (info, warn, error, debug), directory for rotated log
      files, the size at which they rotate and how many of them are kept.

  metrics.addr
      Address fuse-server serves prometheus metrics on; empty disables it.

  server.port
      Port fs-server listens on for gRPC, gRPC-Web and /metrics.

  backend.kind
      One of hello, mirror, s3, bolt, sql, gdrive, remote.

  backend.ttl
      Attribute and entry validity handed to the kernel.

  backend.mirror.root
  backend.s3.{bucket,prefix,region,endpoint,accessKey,secretKey,usePathStyle}
  backend.bolt.{path,timeout}
  backend.sql.{driver,dsn}
  backend.gdrive.{credentials,token,folder}
  backend.remote.{addr,pageSize}
      Per-backend settings. -source sets the one that names where the
      backend reads from.
`,
}
