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

package fuseserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kurafs/asyncfs/pkg/backend"
	"github.com/kurafs/asyncfs/pkg/bridge"
	"github.com/kurafs/asyncfs/pkg/cli"
	"github.com/kurafs/asyncfs/pkg/config"
	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/kurafs/asyncfs/pkg/mount"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var FuseServerCmd = &cli.Command{
	Run:       fuseServerCmdRun,
	UsageLine: "fuse-server [-config file] [-backend kind] [-source src] [mount flags] [-unmount] [logger flags] <mount-point>",
	Short:     "mount a backend read-only at the specified mount point",
	Long: `
Fuse-server mounts a backend at the given mount point and serves kernel
requests until it is interrupted (SIGINT, SIGTERM) or the filesystem is
unmounted externally (fusermount -u, umount). With -auto-unmount=false
signals are ignored and the mount stays until it is unmounted externally. A
server killed outright (SIGKILL) leaves a stale mount behind; -unmount
releases it.

The backend and mount options come from the embedded defaults, then the file
named by -config (or $ASYNCFS_CONFIG), then the flags given here. Backends:
hello, mirror, s3, bolt, sql, gdrive and remote. -source sets the location
the backend reads from: the mirrored directory, bucket, database path or DSN,
Drive folder ID, or fs-server address.

Serving stops gracefully: new requests are refused, the mount point is
detached, and in-flight requests complete before the command returns.

With -unmount, the filesystem mounted at the mount point is unmounted instead
(forcefully if a plain unmount does not succeed).
    `,
}

func fuseServerCmdRun(cmd *cli.Command, args []string) error {
	var (
		configFlag  string
		backendFlag string
		sourceFlag  string
		unmountFlag bool
		optionsFlag optionList

		logDirFlag         string
		suppressStderrFlag bool
		logModeFlag        log.ModeFlag
		logFilterFlag      log.FilterFlag
		backtracePointFlag log.TracePointFlag
	)

	cmd.FlagSet.StringVar(&configFlag, "config", "",
		"Configuration file (YAML or JSON), defaults to $"+config.PathEnv)
	cmd.FlagSet.StringVar(&backendFlag, "backend", "",
		fmt.Sprintf("Backend to serve, one of %v", backend.Kinds()))
	cmd.FlagSet.StringVar(&sourceFlag, "source", "",
		"Location the backend reads from")
	cmd.FlagSet.Bool("ro", true, "Mount read-only")
	cmd.FlagSet.String("fsname", "asyncfs", "Filesystem name shown in the mount table")
	cmd.FlagSet.String("subtype", "", "Filesystem subtype shown in the mount table")
	cmd.FlagSet.Bool("auto-unmount", true, "Unmount when the server is interrupted")
	cmd.FlagSet.Bool("allow-other", false, "Allow all users to access the filesystem")
	cmd.FlagSet.Bool("allow-root", false, "Allow root to access the filesystem (not supported by the FUSE mount, rejected)")
	cmd.FlagSet.Bool("debug", false, "Log every kernel request and reply at debug level")
	cmd.FlagSet.Var(&optionsFlag, "o", "Comma-separated list of mount options passed to the OS")
	cmd.FlagSet.Int("workers", 0, "Number of backend workers (0 for one per CPU)")
	cmd.FlagSet.String("metrics-addr", "", "Serve prometheus metrics on this address [host:port]")
	cmd.FlagSet.BoolVar(&unmountFlag, "unmount", false,
		"Unmount filesystem at specified directory")
	cmd.FlagSet.StringVar(&logDirFlag, "log-dir", "",
		"Write log files to the specified directory")
	cmd.FlagSet.BoolVar(&suppressStderrFlag, "suppress-stderr", false,
		"Suppress standard error logging")
	cmd.FlagSet.Var(&logModeFlag, "log-mode",
		"Log level for logs emitted globally (can be overridden using -log-filter)")
	cmd.FlagSet.Var(&logFilterFlag, "log-filter",
		"Comma-separated list of pattern:level settings for file-filtered logging")
	cmd.FlagSet.Var(&backtracePointFlag, "log-backtrace-at",
		"Comma-separated list of filename:N settings to emit backtraces")

	if err := cmd.FlagSet.Parse(args); err != nil {
		return cli.CmdParseError(err)
	}

	if cmd.FlagSet.NArg() > 1 {
		return cli.CmdParseError(fmt.Errorf("unrecognized arguments: %v", cmd.FlagSet.Args()[1:]))
	}
	if cmd.FlagSet.NArg() == 0 {
		return cli.CmdParseError(errors.New("unspecified mount-point"))
	}
	mountPoint := cmd.FlagSet.Arg(0)

	mgr, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if err := applyFlags(mgr, &cmd.FlagSet, backendFlag, sourceFlag); err != nil {
		return cli.CmdParseError(err)
	}
	cfg, err := mgr.Config()
	if err != nil {
		return err
	}

	if !logModeFlag.IsSet() {
		mode, err := log.ParseMode(cfg.Log.Level)
		if err != nil {
			return err
		}
		log.SetGlobalLogMode(mode)
	}
	if logDirFlag == "" {
		logDirFlag = cfg.Log.Dir
	}
	writer := io.Discard
	if logDirFlag != "" {
		writer = log.LogRotationWriter(logDirFlag, cfg.Log.RotateSize, log.KeepFiles(cfg.Log.Keep))
	}
	if !suppressStderrFlag {
		writer = log.MultiWriter(writer, os.Stderr)
	}
	writer = log.SynchronizedWriter(writer)
	logf := log.Ldate | log.Ltime | log.Lmicroseconds | log.Llongfile | log.LUTC | log.Lmode
	logger := log.New(log.Writer(writer), log.Flags(logf), log.SkipBasePath())

	if unmountFlag {
		if err := mount.Unmount(mountPoint); err != nil {
			logger.Error(err.Error())
			return err
		}
		logger.Infof("unmounted point: %s", mountPoint)
		return nil
	}

	return serve(logger, cfg, mountPoint)
}

func serve(logger *log.Logger, cfg config.Config, mountPoint string) error {
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			logger.Infof("serving metrics on %s", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server error: %v", err)
			}
		}()
		defer srv.Close()
	}

	fs, closeBackend, err := backend.Open(ctx, logger, cfg.Backend)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warnf("closing %s backend: %v", cfg.Backend.Kind, err)
		}
	}()

	exec := bridge.NewExecutor(cfg.Executor.Workers, bridge.WithRegisterer(reg))
	defer exec.Close()

	opts := mount.Options{
		ReadOnly:     cfg.Mount.ReadOnly,
		FSName:       cfg.Mount.FSName,
		Subtype:      cfg.Mount.Subtype,
		AutoUnmount:  cfg.Mount.AutoUnmount,
		AllowRoot:    cfg.Mount.AllowRoot,
		AllowOther:   cfg.Mount.AllowOther,
		Flags:        cfg.Mount.Flags,
		MountTimeout: cfg.Mount.MountTimeout,
		MaxInflight:  cfg.Mount.MaxInflight,
		Debug:        cfg.Mount.Debug,
		Registerer:   reg,
	}

	// With auto-unmount, SIGINT and SIGTERM cancel ctx and the session
	// unmounts itself. Without it the mount outlives signals and serving
	// ends once the mount point is unmounted externally.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wait, _, err := mount.Begin(ctx, logger, fs, exec, mountPoint, opts)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	go func() {
		for {
			select {
			case sig := <-sigs:
				if opts.AutoUnmount {
					logger.Infof("%v, shutting down", sig)
					cancel()
					return
				}
				logger.Warnf("%v: auto-unmount is off, %s stays mounted until unmounted externally", sig, mountPoint)
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := wait(); err != nil {
		logger.Error(err.Error())
		return err
	}
	logger.Infof("unmounted point: %s", mountPoint)
	return nil
}
