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

package fsserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/kurafs/asyncfs/pkg/backend"
	"github.com/kurafs/asyncfs/pkg/backend/remote"
	"github.com/kurafs/asyncfs/pkg/cli"
	"github.com/kurafs/asyncfs/pkg/config"
	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
)

var FSServerCmd = &cli.Command{
	Run:       fsServerCmdRun,
	UsageLine: "fs-server [-config file] [-backend kind] [-source src] [-port port] [logger flags]",
	Short:     "serve a backend to remote fuse-servers over gRPC",
	Long: `
Fs-server opens a backend the same way fuse-server does and serves it over
gRPC (service asyncfs.FS) so that a fuse-server started with -backend remote
can mount it from another machine.

gRPC, gRPC-Web and HTTP share a single port: /metrics serves prometheus
metrics, every other HTTP path is handed to the gRPC-Web wrapper.
    `,
}

func fsServerCmdRun(cmd *cli.Command, args []string) error {
	var (
		configFlag  string
		backendFlag string
		sourceFlag  string
		port        int

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
	cmd.FlagSet.StringVar(&sourceFlag, "source", "", "Location the backend reads from")
	cmd.FlagSet.IntVar(&port, "port", 0, "Port on which the server will run on (defaults to server.port)")
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
	if cmd.FlagSet.NArg() > 0 {
		return cli.CmdParseError(fmt.Errorf("unrecognized arguments: %v", cmd.FlagSet.Args()))
	}

	mgr, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if backendFlag != "" {
		if err := mgr.Set("backend.kind", backendFlag); err != nil {
			return err
		}
	}
	if port != 0 {
		if err := mgr.Set("server.port", port); err != nil {
			return err
		}
	}
	cfg, err := mgr.Config()
	if err != nil {
		return err
	}
	if sourceFlag != "" {
		if err := backend.SetSource(mgr, cfg.Backend.Kind, sourceFlag); err != nil {
			return cli.CmdParseError(err)
		}
		if cfg, err = mgr.Config(); err != nil {
			return err
		}
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs, closeBackend, err := backend.Open(ctx, logger, cfg.Backend)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	defer closeBackend()

	wait, shutdown, err := Start(logger, fmt.Sprintf(":%d", cfg.Server.Port), fs)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		logger.Infof("interrupted, shutting down")
		shutdown()
	}()

	wait()
	shutdown()
	return nil
}

// Start listens on addr and serves fs there until shutdown is called.
func Start(logger *log.Logger, addr string, fs vfs.FS) (wait func(), shutdown func(), err error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Errorf("failed to open TCP port: %v", err)
		return nil, nil, err
	}
	wait, shutdown = Serve(logger, lis, fs, prometheus.NewRegistry())
	return wait, shutdown, nil
}

// Serve serves fs on lis, registering its metrics with reg. It takes
// ownership of lis.
func Serve(logger *log.Logger, lis net.Listener, fs vfs.FS, reg *prometheus.Registry) (wait func(), shutdown func()) {
	var wg sync.WaitGroup

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := newMetrics(reg)

	// Multiplex grpc and http over the same listener. gRPC clients wait for
	// the server's SETTINGS frame before sending any headers, so the matcher
	// has to write one.
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(metrics.intercept))
	remote.RegisterFSServer(grpcServer, remote.NewServer(fs, logger.With("service", "asyncfs.FS")))

	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.Handle("/", grpcweb.WrapServer(grpcServer))
	httpServer := http.Server{Handler: handler}

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Infof("serving RPC server on %s", lis.Addr())
		if err := grpcServer.Serve(grpcL); err != nil && err != cmux.ErrListenerClosed {
			logger.Errorf("grpc server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Infof("serving HTTP server on %s", lis.Addr())
		if err := httpServer.Serve(httpL); err != nil && err != http.ErrServerClosed && err != cmux.ErrListenerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := mux.Serve(); err != nil && !isClosed(err) {
			logger.Errorf("cmux server error: %v", err)
		}
	}()

	var once sync.Once
	shutdown = func() {
		once.Do(func() {
			lis.Close()
			grpcServer.Stop()
			httpServer.Shutdown(context.Background())
		})
	}

	return wg.Wait, shutdown
}
