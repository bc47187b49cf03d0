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

// Package backend opens the filesystem backend named by the configuration.
// The backends themselves live in the subpackages.
package backend

import (
	"context"
	"os"
	"sort"

	"github.com/kurafs/asyncfs/pkg/backend/boltfs"
	"github.com/kurafs/asyncfs/pkg/backend/gdrive"
	"github.com/kurafs/asyncfs/pkg/backend/memfs"
	"github.com/kurafs/asyncfs/pkg/backend/mirror"
	"github.com/kurafs/asyncfs/pkg/backend/objstore"
	"github.com/kurafs/asyncfs/pkg/backend/remote"
	"github.com/kurafs/asyncfs/pkg/backend/sqlfs"
	"github.com/kurafs/asyncfs/pkg/config"
	"github.com/kurafs/asyncfs/pkg/log"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

type opener func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error)

func nop() error { return nil }

var openers = map[string]opener{
	"hello": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		return memfs.Hello(), nop, nil
	},
	"mirror": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		if cfg.Mirror.Root == "" {
			return nil, nil, errors.New("backend.mirror.root is not set")
		}
		fs, err := mirror.New(cfg.Mirror.Root, cfg.TTL)
		return fs, nop, err
	},
	"s3": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		fs, err := objstore.NewFromConfig(ctx, objstore.Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		}, cfg.TTL)
		return fs, nop, err
	},
	"bolt": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		if cfg.Bolt.Path == "" {
			return nil, nil, errors.New("backend.bolt.path is not set")
		}
		fs, err := boltfs.Open(cfg.Bolt.Path, cfg.Bolt.Timeout, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	},
	"sql": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		if cfg.SQL.DSN == "" {
			return nil, nil, errors.New("backend.sql.dsn is not set")
		}
		fs, err := sqlfs.Open(cfg.SQL.Driver, cfg.SQL.DSN, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	},
	"gdrive": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		client, err := gdrive.Client(ctx, logger, cfg.GDrive.Credentials, cfg.GDrive.Token, os.Stdin, os.Stdout)
		if err != nil {
			return nil, nil, err
		}
		fs, err := gdrive.NewFromClient(ctx, client, cfg.GDrive.Folder, cfg.TTL)
		return fs, nop, err
	},
	"remote": func(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
		c, err := remote.Dial(cfg.Remote.Addr, cfg.Remote.PageSize)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	},
}

// Kinds lists the backend kinds Open knows about.
func Kinds() []string {
	var kinds []string
	for k := range openers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open opens the backend cfg.Kind. The returned function releases whatever
// the backend holds and must be called once the filesystem is no longer
// served.
func Open(ctx context.Context, logger *log.Logger, cfg config.BackendConfig) (vfs.FS, func() error, error) {
	open, ok := openers[cfg.Kind]
	if !ok {
		return nil, nil, errors.Errorf("unknown backend %q (one of %v)", cfg.Kind, Kinds())
	}
	logger = logger.With("backend", cfg.Kind)
	fs, closer, err := open(ctx, logger, cfg)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s backend", cfg.Kind)
	}
	logger.Info("backend opened")
	return fs, closer, nil
}

// SetSource points the configured backend kind at source: the mirrored
// directory, the bucket, the database file or DSN, the Drive folder or the
// server address.
func SetSource(m *config.Manager, kind, source string) error {
	keys := map[string]string{
		"mirror": "backend.mirror.root",
		"s3":     "backend.s3.bucket",
		"bolt":   "backend.bolt.path",
		"sql":    "backend.sql.dsn",
		"gdrive": "backend.gdrive.folder",
		"remote": "backend.remote.addr",
	}
	key, ok := keys[kind]
	if !ok {
		return errors.Errorf("the %s backend takes no source", kind)
	}
	return m.Set(key, source)
}
