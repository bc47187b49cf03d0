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

// Package objstore exposes a prefix of an S3 bucket as a read-only vfs.FS.
// Objects are files and common prefixes (under the "/" delimiter) are
// directories.
package objstore

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kurafs/asyncfs/pkg/inode"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
)

// Client is the subset of the S3 API the backend uses. *s3.Client satisfies
// it.
type Client interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	Bucket string
	// Prefix is the key prefix exposed as the root directory.
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type FS struct {
	client Client
	bucket string
	prefix string
	ttl    time.Duration
	dir    *inode.Directory

	uid, gid uint32
	mounted  time.Time

	mu    sync.RWMutex
	kinds map[uint64]vfs.Kind
}

var _ vfs.FS = (*FS)(nil)

// New exposes bucket/prefix through client.
func New(client Client, bucket, prefix string, ttl time.Duration) *FS {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	f := &FS{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		ttl:     ttl,
		dir:     inode.NewDirectory(""),
		uid:     uint32(os.Getuid()),
		gid:     uint32(os.Getgid()),
		mounted: time.Now(),
		kinds:   make(map[uint64]vfs.Kind),
	}
	f.kinds[vfs.RootIno] = vfs.KindDir
	return f
}

// NewFromConfig builds an S3 client from cfg, using the default credential
// chain unless static keys are given.
func NewFromConfig(ctx context.Context, cfg Config, ttl time.Duration) (*FS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("objstore: no bucket configured")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return New(client, cfg.Bucket, cfg.Prefix, ttl), nil
}

func (f *FS) objectKey(key string) string {
	return f.prefix + key
}

// listPrefix is the prefix under which the children of the directory key
// live.
func (f *FS) listPrefix(key string) string {
	if key == "" {
		return f.prefix
	}
	return f.prefix + key + "/"
}

func (f *FS) remember(key string, kind vfs.Kind) uint64 {
	ino := f.dir.Resolve(key)
	f.mu.Lock()
	f.kinds[ino] = kind
	f.mu.Unlock()
	return ino
}

func (f *FS) node(ino uint64) (string, vfs.Kind, error) {
	key, ok := f.dir.Key(ino)
	if !ok {
		return "", 0, vfs.NotFound(ino)
	}
	f.mu.RLock()
	kind := f.kinds[ino]
	f.mu.RUnlock()
	return key, kind, nil
}

func (f *FS) dirAttr(ino uint64) vfs.Attr {
	return vfs.Attr{
		Ino:       ino,
		Atime:     f.mounted,
		Mtime:     f.mounted,
		Ctime:     f.mounted,
		Crtime:    f.mounted,
		Kind:      vfs.KindDir,
		Perm:      0555,
		Nlink:     2,
		Uid:       f.uid,
		Gid:       f.gid,
		BlockSize: 4096,
	}
}

func (f *FS) fileAttr(ino uint64, size int64, mtime time.Time) vfs.Attr {
	if mtime.IsZero() {
		mtime = f.mounted
	}
	return vfs.Attr{
		Ino:       ino,
		Size:      uint64(size),
		Blocks:    vfs.Blocks(uint64(size)),
		Atime:     mtime,
		Mtime:     mtime,
		Ctime:     mtime,
		Crtime:    mtime,
		Kind:      vfs.KindFile,
		Perm:      0444,
		Nlink:     1,
		Uid:       f.uid,
		Gid:       f.gid,
		BlockSize: 4096,
	}
}

// head stats the object at key. found is false if there is no such object.
func (f *FS) head(ctx context.Context, key string, ino uint64) (attr vfs.Attr, found bool, err error) {
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return vfs.Attr{}, false, nil
		}
		return vfs.Attr{}, false, errors.Wrapf(err, "head %s", key)
	}
	return f.fileAttr(ino, aws.ToInt64(out.ContentLength), aws.ToTime(out.LastModified)), true, nil
}

// isDir reports whether anything lives under the directory key.
func (f *FS) isDir(ctx context.Context, key string) (bool, error) {
	out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(f.listPrefix(key)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, errors.Wrapf(err, "list %s", key)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (f *FS) Getattr(ctx context.Context, ino uint64) (vfs.AttrOut, error) {
	key, kind, err := f.node(ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	if kind == vfs.KindDir {
		return vfs.AttrOut{TTL: f.ttl, Attr: f.dirAttr(ino)}, nil
	}

	attr, found, err := f.head(ctx, key, ino)
	if err != nil {
		return vfs.AttrOut{}, err
	}
	if !found {
		return vfs.AttrOut{}, vfs.NotFound(ino)
	}
	return vfs.AttrOut{TTL: f.ttl, Attr: attr}, nil
}

func (f *FS) Lookup(ctx context.Context, parent uint64, name string) (vfs.EntryOut, error) {
	dir, kind, err := f.node(parent)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	if kind != vfs.KindDir {
		return vfs.EntryOut{}, vfs.NotDir(parent)
	}

	switch name {
	case ".":
		return f.entry(f.dirAttr(parent)), nil
	case "..":
		up := inode.Parent(dir)
		return f.entry(f.dirAttr(f.remember(up, vfs.KindDir))), nil
	}
	if !vfs.ValidName(name) {
		return vfs.EntryOut{}, vfs.InvalidName(name)
	}

	// A prefix shadows an object of the same name, as in listings.
	key := inode.Join(dir, name)
	ok, err := f.isDir(ctx, key)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	if ok {
		return f.entry(f.dirAttr(f.remember(key, vfs.KindDir))), nil
	}

	attr, found, err := f.head(ctx, key, 0)
	if err != nil {
		return vfs.EntryOut{}, err
	}
	if !found {
		return vfs.EntryOut{}, vfs.ChildNotFound(parent, name)
	}
	attr.Ino = f.remember(key, vfs.KindFile)
	return f.entry(attr), nil
}

func (f *FS) entry(attr vfs.Attr) vfs.EntryOut {
	return vfs.EntryOut{TTL: f.ttl, Attr: attr, Generation: f.dir.Generation()}
}

func (f *FS) Readdir(ctx context.Context, ino, fh uint64, offset int64) (vfs.DirStream, error) {
	key, kind, err := f.node(ino)
	if err != nil {
		return nil, err
	}
	if kind != vfs.KindDir {
		return nil, vfs.NotDir(ino)
	}
	parent := vfs.RootIno
	if key != "" {
		parent = f.remember(inode.Parent(key), vfs.KindDir)
	}
	return newDirStream(f, key, ino, parent, offset), nil
}

func (f *FS) Read(ctx context.Context, ino, fh uint64, offset int64, size uint32, flags int32, lock *uint64) ([]byte, error) {
	key, kind, err := f.node(ino)
	if err != nil {
		return nil, err
	}
	if kind == vfs.KindDir {
		return nil, vfs.NotFile(ino)
	}
	return f.read(ctx, key, offset, int64(size))
}
