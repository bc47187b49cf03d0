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

package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/kurafs/asyncfs/pkg/streaming"
	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// read fetches [offset, offset+size) of key. Ranges spanning more than one
// chunk are fetched concurrently, at most streaming.MaxChunks at a time.
func (f *FS) read(ctx context.Context, key string, offset, size int64) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	ranges := streaming.Ranges(offset, offset+size)
	if len(ranges) == 1 {
		return f.getRange(ctx, key, offset, offset+size)
	}

	parts := make([][]byte, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(streaming.MaxChunks)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			b, err := f.getRange(gctx, key, r[0], r[1])
			parts[i] = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, size)
	for i, part := range parts {
		buf = append(buf, part...)
		if int64(len(part)) < ranges[i][1]-ranges[i][0] {
			break
		}
	}
	return buf, nil
}

// getRange reads [lo, hi) of key, short if the object ends before hi.
func (f *FS) getRange(ctx context.Context, key string, lo, hi int64) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.objectKey(key)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", lo, hi-1)),
	})
	if err != nil {
		switch {
		case isInvalidRange(err):
			return nil, nil
		case isNotFound(err):
			return nil, errors.Wrapf(vfs.ErrNotFound, "get %s", key)
		}
		return nil, errors.Wrapf(err, "get %s [%d, %d)", key, lo, hi)
	}
	defer out.Body.Close()

	buf := make([]byte, hi-lo)
	n, err := io.ReadFull(out.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrapf(err, "reading %s [%d, %d)", key, lo, hi)
	}
	return buf[:n], nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}
