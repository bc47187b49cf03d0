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

package remote

import (
	"strings"

	"github.com/kurafs/asyncfs/pkg/vfs"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps a filesystem error onto a gRPC status. Directory and file
// mismatches share FailedPrecondition and carry their kind as the message
// prefix.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch kind := vfs.ErrorKind(err); kind {
	case "not_found":
		return status.Error(codes.NotFound, err.Error())
	case "invalid_name":
		return status.Error(codes.InvalidArgument, err.Error())
	case "not_dir", "not_file":
		return status.Error(codes.FailedPrecondition, kind+": "+err.Error())
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}
	return status.Error(codes.Unknown, err.Error())
}

// fromStatus reverses toStatus.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch s.Code() {
	case codes.NotFound:
		return errors.Wrap(vfs.ErrNotFound, s.Message())
	case codes.InvalidArgument:
		return errors.Wrap(vfs.ErrInvalidName, s.Message())
	case codes.FailedPrecondition:
		kind, msg, _ := strings.Cut(s.Message(), ": ")
		switch kind {
		case "not_dir":
			return errors.Wrap(vfs.ErrNotDir, msg)
		case "not_file":
			return errors.Wrap(vfs.ErrNotFile, msg)
		}
	}
	return errors.Wrap(err, "remote")
}
