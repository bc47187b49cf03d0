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

package mount

import (
	"strconv"
	"strings"
	"time"

	"bazil.org/fuse"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Options describes how a filesystem is mounted and served.
type Options struct {
	ReadOnly    bool
	FSName      string
	Subtype     string
	AllowOther  bool

	// AutoUnmount shuts the session down and unmounts once the context
	// passed to Begin is done. A process that dies without running its
	// deferred calls (SIGKILL) leaves the mount behind; fusermount -u or
	// the -unmount flag of fuse-server release it.
	AutoUnmount bool

	// AllowRoot is recognised but rejected: the FUSE mount used here can
	// only widen access to every user (AllowOther).
	AllowRoot bool

	// Flags are passed through to the OS mount mechanism, in the
	// name[=value] form of mount -o.
	Flags []string

	MountTimeout time.Duration
	MaxInflight  int
	Debug        bool

	Registerer prometheus.Registerer
}

// DefaultOptions are the options used by the fuse-server command unless
// configured otherwise.
func DefaultOptions() Options {
	return Options{
		ReadOnly:     true,
		FSName:       "asyncfs",
		AutoUnmount:  true,
		MountTimeout: 10 * time.Second,
		MaxInflight:  64,
	}
}

// fuseOptions translates o into bazil mount options.
func (o Options) fuseOptions() ([]fuse.MountOption, error) {
	fsname := o.FSName
	if fsname == "" {
		fsname = "asyncfs"
	}
	opts := []fuse.MountOption{fuse.FSName(fsname)}
	if o.Subtype != "" {
		opts = append(opts, fuse.Subtype(o.Subtype))
	}
	if o.ReadOnly {
		opts = append(opts, fuse.ReadOnly())
	}
	if o.AllowRoot {
		return nil, unsupported("allow_root")
	}
	if o.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	for _, flag := range o.Flags {
		opt, err := passthrough(flag)
		if err != nil {
			return nil, err
		}
		if opt != nil {
			opts = append(opts, opt)
		}
	}
	return opts, nil
}

func unsupported(flag string) error {
	return errors.Errorf("%s not supported by this mount mechanism", flag)
}

// passthrough maps a mount -o style flag onto the matching bazil option.
// rw needs no option and yields nil.
func passthrough(flag string) (fuse.MountOption, error) {
	name, value, hasValue := strings.Cut(strings.TrimSpace(flag), "=")
	needValue := func() error {
		if !hasValue || value == "" {
			return errors.Errorf("mount flag %q requires a value", name)
		}
		return nil
	}

	switch name {
	case "ro":
		return fuse.ReadOnly(), nil
	case "rw":
		return nil, nil
	case "allow_other":
		return fuse.AllowOther(), nil
	case "allow_root", "auto_unmount":
		return nil, unsupported(name)
	case "default_permissions":
		return fuse.DefaultPermissions(), nil
	case "nonempty":
		return fuse.AllowNonEmptyMount(), nil
	case "async_read":
		return fuse.AsyncRead(), nil
	case "allow_dev":
		return fuse.AllowDev(), nil
	case "allow_suid":
		return fuse.AllowSUID(), nil
	case "local":
		return fuse.LocalVolume(), nil
	case "noapplexattr":
		return fuse.NoAppleXattr(), nil
	case "noappledouble":
		return fuse.NoAppleDouble(), nil
	case "fsname":
		if err := needValue(); err != nil {
			return nil, err
		}
		return fuse.FSName(value), nil
	case "subtype":
		if err := needValue(); err != nil {
			return nil, err
		}
		return fuse.Subtype(value), nil
	case "volname":
		if err := needValue(); err != nil {
			return nil, err
		}
		return fuse.VolumeName(value), nil
	case "daemon_timeout":
		if err := needValue(); err != nil {
			return nil, err
		}
		if _, err := strconv.Atoi(value); err != nil {
			return nil, errors.Errorf("mount flag daemon_timeout: %q is not a number of seconds", value)
		}
		return fuse.DaemonTimeout(value), nil
	case "max_readahead":
		if err := needValue(); err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "mount flag max_readahead")
		}
		return fuse.MaxReadahead(uint32(n)), nil
	}
	return nil, errors.Errorf("unsupported mount flag %q", flag)
}
