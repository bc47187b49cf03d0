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
	"flag"
	"strings"

	"github.com/kurafs/asyncfs/pkg/backend"
	"github.com/kurafs/asyncfs/pkg/config"
)

// optionList collects -o mount options; it may be given more than once.
type optionList []string

func (o *optionList) String() string {
	return strings.Join(*o, ",")
}

func (o *optionList) Set(s string) error {
	for _, opt := range strings.Split(s, ",") {
		if opt = strings.TrimSpace(opt); opt != "" {
			*o = append(*o, opt)
		}
	}
	return nil
}

// flagKeys maps the flags that override configuration onto their keys.
var flagKeys = map[string]string{
	"ro":           "mount.readOnly",
	"fsname":       "mount.fsName",
	"subtype":      "mount.subtype",
	"auto-unmount": "mount.autoUnmount",
	"allow-other":  "mount.allowOther",
	"allow-root":   "mount.allowRoot",
	"debug":        "mount.debug",
	"workers":      "executor.workers",
	"metrics-addr": "metrics.addr",
}

// applyFlags layers the flags given explicitly on the command line over the
// configuration.
func applyFlags(m *config.Manager, fs *flag.FlagSet, kind, source string) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		if key, ok := flagKeys[f.Name]; ok {
			err = m.Set(key, f.Value.(flag.Getter).Get())
		}
		if f.Name == "o" {
			err = m.Set("mount.flags", []string(*f.Value.(*optionList)))
		}
	})
	if err != nil {
		return err
	}

	if kind != "" {
		if err := m.Set("backend.kind", kind); err != nil {
			return err
		}
	}
	if source != "" {
		cfg, err := m.Config()
		if err != nil {
			return err
		}
		return backend.SetSource(m, cfg.Backend.Kind, source)
	}
	return nil
}
