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

// Package config loads the asyncfs configuration: embedded defaults, then an
// optional YAML or JSON file, then explicit overrides (command line flags).
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

//go:embed config.default.yaml
var defaultConfig []byte

// PathEnv names the environment variable consulted when no configuration
// file is given explicitly.
const PathEnv = "ASYNCFS_CONFIG"

type Config struct {
	Mount    MountConfig    `key:"mount"`
	Executor ExecutorConfig `key:"executor"`
	Log      LogConfig      `key:"log"`
	Metrics  MetricsConfig  `key:"metrics"`
	Server   ServerConfig   `key:"server"`
	Backend  BackendConfig  `key:"backend"`
}

type MountConfig struct {
	ReadOnly     bool          `key:"readOnly"`
	FSName       string        `key:"fsName"`
	Subtype      string        `key:"subtype"`
	AutoUnmount  bool          `key:"autoUnmount"`
	AllowRoot    bool          `key:"allowRoot"`
	AllowOther   bool          `key:"allowOther"`
	Flags        []string      `key:"flags"`
	MountTimeout time.Duration `key:"mountTimeout"`
	MaxInflight  int           `key:"maxInflight"`
	Debug        bool          `key:"debug"`
}

type ExecutorConfig struct {
	Workers int `key:"workers"`
}

type LogConfig struct {
	Level      string `key:"level"`
	Dir        string `key:"dir"`
	RotateSize int    `key:"rotateSize"`
	Keep       int    `key:"keep"`
}

type MetricsConfig struct {
	Addr string `key:"addr"`
}

type ServerConfig struct {
	Port int `key:"port"`
}

type BackendConfig struct {
	Kind   string        `key:"kind"`
	TTL    time.Duration `key:"ttl"`
	Mirror MirrorConfig  `key:"mirror"`
	S3     S3Config      `key:"s3"`
	Bolt   BoltConfig    `key:"bolt"`
	SQL    SQLConfig     `key:"sql"`
	GDrive GDriveConfig  `key:"gdrive"`
	Remote RemoteConfig  `key:"remote"`
}

type MirrorConfig struct {
	Root string `key:"root"`
}

type S3Config struct {
	Bucket       string `key:"bucket"`
	Prefix       string `key:"prefix"`
	Region       string `key:"region"`
	Endpoint     string `key:"endpoint"`
	AccessKey    string `key:"accessKey"`
	SecretKey    string `key:"secretKey"`
	UsePathStyle bool   `key:"usePathStyle"`
}

type BoltConfig struct {
	Path    string        `key:"path"`
	Timeout time.Duration `key:"timeout"`
}

type SQLConfig struct {
	Driver string `key:"driver"`
	DSN    string `key:"dsn"`
}

type GDriveConfig struct {
	Credentials string `key:"credentials"`
	Token       string `key:"token"`
	Folder      string `key:"folder"`
}

type RemoteConfig struct {
	Addr     string `key:"addr"`
	PageSize int    `key:"pageSize"`
}

// Manager holds the layered configuration.
type Manager struct {
	kf *koanf.Koanf
}

// Load reads the embedded defaults and, on top of them, the file at path. An
// empty path falls back to $ASYNCFS_CONFIG, and to the defaults alone if
// that is unset too.
func Load(path string) (*Manager, error) {
	m := &Manager{kf: koanf.New(".")}
	if err := m.kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "loading default configuration")
	}

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		return m, nil
	}

	var parser koanf.Parser
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, errors.Errorf("unsupported configuration format %q", ext)
	}
	if err := m.kf.Load(file.Provider(path), parser); err != nil {
		return nil, errors.Wrapf(err, "loading configuration from %s", path)
	}
	return m, nil
}

// Set overrides a single key, using the dotted paths of the YAML layout
// (mount.readOnly, backend.kind, ...).
func (m *Manager) Set(key string, value interface{}) error {
	return m.kf.Set(key, value)
}

// Config unmarshals the layered configuration.
func (m *Manager) Config() (Config, error) {
	var c Config
	err := m.kf.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "key"})
	if err != nil {
		return Config{}, errors.Wrap(err, "unmarshalling configuration")
	}
	return c, nil
}

// Print returns the flattened configuration, one key per line.
func (m *Manager) Print() string {
	return m.kf.Sprint()
}
